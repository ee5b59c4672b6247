package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sorumcars/sorum/pkg/contextkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Level: "info", Output: &buf})
	require.NoError(t, err)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		assert.Zero(t, buf.Len())
	})

	t.Run("info logged as json", func(t *testing.T) {
		buf.Reset()
		logger.WithField("email", "a@x.io").Info("info message")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "info", entry["level"])
		assert.Equal(t, "info message", entry["msg"])
		assert.Equal(t, "a@x.io", entry["email"])
	})
}

func TestNewLogger_Errors(t *testing.T) {
	_, err := NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = NewLogger(LogConfig{Format: "xml"})
	assert.Error(t, err)

	logger, err := NewLogger(LogConfig{Format: "text"})
	require.NoError(t, err)
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, l)

	l, err = ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l)
}

func TestFromContext(t *testing.T) {
	t.Run("falls back to standard logger with request id", func(t *testing.T) {
		ctx := contextkeys.WithRequestID(context.Background(), "req-1")
		entry := FromContext(ctx)
		assert.Equal(t, "req-1", entry.Data["request_id"])
	})

	t.Run("returns stored entry", func(t *testing.T) {
		logger := logrus.New()
		stored := logger.WithField("route", "/cars")
		entry := FromContext(WithLogger(context.Background(), stored))
		assert.Equal(t, "/cars", entry.Data["route"])
		assert.Same(t, logger, entry.Logger)
	})

	t.Run("adds trace ids when a span is recording", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		defer tp.Shutdown(context.Background())

		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		entry := FromContext(ctx)
		assert.Equal(t, span.SpanContext().TraceID().String(), entry.Data["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), entry.Data["span_id"])
	})
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Output: &buf})
	require.NoError(t, err)

	func() {
		defer RecoverPanic(logger, "worker")
		panic("boom")
	}()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["panic"])
	assert.Equal(t, "worker", entry["context"])

	assert.NoError(t, MustRecover(nil))
	assert.EqualError(t, MustRecover("x"), "panic: x")
}
