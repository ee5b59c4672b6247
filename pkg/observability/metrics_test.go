package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	require.NotNil(t, metrics)

	assert.Panics(t, func() { NewMetrics(registry) }, "second registration must collide")
}

func TestMetrics_Recorders(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordAuthzDecision("forbidden")
	metrics.RecordAuthzDecision("forbidden")
	metrics.RecordAuthzDecision("allowed")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.AuthzDecisionsTotal.WithLabelValues("forbidden")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuthzDecisionsTotal.WithLabelValues("allowed")))

	metrics.RecordPolicyVeto("catalog_delete")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PolicyVetoesTotal.WithLabelValues("catalog_delete")))

	metrics.ObserveStorageOperation("cars", "find_one", nil, time.Millisecond)
	metrics.ObserveStorageOperation("cars", "find_one", errors.New("down"), time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("cars", "find_one", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("cars", "find_one", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.StorageOperationDuration))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/car/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"acknowledged":false}`))
	}).Methods(http.MethodGet)

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/car/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/car/{id}", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.HTTPRequestsTotal))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordAuthzDecision("allowed")

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `sorum_authz_decisions_total{decision="allowed"} 1`))
}
