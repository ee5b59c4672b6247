package rbac

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/sorumcars/sorum/pkg/apperrors"
	"github.com/sorumcars/sorum/pkg/auth"
	"github.com/sorumcars/sorum/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decisionCounter struct {
	mu        sync.Mutex
	decisions []string
}

func (d *decisionCounter) RecordAuthzDecision(decision string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.decisions = append(d.decisions, decision)
}

// countingCollection counts FindOne calls and can hold them until released
type countingCollection struct {
	storage.Collection
	calls   int32
	entered chan struct{}
	release chan struct{}
	err     error
}

func (c *countingCollection) FindOne(ctx context.Context, filter storage.Filter) (storage.Document, bool, error) {
	if atomic.AddInt32(&c.calls, 1) == 1 && c.entered != nil {
		close(c.entered)
	}
	if c.release != nil {
		<-c.release
	}
	if c.err != nil {
		return nil, false, c.err
	}
	return c.Collection.FindOne(ctx, filter)
}

func seedUsers(t *testing.T) storage.Collection {
	t.Helper()
	users := storage.NewMemoryStorage().Collection(storage.CollectionUsers)
	ctx := context.Background()

	for _, doc := range []storage.Document{
		{storage.FieldEmail: "main@example.com", storage.FieldRole: storage.RoleAdmin, storage.FieldMainAdmin: true},
		{storage.FieldEmail: "admin@example.com", storage.FieldRole: storage.RoleAdmin},
		{storage.FieldEmail: "user@example.com", storage.FieldName: "User"},
	} {
		_, err := users.InsertOne(ctx, doc)
		require.NoError(t, err)
	}
	return users
}

func TestGate_Authorize(t *testing.T) {
	users := seedUsers(t)
	logger, hook := test.NewNullLogger()
	recorder := &decisionCounter{}
	gate := NewGate(users, WithLogger(logger), WithRecorder(recorder))
	ctx := context.Background()

	t.Run("anonymous is unauthenticated", func(t *testing.T) {
		err := gate.Authorize(ctx, auth.Anonymous())
		require.Error(t, err)
		assert.Equal(t, apperrors.KindUnauthenticated, apperrors.KindOf(err))
		assert.Equal(t, MsgUnauthenticated, apperrors.MessageOf(err))
	})

	t.Run("non admin is forbidden", func(t *testing.T) {
		err := gate.Authorize(ctx, auth.Authenticated("user@example.com"))
		require.Error(t, err)
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
		assert.Equal(t, MsgForbidden, apperrors.MessageOf(err))
	})

	t.Run("unknown account is forbidden and logged", func(t *testing.T) {
		hook.Reset()
		err := gate.Authorize(ctx, auth.Authenticated("ghost@example.com"))
		require.Error(t, err)
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
		assert.Equal(t, "ghost@example.com", hook.LastEntry().Data["email"])
	})

	t.Run("admins proceed", func(t *testing.T) {
		assert.NoError(t, gate.Authorize(ctx, auth.Authenticated("admin@example.com")))
		assert.NoError(t, gate.Authorize(ctx, auth.Authenticated("main@example.com")))
	})

	t.Run("store failure is internal", func(t *testing.T) {
		broken := NewGate(&countingCollection{Collection: users, err: errors.New("store down")}, WithLogger(logger))
		err := broken.Authorize(ctx, auth.Authenticated("admin@example.com"))
		require.Error(t, err)
		assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	})

	assert.Equal(t, []string{
		DecisionUnauthenticated,
		DecisionForbidden,
		DecisionUnknownAccount,
		DecisionAllowed,
		DecisionAllowed,
	}, recorder.decisions)
}

func TestGate_Run(t *testing.T) {
	gate := NewGate(seedUsers(t))
	ctx := context.Background()

	var ran bool
	op := func(context.Context) error {
		ran = true
		return nil
	}

	err := gate.Run(ctx, auth.Authenticated("user@example.com"), op)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	assert.False(t, ran, "denied callers must never reach the operation")

	err = gate.Run(ctx, auth.Anonymous(), op)
	assert.Equal(t, apperrors.KindUnauthenticated, apperrors.KindOf(err))
	assert.False(t, ran)

	require.NoError(t, gate.Run(ctx, auth.Authenticated("admin@example.com"), op))
	assert.True(t, ran)
}

func TestGate_IsAdmin(t *testing.T) {
	gate := NewGate(seedUsers(t))
	ctx := context.Background()

	tests := []struct {
		email string
		admin bool
	}{
		{"main@example.com", true},
		{"admin@example.com", true},
		{"user@example.com", false},
		{"ghost@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			admin, err := gate.IsAdmin(ctx, tt.email)
			require.NoError(t, err)
			assert.Equal(t, tt.admin, admin)
		})
	}
}

func TestGate_CoalescesConcurrentLookups(t *testing.T) {
	users := &countingCollection{
		Collection: seedUsers(t),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	gate := NewGate(users)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	results := make([]bool, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = gate.IsAdmin(ctx, "admin@example.com")
	}()
	<-users.entered

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = gate.IsAdmin(ctx, "admin@example.com")
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(users.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&users.calls))
	for i, admin := range results {
		assert.True(t, admin, "caller %d", i)
	}
}
