package rbac

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sorumcars/sorum/pkg/apperrors"
	"github.com/sorumcars/sorum/pkg/auth"
	"github.com/sorumcars/sorum/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRoleCacheTest creates a miniredis instance and returns the cache and cleanup function
func setupRoleCacheTest(t *testing.T) (*RedisRoleCache, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cache, err := NewRedisRoleCache(RedisConfig{
		URL:        "redis://" + mr.Addr(),
		TTL:        time.Minute,
		MaxRetries: 3,
		PoolSize:   10,
	})
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create role cache: %v", err)
	}

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func TestNewRedisRoleCache_InvalidURL(t *testing.T) {
	_, err := NewRedisRoleCache(RedisConfig{URL: "not a url"})
	assert.Error(t, err)
}

func TestNewRedisRoleCache_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisRoleCache(RedisConfig{URL: "redis://" + addr})
	assert.Error(t, err)
}

func TestRedisRoleCache_GetSetInvalidate(t *testing.T) {
	cache, mr, cleanup := setupRoleCacheTest(t)
	defer cleanup()
	ctx := context.Background()

	_, hit, err := cache.Get(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, "admin@example.com", storage.RoleAdmin))
	role, hit, err := cache.Get(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, storage.RoleAdmin, role)
	assert.True(t, mr.Exists("role:admin@example.com"))
	assert.Equal(t, time.Minute, mr.TTL("role:admin@example.com"))

	require.NoError(t, cache.Set(ctx, "user@example.com", ""))
	role, hit, err = cache.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Empty(t, role)

	require.NoError(t, cache.Invalidate(ctx, "admin@example.com"))
	_, hit, err = cache.Get(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.False(t, hit)

	assert.NoError(t, cache.Ping(ctx))
}

func TestRedisRoleCache_ExpiresEntries(t *testing.T) {
	cache, mr, cleanup := setupRoleCacheTest(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "admin@example.com", storage.RoleAdmin))
	mr.FastForward(2 * time.Minute)

	_, hit, err := cache.Get(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisRoleCache_CorruptEntryIsDropped(t *testing.T) {
	cache, mr, cleanup := setupRoleCacheTest(t)
	defer cleanup()

	require.NoError(t, mr.Set("role:admin@example.com", "{not json"))

	_, hit, err := cache.Get(context.Background(), "admin@example.com")
	assert.Error(t, err)
	assert.False(t, hit)
	assert.False(t, mr.Exists("role:admin@example.com"))
}

func TestRedisRoleCache_DefaultTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisRoleCacheFromClient(client, 0)
	require.NoError(t, cache.Set(context.Background(), "a@example.com", storage.RoleAdmin))
	assert.Equal(t, time.Minute, mr.TTL("role:a@example.com"))
}

func TestGate_WithRedisCache(t *testing.T) {
	cache, _, cleanup := setupRoleCacheTest(t)
	defer cleanup()
	ctx := context.Background()

	users := &countingCollection{Collection: seedUsers(t)}
	gate := NewGate(users, WithCache(cache))

	require.NoError(t, gate.Authorize(ctx, auth.Authenticated("admin@example.com")))
	require.NoError(t, gate.Authorize(ctx, auth.Authenticated("admin@example.com")))
	assert.Equal(t, int32(1), users.calls, "second lookup should be served from cache")

	_, err := storage.RevokeRole(ctx, users.Collection, storage.Document{storage.FieldEmail: "admin@example.com"})
	require.NoError(t, err)

	// stale until invalidated
	require.NoError(t, gate.Authorize(ctx, auth.Authenticated("admin@example.com")))

	gate.Invalidate(ctx, "admin@example.com")
	err = gate.Authorize(ctx, auth.Authenticated("admin@example.com"))
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	assert.Equal(t, int32(2), users.calls)
}

func TestGate_UnknownUsersAreNotCached(t *testing.T) {
	cache, mr, cleanup := setupRoleCacheTest(t)
	defer cleanup()

	gate := NewGate(seedUsers(t), WithCache(cache))
	_, err := gate.IsAdmin(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.False(t, mr.Exists("role:ghost@example.com"))
}

// staleReadCollection reads the stored user on its first FindOne, then
// holds that result until released. Later calls pass straight through.
type staleReadCollection struct {
	storage.Collection
	calls   int32
	entered chan struct{}
	release chan struct{}
}

func (c *staleReadCollection) FindOne(ctx context.Context, filter storage.Filter) (storage.Document, bool, error) {
	doc, found, err := c.Collection.FindOne(ctx, filter)
	if atomic.AddInt32(&c.calls, 1) == 1 {
		close(c.entered)
		<-c.release
	}
	return doc, found, err
}

func newStaleReadCollection(t *testing.T) *staleReadCollection {
	t.Helper()
	return &staleReadCollection{
		Collection: seedUsers(t),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func demote(t *testing.T, users storage.Collection, gate *Gate, email string) {
	t.Helper()
	ctx := context.Background()
	user, found, err := users.FindOne(ctx, storage.ByEmail(email))
	require.NoError(t, err)
	require.True(t, found)
	_, err = storage.RevokeRole(ctx, users, user)
	require.NoError(t, err)
	gate.Invalidate(ctx, email)
}

func TestRedisRoleCache_InvalidateBlocksStaleFill(t *testing.T) {
	cache, mr, cleanup := setupRoleCacheTest(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, cache.Invalidate(ctx, "admin@example.com"))
	require.NoError(t, cache.Set(ctx, "admin@example.com", storage.RoleAdmin))

	_, hit, err := cache.Get(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.False(t, hit)

	mr.FastForward(2 * time.Minute)
	require.NoError(t, cache.Set(ctx, "admin@example.com", storage.RoleAdmin))
	role, hit, err := cache.Get(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, storage.RoleAdmin, role)
}

func TestGate_RevokeDuringLookupIsNotCached(t *testing.T) {
	cache, _, cleanup := setupRoleCacheTest(t)
	defer cleanup()
	ctx := context.Background()

	users := newStaleReadCollection(t)
	gate := NewGate(users, WithCache(cache))

	inflight := make(chan error, 1)
	go func() {
		inflight <- gate.Authorize(ctx, auth.Authenticated("admin@example.com"))
	}()
	<-users.entered

	// The lookup above has already read the admin role
	demote(t, users.Collection, gate, "admin@example.com")
	close(users.release)
	<-inflight

	_, hit, err := cache.Get(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.False(t, hit, "stale admin role must not be cached")

	err = gate.Authorize(ctx, auth.Authenticated("admin@example.com"))
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
}

func TestGate_InvalidateDetachesInflightLookup(t *testing.T) {
	ctx := context.Background()
	users := newStaleReadCollection(t)
	gate := NewGate(users)

	inflight := make(chan error, 1)
	go func() {
		inflight <- gate.Authorize(ctx, auth.Authenticated("admin@example.com"))
	}()
	<-users.entered

	demote(t, users.Collection, gate, "admin@example.com")

	err := gate.Authorize(ctx, auth.Authenticated("admin@example.com"))
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&users.calls))

	close(users.release)
	<-inflight
}
