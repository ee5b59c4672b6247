package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RoleCache holds the role of users known to exist. A hit means the user
// exists; role may be empty. After Invalidate, Set must not restore an
// entry for the same email until the invalidation expires.
type RoleCache interface {
	Get(ctx context.Context, email string) (role string, hit bool, err error)
	Set(ctx context.Context, email, role string) error
	Invalidate(ctx context.Context, email string) error
}

// RedisConfig configures the Redis role cache
type RedisConfig struct {
	URL        string
	TTL        time.Duration
	MaxRetries int
	PoolSize   int
}

// RedisRoleCache shares cached roles across server instances
type RedisRoleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// cachedRole is a cached role, or a tombstone left by Invalidate. A
// tombstone reads as a miss and blocks fills until it expires, so a lookup
// that read the user before a role change cannot cache the old role.
type cachedRole struct {
	Role        string `json:"role"`
	Invalidated bool   `json:"invalidated,omitempty"`
}

// NewRedisRoleCache connects to Redis and verifies the connection
func NewRedisRoleCache(config RedisConfig) (*RedisRoleCache, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisRoleCacheFromClient(client, config.TTL), nil
}

// NewRedisRoleCacheFromClient wraps an existing client
func NewRedisRoleCacheFromClient(client *redis.Client, ttl time.Duration) *RedisRoleCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisRoleCache{client: client, ttl: ttl}
}

func roleKey(email string) string {
	return fmt.Sprintf("role:%s", email)
}

// Get implements RoleCache.Get
func (c *RedisRoleCache) Get(ctx context.Context, email string) (string, bool, error) {
	key := roleKey(email)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("redis get failed: %w", err)
	}

	var entry cachedRole
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.client.Del(ctx, key)
		return "", false, fmt.Errorf("failed to unmarshal cached role: %w", err)
	}

	if entry.Invalidated {
		return "", false, nil
	}
	return entry.Role, true, nil
}

// Set implements RoleCache.Set. An existing entry, including a tombstone,
// is never overwritten.
func (c *RedisRoleCache) Set(ctx context.Context, email, role string) error {
	data, err := json.Marshal(cachedRole{Role: role})
	if err != nil {
		return fmt.Errorf("failed to marshal role: %w", err)
	}
	return c.client.SetNX(ctx, roleKey(email), data, c.ttl).Err()
}

// Invalidate implements RoleCache.Invalidate
func (c *RedisRoleCache) Invalidate(ctx context.Context, email string) error {
	data, err := json.Marshal(cachedRole{Invalidated: true})
	if err != nil {
		return fmt.Errorf("failed to marshal tombstone: %w", err)
	}
	return c.client.Set(ctx, roleKey(email), data, c.ttl).Err()
}

// Ping checks the Redis connection
func (c *RedisRoleCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisRoleCache) Close() error {
	return c.client.Close()
}
