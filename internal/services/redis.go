package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key RedisCache writes.
const KeyPrefix = "shopsquad:"

// RedisCache caches computed values and holds short-lived claims (task locks,
// sent-reminder markers) in Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to redisURL and checks the connection
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opt.Addr, err)
	}

	slog.Info("redis connection established", "addr", opt.Addr)
	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func prefixed(k string) string {
	return KeyPrefix + k
}

// Set stores value as JSON under k
func (c *RedisCache) Set(ctx context.Context, k string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, prefixed(k), data, expiration).Err()
}

// Get decodes the JSON stored under k into dest. A miss returns redis.Nil.
func (c *RedisCache) Get(ctx context.Context, k string, dest interface{}) error {
	data, err := c.client.Get(ctx, prefixed(k)).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// GetOrSet returns the cached value for k, or computes it with fn and caches
// it. A nil cache always calls fn.
func GetOrSet[T any](c *RedisCache, ctx context.Context, k string, expiration time.Duration, fn func() (T, error)) (T, error) {
	if c == nil {
		return fn()
	}

	var cached T
	err := c.Get(ctx, k, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, redis.Nil) {
		slog.Debug("cache read failed", "key", k, "error", err)
	}

	result, err := fn()
	if err != nil {
		return result, err
	}
	// a failed cache write only costs a recompute next time
	_ = c.Set(ctx, k, result, expiration)
	return result, nil
}

// Claim marks k as taken for ttl. It reports false when someone else already
// holds it.
func (c *RedisCache) Claim(ctx context.Context, k string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, prefixed(k), time.Now().Unix(), ttl).Result()
}

// Release gives up a claim early.
func (c *RedisCache) Release(ctx context.Context, k string) error {
	return c.client.Del(ctx, prefixed(k)).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client
func (c *RedisCache) Client() *redis.Client {
	return c.client
}
