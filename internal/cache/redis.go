package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultKeyPrefix = "tetra:cache:"

// RedisCache is the shared L2 backend: manifest and deployment metadata
// written by one control-plane instance becomes visible to its siblings.
// Keys are namespaced under a configurable prefix so a shared Redis can
// host unrelated tenants.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisCacheConfig carries the Redis connection settings.
type RedisCacheConfig struct {
	Addr      string // host:port, e.g. "localhost:6379"
	Password  string
	DB        int
	KeyPrefix string // defaults to "tetra:cache:"
}

// NewRedisCache dials cfg.Addr and returns a Redis-backed Cache. The
// connection is lazy; the first operation (or Ping) surfaces dial errors.
func NewRedisCache(cfg RedisCacheConfig) *RedisCache {
	return NewRedisCacheFromClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg.KeyPrefix)
}

// NewRedisCacheFromClient wraps an existing client, for callers that share
// one connection pool across subsystems.
func NewRedisCacheFromClient(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string { return c.prefix + k }

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	return n > 0, err
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
