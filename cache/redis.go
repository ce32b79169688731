package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares snapshots between API replicas.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache stores entries under prefix. An empty prefix means
// "phoenix:cache:".
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "phoenix:cache:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

// Get treats every Redis error as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

// Set writes value with an expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Delete removes key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

var _ Cache = (*RedisCache)(nil)
