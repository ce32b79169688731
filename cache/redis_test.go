package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisCache(client, "")
	ctx := context.Background()

	_, ok := c.Get(ctx, "api:stats")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "api:stats", []byte("snap"), 5*time.Second))
	stored, err := mr.Get("phoenix:cache:api:stats")
	require.NoError(t, err)
	assert.Equal(t, "snap", stored)
	assert.Equal(t, 5*time.Second, mr.TTL("phoenix:cache:api:stats"))

	got, ok := c.Get(ctx, "api:stats")
	require.True(t, ok)
	assert.Equal(t, "snap", string(got))

	mr.FastForward(5 * time.Second)
	_, ok = c.Get(ctx, "api:stats")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "api:stats", []byte("snap"), time.Minute))
	require.NoError(t, c.Delete(ctx, "api:stats"))
	assert.False(t, mr.Exists("phoenix:cache:api:stats"))
}

func TestRedisCache_UnavailableIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	c := NewRedisCache(client, "p:")
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.Error(t, c.Set(context.Background(), "k", []byte("v"), time.Second))
}
