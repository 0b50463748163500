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

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "enrich"), mr
}

func TestRedis_SetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)

	c.Set(ctx, "r1:h1:variety", sampleResult("variety"), time.Minute)

	got, ok := c.Get(ctx, "r1:h1:variety")
	require.True(t, ok)
	assert.Equal(t, "variety", got.Field)
	assert.Equal(t, "pinot noir", got.Value)
	assert.Equal(t, int64(200), got.Usage.InputTokens)
}

func TestRedis_MissOnUnknownKey(t *testing.T) {
	c, _ := newRedisCache(t)
	_, ok := c.Get(context.Background(), "missing")
	assert.False(t, ok)
}

func TestRedis_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	c.Set(ctx, "k1", sampleResult("variety"), time.Minute)
	_, ok := c.Get(ctx, "k1")
	require.True(t, ok)

	mr.FastForward(61 * time.Second)
	_, ok = c.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestRedis_Delete(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)
	c.Set(ctx, "k1", sampleResult("variety"), time.Minute)
	c.Delete(ctx, "k1")
	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestRedis_ClearPattern(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)
	c.Set(ctx, "acme:h1:variety", sampleResult("variety"), time.Minute)
	c.Set(ctx, "globex:h2:variety", sampleResult("variety"), time.Minute)

	c.Clear(ctx, "acme")

	_, ok := c.Get(ctx, "acme:h1:variety")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "globex:h2:variety")
	assert.True(t, ok)
}

func TestRedis_ClearAll(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)
	c.Set(ctx, "a", sampleResult("x"), time.Minute)
	c.Set(ctx, "b", sampleResult("y"), time.Minute)

	c.Clear(ctx, "")

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)
}

func TestRedis_BackendDownDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedis(client, "enrich")

	c.Set(ctx, "k1", sampleResult("variety"), time.Minute)
	mr.Close()

	// Outage: Get degrades to miss, Set/Delete to no-ops, no panic.
	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)
	c.Set(ctx, "k2", sampleResult("region"), time.Minute)
	c.Delete(ctx, "k1")
	c.Clear(ctx, "")
}
