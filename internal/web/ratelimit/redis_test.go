package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedisLimiter(t *testing.T, limit int, window time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter, err := NewRedis(client, limit, window)
	require.NoError(t, err)
	return limiter, srv
}

func TestRedisAllowsUpToLimit(t *testing.T) {
	limiter, _ := testRedisLimiter(t, 3, time.Minute)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "client-1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed", i)
		assert.Equal(t, 3-i-1, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestRedisKeysAreIndependent(t *testing.T) {
	limiter, _ := testRedisLimiter(t, 1, time.Minute)

	ctx := context.Background()
	d, err := limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = limiter.Allow(ctx, "client-2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisReset(t *testing.T) {
	limiter, _ := testRedisLimiter(t, 1, time.Minute)

	ctx := context.Background()
	d, err := limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	require.False(t, d.Allowed)

	require.NoError(t, limiter.Reset(ctx, "client-1"))

	d, err = limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestNewRedisValidation(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	_, err := NewRedis(nil, 10, time.Minute)
	assert.Error(t, err)

	_, err = NewRedis(client, 0, time.Minute)
	assert.Error(t, err)

	_, err = NewRedis(client, 10, 0)
	assert.Error(t, err)
}
