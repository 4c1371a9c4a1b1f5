package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllowsUpToLimit(t *testing.T) {
	tb := NewTokenBucket(3, time.Minute)
	defer tb.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d, err := tb.Allow(ctx, "client-1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed", i)
		assert.Equal(t, 3, d.Limit)
	}

	d, err := tb.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestTokenBucketKeysAreIndependent(t *testing.T) {
	tb := NewTokenBucket(1, time.Minute)
	defer tb.Close()

	ctx := context.Background()
	d, err := tb.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = tb.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = tb.Allow(ctx, "client-2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestTokenBucketRefills(t *testing.T) {
	tb := NewTokenBucket(10, 100*time.Millisecond)
	defer tb.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		d, err := tb.Allow(ctx, "client-1")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := tb.Allow(ctx, "client-1")
	require.NoError(t, err)
	require.False(t, d.Allowed)

	time.Sleep(120 * time.Millisecond)

	d, err = tb.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestTokenBucketEvictStale(t *testing.T) {
	tb := NewTokenBucket(5, 10*time.Millisecond)
	defer tb.Close()

	ctx := context.Background()
	_, err := tb.Allow(ctx, "client-1")
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)
	tb.evictStale()

	tb.mu.Lock()
	defer tb.mu.Unlock()
	assert.Empty(t, tb.buckets)
}
