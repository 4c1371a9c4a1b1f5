package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is an in-memory limiter keeping one bucket per key. Tokens
// refill continuously at limit/window, so a key regains its full burst
// allowance after an idle window.
type TokenBucket struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limit    int
	window   time.Duration
	stopOnce sync.Once
	stop     chan struct{}
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewTokenBucket creates a limiter allowing limit requests per window.
func NewTokenBucket(limit int, window time.Duration) *TokenBucket {
	tb := &TokenBucket{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		stop:    make(chan struct{}),
	}
	go tb.cleanupLoop()
	return tb
}

// PerMinute creates a token bucket allowing n requests per minute.
func PerMinute(n int) *TokenBucket {
	return NewTokenBucket(n, time.Minute)
}

// Allow implements Limiter.
func (tb *TokenBucket) Allow(_ context.Context, key string) (*Decision, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(tb.limit), lastSeen: now}
		tb.buckets[key] = b
	}

	elapsed := now.Sub(b.lastSeen)
	b.tokens += elapsed.Seconds() * float64(tb.limit) / tb.window.Seconds()
	if b.tokens > float64(tb.limit) {
		b.tokens = float64(tb.limit)
	}
	b.lastSeen = now

	decision := &Decision{
		Limit:   tb.limit,
		ResetAt: now.Add(tb.window),
	}
	if b.tokens >= 1 {
		b.tokens--
		decision.Allowed = true
	}
	decision.Remaining = int(b.tokens)
	return decision, nil
}

// Close stops the background cleanup goroutine.
func (tb *TokenBucket) Close() {
	tb.stopOnce.Do(func() { close(tb.stop) })
}

func (tb *TokenBucket) cleanupLoop() {
	ticker := time.NewTicker(tb.window)
	defer ticker.Stop()
	for {
		select {
		case <-tb.stop:
			return
		case <-ticker.C:
			tb.evictStale()
		}
	}
}

func (tb *TokenBucket) evictStale() {
	cutoff := time.Now().Add(-2 * tb.window)
	tb.mu.Lock()
	defer tb.mu.Unlock()
	for key, b := range tb.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(tb.buckets, key)
		}
	}
}
