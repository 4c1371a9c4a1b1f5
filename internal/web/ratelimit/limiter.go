// Package ratelimit provides the request throttles applied to generated
// routes: an in-memory token bucket for single-process deployments and a
// Redis-backed sliding window for fleets.
package ratelimit

import (
	"context"
	"time"
)

// Limiter is the interface both backends implement.
type Limiter interface {
	// Allow reports whether the request identified by key may proceed.
	Allow(ctx context.Context, key string) (*Decision, error)
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	// Limit is the maximum number of requests allowed in the window.
	Limit int
	// Remaining is the number of requests left in the current window.
	Remaining int
	// ResetAt is when the window resets.
	ResetAt time.Time
	// Allowed indicates whether the request should proceed.
	Allowed bool
}
