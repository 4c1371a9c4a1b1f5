package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/restforge/restforge/internal/web/ratelimit"
)

// RateLimitConfig configures the throttling middleware.
type RateLimitConfig struct {
	// Limiter is the default limiter.
	Limiter ratelimit.Limiter
	// Select optionally picks a limiter per request. Returning nil falls
	// back to Limiter. Used for per-resource budget overrides.
	Select func(*http.Request) ratelimit.Limiter
	// KeyFunc derives the client key. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// FailOpen lets requests through when the limiter backend errors.
	FailOpen bool

	Logger *zap.Logger
}

// ClientIP extracts the client address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.Index(xff, ","); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit throttles requests, setting the X-RateLimit-* headers and
// answering 429 when the budget is exhausted.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := cfg.Limiter
			if cfg.Select != nil {
				if selected := cfg.Select(r); selected != nil {
					limiter = selected
				}
			}
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			decision, err := limiter.Allow(r.Context(), cfg.KeyFunc(r))
			if err != nil {
				logger.Error("rate limiter failed", zap.Error(err))
				if cfg.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				retryAfter := int(time.Until(decision.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"errors":[{"error":"Too Many Requests","reason":"rate limit exceeded"}]}`)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
