package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/restforge/restforge/internal/web/auth"
)

const subjectKey contextKey = "auth_subject"

// AuthConfig configures the authentication middleware.
type AuthConfig struct {
	// Method is one of "jwt", "basic" or "api_key". Empty disables auth.
	Method string
	// Tokens verifies bearer tokens for the jwt method.
	Tokens *auth.TokenService
	// Keys holds the accepted keys for the api_key method.
	Keys *auth.KeySet
	// HeaderName carries the key for the api_key method.
	HeaderName string
	// Users holds the accepted credentials for the basic method.
	Users auth.UserTable
	// SkipPaths are exact paths served without authentication, such as the
	// documentation pages.
	SkipPaths []string

	Logger *zap.Logger
}

// Authenticate rejects requests lacking valid credentials for the configured
// method. The authenticated subject is stored in the request context.
func Authenticate(cfg AuthConfig) Middleware {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Method == "" || skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			subject, ok := cfg.verify(r)
			if !ok {
				logger.Debug("authentication rejected",
					zap.String("method", cfg.Method),
					zap.String("path", r.URL.Path),
				)
				if cfg.Method == "basic" {
					w.Header().Set("WWW-Authenticate", `Basic realm="restricted"`)
				}
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"errors":[{"error":"Unauthorized","reason":"valid credentials are required"}]}`)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (cfg AuthConfig) verify(r *http.Request) (string, bool) {
	switch cfg.Method {
	case "jwt":
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || cfg.Tokens == nil {
			return "", false
		}
		claims, err := cfg.Tokens.Verify(token)
		if err != nil {
			return "", false
		}
		return auth.Subject(claims), true
	case "basic":
		user, password, ok := r.BasicAuth()
		if !ok {
			return "", false
		}
		if !cfg.Users.Authenticate(user, password) {
			return "", false
		}
		return user, true
	case "api_key":
		header := cfg.HeaderName
		if header == "" {
			header = "X-API-Key"
		}
		key := r.Header.Get(header)
		if key == "" || cfg.Keys == nil || !cfg.Keys.Verify(key) {
			return "", false
		}
		return "api_key", true
	}
	return "", false
}

// GetSubject extracts the authenticated subject from the context.
func GetSubject(ctx context.Context) string {
	if subject, ok := ctx.Value(subjectKey).(string); ok {
		return subject
	}
	return ""
}
