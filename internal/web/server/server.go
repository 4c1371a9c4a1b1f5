// Package server assembles the full HTTP surface: the generated API routes,
// documentation pages, health and metrics endpoints, and the middleware
// stack, all driven by the loaded configuration.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/restforge/restforge/internal/api"
	"github.com/restforge/restforge/internal/config"
	"github.com/restforge/restforge/internal/metrics"
	"github.com/restforge/restforge/internal/openapi"
	"github.com/restforge/restforge/internal/schema"
	"github.com/restforge/restforge/internal/web/auth"
	"github.com/restforge/restforge/internal/web/middleware"
	"github.com/restforge/restforge/internal/web/ratelimit"
)

// Server hosts the generated API.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	api     *api.API
	handler http.Handler
	http    *http.Server

	closers []func()
}

// New builds the server from the registered models and configuration.
func New(cfg *config.Config, registry *schema.Registry, db *sql.DB, logger *zap.Logger) (*Server, error) {
	a, err := api.New(registry, db, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, logger: logger, api: a}

	router := chi.NewRouter()
	a.Mount(router)

	if cfg.Docs.Enabled {
		gen := openapi.NewGenerator(cfg, a.Serializer())
		router.Get(cfg.Docs.SpecPath, openapi.SpecHandler(gen, a.Routes(), logger))
		router.Get(cfg.Docs.Path, openapi.DocsHandler(cfg.Title, cfg.Docs.SpecPath))
	}
	router.Get("/health", healthHandler(db))
	router.Handle("/metrics", metrics.Handler())

	chain := middleware.NewChain(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.CORS(middleware.DefaultCORSConfig()),
	)
	if cfg.Auth.Method != "" {
		chain.Use(middleware.Authenticate(s.authConfig()))
	}
	if cfg.RateLimit.Enabled {
		rl, err := s.rateLimitConfig(registry)
		if err != nil {
			return nil, err
		}
		chain.Use(middleware.RateLimit(rl))
	}
	s.handler = chain.Then(router)

	s.http = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s, nil
}

// Handler returns the fully assembled handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// API returns the generated API for introspection.
func (s *Server) API() *api.API {
	return s.api
}

func (s *Server) authConfig() middleware.AuthConfig {
	cfg := middleware.AuthConfig{
		Method:     s.cfg.Auth.Method,
		HeaderName: s.cfg.Auth.HeaderName,
		Users:      auth.UserTable(s.cfg.Auth.Users),
		SkipPaths:  []string{"/health", "/metrics"},
		Logger:     s.logger,
	}
	if s.cfg.Docs.Enabled {
		cfg.SkipPaths = append(cfg.SkipPaths, s.cfg.Docs.Path, s.cfg.Docs.SpecPath)
	}
	switch s.cfg.Auth.Method {
	case "jwt":
		cfg.Tokens = auth.NewTokenService(s.cfg.Auth.Secret, s.cfg.Auth.TokenTTL)
	case "api_key":
		cfg.Keys = auth.NewKeySet(s.cfg.Auth.APIKeys)
	}
	return cfg
}

// rateLimitConfig builds the global limiter plus per-resource overrides for
// models declaring their own budget.
func (s *Server) rateLimitConfig(registry *schema.Registry) (middleware.RateLimitConfig, error) {
	cfg := middleware.RateLimitConfig{Logger: s.logger, FailOpen: true}

	newLimiter, err := s.limiterFactory()
	if err != nil {
		return cfg, err
	}
	cfg.Limiter, err = newLimiter(s.cfg.RateLimit.RequestsPerMinute)
	if err != nil {
		return cfg, err
	}

	overrides := make(map[string]ratelimit.Limiter)
	for _, m := range registry.All() {
		if m.Config == nil || m.Config.RateLimit <= 0 {
			continue
		}
		limiter, err := newLimiter(m.Config.RateLimit)
		if err != nil {
			return cfg, err
		}
		overrides[m.Endpoint] = limiter
		s.logger.Info("resource rate limit override",
			zap.String("model", m.Name),
			zap.Int("requests_per_minute", m.Config.RateLimit))
	}
	if len(overrides) > 0 {
		prefix := s.cfg.API.Prefix + "/"
		cfg.Select = func(r *http.Request) ratelimit.Limiter {
			rest, found := strings.CutPrefix(r.URL.Path, prefix)
			if !found {
				return nil
			}
			endpoint, _, _ := strings.Cut(rest, "/")
			return overrides[endpoint]
		}
	}
	return cfg, nil
}

// limiterFactory returns a constructor for limiters of a given per-minute
// budget, backed by Redis when configured.
func (s *Server) limiterFactory() (func(perMinute int) (ratelimit.Limiter, error), error) {
	if s.cfg.RateLimit.RedisURL == "" {
		return func(perMinute int) (ratelimit.Limiter, error) {
			tb := ratelimit.PerMinute(perMinute)
			s.closers = append(s.closers, tb.Close)
			return tb, nil
		}, nil
	}

	opts, err := redis.ParseURL(s.cfg.RateLimit.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid rate_limit.redis_url: %w", err)
	}
	client := redis.NewClient(opts)
	s.closers = append(s.closers, func() { client.Close() })

	return func(perMinute int) (ratelimit.Limiter, error) {
		return ratelimit.NewRedis(client, perMinute, time.Minute)
	}, nil
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprint(w, `{"status":"unavailable"}`)
				return
			}
		}
		fmt.Fprint(w, `{"status":"ok"}`)
	}
}
