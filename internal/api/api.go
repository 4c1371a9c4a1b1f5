// Package api synthesizes the route table from the model registry and serves
// it: one set of CRUD routes per model, relation routes per to-many
// relationship, and the uniform response envelope.
package api

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/restforge/restforge/internal/config"
	"github.com/restforge/restforge/internal/crud"
	"github.com/restforge/restforge/internal/metrics"
	"github.com/restforge/restforge/internal/query"
	"github.com/restforge/restforge/internal/schema"
	"github.com/restforge/restforge/internal/serialize"
)

// API owns the generated route table and the per-model services behind it.
type API struct {
	registry   *schema.Registry
	compiler   *query.Compiler
	serializer *serialize.Serializer
	services   map[string]*crud.Service
	routes     []*RouteDescriptor
	cfg        *config.Config
	envelope   serialize.EnvelopeFields
	logger     *zap.Logger
}

// New validates the registry, synthesizes the route table and prepares one
// service per model. The registry is sealed afterwards.
func New(registry *schema.Registry, db *sql.DB, cfg *config.Config, logger *zap.Logger) (*API, error) {
	if !registry.Validated() {
		if err := registry.ValidateAll(); err != nil {
			return nil, fmt.Errorf("model validation failed: %w", err)
		}
	}

	relMode, err := serialize.ParseRelationMode(cfg.API.SerializationMode)
	if err != nil {
		return nil, err
	}

	a := &API{
		registry: registry,
		compiler: query.NewCompiler(registry, query.Options{
			Strict:       cfg.API.Strict,
			DefaultLimit: cfg.API.DefaultLimit,
			MaxLimit:     cfg.API.MaxLimit,
		}),
		serializer: serialize.NewSerializer(registry, serialize.Options{
			RelationMode: relMode,
			CamelCase:    cfg.API.CamelCase,
			Prefix:       cfg.API.Prefix,
		}),
		services: make(map[string]*crud.Service),
		cfg:      cfg,
		envelope: serialize.EnvelopeFields{
			Datetime:   cfg.API.Dump.Datetime,
			APIVersion: cfg.API.Dump.APIVersion,
			StatusCode: cfg.API.Dump.StatusCode,
			TotalCount: cfg.API.Dump.TotalCount,
			PageURLs:   cfg.API.Dump.PageURLs,
		},
		logger: logger,
	}

	for _, m := range registry.All() {
		a.services[m.Name] = crud.NewService(m, registry, db, cfg.API.CascadeDelete)
	}

	a.routes = Synthesize(registry, SynthesisOptions{
		ReadOnly:       cfg.API.ReadOnly,
		BlockedMethods: cfg.API.BlockedMethods,
	}, logger)

	for _, route := range a.routes {
		logger.Debug("route synthesized",
			zap.String("method", route.Method),
			zap.String("pattern", cfg.API.Prefix+route.Pattern),
			zap.String("model", route.Model.Name),
			zap.String("operation", route.Operation.String()))
	}
	logger.Info("route table synthesized",
		zap.Int("models", registry.Count()),
		zap.Int("routes", len(a.routes)))

	return a, nil
}

// Routes returns the synthesized route table for introspection and
// documentation.
func (a *API) Routes() []*RouteDescriptor {
	return a.routes
}

// Registry returns the model catalog.
func (a *API) Registry() *schema.Registry {
	return a.registry
}

// Serializer returns the response serializer, shared with the documentation
// layer so schemas match real output.
func (a *API) Serializer() *serialize.Serializer {
	return a.serializer
}

// Mount registers every synthesized route under the configured prefix.
func (a *API) Mount(r chi.Router) {
	prefix := a.cfg.API.Prefix
	if prefix == "" {
		prefix = "/"
	}
	r.Route(prefix, func(r chi.Router) {
		for _, route := range a.routes {
			r.Method(route.Method, route.Pattern,
				metrics.Instrument(prefix+route.Pattern, a.handlerFor(route)))
		}
	})
}

// Handler returns a standalone handler serving only the generated routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	a.Mount(r)
	return r
}
