package api

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/restforge/restforge/internal/schema"
)

// Operation represents one generated route kind.
type Operation int

const (
	// OpList is GET /{endpoint}
	OpList Operation = iota
	// OpGet is GET /{endpoint}/{pk}
	OpGet
	// OpCreate is POST /{endpoint}
	OpCreate
	// OpUpdate is PATCH /{endpoint}/{pk}
	OpUpdate
	// OpDelete is DELETE /{endpoint}/{pk}
	OpDelete
	// OpRelation is GET /{endpoint}/{pk}/{relation}
	OpRelation
)

// String returns the string representation of the operation
func (o Operation) String() string {
	switch o {
	case OpList:
		return "list"
	case OpGet:
		return "get"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// Method returns the HTTP method of the operation.
func (o Operation) Method() string {
	switch o {
	case OpCreate:
		return http.MethodPost
	case OpUpdate:
		return http.MethodPatch
	case OpDelete:
		return http.MethodDelete
	default:
		return http.MethodGet
	}
}

// RouteDescriptor is the synthesized definition of one route: enough for the
// handler layer to serve it and for the documentation layer to describe it.
type RouteDescriptor struct {
	Model        *schema.Model
	Operation    Operation
	Method       string
	Pattern      string
	Relationship *schema.Relationship
	Description  string
	Tag          string
}

// SynthesisOptions controls which routes are generated.
type SynthesisOptions struct {
	// ReadOnly drops every write route.
	ReadOnly bool

	// BlockedMethods drops routes by HTTP method for every model; per-model
	// block lists apply on top.
	BlockedMethods []string
}

// Synthesize derives the full route table from the registry: one set of CRUD
// routes per model plus one relation route per to-many relationship. Models
// with composite primary keys get no record accessor; the skip is logged and
// collection routes still generate.
func Synthesize(registry *schema.Registry, opts SynthesisOptions, logger *zap.Logger) []*RouteDescriptor {
	var routes []*RouteDescriptor

	for _, m := range registry.All() {
		allowed := methodFilter(m, opts)
		base := "/" + m.Endpoint

		if allowed(http.MethodGet) {
			routes = append(routes, describe(m, OpList, base, nil))
		}
		if allowed(http.MethodPost) {
			routes = append(routes, describe(m, OpCreate, base, nil))
		}

		if _, err := m.PrimaryKey(); err != nil {
			logger.Warn("skipping record accessor routes",
				zap.String("model", m.Name),
				zap.String("reason", err.Error()))
			continue
		}
		item := base + "/{pk}"

		if allowed(http.MethodGet) {
			routes = append(routes, describe(m, OpGet, item, nil))
		}
		if allowed(http.MethodPatch) {
			routes = append(routes, describe(m, OpUpdate, item, nil))
		}
		if allowed(http.MethodDelete) {
			routes = append(routes, describe(m, OpDelete, item, nil))
		}

		if allowed(http.MethodGet) {
			for _, rel := range sortedRelationships(m) {
				if !rel.Cardinality.ToMany() {
					continue
				}
				pattern := item + "/" + schema.ToKebabCase(rel.Name)
				routes = append(routes, describe(m, OpRelation, pattern, rel))
			}
		}
	}
	return routes
}

func describe(m *schema.Model, op Operation, pattern string, rel *schema.Relationship) *RouteDescriptor {
	d := &RouteDescriptor{
		Model:        m,
		Operation:    op,
		Method:       op.Method(),
		Pattern:      pattern,
		Relationship: rel,
		Tag:          m.Name,
	}
	d.Description = m.Config.Description(d.Method)
	if d.Description == "" {
		d.Description = defaultDescription(m, op, rel)
	}
	return d
}

func defaultDescription(m *schema.Model, op Operation, rel *schema.Relationship) string {
	switch op {
	case OpList:
		return fmt.Sprintf("List %s records with filtering, sorting, pagination and aggregation", m.Name)
	case OpGet:
		return fmt.Sprintf("Fetch a single %s by its key", m.Name)
	case OpCreate:
		return fmt.Sprintf("Create a new %s", m.Name)
	case OpUpdate:
		return fmt.Sprintf("Apply a partial update to a %s", m.Name)
	case OpDelete:
		return fmt.Sprintf("Delete a %s, optionally cascading to dependents", m.Name)
	case OpRelation:
		return fmt.Sprintf("List the %s of a %s", rel.Name, m.Name)
	default:
		return ""
	}
}

func methodFilter(m *schema.Model, opts SynthesisOptions) func(string) bool {
	return func(method string) bool {
		if opts.ReadOnly && method != http.MethodGet {
			return false
		}
		for _, blocked := range opts.BlockedMethods {
			if strings.EqualFold(blocked, method) {
				return false
			}
		}
		return !m.Config.MethodBlocked(method)
	}
}

func sortedRelationships(m *schema.Model) []*schema.Relationship {
	names := make([]string, 0, len(m.Relationships))
	for name := range m.Relationships {
		names = append(names, name)
	}
	sort.Strings(names)
	rels := make([]*schema.Relationship, len(names))
	for i, name := range names {
		rels[i] = m.Relationships[name]
	}
	return rels
}
