package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages the model catalog. Models register during the
// initialization phase; after ValidateAll succeeds the registry is treated as
// read-only and may be shared across request-handling goroutines without
// further synchronization.
type Registry struct {
	mu         sync.RWMutex
	models     map[string]*Model
	byEndpoint map[string]*Model
	byTable    map[string]*Model
	validated  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		models:     make(map[string]*Model),
		byEndpoint: make(map[string]*Model),
		byTable:    make(map[string]*Model),
	}
}

// Register adds a model to the catalog. Structural validation runs
// immediately; cross-model relationship validation is deferred to ValidateAll
// so that models may reference each other regardless of registration order.
func (r *Registry) Register(m *Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.validated {
		return fmt.Errorf("registry is sealed: model %s registered after validation", m.Name)
	}
	if _, exists := r.models[m.Name]; exists {
		return fmt.Errorf("model %s is already registered", m.Name)
	}
	if other, exists := r.byEndpoint[m.Endpoint]; exists {
		return fmt.Errorf("model %s: endpoint %q already used by %s", m.Name, m.Endpoint, other.Name)
	}
	if err := validateStructural(m); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", m.Name, err)
	}

	r.models[m.Name] = m
	r.byEndpoint[m.Endpoint] = m
	r.byTable[m.Table] = m
	return nil
}

// Get retrieves a model by name.
func (r *Registry) Get(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// ByEndpoint retrieves a model by its endpoint name.
func (r *Registry) ByEndpoint(endpoint string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byEndpoint[endpoint]
	return m, ok
}

// ByTable retrieves a model by its table name.
func (r *Registry) ByTable(table string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byTable[table]
	return m, ok
}

// All returns every registered model sorted by name.
func (r *Registry) All() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models
}

// Count returns the number of registered models.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// ValidateAll resolves every relationship against the full catalog. Any join
// condition that cannot be resolved to concrete columns on both sides is a
// startup error: the boot must abort rather than defer the failure to request
// time. On success the registry is sealed against further registration.
func (r *Registry) ValidateAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.models {
		for _, rel := range m.Relationships {
			if err := r.validateRelationship(m, rel); err != nil {
				return fmt.Errorf("model %s, relationship %s: %w", m.Name, rel.Name, err)
			}
		}
	}
	r.validated = true
	return nil
}

// Validated reports whether ValidateAll has completed.
func (r *Registry) Validated() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validated
}

func (r *Registry) validateRelationship(owner *Model, rel *Relationship) error {
	target, ok := r.models[rel.Target]
	if !ok {
		return fmt.Errorf("target model %s is not registered", rel.Target)
	}

	if rel.Cardinality == ManyToMany {
		if rel.JoinTable == "" || rel.JoinLocalColumn == "" || rel.JoinRemoteColumn == "" {
			return fmt.Errorf("association table and both key columns are required")
		}
		return nil
	}

	if rel.LocalColumn == "" || rel.RemoteColumn == "" {
		return fmt.Errorf("join condition does not resolve to concrete columns")
	}
	if col, ok := owner.Column(rel.LocalColumn); !ok || col.Computed {
		return fmt.Errorf("local column %s does not exist on %s", rel.LocalColumn, owner.Name)
	}
	if col, ok := target.Column(rel.RemoteColumn); !ok || col.Computed {
		return fmt.Errorf("remote column %s does not exist on %s", rel.RemoteColumn, rel.Target)
	}
	return nil
}
