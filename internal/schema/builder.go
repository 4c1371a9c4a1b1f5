package schema

import (
	"fmt"
	"strings"
)

// ColumnOption customizes a column at declaration time.
type ColumnOption func(*Column)

// Nullable marks the column as accepting NULL.
func Nullable() ColumnOption {
	return func(c *Column) { c.Nullable = true }
}

// PrimaryKey marks the column as (part of) the primary key.
func PrimaryKey() ColumnOption {
	return func(c *Column) { c.PrimaryKey = true }
}

// Unique marks the column as carrying a uniqueness constraint.
func Unique() ColumnOption {
	return func(c *Column) { c.Unique = true }
}

// Default records a store-side default value or generator for the column.
func Default(v interface{}) ColumnOption {
	return func(c *Column) {
		c.HasDefault = true
		c.Default = v
	}
}

// AutoIncrement marks the column as populated by the store on insert.
func AutoIncrement() ColumnOption {
	return func(c *Column) {
		c.AutoIncrement = true
		c.HasDefault = true
	}
}

// References records the table this column points at (belongs-to).
func References(table string) ColumnOption {
	return func(c *Column) { c.References = table }
}

// Values declares the allowed values of an enum column.
func Values(vals ...string) ColumnOption {
	return func(c *Column) { c.EnumValues = vals }
}

// ModelBuilder assembles a Model declaratively. Errors accumulate and are
// reported once by Build, so a model definition reads as a single chain.
type ModelBuilder struct {
	model *Model
	errs  []error
}

// NewModel starts a model definition. Table and endpoint names are derived
// from the model name unless overridden.
func NewModel(name string) *ModelBuilder {
	b := &ModelBuilder{
		model: &Model{
			Name:          name,
			Table:         TableName(name),
			Endpoint:      EndpointName(name),
			Relationships: make(map[string]*Relationship),
			columnIndex:   make(map[string]*Column),
		},
	}
	if name == "" {
		b.errs = append(b.errs, fmt.Errorf("model name cannot be empty"))
	}
	return b
}

// Table overrides the derived table name.
func (b *ModelBuilder) Table(name string) *ModelBuilder {
	b.model.Table = name
	return b
}

// Endpoint overrides the derived endpoint name.
func (b *ModelBuilder) Endpoint(name string) *ModelBuilder {
	b.model.Endpoint = name
	return b
}

// Column declares a stored column.
func (b *ModelBuilder) Column(name string, typ ColumnType, opts ...ColumnOption) *ModelBuilder {
	return b.addColumn(name, typ, false, opts...)
}

// Computed declares a derived property exposed with the given type. Computed
// properties never participate in inserts or updates; filter values against
// them are passed through without coercion.
func (b *ModelBuilder) Computed(name string, typ ColumnType) *ModelBuilder {
	return b.addColumn(name, typ, true)
}

func (b *ModelBuilder) addColumn(name string, typ ColumnType, computed bool, opts ...ColumnOption) *ModelBuilder {
	if name == "" {
		b.errs = append(b.errs, fmt.Errorf("model %s: column name cannot be empty", b.model.Name))
		return b
	}
	if _, exists := b.model.columnIndex[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("model %s: duplicate column %s", b.model.Name, name))
		return b
	}
	col := &Column{Name: name, Type: typ, Computed: computed}
	for _, opt := range opts {
		opt(col)
	}
	if col.Type == TypeEnum && len(col.EnumValues) == 0 {
		b.errs = append(b.errs, fmt.Errorf("model %s: enum column %s declares no values", b.model.Name, name))
	}
	b.model.Columns = append(b.model.Columns, col)
	b.model.columnIndex[name] = col
	return b
}

// BelongsTo declares a many-to-one relationship. localColumn is the foreign
// key column on this model, remoteColumn the referenced column on the target.
func (b *ModelBuilder) BelongsTo(name, target, localColumn, remoteColumn string) *ModelBuilder {
	return b.relate(&Relationship{
		Name:         name,
		Target:       target,
		Cardinality:  ManyToOne,
		LocalColumn:  localColumn,
		RemoteColumn: remoteColumn,
	})
}

// HasMany declares a one-to-many relationship. localColumn is the referenced
// column on this model, remoteColumn the foreign key on the target.
func (b *ModelBuilder) HasMany(name, target, localColumn, remoteColumn string) *ModelBuilder {
	return b.relate(&Relationship{
		Name:         name,
		Target:       target,
		Cardinality:  OneToMany,
		LocalColumn:  localColumn,
		RemoteColumn: remoteColumn,
	})
}

// HasOne declares a one-to-one relationship keyed like HasMany.
func (b *ModelBuilder) HasOne(name, target, localColumn, remoteColumn string) *ModelBuilder {
	return b.relate(&Relationship{
		Name:         name,
		Target:       target,
		Cardinality:  OneToOne,
		LocalColumn:  localColumn,
		RemoteColumn: remoteColumn,
	})
}

// ManyToMany declares a many-to-many relationship through an association
// table. joinLocal references this model's key inside joinTable, joinRemote
// the target's key.
func (b *ModelBuilder) ManyToMany(name, target, joinTable, joinLocal, joinRemote string) *ModelBuilder {
	return b.relate(&Relationship{
		Name:             name,
		Target:           target,
		Cardinality:      ManyToMany,
		JoinTable:        joinTable,
		JoinLocalColumn:  joinLocal,
		JoinRemoteColumn: joinRemote,
	})
}

func (b *ModelBuilder) relate(rel *Relationship) *ModelBuilder {
	if rel.Name == "" {
		b.errs = append(b.errs, fmt.Errorf("model %s: relationship name cannot be empty", b.model.Name))
		return b
	}
	if _, exists := b.model.Relationships[rel.Name]; exists {
		b.errs = append(b.errs, fmt.Errorf("model %s: duplicate relationship %s", b.model.Name, rel.Name))
		return b
	}
	rel.Owner = b.model.Name
	b.model.Relationships[rel.Name] = rel
	return b
}

// Configure attaches the per-model configuration.
func (b *ModelBuilder) Configure(cfg ModelConfig) *ModelBuilder {
	b.model.Config = &cfg
	return b
}

// Build finalizes the model, reporting every accumulated declaration error.
func (b *ModelBuilder) Build() (*Model, error) {
	if len(b.model.Columns) == 0 {
		b.errs = append(b.errs, fmt.Errorf("model %s declares no columns", b.model.Name))
	}
	if len(b.errs) > 0 {
		msgs := make([]string, 0, len(b.errs))
		for _, err := range b.errs {
			msgs = append(msgs, err.Error())
		}
		return nil, fmt.Errorf("model definition failed with %d errors:\n%s",
			len(b.errs), strings.Join(msgs, "\n"))
	}
	return b.model, nil
}

// MustBuild is Build for static model definitions known to be well formed.
func (b *ModelBuilder) MustBuild() *Model {
	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	return m
}
