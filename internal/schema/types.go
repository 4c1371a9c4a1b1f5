// Package schema provides the model catalog for restforge: explicit column and
// relationship descriptors registered at startup, validated once, and shared
// read-only across requests for the process lifetime.
package schema

import (
	"fmt"
	"strings"
)

// ColumnType represents the underlying storage type of a column.
type ColumnType int

const (
	TypeInteger ColumnType = iota
	TypeFloat
	TypeString
	TypeText
	TypeDate
	TypeDateTime
	TypeTime
	TypeBoolean
	TypeBinary
	TypeEnum
	TypeJSON
	TypeArray
	TypeUUID
)

// String returns the string representation of the column type.
func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeDate:
		return "date"
	case TypeDateTime:
		return "datetime"
	case TypeTime:
		return "time"
	case TypeBoolean:
		return "boolean"
	case TypeBinary:
		return "binary"
	case TypeEnum:
		return "enum"
	case TypeJSON:
		return "json"
	case TypeArray:
		return "array"
	case TypeUUID:
		return "uuid"
	default:
		return "unknown"
	}
}

// ParseColumnType converts a string to a ColumnType.
func ParseColumnType(s string) (ColumnType, error) {
	switch s {
	case "integer", "int":
		return TypeInteger, nil
	case "float", "numeric", "decimal":
		return TypeFloat, nil
	case "string":
		return TypeString, nil
	case "text":
		return TypeText, nil
	case "date":
		return TypeDate, nil
	case "datetime", "timestamp":
		return TypeDateTime, nil
	case "time":
		return TypeTime, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "binary":
		return TypeBinary, nil
	case "enum":
		return TypeEnum, nil
	case "json":
		return TypeJSON, nil
	case "array":
		return TypeArray, nil
	case "uuid":
		return TypeUUID, nil
	default:
		return 0, fmt.Errorf("unknown column type: %s", s)
	}
}

// IsNumeric returns true for integer and float columns.
func (t ColumnType) IsNumeric() bool {
	return t == TypeInteger || t == TypeFloat
}

// IsText returns true for string and text columns.
func (t ColumnType) IsText() bool {
	return t == TypeString || t == TypeText
}

// IsTemporal returns true for date, datetime and time columns.
func (t ColumnType) IsTemporal() bool {
	return t == TypeDate || t == TypeDateTime || t == TypeTime
}

// Column describes one column of a model. Columns are immutable once the
// registry has been validated.
type Column struct {
	Name          string
	Type          ColumnType
	Nullable      bool
	PrimaryKey    bool
	Unique        bool
	HasDefault    bool
	Default       interface{}
	AutoIncrement bool
	Computed      bool // derived property exposed with a declared type, never stored
	References    string
	EnumValues    []string
}

// AutoAssigned reports whether the store populates this column itself, which
// makes it dump-only on input schemas.
func (c *Column) AutoAssigned() bool {
	return c.AutoIncrement || (c.PrimaryKey && c.HasDefault)
}

// Cardinality represents the cardinality of a relationship.
type Cardinality int

const (
	OneToOne Cardinality = iota
	OneToMany
	ManyToOne
	ManyToMany
)

// String returns the string representation of the cardinality.
func (c Cardinality) String() string {
	switch c {
	case OneToOne:
		return "one_to_one"
	case OneToMany:
		return "one_to_many"
	case ManyToOne:
		return "many_to_one"
	case ManyToMany:
		return "many_to_many"
	default:
		return "unknown"
	}
}

// ToMany reports whether the relationship yields a collection.
func (c Cardinality) ToMany() bool {
	return c == OneToMany || c == ManyToMany
}

// Relationship describes a join between two models. LocalColumn lives on the
// owning model, RemoteColumn on the target. Many-to-many relationships carry
// the association table and its two key columns instead.
type Relationship struct {
	Name         string
	Owner        string
	Target       string
	Cardinality  Cardinality
	LocalColumn  string
	RemoteColumn string

	// Many-to-many only.
	JoinTable        string
	JoinLocalColumn  string
	JoinRemoteColumn string
}

// ModelConfig enumerates every recognized per-model option. A nil ModelConfig
// means all defaults.
type ModelConfig struct {
	// BlockedMethods lists HTTP methods for which no route is generated.
	BlockedMethods []string

	// Descriptions maps an HTTP method to documentation text for the route.
	Descriptions map[string]string

	// TagGroup groups this model's routes in the rendered documentation.
	TagGroup string

	// RateLimit overrides the global per-minute request budget. Zero means
	// use the global setting.
	RateLimit int

	// CascadeDelete overrides the global cascade-delete policy.
	CascadeDelete *bool

	// EndpointName overrides the derived endpoint name.
	EndpointName string

	// Callback, when set, is invoked with the operation name and its output
	// before serialization.
	Callback func(operation string, output interface{}) interface{}
}

// MethodBlocked reports whether route generation for the method is disabled.
func (c *ModelConfig) MethodBlocked(method string) bool {
	if c == nil {
		return false
	}
	for _, m := range c.BlockedMethods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// Description returns the configured documentation text for the method, or "".
func (c *ModelConfig) Description(method string) string {
	if c == nil || c.Descriptions == nil {
		return ""
	}
	return c.Descriptions[strings.ToUpper(method)]
}

// Model is the mapped representation of one database table plus its
// relationships and per-model configuration.
type Model struct {
	Name          string
	Table         string
	Endpoint      string
	Columns       []*Column
	Relationships map[string]*Relationship
	Config        *ModelConfig

	columnIndex map[string]*Column
}

// Column returns the named column, including computed ones.
func (m *Model) Column(name string) (*Column, bool) {
	c, ok := m.columnIndex[name]
	return c, ok
}

// HasColumn reports whether the model declares the named column.
func (m *Model) HasColumn(name string) bool {
	_, ok := m.columnIndex[name]
	return ok
}

// StoredColumns returns the columns that exist in the table, in declaration
// order, excluding computed properties.
func (m *Model) StoredColumns() []*Column {
	cols := make([]*Column, 0, len(m.Columns))
	for _, c := range m.Columns {
		if !c.Computed {
			cols = append(cols, c)
		}
	}
	return cols
}

// ColumnNames returns stored column names in declaration order.
func (m *Model) ColumnNames() []string {
	names := make([]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		if !c.Computed {
			names = append(names, c.Name)
		}
	}
	return names
}

// PrimaryKeys returns all primary key columns in declaration order.
func (m *Model) PrimaryKeys() []*Column {
	var pks []*Column
	for _, c := range m.Columns {
		if c.PrimaryKey {
			pks = append(pks, c)
		}
	}
	return pks
}

// PrimaryKey returns the single primary key column. Models with composite
// primary keys get an error; callers that only need route lookup must handle
// that case explicitly.
func (m *Model) PrimaryKey() (*Column, error) {
	pks := m.PrimaryKeys()
	switch len(pks) {
	case 0:
		return nil, fmt.Errorf("model %s has no primary key", m.Name)
	case 1:
		return pks[0], nil
	default:
		return nil, fmt.Errorf("model %s has a composite primary key", m.Name)
	}
}

// Relationship returns the named relationship.
func (m *Model) Relationship(name string) (*Relationship, bool) {
	r, ok := m.Relationships[name]
	return r, ok
}

// RelationshipTo returns the first relationship targeting the named model.
func (m *Model) RelationshipTo(target string) (*Relationship, bool) {
	for _, r := range m.Relationships {
		if r.Target == target {
			return r, true
		}
	}
	return nil, false
}

// SelfURL returns the canonical URL for a record of this model, or "" when the
// model has a composite primary key and no accessor was derived.
func (m *Model) SelfURL(prefix string, pkValue interface{}) string {
	if _, err := m.PrimaryKey(); err != nil {
		return ""
	}
	return fmt.Sprintf("%s/%s/%v", prefix, m.Endpoint, pkValue)
}

// ToSnakeCase converts a CamelCase name to snake_case.
func ToSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			if prev >= 'a' && prev <= 'z' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}

// ToKebabCase converts a CamelCase name to kebab-case.
func ToKebabCase(s string) string {
	return strings.ReplaceAll(ToSnakeCase(s), "_", "-")
}

// Pluralize adds simple English pluralization.
func Pluralize(s string) string {
	if strings.HasSuffix(s, "s") ||
		strings.HasSuffix(s, "x") ||
		strings.HasSuffix(s, "z") {
		return s + "es"
	}
	if strings.HasSuffix(s, "y") {
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}

// TableName derives a table name (snake_case plural) from a model name.
func TableName(modelName string) string {
	return Pluralize(ToSnakeCase(modelName))
}

// EndpointName derives an endpoint name (kebab-case plural) from a model name.
func EndpointName(modelName string) string {
	return Pluralize(ToKebabCase(modelName))
}
