// Package serialize shapes store records into response payloads: relationship
// rendering, key casing, JSON schema derivation for the documentation layer,
// and the response envelope every route returns.
package serialize

import (
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/restforge/restforge/internal/schema"
)

// RelationMode controls how relationship fields appear in dumped records.
type RelationMode int

const (
	// RelationURL renders each relationship as the URL of its relation route.
	RelationURL RelationMode = iota
	// RelationJSON embeds related records inline.
	RelationJSON
	// RelationHybrid embeds to-one relationships and renders to-many ones as URLs.
	RelationHybrid
	// RelationNone omits relationship fields entirely.
	RelationNone
)

// ParseRelationMode maps a configuration string to a RelationMode.
func ParseRelationMode(s string) (RelationMode, error) {
	switch s {
	case "url":
		return RelationURL, nil
	case "json":
		return RelationJSON, nil
	case "hybrid", "dynamic", "":
		return RelationHybrid, nil
	case "none":
		return RelationNone, nil
	default:
		return 0, fmt.Errorf("unknown serialization mode: %s", s)
	}
}

// Options configures a Serializer.
type Options struct {
	RelationMode RelationMode
	CamelCase    bool

	// Prefix is the API mount path used when rendering relation URLs.
	Prefix string
}

// Serializer dumps records for one registry.
type Serializer struct {
	registry *schema.Registry
	opts     Options
}

// NewSerializer creates a serializer over the given registry.
func NewSerializer(registry *schema.Registry, opts Options) *Serializer {
	return &Serializer{registry: registry, opts: opts}
}

// Mode returns the configured relationship rendering mode.
func (s *Serializer) Mode() RelationMode {
	return s.opts.RelationMode
}

// DumpRecord shapes a stored row for output: byte slices become strings,
// relationship fields are rendered per the configured mode, and keys are
// recased when camelCase output is enabled.
func (s *Serializer) DumpRecord(m *schema.Model, record map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(record)+len(m.Relationships))
	for k, v := range record {
		out[k] = normalizeValue(v)
	}

	s.renderRelationships(m, record, out)

	if s.opts.CamelCase {
		out = camelKeys(out)
	}
	return out
}

// DumpRecords shapes a result page.
func (s *Serializer) DumpRecords(m *schema.Model, records []map[string]interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, len(records))
	for i, r := range records {
		out[i] = s.DumpRecord(m, r)
	}
	return out
}

func (s *Serializer) renderRelationships(m *schema.Model, record, out map[string]interface{}) {
	if s.opts.RelationMode == RelationNone {
		return
	}

	for name, rel := range m.Relationships {
		switch s.opts.RelationMode {
		case RelationURL:
			out[name] = s.relationRef(m, record, rel)
		case RelationHybrid:
			// To-many stays a URL; the to-one value is a placeholder the
			// route layer replaces with the embedded record.
			out[name] = s.relationRef(m, record, rel)
		case RelationJSON:
			// Embedding happens at the route layer where related records are
			// available; the key is pre-seeded so output shape is stable.
			if _, exists := out[name]; !exists {
				out[name] = nil
			}
		}
	}
}

// relationRef renders the URL a client can follow to reach the related
// records: the relation route for to-many relationships, the target record's
// canonical URL for to-one ones. When the join cannot be resolved from the
// record alone the field renders null.
func (s *Serializer) relationRef(m *schema.Model, record map[string]interface{}, rel *schema.Relationship) interface{} {
	if rel.Cardinality.ToMany() {
		pk, err := m.PrimaryKey()
		if err != nil {
			return nil
		}
		pkValue, ok := record[pk.Name]
		if !ok {
			return nil
		}
		return fmt.Sprintf("%s/%s/%v/%s", s.opts.Prefix, m.Endpoint, pkValue, schema.ToKebabCase(rel.Name))
	}

	target, ok := s.registry.Get(rel.Target)
	if !ok {
		return nil
	}
	local, ok := record[rel.LocalColumn]
	if !ok || local == nil {
		return nil
	}
	if remote, ok := target.Column(rel.RemoteColumn); ok && remote.PrimaryKey {
		return target.SelfURL(s.opts.Prefix, local)
	}
	// The foreign key lives on the target, so the record's own URL is not
	// derivable; a filtered collection URL resolves it instead.
	return fmt.Sprintf("%s/%s?%s__eq=%v", s.opts.Prefix, target.Endpoint, rel.RemoteColumn, local)
}

// EmbedRelated attaches fetched related records under the relationship name,
// overriding the placeholder rendering.
func (s *Serializer) EmbedRelated(out map[string]interface{}, rel *schema.Relationship, related interface{}) {
	name := rel.Name
	if s.opts.CamelCase {
		name = ToCamelCase(name)
	}
	out[name] = related
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

// jsonType maps a column type to its JSON schema type and format.
func jsonType(t schema.ColumnType) (typ, format string) {
	switch t {
	case schema.TypeInteger:
		return "integer", ""
	case schema.TypeFloat:
		return "number", ""
	case schema.TypeString, schema.TypeText:
		return "string", ""
	case schema.TypeDate:
		return "string", "date"
	case schema.TypeDateTime:
		return "string", "date-time"
	case schema.TypeTime:
		return "string", "time"
	case schema.TypeBoolean:
		return "boolean", ""
	case schema.TypeBinary:
		return "string", "byte"
	case schema.TypeEnum:
		return "string", ""
	case schema.TypeJSON:
		return "object", ""
	case schema.TypeArray:
		return "array", ""
	case schema.TypeUUID:
		return "string", "uuid"
	default:
		return "string", ""
	}
}

func columnSchema(c *schema.Column) *jsonschema.Schema {
	typ, format := jsonType(c.Type)
	js := &jsonschema.Schema{Type: typ, Format: format}
	if c.Type == schema.TypeEnum {
		for _, v := range c.EnumValues {
			js.Enum = append(js.Enum, v)
		}
	}
	return js
}

func (s *Serializer) fieldName(name string) string {
	if s.opts.CamelCase {
		return ToCamelCase(name)
	}
	return name
}

// DumpSchema derives the response schema of a model: every column plus the
// relationship fields the configured mode produces.
func (s *Serializer) DumpSchema(m *schema.Model) *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema, len(m.Columns))
	for _, c := range m.Columns {
		props[s.fieldName(c.Name)] = columnSchema(c)
	}
	if s.opts.RelationMode != RelationNone {
		for name, rel := range m.Relationships {
			props[s.fieldName(name)] = s.relationSchema(rel)
		}
	}
	return &jsonschema.Schema{Type: "object", Properties: props}
}

// relationSchema describes a relationship field the way the configured mode
// actually renders it: an embedded object or array when the mode embeds, a
// URL reference otherwise.
func (s *Serializer) relationSchema(rel *schema.Relationship) *jsonschema.Schema {
	embedded := s.opts.RelationMode == RelationJSON ||
		(s.opts.RelationMode == RelationHybrid && !rel.Cardinality.ToMany())
	if !embedded {
		return &jsonschema.Schema{Type: "string", Format: "uri"}
	}
	if rel.Cardinality.ToMany() {
		return &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{Type: "object"}}
	}
	return &jsonschema.Schema{Type: "object"}
}

// LoadSchema derives the creation payload schema: stored, non-auto-assigned
// columns, with non-nullable columns lacking a default marked required.
func (s *Serializer) LoadSchema(m *schema.Model) *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema)
	var required []string
	for _, c := range m.StoredColumns() {
		if c.AutoAssigned() {
			continue
		}
		props[s.fieldName(c.Name)] = columnSchema(c)
		if !c.Nullable && !c.HasDefault {
			required = append(required, s.fieldName(c.Name))
		}
	}
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

// UpdateSchema derives the partial-update payload schema: every writable
// column, all optional.
func (s *Serializer) UpdateSchema(m *schema.Model) *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema)
	for _, c := range m.StoredColumns() {
		if c.AutoAssigned() {
			continue
		}
		props[s.fieldName(c.Name)] = columnSchema(c)
	}
	return &jsonschema.Schema{Type: "object", Properties: props}
}
