// Package openapi renders the synthesized route table as an OpenAPI 3
// document and serves the documentation pages.
package openapi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/restforge/restforge/internal/api"
	"github.com/restforge/restforge/internal/config"
	"github.com/restforge/restforge/internal/schema"
	"github.com/restforge/restforge/internal/serialize"
)

// Document is the rendered OpenAPI root object.
type Document struct {
	OpenAPI    string              `json:"openapi"`
	Info       Info                `json:"info"`
	Tags       []Tag               `json:"tags,omitempty"`
	TagGroups  []TagGroup          `json:"x-tagGroups,omitempty"`
	Paths      map[string]PathItem `json:"paths"`
	Components Components          `json:"components"`
}

// TagGroup clusters related tags in the rendered documentation.
type TagGroup struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// Info carries the API metadata block.
type Info struct {
	Title       string   `json:"title"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Contact     *Contact `json:"contact,omitempty"`
}

// Contact is the optional API contact block.
type Contact struct {
	Email string `json:"email,omitempty"`
}

// Tag groups operations in the rendered documentation.
type Tag struct {
	Name string `json:"name"`
}

// PathItem maps lowercased HTTP methods to operations.
type PathItem map[string]*OperationDoc

// OperationDoc describes one operation.
type OperationDoc struct {
	OperationID string               `json:"operationId"`
	Summary     string               `json:"summary,omitempty"`
	Description string               `json:"description,omitempty"`
	Tags        []string             `json:"tags,omitempty"`
	Parameters  []Parameter          `json:"parameters,omitempty"`
	RequestBody *RequestBody         `json:"requestBody,omitempty"`
	Responses   map[string]*Response `json:"responses"`
}

// Parameter describes a path or query parameter.
type Parameter struct {
	Name        string             `json:"name"`
	In          string             `json:"in"`
	Required    bool               `json:"required,omitempty"`
	Description string             `json:"description,omitempty"`
	Schema      *jsonschema.Schema `json:"schema,omitempty"`
}

// RequestBody describes a JSON request payload.
type RequestBody struct {
	Required bool                 `json:"required,omitempty"`
	Content  map[string]MediaType `json:"content"`
}

// MediaType wraps a schema for one content type.
type MediaType struct {
	Schema *jsonschema.Schema `json:"schema"`
}

// Response describes one response status.
type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// Components holds the shared schema definitions.
type Components struct {
	Schemas map[string]*jsonschema.Schema `json:"schemas"`
}

// Generator builds Documents from route tables.
type Generator struct {
	cfg        *config.Config
	serializer *serialize.Serializer
}

// NewGenerator creates a generator sharing the API's serializer so documented
// schemas match real response shapes.
func NewGenerator(cfg *config.Config, serializer *serialize.Serializer) *Generator {
	return &Generator{cfg: cfg, serializer: serializer}
}

// Build renders the document for the given route table.
func (g *Generator) Build(routes []*api.RouteDescriptor) *Document {
	doc := &Document{
		OpenAPI: "3.0.3",
		Info: Info{
			Title:       g.cfg.Title,
			Version:     g.cfg.Version,
			Description: g.cfg.Description,
		},
		Paths: make(map[string]PathItem),
		Components: Components{
			Schemas: map[string]*jsonschema.Schema{
				"Envelope":      envelopeSchema(),
				"ErrorEnvelope": errorEnvelopeSchema(),
			},
		},
	}
	if g.cfg.Docs.Contact != "" {
		doc.Info.Contact = &Contact{Email: g.cfg.Docs.Contact}
	}

	tags := make(map[string]bool)
	groups := make(map[string]map[string]bool)
	for _, route := range routes {
		g.addRoute(doc, route)
		tags[route.Tag] = true
		if cfg := route.Model.Config; cfg != nil && cfg.TagGroup != "" {
			if groups[cfg.TagGroup] == nil {
				groups[cfg.TagGroup] = make(map[string]bool)
			}
			groups[cfg.TagGroup][route.Tag] = true
		}
	}

	tagNames := make([]string, 0, len(tags))
	for name := range tags {
		tagNames = append(tagNames, name)
	}
	sort.Strings(tagNames)
	for _, name := range tagNames {
		doc.Tags = append(doc.Tags, Tag{Name: name})
	}

	groupNames := make([]string, 0, len(groups))
	for name := range groups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)
	for _, name := range groupNames {
		members := make([]string, 0, len(groups[name]))
		for tag := range groups[name] {
			members = append(members, tag)
		}
		sort.Strings(members)
		doc.TagGroups = append(doc.TagGroups, TagGroup{Name: name, Tags: members})
	}
	return doc
}

func (g *Generator) addRoute(doc *Document, route *api.RouteDescriptor) {
	m := route.Model
	g.ensureModelSchemas(doc, m)

	path := g.cfg.API.Prefix + route.Pattern
	if doc.Paths[path] == nil {
		doc.Paths[path] = make(PathItem)
	}

	op := &OperationDoc{
		OperationID: operationID(route),
		Summary:     fmt.Sprintf("%s %s", titleCase(route.Operation.String()), m.Name),
		Description: route.Description,
		Tags:        []string{route.Tag},
		Responses:   g.responses(route),
	}

	if strings.Contains(route.Pattern, "{pk}") {
		op.Parameters = append(op.Parameters, keyParameter(m))
	}
	switch route.Operation {
	case api.OpList, api.OpRelation:
		op.Parameters = append(op.Parameters, listParameters(g.cfg.API.MaxLimit)...)
	case api.OpCreate:
		op.RequestBody = jsonBody(ref(m.Name+"Input"), true)
	case api.OpUpdate:
		op.RequestBody = jsonBody(ref(m.Name+"Update"), true)
	case api.OpDelete:
		op.Parameters = append(op.Parameters, Parameter{
			Name:        "cascade_delete",
			In:          "query",
			Description: "Delete dependent records reachable through declared relationships first",
			Schema:      &jsonschema.Schema{Type: "boolean"},
		})
	}

	doc.Paths[path][strings.ToLower(route.Method)] = op
}

func (g *Generator) ensureModelSchemas(doc *Document, m *schema.Model) {
	if _, exists := doc.Components.Schemas[m.Name]; exists {
		return
	}
	doc.Components.Schemas[m.Name] = g.serializer.DumpSchema(m)
	doc.Components.Schemas[m.Name+"Input"] = g.serializer.LoadSchema(m)
	doc.Components.Schemas[m.Name+"Update"] = g.serializer.UpdateSchema(m)
}

func (g *Generator) responses(route *api.RouteDescriptor) map[string]*Response {
	success := "200"
	if route.Operation == api.OpCreate {
		success = "201"
	}

	responses := map[string]*Response{
		success: {
			Description: "Successful response wrapped in the standard envelope",
			Content:     map[string]MediaType{"application/json": {Schema: ref("Envelope")}},
		},
		"400": errorResponse("Malformed query string or payload"),
		"500": errorResponse("Internal error"),
	}
	if strings.Contains(route.Pattern, "{pk}") {
		responses["404"] = errorResponse("No record with the given key")
	}
	switch route.Operation {
	case api.OpCreate, api.OpUpdate, api.OpDelete:
		responses["409"] = errorResponse("Constraint conflict")
	}
	return responses
}

func errorResponse(description string) *Response {
	return &Response{
		Description: description,
		Content:     map[string]MediaType{"application/json": {Schema: ref("ErrorEnvelope")}},
	}
}

func jsonBody(s *jsonschema.Schema, required bool) *RequestBody {
	return &RequestBody{
		Required: required,
		Content:  map[string]MediaType{"application/json": {Schema: s}},
	}
}

func ref(name string) *jsonschema.Schema {
	return &jsonschema.Schema{Ref: "#/components/schemas/" + name}
}

func keyParameter(m *schema.Model) Parameter {
	p := Parameter{
		Name:     "pk",
		In:       "path",
		Required: true,
		Schema:   &jsonschema.Schema{Type: "string"},
	}
	if pk, err := m.PrimaryKey(); err == nil {
		switch pk.Type {
		case schema.TypeInteger:
			p.Schema = &jsonschema.Schema{Type: "integer"}
		case schema.TypeUUID:
			p.Schema = &jsonschema.Schema{Type: "string", Format: "uuid"}
		}
		p.Description = fmt.Sprintf("Value of the %s key column", pk.Name)
	}
	return p
}

func listParameters(maxLimit int) []Parameter {
	return []Parameter{
		{
			Name: "fields", In: "query",
			Description: "Comma-separated columns to select, optionally table-qualified",
			Schema:      &jsonschema.Schema{Type: "string"},
		},
		{
			Name: "join", In: "query",
			Description: "Comma-separated relationship names to join into the query scope",
			Schema:      &jsonschema.Schema{Type: "string"},
		},
		{
			Name: "groupby", In: "query",
			Description: "Comma-separated columns to group by",
			Schema:      &jsonschema.Schema{Type: "string"},
		},
		{
			Name: "order_by", In: "query",
			Description: "Comma-separated sort keys; prefix with - for descending",
			Schema:      &jsonschema.Schema{Type: "string"},
		},
		{
			Name: "page", In: "query",
			Description: "Zero-based page index",
			Schema:      &jsonschema.Schema{Type: "integer"},
		},
		{
			Name: "limit", In: "query",
			Description: fmt.Sprintf("Page size, capped at %d", maxLimit),
			Schema:      &jsonschema.Schema{Type: "integer"},
		},
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func operationID(route *api.RouteDescriptor) string {
	id := route.Operation.String() + "_" + schema.ToSnakeCase(route.Model.Name)
	if route.Relationship != nil {
		id = "list_" + schema.ToSnakeCase(route.Model.Name) + "_" + schema.ToSnakeCase(route.Relationship.Name)
	}
	return id
}

func envelopeSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"value":        {},
			"datetime":     {Type: "string", Format: "date-time"},
			"api_version":  {Type: "string"},
			"status_code":  {Type: "integer"},
			"total_count":  {Type: "integer"},
			"next_url":     {Type: "string"},
			"previous_url": {Type: "string"},
		},
	}
}

func errorEnvelopeSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"datetime":    {Type: "string", Format: "date-time"},
			"api_version": {Type: "string"},
			"status_code": {Type: "integer"},
			"errors": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"error":  {Type: "string"},
						"reason": {Type: "string"},
					},
				},
			},
		},
	}
}
