package api

import (
	"context"
	"net/url"
	"sort"

	"github.com/restforge/restforge/internal/schema"
	"github.com/restforge/restforge/internal/serialize"
)

// renderRecord dumps one record and embeds related records when the
// serialization mode calls for it.
func (a *API) renderRecord(ctx context.Context, m *schema.Model, record map[string]interface{}) map[string]interface{} {
	out := a.serializer.DumpRecord(m, record)
	a.embedRelations(ctx, m, record, out)
	return out
}

// renderRecords dumps a result page with embedding.
func (a *API) renderRecords(ctx context.Context, m *schema.Model, records []map[string]interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, len(records))
	for i, r := range records {
		out[i] = a.renderRecord(ctx, m, r)
	}
	return out
}

// embedRelations replaces relationship placeholders with fetched records:
// every relationship in json mode, to-one relationships in hybrid mode. A
// fetch failure leaves the placeholder in place rather than failing the
// request.
func (a *API) embedRelations(ctx context.Context, m *schema.Model, record, out map[string]interface{}) {
	mode := a.serializer.Mode()
	if mode != serialize.RelationJSON && mode != serialize.RelationHybrid {
		return
	}

	names := make([]string, 0, len(m.Relationships))
	for name := range m.Relationships {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rel := m.Relationships[name]
		if mode == serialize.RelationHybrid && rel.Cardinality.ToMany() {
			continue
		}

		target, ok := a.registry.Get(rel.Target)
		if !ok {
			continue
		}

		if rel.Cardinality.ToMany() {
			a.embedMany(ctx, m, target, rel, record, out)
			continue
		}
		a.embedOne(ctx, target, rel, record, out)
	}
}

func (a *API) embedOne(ctx context.Context, target *schema.Model, rel *schema.Relationship, record, out map[string]interface{}) {
	remote, ok := target.Column(rel.RemoteColumn)
	if !ok {
		return
	}
	fk := record[rel.LocalColumn]
	if fk == nil {
		a.serializer.EmbedRelated(out, rel, nil)
		return
	}

	related, err := a.services[target.Name].Get(ctx, remote, fk)
	if err != nil {
		return
	}
	a.serializer.EmbedRelated(out, rel, a.serializer.DumpRecord(target, related))
}

// embedMany embeds the first page of a to-many relationship under the default
// page size. Clients needing more page through the relation route.
func (a *API) embedMany(ctx context.Context, m, target *schema.Model, rel *schema.Relationship, record, out map[string]interface{}) {
	pk, err := m.PrimaryKey()
	if err != nil {
		return
	}
	pkValue, ok := record[pk.Name]
	if !ok {
		return
	}

	plan, err := a.compiler.Compile(target, url.Values{})
	if err != nil {
		return
	}
	result, err := a.services[m.Name].ListRelated(ctx, rel, pkValue, plan)
	if err != nil {
		return
	}
	a.serializer.EmbedRelated(out, rel, a.serializer.DumpRecords(target, result.Records))
}
