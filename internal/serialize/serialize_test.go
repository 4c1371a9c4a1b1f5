package serialize

import (
	"net/url"
	"testing"
	"time"

	"github.com/restforge/restforge/internal/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()

	author := schema.NewModel("Author").
		Column("id", schema.TypeInteger, schema.PrimaryKey(), schema.AutoIncrement()).
		Column("name", schema.TypeString).
		Column("created_at", schema.TypeDateTime, schema.Default("now()")).
		HasMany("books", "Book", "id", "author_id").
		HasOne("profile", "Profile", "id", "author_id").
		MustBuild()

	book := schema.NewModel("Book").
		Column("id", schema.TypeInteger, schema.PrimaryKey(), schema.AutoIncrement()).
		Column("title", schema.TypeString).
		Column("author_id", schema.TypeInteger, schema.References("authors")).
		BelongsTo("author", "Author", "author_id", "id").
		MustBuild()

	profile := schema.NewModel("Profile").
		Column("id", schema.TypeInteger, schema.PrimaryKey(), schema.AutoIncrement()).
		Column("bio", schema.TypeText, schema.Nullable()).
		Column("author_id", schema.TypeInteger, schema.References("authors")).
		MustBuild()

	reg := schema.NewRegistry()
	for _, m := range []*schema.Model{author, book, profile} {
		if err := reg.Register(m); err != nil {
			t.Fatalf("Register(%s): %v", m.Name, err)
		}
	}
	if err := reg.ValidateAll(); err != nil {
		t.Fatalf("ValidateAll: %v", err)
	}
	return reg
}

func TestDumpRecordRelationURLs(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Get("Author")
	s := NewSerializer(reg, Options{RelationMode: RelationURL, Prefix: "/api"})

	out := s.DumpRecord(m, map[string]interface{}{
		"id":   int64(5),
		"name": []byte("jane"),
	})

	if out["name"] != "jane" {
		t.Errorf("Expected byte slice normalized to string, got %v", out["name"])
	}
	if out["books"] != "/api/authors/5/books" {
		t.Errorf("Expected relation URL, got %v", out["books"])
	}
}

func TestDumpRecordToOneCanonicalURL(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Get("Book")
	s := NewSerializer(reg, Options{RelationMode: RelationURL, Prefix: "/api"})

	out := s.DumpRecord(m, map[string]interface{}{
		"id":        int64(1),
		"title":     "gone",
		"author_id": int64(5),
	})
	if out["author"] != "/api/authors/5" {
		t.Errorf("Expected the target record URL, got %v", out["author"])
	}

	out = s.DumpRecord(m, map[string]interface{}{
		"id":        int64(2),
		"title":     "anon",
		"author_id": nil,
	})
	if out["author"] != nil {
		t.Errorf("Expected null for an unset foreign key, got %v", out["author"])
	}
}

func TestDumpRecordHasOneFilterURL(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Get("Author")
	s := NewSerializer(reg, Options{RelationMode: RelationURL, Prefix: "/api"})

	out := s.DumpRecord(m, map[string]interface{}{"id": int64(5), "name": "jane"})
	if out["profile"] != "/api/profiles?author_id__eq=5" {
		t.Errorf("Expected a filtered collection URL, got %v", out["profile"])
	}
}

func TestDumpRecordNoneModeOmitsRelations(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Get("Author")
	s := NewSerializer(reg, Options{RelationMode: RelationNone})

	out := s.DumpRecord(m, map[string]interface{}{"id": 1, "name": "jane"})
	if _, exists := out["books"]; exists {
		t.Error("Expected relationship field to be omitted")
	}
}

func TestDumpRecordCamelCase(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Get("Author")
	s := NewSerializer(reg, Options{RelationMode: RelationNone, CamelCase: true})

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	out := s.DumpRecord(m, map[string]interface{}{"id": 1, "created_at": now})

	if _, exists := out["created_at"]; exists {
		t.Error("Expected snake_case key to be recased")
	}
	if out["createdAt"] != "2024-06-01T12:00:00Z" {
		t.Errorf("Expected RFC3339 timestamp, got %v", out["createdAt"])
	}
}

func TestDumpSchema(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Get("Author")
	s := NewSerializer(reg, Options{RelationMode: RelationURL})

	js := s.DumpSchema(m)
	if js.Type != "object" {
		t.Fatalf("Expected object schema, got %s", js.Type)
	}
	if js.Properties["id"].Type != "integer" {
		t.Errorf("Expected integer id, got %s", js.Properties["id"].Type)
	}
	if js.Properties["created_at"].Format != "date-time" {
		t.Errorf("Expected date-time format, got %s", js.Properties["created_at"].Format)
	}
	if js.Properties["books"] == nil {
		t.Error("Expected relationship property in dump schema")
	}
}

func TestLoadSchemaExcludesAutoKeys(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Get("Author")
	s := NewSerializer(reg, Options{})

	js := s.LoadSchema(m)
	if _, exists := js.Properties["id"]; exists {
		t.Error("Expected auto-assigned key to be dump-only")
	}
	if len(js.Required) != 1 || js.Required[0] != "name" {
		t.Errorf("Expected required [name], got %v", js.Required)
	}
}

func TestUpdateSchemaAllOptional(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Get("Book")
	s := NewSerializer(reg, Options{})

	js := s.UpdateSchema(m)
	if len(js.Required) != 0 {
		t.Errorf("Expected no required fields, got %v", js.Required)
	}
	if _, exists := js.Properties["title"]; !exists {
		t.Error("Expected writable column in update schema")
	}
}

func TestEnvelopePagination(t *testing.T) {
	u, _ := url.Parse("http://localhost/api/authors?page=1&limit=10")

	env := NewEnvelope([]string{}, 200, "0.1.0").WithPagination(u, 35, 1, 10)

	if env.TotalCount == nil || *env.TotalCount != 35 {
		t.Fatalf("Expected total 35, got %v", env.TotalCount)
	}
	if env.NextURL == nil {
		t.Fatal("Expected next URL")
	}
	next, _ := url.Parse(*env.NextURL)
	if next.Query().Get("page") != "2" {
		t.Errorf("Expected next page 2, got %s", *env.NextURL)
	}
	if env.PreviousURL == nil {
		t.Fatal("Expected previous URL")
	}
	prev, _ := url.Parse(*env.PreviousURL)
	if prev.Query().Get("page") != "0" {
		t.Errorf("Expected previous page 0, got %s", *env.PreviousURL)
	}
}

func TestEnvelopePaginationEdges(t *testing.T) {
	u, _ := url.Parse("http://localhost/api/authors")

	env := NewEnvelope(nil, 200, "0.1.0").WithPagination(u, 5, 0, 10)
	if env.NextURL != nil {
		t.Error("Expected no next URL on the last page")
	}
	if env.PreviousURL != nil {
		t.Error("Expected no previous URL on the first page")
	}
}

func TestEnvelopeRestrict(t *testing.T) {
	u, _ := url.Parse("http://localhost/api/authors?page=1&limit=10")
	env := NewEnvelope([]string{}, 200, "0.1.0").WithPagination(u, 35, 1, 10)

	env.Restrict(EnvelopeFields{})

	if env.Datetime != "" || env.APIVersion != "" || env.StatusCode != 0 {
		t.Errorf("Expected metadata cleared, got %+v", env)
	}
	if env.TotalCount != nil || env.NextURL != nil || env.PreviousURL != nil {
		t.Errorf("Expected pagination metadata cleared, got %+v", env)
	}

	env = NewEnvelope(nil, 200, "0.1.0").Restrict(AllEnvelopeFields())
	if env.Datetime == "" || env.APIVersion != "0.1.0" || env.StatusCode != 200 {
		t.Errorf("Expected all fields kept, got %+v", env)
	}
}

func TestDumpSchemaRelationsByMode(t *testing.T) {
	reg := testRegistry(t)
	author, _ := reg.Get("Author")
	book, _ := reg.Get("Book")

	hybrid := NewSerializer(reg, Options{RelationMode: RelationHybrid})
	if got := hybrid.DumpSchema(book).Properties["author"]; got.Type != "object" {
		t.Errorf("Expected embedded object for to-one under hybrid, got %s", got.Type)
	}
	if got := hybrid.DumpSchema(author).Properties["books"]; got.Type != "string" || got.Format != "uri" {
		t.Errorf("Expected URL reference for to-many under hybrid, got %s/%s", got.Type, got.Format)
	}

	full := NewSerializer(reg, Options{RelationMode: RelationJSON})
	if got := full.DumpSchema(author).Properties["books"]; got.Type != "array" {
		t.Errorf("Expected embedded array for to-many under json, got %s", got.Type)
	}
}

func TestToCamelCase(t *testing.T) {
	cases := map[string]string{
		"name":         "name",
		"created_at":   "createdAt",
		"author_id":    "authorId",
		"a_b_c":        "aBC",
		"total_count":  "totalCount",
	}
	for in, want := range cases {
		if got := ToCamelCase(in); got != want {
			t.Errorf("ToCamelCase(%s) = %s, want %s", in, got, want)
		}
	}
}
