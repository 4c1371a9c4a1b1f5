package query

import (
	"net/url"
	"testing"
	"time"

	"github.com/restforge/restforge/internal/schema"
)

// testRegistry builds the Author/Book/Tag catalog used across this package.
func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()

	author := schema.NewModel("Author").
		Column("id", schema.TypeInteger, schema.PrimaryKey(), schema.AutoIncrement()).
		Column("name", schema.TypeString).
		Column("email", schema.TypeString, schema.Unique()).
		Column("active", schema.TypeBoolean).
		Column("rating", schema.TypeFloat).
		Column("joined_on", schema.TypeDate).
		Computed("display_name", schema.TypeString).
		HasMany("books", "Book", "id", "author_id").
		ManyToMany("tags", "Tag", "author_tags", "author_id", "tag_id").
		MustBuild()

	book := schema.NewModel("Book").
		Column("id", schema.TypeInteger, schema.PrimaryKey(), schema.AutoIncrement()).
		Column("title", schema.TypeString).
		Column("price", schema.TypeFloat).
		Column("author_id", schema.TypeInteger, schema.References("authors")).
		Column("published", schema.TypeDate).
		BelongsTo("author", "Author", "author_id", "id").
		MustBuild()

	tag := schema.NewModel("Tag").
		Column("id", schema.TypeInteger, schema.PrimaryKey(), schema.AutoIncrement()).
		Column("name", schema.TypeString).
		MustBuild()

	reg := schema.NewRegistry()
	for _, m := range []*schema.Model{author, book, tag} {
		if err := reg.Register(m); err != nil {
			t.Fatalf("Register(%s): %v", m.Name, err)
		}
	}
	if err := reg.ValidateAll(); err != nil {
		t.Fatalf("ValidateAll: %v", err)
	}
	return reg
}

func compile(t *testing.T, reg *schema.Registry, model string, rawQuery string, opts Options) (*Plan, error) {
	t.Helper()
	m, ok := reg.Get(model)
	if !ok {
		t.Fatalf("model %s not registered", model)
	}
	args, err := url.ParseQuery(rawQuery)
	if err != nil {
		t.Fatalf("ParseQuery(%q): %v", rawQuery, err)
	}
	return NewCompiler(reg, opts).Compile(m, args)
}

func mustCompile(t *testing.T, reg *schema.Registry, model, rawQuery string) *Plan {
	t.Helper()
	plan, err := compile(t, reg, model, rawQuery, Options{})
	if err != nil {
		t.Fatalf("Compile(%q): %v", rawQuery, err)
	}
	return plan
}

func TestCompileDefaults(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "")

	if plan.Page != 0 {
		t.Errorf("Expected page 0, got %d", plan.Page)
	}
	if plan.Limit != 20 {
		t.Errorf("Expected default limit 20, got %d", plan.Limit)
	}
	if len(plan.Conditions) != 0 {
		t.Errorf("Expected no conditions, got %d", len(plan.Conditions))
	}
}

func TestCompileFilterOperators(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "name__eq=jane&rating__gt=4.5")

	if len(plan.Conditions) != 2 {
		t.Fatalf("Expected 2 conditions, got %d", len(plan.Conditions))
	}

	// Keys compile in sorted order.
	first := plan.Conditions[0]
	if first.Ref.Column.Name != "name" || first.Operator != OpEqual {
		t.Errorf("Expected name =, got %s %s", first.Ref.Column.Name, first.Operator)
	}
	if first.Value != "jane" {
		t.Errorf("Expected value jane, got %v", first.Value)
	}

	second := plan.Conditions[1]
	if second.Operator != OpGreaterThan {
		t.Errorf("Expected >, got %s", second.Operator)
	}
	if second.Value != 4.5 {
		t.Errorf("Expected float 4.5, got %v", second.Value)
	}
}

func TestCompileInSplitsValues(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "id__in=1,2,3")

	if len(plan.Conditions) != 1 {
		t.Fatalf("Expected 1 condition, got %d", len(plan.Conditions))
	}
	values, ok := plan.Conditions[0].Value.([]interface{})
	if !ok {
		t.Fatalf("Expected value list, got %T", plan.Conditions[0].Value)
	}
	if len(values) != 3 || values[0] != 1 || values[2] != 3 {
		t.Errorf("Expected [1 2 3], got %v", values)
	}
}

func TestCompileLikeWrapsPattern(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "name__ilike=jan")

	if plan.Conditions[0].Value != "%jan%" {
		t.Errorf("Expected wrapped pattern, got %v", plan.Conditions[0].Value)
	}
	if plan.Conditions[0].Operator != OpILike {
		t.Errorf("Expected ILIKE, got %s", plan.Conditions[0].Operator)
	}
}

func TestCompileUnknownOperatorDropped(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "name__regex=x&rating__ge=1")

	if len(plan.Conditions) != 1 {
		t.Fatalf("Expected unknown operator to be dropped, got %d conditions", len(plan.Conditions))
	}
	if plan.Conditions[0].Ref.Column.Name != "rating" {
		t.Errorf("Expected surviving condition on rating, got %s", plan.Conditions[0].Ref.Column.Name)
	}
}

func TestCompileUnknownOperatorStrict(t *testing.T) {
	reg := testRegistry(t)
	_, err := compile(t, reg, "Author", "name__regex=x", Options{Strict: true})

	if err == nil {
		t.Fatal("Expected strict mode to reject unknown operator")
	}
	if _, ok := err.(*CompileError); !ok {
		t.Errorf("Expected *CompileError, got %T", err)
	}
}

func TestCompileUnknownColumnFails(t *testing.T) {
	reg := testRegistry(t)
	_, err := compile(t, reg, "Author", "nope__eq=1", Options{})

	if err == nil {
		t.Fatal("Expected error for unknown filter column")
	}
}

func TestCompileOrGroup(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", url.QueryEscape("[name__eq,email__eq]")+"=jane")

	if len(plan.OrGroup) != 2 {
		t.Fatalf("Expected 2 OR conditions, got %d", len(plan.OrGroup))
	}
	for _, cond := range plan.OrGroup {
		if cond.Value != "jane" {
			t.Errorf("Expected shared value jane, got %v", cond.Value)
		}
	}
	if len(plan.Conditions) != 0 {
		t.Errorf("OR members must not appear in the AND set, got %d", len(plan.Conditions))
	}
}

func TestCompileJoin(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "join=books")

	if len(plan.Joins) != 1 {
		t.Fatalf("Expected 1 join, got %d", len(plan.Joins))
	}
	if plan.Joins[0].Target.Name != "Book" {
		t.Errorf("Expected join target Book, got %s", plan.Joins[0].Target.Name)
	}
}

func TestCompileUnknownJoinFails(t *testing.T) {
	reg := testRegistry(t)
	_, err := compile(t, reg, "Author", "join=publishers", Options{})

	if err == nil {
		t.Fatal("Expected error for unknown join name")
	}
}

func TestCompileQualifiedField(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "join=books&fields=name,books.title")

	if len(plan.Fields) != 2 {
		t.Fatalf("Expected 2 fields, got %d", len(plan.Fields))
	}
	if plan.Fields[1].Model.Name != "Book" || plan.Fields[1].Column.Name != "title" {
		t.Errorf("Expected books.title, got %s.%s",
			plan.Fields[1].Model.Table, plan.Fields[1].Column.Name)
	}
}

func TestCompileQualifiedFieldWithoutJoinFails(t *testing.T) {
	reg := testRegistry(t)
	_, err := compile(t, reg, "Author", "fields=books.title", Options{})

	if err == nil {
		t.Fatal("Expected error for qualified field outside join scope")
	}
}

func TestCompileAggregateWithLabel(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Book", url.QueryEscape("price|total__sum")+"=1&groupby=author_id")

	if len(plan.Aggregates) != 1 {
		t.Fatalf("Expected 1 aggregate, got %d", len(plan.Aggregates))
	}
	agg := plan.Aggregates[0]
	if agg.Func != "SUM" {
		t.Errorf("Expected SUM, got %s", agg.Func)
	}
	if agg.OutputName() != "total" {
		t.Errorf("Expected output name total, got %s", agg.OutputName())
	}
	if len(plan.GroupBy) != 1 || plan.GroupBy[0].Column.Name != "author_id" {
		t.Errorf("Expected group by author_id, got %v", plan.GroupBy)
	}
}

func TestCompileAggregateDefaultName(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Book", "price__avg=1")

	if len(plan.Aggregates) != 1 {
		t.Fatalf("Expected 1 aggregate, got %d", len(plan.Aggregates))
	}
	if got := plan.Aggregates[0].OutputName(); got != "price_avg" {
		t.Errorf("Expected price_avg, got %s", got)
	}
	if len(plan.Conditions) != 0 {
		t.Errorf("Aggregate key must not become a filter, got %d conditions", len(plan.Conditions))
	}
}

func TestCompileUnknownAggregateIgnored(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Book", "price__median=1")

	if len(plan.Aggregates) != 0 {
		t.Errorf("Expected unknown function to be ignored, got %d aggregates", len(plan.Aggregates))
	}
	if len(plan.Conditions) != 0 {
		t.Errorf("Expected no conditions, got %d", len(plan.Conditions))
	}
}

func TestCompileSort(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "order_by=-rating,name")

	if len(plan.Sort) != 2 {
		t.Fatalf("Expected 2 sort keys, got %d", len(plan.Sort))
	}
	if !plan.Sort[0].Descending || plan.Sort[0].Ref.Column.Name != "rating" {
		t.Errorf("Expected rating DESC first, got %+v", plan.Sort[0])
	}
	if plan.Sort[1].Descending {
		t.Error("Expected name ascending")
	}
}

func TestCompileSortUnresolvedSkipped(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "order_by=nope,name")

	if len(plan.Sort) != 1 || plan.Sort[0].Ref.Column.Name != "name" {
		t.Errorf("Expected unresolved sort key skipped, got %+v", plan.Sort)
	}

	if _, err := compile(t, reg, "Author", "order_by=nope", Options{Strict: true}); err == nil {
		t.Error("Expected strict mode to reject unresolved sort key")
	}
}

func TestCompilePagination(t *testing.T) {
	reg := testRegistry(t)

	plan := mustCompile(t, reg, "Author", "page=3&limit=10")
	if plan.Page != 3 || plan.Limit != 10 {
		t.Errorf("Expected page 3 limit 10, got %d %d", plan.Page, plan.Limit)
	}
	if plan.Offset() != 30 {
		t.Errorf("Expected offset 30, got %d", plan.Offset())
	}

	plan = mustCompile(t, reg, "Author", "limit=500")
	if plan.Limit != 100 {
		t.Errorf("Expected limit capped at 100, got %d", plan.Limit)
	}

	plan = mustCompile(t, reg, "Author", "page=abc&limit=-5")
	if plan.Page != 0 || plan.Limit != 20 {
		t.Errorf("Expected defaults for unparseable values, got %d %d", plan.Page, plan.Limit)
	}
}

func TestCompileCoercion(t *testing.T) {
	reg := testRegistry(t)

	plan := mustCompile(t, reg, "Author", "joined_on__ge=2024-01-15")
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if got, ok := plan.Conditions[0].Value.(time.Time); !ok || !got.Equal(want) {
		t.Errorf("Expected parsed date, got %v", plan.Conditions[0].Value)
	}

	// Unparseable numerics pass through as the raw string.
	plan = mustCompile(t, reg, "Author", "id__eq=abc")
	if plan.Conditions[0].Value != "abc" {
		t.Errorf("Expected raw pass-through, got %v", plan.Conditions[0].Value)
	}

	plan = mustCompile(t, reg, "Author", "active__eq=Yes")
	if plan.Conditions[0].Value != true {
		t.Errorf("Expected true, got %v", plan.Conditions[0].Value)
	}

	if _, err := compile(t, reg, "Author", "active__eq=maybe", Options{}); err == nil {
		t.Error("Expected error for invalid boolean value")
	}
}

func TestCompileComputedColumnPassThrough(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "display_name__eq=Jane+Doe")

	if plan.Conditions[0].Value != "Jane Doe" {
		t.Errorf("Expected raw value for computed column, got %v", plan.Conditions[0].Value)
	}
}
