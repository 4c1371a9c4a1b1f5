package query

import (
	"testing"
)

func TestBuildSelectBasic(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "")

	sql, err := BuildSelect(plan)
	if err != nil {
		t.Fatalf("BuildSelect: %v", err)
	}

	want := "SELECT authors.id, authors.name, authors.email, authors.active, " +
		"authors.rating, authors.joined_on FROM authors LIMIT $1 OFFSET $2"
	if sql.Text != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, sql.Text)
	}
	if len(sql.Args) != 2 || sql.Args[0] != 20 || sql.Args[1] != 0 {
		t.Errorf("Expected args [20 0], got %v", sql.Args)
	}
}

func TestBuildSelectWhere(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "name__eq=jane&rating__gt=4")

	sql, err := BuildSelect(plan)
	if err != nil {
		t.Fatalf("BuildSelect: %v", err)
	}

	want := "SELECT authors.id, authors.name, authors.email, authors.active, " +
		"authors.rating, authors.joined_on FROM authors " +
		"WHERE authors.name = $1 AND authors.rating > $2 LIMIT $3 OFFSET $4"
	if sql.Text != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, sql.Text)
	}
	if len(sql.Args) != 4 || sql.Args[0] != "jane" {
		t.Errorf("Expected bound values first, got %v", sql.Args)
	}
}

func TestBuildSelectOrGroup(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "rating__ge=3&%5Bname__eq%2Cemail__eq%5D=jane")

	sql, err := BuildSelect(plan)
	if err != nil {
		t.Fatalf("BuildSelect: %v", err)
	}

	want := "SELECT authors.id, authors.name, authors.email, authors.active, " +
		"authors.rating, authors.joined_on FROM authors " +
		"WHERE authors.rating >= $1 AND (authors.name = $2 OR authors.email = $3) " +
		"LIMIT $4 OFFSET $5"
	if sql.Text != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, sql.Text)
	}
}

func TestBuildSelectInList(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "id__in=1,2,3")

	sql, err := BuildSelect(plan)
	if err != nil {
		t.Fatalf("BuildSelect: %v", err)
	}

	want := "SELECT authors.id, authors.name, authors.email, authors.active, " +
		"authors.rating, authors.joined_on FROM authors " +
		"WHERE authors.id IN ($1, $2, $3) LIMIT $4 OFFSET $5"
	if sql.Text != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, sql.Text)
	}
	if len(sql.Args) != 5 {
		t.Errorf("Expected 5 args, got %v", sql.Args)
	}
}

func TestBuildSelectJoin(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "join=books&fields=name,books.title")

	sql, err := BuildSelect(plan)
	if err != nil {
		t.Fatalf("BuildSelect: %v", err)
	}

	want := "SELECT authors.name, books.title FROM authors " +
		"INNER JOIN books ON authors.id = books.author_id LIMIT $1 OFFSET $2"
	if sql.Text != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, sql.Text)
	}
}

func TestBuildSelectManyToMany(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "join=tags&fields=name,tags.name")

	sql, err := BuildSelect(plan)
	if err != nil {
		t.Fatalf("BuildSelect: %v", err)
	}

	want := "SELECT authors.name, tags.name FROM authors " +
		"INNER JOIN author_tags ON authors.id = author_tags.author_id " +
		"INNER JOIN tags ON author_tags.tag_id = tags.id LIMIT $1 OFFSET $2"
	if sql.Text != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, sql.Text)
	}
}

func TestBuildSelectGroupedAggregate(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Book", "groupby=author_id&price%7Ctotal__sum=1")

	sql, err := BuildSelect(plan)
	if err != nil {
		t.Fatalf("BuildSelect: %v", err)
	}

	want := "SELECT books.author_id, SUM(books.price) AS total FROM books " +
		"GROUP BY books.author_id LIMIT $1 OFFSET $2"
	if sql.Text != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, sql.Text)
	}
}

func TestBuildSelectOrderBy(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "order_by=-rating,name")

	sql, err := BuildSelect(plan)
	if err != nil {
		t.Fatalf("BuildSelect: %v", err)
	}

	want := "SELECT authors.id, authors.name, authors.email, authors.active, " +
		"authors.rating, authors.joined_on FROM authors " +
		"ORDER BY authors.rating DESC, authors.name LIMIT $1 OFFSET $2"
	if sql.Text != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, sql.Text)
	}
}

func TestBuildCount(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Author", "rating__gt=4&page=5&limit=10")

	sql, err := BuildCount(plan)
	if err != nil {
		t.Fatalf("BuildCount: %v", err)
	}

	// Counting ignores the pagination window.
	want := "SELECT COUNT(*) FROM authors WHERE authors.rating > $1"
	if sql.Text != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, sql.Text)
	}
	if len(sql.Args) != 1 {
		t.Errorf("Expected 1 arg, got %v", sql.Args)
	}
}

func TestBuildCountGrouped(t *testing.T) {
	reg := testRegistry(t)
	plan := mustCompile(t, reg, "Book", "groupby=author_id&price__sum=1")

	sql, err := BuildCount(plan)
	if err != nil {
		t.Fatalf("BuildCount: %v", err)
	}

	want := "SELECT COUNT(*) FROM (SELECT books.author_id FROM books " +
		"GROUP BY books.author_id) AS grouped"
	if sql.Text != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, sql.Text)
	}
}

func TestConditionEmptyInList(t *testing.T) {
	reg := testRegistry(t)
	m, _ := reg.Get("Author")
	col, _ := m.Column("id")
	ref := ColumnRef{Model: m, Column: col}

	counter := 1
	var args []interface{}

	cond := &Condition{Ref: ref, Operator: OpIn, Value: []interface{}{}}
	sql, err := cond.toSQL(&counter, &args)
	if err != nil {
		t.Fatalf("toSQL: %v", err)
	}
	if sql != "FALSE" {
		t.Errorf("Expected FALSE for empty IN, got %s", sql)
	}

	cond = &Condition{Ref: ref, Operator: OpNotIn, Value: []interface{}{}}
	sql, err = cond.toSQL(&counter, &args)
	if err != nil {
		t.Fatalf("toSQL: %v", err)
	}
	if sql != "TRUE" {
		t.Errorf("Expected TRUE for empty NOT IN, got %s", sql)
	}
}
