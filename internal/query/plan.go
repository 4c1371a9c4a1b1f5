package query

import "github.com/restforge/restforge/internal/schema"

// Join is a resolved request to join a related model into the plan.
type Join struct {
	Rel    *schema.Relationship
	Target *schema.Model
}

// Aggregate is one aggregate select expression.
type Aggregate struct {
	Func  string // SQL function name: SUM, COUNT, AVG, MIN, MAX
	Ref   ColumnRef
	Label string
}

// OutputName is the column name the aggregate appears under in result rows.
func (a Aggregate) OutputName() string {
	if a.Label != "" {
		return a.Label
	}
	return a.Ref.Column.Name + "_" + lowerFunc(a.Func)
}

func lowerFunc(f string) string {
	switch f {
	case "SUM":
		return "sum"
	case "COUNT":
		return "count"
	case "AVG":
		return "avg"
	case "MIN":
		return "min"
	case "MAX":
		return "max"
	}
	return f
}

// SortKey is one order-by entry.
type SortKey struct {
	Ref        ColumnRef
	Descending bool
}

// Plan is the validated representation of one request's filter, join,
// aggregate, sort and pagination intent. Plans are request-scoped: built
// fresh per request, owned by the handling call stack, never shared.
type Plan struct {
	Model      *schema.Model
	Joins      []Join
	Fields     []ColumnRef
	Conditions []*Condition
	OrGroup    []*Condition
	GroupBy    []ColumnRef
	Aggregates []Aggregate
	Sort       []SortKey
	Page       int
	Limit      int
}

// JoinedModel returns the joined model registered under the given name.
func (p *Plan) JoinedModel(name string) (*schema.Model, bool) {
	for _, j := range p.Joins {
		if j.Target.Name == name {
			return j.Target, true
		}
	}
	return nil, false
}

// Grouped reports whether the plan carries a GROUP BY clause.
func (p *Plan) Grouped() bool {
	return len(p.GroupBy) > 0
}

// Offset returns the row offset of the pagination window.
func (p *Plan) Offset() int {
	return p.Page * p.Limit
}

// OutputColumns returns the result column names in select order: explicit
// fields first, aggregates appended after. Empty when the plan selects the
// whole base model.
func (p *Plan) OutputColumns() []string {
	if len(p.Fields) == 0 && len(p.Aggregates) == 0 {
		return nil
	}
	names := make([]string, 0, len(p.Fields)+len(p.Aggregates))
	for _, f := range p.Fields {
		names = append(names, f.Column.Name)
	}
	for _, a := range p.Aggregates {
		names = append(names, a.OutputName())
	}
	return names
}
