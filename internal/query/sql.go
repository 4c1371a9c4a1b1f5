package query

import (
	"fmt"
	"strings"

	"github.com/restforge/restforge/internal/schema"
)

// SQL is a rendered statement with its positional arguments.
type SQL struct {
	Text string
	Args []interface{}
}

// BuildSelect renders the plan as a parameterized SELECT statement.
func BuildSelect(p *Plan) (SQL, error) {
	var sb strings.Builder
	args := make([]interface{}, 0, len(p.Conditions)+len(p.OrGroup)+2)
	counter := 1

	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selectList(p), ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(p.Model.Table)

	joins, err := joinClauses(p)
	if err != nil {
		return SQL{}, err
	}
	for _, j := range joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}

	where, err := whereClause(p, &counter, &args)
	if err != nil {
		return SQL{}, err
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	if p.Grouped() {
		cols := make([]string, len(p.GroupBy))
		for i, ref := range p.GroupBy {
			cols[i] = ref.SQL()
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(cols, ", "))
	}

	if len(p.Sort) > 0 {
		keys := make([]string, len(p.Sort))
		for i, s := range p.Sort {
			keys[i] = s.Ref.SQL()
			if s.Descending {
				keys[i] += " DESC"
			}
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(keys, ", "))
	}

	sb.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", counter, counter+1))
	args = append(args, p.Limit, p.Offset())

	return SQL{Text: sb.String(), Args: args}, nil
}

// BuildCount renders the statement that counts all rows the plan matches
// before pagination. Grouped plans count result groups, so the grouped query
// is wrapped in a subselect.
func BuildCount(p *Plan) (SQL, error) {
	var sb strings.Builder
	args := make([]interface{}, 0, len(p.Conditions)+len(p.OrGroup))
	counter := 1

	joins, err := joinClauses(p)
	if err != nil {
		return SQL{}, err
	}

	var body strings.Builder
	body.WriteString("FROM ")
	body.WriteString(p.Model.Table)
	for _, j := range joins {
		body.WriteString(" ")
		body.WriteString(j)
	}

	where, err := whereClause(p, &counter, &args)
	if err != nil {
		return SQL{}, err
	}
	if where != "" {
		body.WriteString(" WHERE ")
		body.WriteString(where)
	}

	if p.Grouped() {
		cols := make([]string, len(p.GroupBy))
		for i, ref := range p.GroupBy {
			cols[i] = ref.SQL()
		}
		sb.WriteString("SELECT COUNT(*) FROM (SELECT ")
		sb.WriteString(strings.Join(cols, ", "))
		sb.WriteString(" ")
		sb.WriteString(body.String())
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(cols, ", "))
		sb.WriteString(") AS grouped")
	} else {
		sb.WriteString("SELECT COUNT(*) ")
		sb.WriteString(body.String())
	}

	return SQL{Text: sb.String(), Args: args}, nil
}

// selectList builds the select expressions: explicit fields, then group-by
// columns when no fields were requested, then aggregates. A plan with none of
// those selects every stored column of the base model.
func selectList(p *Plan) []string {
	exprs := make([]string, 0, len(p.Fields)+len(p.Aggregates))

	switch {
	case len(p.Fields) > 0:
		for _, f := range p.Fields {
			exprs = append(exprs, f.SQL())
		}
	case p.Grouped():
		for _, ref := range p.GroupBy {
			exprs = append(exprs, ref.SQL())
		}
	}

	for _, a := range p.Aggregates {
		exprs = append(exprs, fmt.Sprintf("%s(%s) AS %s", a.Func, a.Ref.SQL(), a.OutputName()))
	}

	if len(exprs) == 0 {
		for _, c := range p.Model.StoredColumns() {
			exprs = append(exprs, p.Model.Table+"."+c.Name)
		}
	}
	return exprs
}

// joinClauses renders one INNER JOIN per plan join; many-to-many
// relationships join through their association table.
func joinClauses(p *Plan) ([]string, error) {
	clauses := make([]string, 0, len(p.Joins))
	for _, j := range p.Joins {
		rel := j.Rel

		if rel.Cardinality == schema.ManyToMany {
			ownerPK, err := p.Model.PrimaryKey()
			if err != nil {
				return nil, fmt.Errorf("join %s: %w", rel.Name, err)
			}
			targetPK, err := j.Target.PrimaryKey()
			if err != nil {
				return nil, fmt.Errorf("join %s: %w", rel.Name, err)
			}
			clauses = append(clauses,
				fmt.Sprintf("INNER JOIN %s ON %s.%s = %s.%s",
					rel.JoinTable, p.Model.Table, ownerPK.Name, rel.JoinTable, rel.JoinLocalColumn),
				fmt.Sprintf("INNER JOIN %s ON %s.%s = %s.%s",
					j.Target.Table, rel.JoinTable, rel.JoinRemoteColumn, j.Target.Table, targetPK.Name))
			continue
		}

		clauses = append(clauses,
			fmt.Sprintf("INNER JOIN %s ON %s.%s = %s.%s",
				j.Target.Table, p.Model.Table, rel.LocalColumn, j.Target.Table, rel.RemoteColumn))
	}
	return clauses, nil
}

// whereClause renders all AND conditions plus the parenthesized OR group.
func whereClause(p *Plan, counter *int, args *[]interface{}) (string, error) {
	terms := make([]string, 0, len(p.Conditions)+1)

	for _, cond := range p.Conditions {
		sql, err := cond.toSQL(counter, args)
		if err != nil {
			return "", err
		}
		terms = append(terms, sql)
	}

	if len(p.OrGroup) > 0 {
		ors := make([]string, 0, len(p.OrGroup))
		for _, cond := range p.OrGroup {
			sql, err := cond.toSQL(counter, args)
			if err != nil {
				return "", err
			}
			ors = append(ors, sql)
		}
		terms = append(terms, "("+strings.Join(ors, " OR ")+")")
	}

	return strings.Join(terms, " AND "), nil
}
