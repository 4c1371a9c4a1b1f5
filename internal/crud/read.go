package crud

import (
	"context"
	"fmt"
	"strings"

	"github.com/restforge/restforge/internal/query"
	"github.com/restforge/restforge/internal/schema"
)

// ListResult is one page of records plus the total match count before
// pagination.
type ListResult struct {
	Records []map[string]interface{}
	Total   int
}

// List executes a compiled plan: the total is counted first, then the
// windowed page is fetched.
func (s *Service) List(ctx context.Context, plan *query.Plan) (*ListResult, error) {
	countSQL, err := query.BuildCount(plan)
	if err != nil {
		return nil, err
	}

	var total int
	row := s.db.QueryRowContext(ctx, countSQL.Text, countSQL.Args...)
	if err := row.Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count records: %w", ConvertDBError(err))
	}

	selectSQL, err := query.BuildSelect(plan)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, selectSQL.Text, selectSQL.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", ConvertDBError(err))
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", ConvertDBError(err))
	}

	return &ListResult{Records: records, Total: total}, nil
}

// Get fetches a single record by an exact match on the given column,
// normally the primary key. ErrNotFound is returned when no row matches.
func (s *Service) Get(ctx context.Context, column *schema.Column, value interface{}) (map[string]interface{}, error) {
	return s.getFrom(ctx, s.db, column, value)
}

func (s *Service) getFrom(ctx context.Context, q queryer, column *schema.Column, value interface{}) (map[string]interface{}, error) {
	columns := s.model.ColumnNames()
	stmt := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 LIMIT 1",
		strings.Join(columns, ", "),
		s.model.Table,
		column.Name,
	)

	row := q.QueryRowContext(ctx, stmt, value)
	record, err := scanRowWithColumns(row, columns)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return record, nil
}

// findByPK loads the record addressed by the primary key value.
func (s *Service) findByPK(ctx context.Context, q queryer, pkValue interface{}) (map[string]interface{}, error) {
	pk, err := s.pkColumn()
	if err != nil {
		return nil, err
	}
	return s.getFrom(ctx, q, pk, pkValue)
}

// ListRelated lists the records the named relationship yields for one parent
// record. The plan carries the child-side filter, sort and pagination intent;
// the parent constraint is appended on top of it.
func (s *Service) ListRelated(ctx context.Context, rel *schema.Relationship, parentPK interface{}, plan *query.Plan) (*ListResult, error) {
	target, ok := s.registry.Get(rel.Target)
	if !ok {
		return nil, fmt.Errorf("relationship %s targets unregistered model %s", rel.Name, rel.Target)
	}

	if rel.Cardinality == schema.ManyToMany {
		return s.listThroughJoinTable(ctx, rel, target, parentPK, plan)
	}

	parent, err := s.findByPK(ctx, s.db, parentPK)
	if err != nil {
		return nil, err
	}

	remote, ok := target.Column(rel.RemoteColumn)
	if !ok {
		return nil, fmt.Errorf("relationship %s: column %s missing on %s", rel.Name, rel.RemoteColumn, target.Name)
	}

	child := NewService(target, s.registry, s.db, s.cascadeDefault)
	plan.Conditions = append(plan.Conditions, &query.Condition{
		Ref:      query.ColumnRef{Model: target, Column: remote},
		Operator: query.OpEqual,
		Value:    parent[rel.LocalColumn],
	})
	return child.List(ctx, plan)
}

// listThroughJoinTable handles many-to-many relation listings: the child
// table is joined through the association table and constrained by the
// parent key.
func (s *Service) listThroughJoinTable(ctx context.Context, rel *schema.Relationship, target *schema.Model, parentPK interface{}, plan *query.Plan) (*ListResult, error) {
	targetPK, err := target.PrimaryKey()
	if err != nil {
		return nil, err
	}

	columns := make([]string, 0, len(target.Columns))
	for _, c := range target.StoredColumns() {
		columns = append(columns, target.Table+"."+c.Name)
	}

	base := fmt.Sprintf(
		"FROM %s INNER JOIN %s ON %s.%s = %s.%s WHERE %s.%s = $1",
		target.Table,
		rel.JoinTable,
		target.Table, targetPK.Name,
		rel.JoinTable, rel.JoinRemoteColumn,
		rel.JoinTable, rel.JoinLocalColumn,
	)

	var total int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) "+base, parentPK)
	if err := row.Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count records: %w", ConvertDBError(err))
	}

	stmt := fmt.Sprintf(
		"SELECT %s %s LIMIT $2 OFFSET $3",
		strings.Join(columns, ", "),
		base,
	)
	rows, err := s.db.QueryContext(ctx, stmt, parentPK, plan.Limit, plan.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", ConvertDBError(err))
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", ConvertDBError(err))
	}
	return &ListResult{Records: records, Total: total}, nil
}
