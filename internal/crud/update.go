package crud

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Update applies a partial payload to the record addressed by its primary
// key and returns the stored row. Unknown payload fields fail the request
// before any statement runs.
func (s *Service) Update(ctx context.Context, pkValue interface{}, data map[string]interface{}) (map[string]interface{}, error) {
	if err := s.validatePayload(data); err != nil {
		return nil, err
	}

	pk, err := s.pkColumn()
	if err != nil {
		return nil, err
	}

	// The key column identifies the record via the URL; a payload copy of it
	// is ignored rather than rewritten.
	var result map[string]interface{}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var assignments []string
		var values []interface{}
		counter := 1

		for _, col := range s.model.StoredColumns() {
			if col.Name == pk.Name {
				continue
			}
			value, ok := data[col.Name]
			if !ok {
				continue
			}
			assignments = append(assignments, fmt.Sprintf("%s = $%d", col.Name, counter))
			values = append(values, value)
			counter++
		}

		if len(assignments) == 0 {
			// Nothing to write; return the current row so the response shape
			// matches a real update.
			record, err := s.findByPK(ctx, tx, pkValue)
			if err != nil {
				return err
			}
			result = record
			return nil
		}

		returnColumns := s.model.ColumnNames()
		stmt := fmt.Sprintf(
			"UPDATE %s SET %s WHERE %s = $%d RETURNING %s",
			s.model.Table,
			strings.Join(assignments, ", "),
			pk.Name,
			counter,
			strings.Join(returnColumns, ", "),
		)
		values = append(values, pkValue)

		row := tx.QueryRowContext(ctx, stmt, values...)
		record, err := scanRowWithColumns(row, returnColumns)
		if err != nil {
			return fmt.Errorf("failed to update record: %w", ConvertDBError(err))
		}
		result = record
		return nil
	})
	return result, err
}
