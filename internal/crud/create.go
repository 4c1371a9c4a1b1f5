package crud

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/restforge/restforge/internal/schema"
)

// Create inserts a new record and returns the stored row, including every
// store-assigned value. The insert runs in its own transaction.
func (s *Service) Create(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
	if err := s.validatePayload(data); err != nil {
		return nil, err
	}

	var result map[string]interface{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		record, err := s.insertRecord(ctx, tx, data)
		if err != nil {
			return err
		}
		result = record
		return nil
	})
	return result, err
}

func (s *Service) insertRecord(ctx context.Context, tx *sql.Tx, data map[string]interface{}) (map[string]interface{}, error) {
	record := make(map[string]interface{}, len(data))
	for k, v := range data {
		record[k] = v
	}
	s.populateGeneratedKeys(record)

	var fields []string
	var placeholders []string
	var values []interface{}
	counter := 1

	// Declaration order keeps generated statements stable.
	for _, col := range s.model.StoredColumns() {
		value, ok := record[col.Name]
		if !ok {
			continue
		}
		fields = append(fields, col.Name)
		placeholders = append(placeholders, fmt.Sprintf("$%d", counter))
		values = append(values, value)
		counter++
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to insert")
	}

	returnColumns := s.model.ColumnNames()
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		s.model.Table,
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(returnColumns, ", "),
	)

	row := tx.QueryRowContext(ctx, stmt, values...)
	inserted, err := scanRowWithColumns(row, returnColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", ConvertDBError(err))
	}
	return inserted, nil
}

// populateGeneratedKeys fills auto-assigned UUID keys the client omitted.
// Serial integer keys stay absent so the store assigns them.
func (s *Service) populateGeneratedKeys(record map[string]interface{}) {
	for _, col := range s.model.Columns {
		if !col.AutoIncrement || col.Type != schema.TypeUUID {
			continue
		}
		if _, exists := record[col.Name]; !exists {
			record[col.Name] = uuid.New()
		}
	}
}
