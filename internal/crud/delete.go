package crud

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/restforge/restforge/internal/schema"
)

// Delete removes the record addressed by its primary key. With cascade set,
// dependent records reachable through declared to-many relationships are
// removed first, depth-first, inside the same transaction. Requesting a
// cascade on a model whose configuration forbids it is a caller bug, not a
// client error.
func (s *Service) Delete(ctx context.Context, pkValue interface{}, cascade bool) error {
	if cascade && !s.CascadeAllowed() {
		return fmt.Errorf("%w: %s", ErrCascadeDisabled, s.model.Name)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		visited := make(map[string]bool)
		return s.deleteInTx(ctx, tx, pkValue, cascade, visited)
	})
}

func (s *Service) deleteInTx(ctx context.Context, tx *sql.Tx, pkValue interface{}, cascade bool, visited map[string]bool) error {
	key := fmt.Sprintf("%s:%v", s.model.Name, pkValue)
	if visited[key] {
		return nil
	}
	visited[key] = true

	record, err := s.findByPK(ctx, tx, pkValue)
	if err != nil {
		return err
	}

	if cascade {
		if err := s.deleteDependents(ctx, tx, record, pkValue, visited); err != nil {
			return err
		}
	}

	pk, err := s.pkColumn()
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", s.model.Table, pk.Name)
	result, err := tx.ExecContext(ctx, stmt, pkValue)
	if err != nil {
		converted := ConvertDBError(err)
		if IsForeignKeyViolation(converted) && !cascade {
			if blocking := s.toManyRelationships(); len(blocking) > 0 {
				return &DeleteConflictError{Model: s.model.Name, Relationships: blocking}
			}
		}
		return fmt.Errorf("failed to delete record: %w", converted)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// deleteDependents removes every record reachable through the model's
// to-many relationships. Association table rows are unlinked, not followed:
// the records on the far side of a many-to-many survive.
func (s *Service) deleteDependents(ctx context.Context, tx *sql.Tx, record map[string]interface{}, pkValue interface{}, visited map[string]bool) error {
	names := make([]string, 0, len(s.model.Relationships))
	for name := range s.model.Relationships {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rel := s.model.Relationships[name]
		if !rel.Cardinality.ToMany() && rel.Cardinality != schema.OneToOne {
			continue
		}

		if rel.Cardinality == schema.ManyToMany {
			stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", rel.JoinTable, rel.JoinLocalColumn)
			if _, err := tx.ExecContext(ctx, stmt, pkValue); err != nil {
				return fmt.Errorf("failed to unlink %s: %w", rel.Name, ConvertDBError(err))
			}
			continue
		}

		target, ok := s.registry.Get(rel.Target)
		if !ok {
			return fmt.Errorf("relationship %s targets unregistered model %s", rel.Name, rel.Target)
		}
		targetPK, err := target.PrimaryKey()
		if err != nil {
			return fmt.Errorf("relationship %s: %w", rel.Name, err)
		}

		stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", targetPK.Name, target.Table, rel.RemoteColumn)
		rows, err := tx.QueryContext(ctx, stmt, record[rel.LocalColumn])
		if err != nil {
			return fmt.Errorf("failed to load %s dependents: %w", rel.Name, ConvertDBError(err))
		}

		var childPKs []interface{}
		for rows.Next() {
			var id interface{}
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			childPKs = append(childPKs, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		child := NewService(target, s.registry, s.db, s.cascadeDefault)
		for _, childPK := range childPKs {
			if err := child.deleteInTx(ctx, tx, childPK, true, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

// toManyRelationships returns the names of relationships that can hold
// dependent records, sorted for stable error messages.
func (s *Service) toManyRelationships() []string {
	var names []string
	for name, rel := range s.model.Relationships {
		if rel.Cardinality.ToMany() || rel.Cardinality == schema.OneToOne {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
