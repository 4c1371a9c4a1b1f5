// Package crud executes the store operations behind every generated route:
// windowed reads driven by compiled query plans, transactional writes with
// RETURNING, and delete with optional cascading over declared relationships.
package crud

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/restforge/restforge/internal/schema"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Service provides store operations for one registered model.
type Service struct {
	model    *schema.Model
	registry *schema.Registry
	db       *sql.DB

	// cascadeDefault is the process-wide cascade-delete policy; the model's
	// configuration may override it either way.
	cascadeDefault bool
}

// NewService creates a Service for the given model.
func NewService(model *schema.Model, registry *schema.Registry, db *sql.DB, cascadeDefault bool) *Service {
	return &Service{
		model:          model,
		registry:       registry,
		db:             db,
		cascadeDefault: cascadeDefault,
	}
}

// Model returns the model this service operates on.
func (s *Service) Model() *schema.Model {
	return s.model
}

// CascadeAllowed reports whether cascading deletes are permitted for this
// model, honoring the per-model override.
func (s *Service) CascadeAllowed() bool {
	if s.model.Config != nil && s.model.Config.CascadeDelete != nil {
		return *s.model.Config.CascadeDelete
	}
	return s.cascadeDefault
}

// withTx runs fn inside a transaction, committing on success.
func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// validatePayload rejects payload fields the model does not declare as
// stored columns. Computed properties and relationship names are not
// writable.
func (s *Service) validatePayload(data map[string]interface{}) error {
	for field := range data {
		col, ok := s.model.Column(field)
		if !ok || col.Computed {
			return fmt.Errorf("%w: %s has no field %s", ErrUnknownField, s.model.Name, field)
		}
	}
	return nil
}

// pkColumn returns the single primary key column or an error for composite
// keys, which have no URL accessor.
func (s *Service) pkColumn() (*schema.Column, error) {
	return s.model.PrimaryKey()
}
