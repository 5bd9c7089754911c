package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gomarket_mdm/internal/reconcile"
	"gomarket_mdm/pkg/logger"
)

var (
	ErrIncompleteMapping = errors.New("mapping has an empty source or target field")
	ErrDuplicateTarget   = errors.New("target field is mapped more than once")
)

type MappingRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewMappingRepository(db *sql.DB, log logger.Logger) *MappingRepository {
	return &MappingRepository{db: db, log: logger.OrDiscard(log)}
}

// Replace заменяет набор сопоставлений источника одной транзакцией.
// Неполные сопоставления и повторы целевого поля отклоняются до обращения к базе.
func (r *MappingRepository) Replace(ctx context.Context, sourceID string, mappings []reconcile.FieldMapping) error {
	if err := checkMappings(mappings); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM mdm.field_mappings WHERE source_id = $1`, sourceID); err != nil {
		return fmt.Errorf("failed to clear mappings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mdm.field_mappings (source_id, source_field, target_field)
		VALUES ($1, $2, $3)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range mappings {
		if _, err = stmt.ExecContext(ctx, sourceID, m.SourceField, m.TargetField); err != nil {
			return fmt.Errorf("failed to insert mapping %s -> %s: %w", m.SourceField, m.TargetField, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit error: %w", err)
	}
	r.log.Log("Saved %d mappings for source %s", len(mappings), sourceID)
	return nil
}

func (r *MappingRepository) List(ctx context.Context, sourceID string) ([]reconcile.FieldMapping, error) {
	query := `
		SELECT source_field, target_field
		FROM mdm.field_mappings
		WHERE source_id = $1
		ORDER BY created_at, target_field
	`
	rows, err := r.db.QueryContext(ctx, query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	mappings := make([]reconcile.FieldMapping, 0)
	for rows.Next() {
		var m reconcile.FieldMapping
		if err := rows.Scan(&m.SourceField, &m.TargetField); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error occurred during row iteration: %w", err)
	}
	return mappings, nil
}

func checkMappings(mappings []reconcile.FieldMapping) error {
	seen := make(map[string]struct{}, len(mappings))
	for i, m := range mappings {
		if !m.Complete() {
			return fmt.Errorf("mapping %d (%q -> %q): %w", i, m.SourceField, m.TargetField, ErrIncompleteMapping)
		}
		if _, dup := seen[m.TargetField]; dup {
			return fmt.Errorf("%q: %w", m.TargetField, ErrDuplicateTarget)
		}
		seen[m.TargetField] = struct{}{}
	}
	return nil
}
