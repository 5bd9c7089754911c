package migration

import (
	"database/sql"
	"fmt"
)

type MigrationInterface interface {
	UpMigration(*sql.DB) error
}

// Bootstrap создаёт служебную схему migrations, в которой отмечаются применённые миграции.
func Bootstrap(db *sql.DB) error {
	query := `
		CREATE SCHEMA IF NOT EXISTS migrations;
		CREATE TABLE IF NOT EXISTS migrations.migrations (
			name VARCHAR(255) PRIMARY KEY,
			time TIMESTAMP WITH TIME ZONE NOT NULL
		);
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations registry: %w", err)
	}
	return nil
}

// Apply выполняет миграции по порядку и останавливается на первой ошибке.
func Apply(db *sql.DB, migrations ...MigrationInterface) error {
	if err := Bootstrap(db); err != nil {
		return err
	}
	for _, m := range migrations {
		if err := m.UpMigration(db); err != nil {
			return err
		}
	}
	return nil
}
