package mdm

import (
	"database/sql"
	"fmt"

	"gomarket_mdm/pkg/dbconnect/migration"
	"gomarket_mdm/pkg/logger"
)

const (
	SchemaMigration        = "mdm.schema"
	RemoteSourcesMigration = "mdm.remote_sources"
	PullLogsMigration      = "mdm.pull_logs"
	StagedRecordsMigration = "mdm.staged_records"
	FieldMappingsMigration = "mdm.field_mappings"
)

type step struct {
	name  string
	query string
}

// Migration применяет схему mdm шаг за шагом; каждый шаг отмечается в migrations.migrations.
type Migration struct {
	log   logger.Logger
	steps []step
}

func NewMigration(log logger.Logger) *Migration {
	return &Migration{
		log: logger.OrDiscard(log),
		steps: []step{
			{SchemaMigration, `CREATE SCHEMA IF NOT EXISTS mdm;`},
			{RemoteSourcesMigration, `
				CREATE TABLE IF NOT EXISTS mdm.remote_sources (
					id UUID PRIMARY KEY,
					label VARCHAR(255) NOT NULL,
					kind VARCHAR(32) NOT NULL,
					path TEXT NOT NULL,
					options JSONB NOT NULL DEFAULT '{}'::jsonb,
					last_pulled_at TIMESTAMP WITH TIME ZONE,
					last_pull_status VARCHAR(16),
					created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL,
					CONSTRAINT remote_sources_status_check
						CHECK (last_pull_status IS NULL OR last_pull_status IN ('success', 'error'))
				);
			`},
			{PullLogsMigration, `
				CREATE TABLE IF NOT EXISTS mdm.pull_logs (
					id UUID PRIMARY KEY,
					source_id UUID NOT NULL REFERENCES mdm.remote_sources(id) ON DELETE CASCADE,
					success BOOLEAN NOT NULL,
					message TEXT,
					attempts INT NOT NULL,
					error_code VARCHAR(64),
					total_records INT NOT NULL DEFAULT 0,
					sample_data JSONB,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL
				);
				CREATE INDEX IF NOT EXISTS pull_logs_source_created_idx
					ON mdm.pull_logs(source_id, created_at DESC);
			`},
			{StagedRecordsMigration, `
				CREATE TABLE IF NOT EXISTS mdm.staged_records (
					source_id UUID NOT NULL,
					pull_id UUID NOT NULL,
					row_number INT NOT NULL,
					payload JSONB NOT NULL,
					PRIMARY KEY (pull_id, row_number)
				);
			`},
			{FieldMappingsMigration, `
				CREATE TABLE IF NOT EXISTS mdm.field_mappings (
					source_id UUID NOT NULL REFERENCES mdm.remote_sources(id) ON DELETE CASCADE,
					source_field TEXT NOT NULL CHECK (source_field <> ''),
					target_field VARCHAR(255) NOT NULL CHECK (target_field <> ''),
					created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL,
					CONSTRAINT unique_source_target UNIQUE (source_id, target_field)
				);
			`},
		},
	}
}

func (m *Migration) UpMigration(db *sql.DB) error {
	for _, s := range m.steps {
		if err := m.apply(db, s); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration) apply(db *sql.DB, s step) error {
	var migrationExists bool
	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", s.name).Scan(&migrationExists)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}
	if migrationExists {
		m.log.Log("Migration '%s' already completed. Skipping.", s.name)
		return nil
	}

	if _, err = db.Exec(s.query); err != nil {
		return fmt.Errorf("failed to execute migration '%s': %w", s.name, err)
	}
	_, err = db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", s.name)
	if err != nil {
		return fmt.Errorf("failed to mark migration '%s' as complete: %w", s.name, err)
	}

	m.log.Log("Migration '%s' completed successfully.", s.name)
	return nil
}

var _ migration.MigrationInterface = (*Migration)(nil)
