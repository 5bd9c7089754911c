package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"gomarket_mdm/pkg/logger"
)

// PostgresStager складывает образец выгрузки в mdm.staged_records через COPY.
type PostgresStager struct {
	DB        *sql.DB
	Schema    string
	TableName string
	log       logger.Logger
}

func NewPostgresStager(db *sql.DB, log logger.Logger) *PostgresStager {
	return &PostgresStager{
		DB:        db,
		Schema:    "mdm",
		TableName: "staged_records",
		log:       logger.OrDiscard(log),
	}
}

func (u *PostgresStager) SetNewSchema(schema string) *PostgresStager {
	if schema == "" {
		return u
	}
	u.Schema = schema
	return u
}

func (u *PostgresStager) SetNewTableName(tableName string) *PostgresStager {
	if tableName == "" {
		return u
	}
	u.TableName = tableName
	return u
}

// Stage записывает записи таблицы одной транзакцией и возвращает число строк.
func (u *PostgresStager) Stage(ctx context.Context, sourceID, pullID string, table *Table) (int, error) {
	if table == nil || len(table.Records) == 0 {
		return 0, nil
	}

	tx, err := u.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema(u.Schema, u.TableName, "source_id", "pull_id", "row_number", "payload"))
	if err != nil {
		return 0, fmt.Errorf("prepare copyin error: %w", err)
	}

	for i, record := range table.Records {
		payload, err := json.Marshal(record)
		if err != nil {
			stmt.Close()
			return 0, fmt.Errorf("marshal row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, sourceID, pullID, i+1, string(payload)); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("exec copyin error at row %d: %w", i, err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		return 0, fmt.Errorf("final exec copyin error: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return 0, fmt.Errorf("close stmt error: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit error: %w", err)
	}

	u.log.Log("Staged %d rows into %s.%s (pull %s)", len(table.Records), u.Schema, u.TableName, pullID)
	return len(table.Records), nil
}
