package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gomarket_mdm/internal/acquisition"
	"gomarket_mdm/pkg/logger"
)

// PullLog: запись журнала выгрузок.
type PullLog struct {
	ID           string          `json:"id"`
	SourceID     string          `json:"source_id"`
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	Attempts     int             `json:"attempts"`
	ErrorCode    string          `json:"error_code,omitempty"`
	TotalRecords int             `json:"total_records"`
	SampleData   json.RawMessage `json:"sample_data,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type PullLogRepository struct {
	db         *sql.DB
	sampleSize int
	log        logger.Logger
}

const defaultSampleSize = 5

func NewPullLogRepository(db *sql.DB, log logger.Logger) *PullLogRepository {
	return &PullLogRepository{db: db, sampleSize: defaultSampleSize, log: logger.OrDiscard(log)}
}

// Log записывает итог выгрузки с несколькими первыми записями и возвращает id записи.
func (r *PullLogRepository) Log(ctx context.Context, sourceID string, outcome acquisition.PullOutcome) (string, error) {
	id := uuid.NewString()

	var sample any
	if outcome.Success {
		records := outcome.Records
		if len(records) > r.sampleSize {
			records = records[:r.sampleSize]
		}
		raw, err := json.Marshal(records)
		if err != nil {
			return "", fmt.Errorf("failed to encode sample data: %w", err)
		}
		sample = string(raw)
	}

	query := `
		INSERT INTO mdm.pull_logs (id, source_id, success, message, attempts, error_code, total_records, sample_data)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		id, sourceID, outcome.Success, outcome.Message, outcome.Attempts,
		string(outcome.ErrorCode), outcome.TotalRecords, sample,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert pull log: %w", err)
	}
	r.log.Log("Logged pull %s for source %s (success=%t)", id, sourceID, outcome.Success)
	return id, nil
}

// Recent возвращает последние записи журнала источника, новые первыми.
func (r *PullLogRepository) Recent(ctx context.Context, sourceID string, limit int) ([]PullLog, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT id, source_id, success, COALESCE(message, ''), attempts, COALESCE(error_code, ''),
		       total_records, sample_data, created_at
		FROM mdm.pull_logs
		WHERE source_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	logs := make([]PullLog, 0)
	for rows.Next() {
		var (
			l      PullLog
			sample []byte
		)
		if err := rows.Scan(&l.ID, &l.SourceID, &l.Success, &l.Message, &l.Attempts, &l.ErrorCode,
			&l.TotalRecords, &sample, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(sample) > 0 {
			l.SampleData = json.RawMessage(sample)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error occurred during row iteration: %w", err)
	}
	return logs, nil
}
