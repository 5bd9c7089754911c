package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gomarket_mdm/internal/acquisition"
	"gomarket_mdm/pkg/logger"
)

type SourceRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewSourceRepository(db *sql.DB, log logger.Logger) *SourceRepository {
	return &SourceRepository{db: db, log: logger.OrDiscard(log)}
}

// Create регистрирует источник. Пустой ID заменяется новым UUID.
func (r *SourceRepository) Create(ctx context.Context, src acquisition.RemoteSource) (*acquisition.RemoteSource, error) {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if _, err := uuid.Parse(src.ID); err != nil {
		return nil, fmt.Errorf("source id %q is not a UUID: %w", src.ID, err)
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	src.LastPulledAt = nil
	src.LastPullStatus = ""

	options, err := json.Marshal(orEmpty(src.Options))
	if err != nil {
		return nil, fmt.Errorf("failed to encode source options: %w", err)
	}

	query := `
		INSERT INTO mdm.remote_sources (id, label, kind, path, options)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err = r.db.ExecContext(ctx, query, src.ID, src.Label, string(src.Kind), src.Path, string(options)); err != nil {
		return nil, fmt.Errorf("failed to insert source: %w", err)
	}
	r.log.Log("Registered source %s (%s %s)", src.ID, src.Kind, src.Path)
	return &src, nil
}

// Get возвращает nil, nil, если источника нет.
func (r *SourceRepository) Get(ctx context.Context, id string) (*acquisition.RemoteSource, error) {
	query := `
		SELECT id, label, kind, path, options, last_pulled_at, last_pull_status
		FROM mdm.remote_sources
		WHERE id = $1
	`
	src, err := scanSource(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return src, nil
}

func (r *SourceRepository) List(ctx context.Context) ([]acquisition.RemoteSource, error) {
	query := `
		SELECT id, label, kind, path, options, last_pulled_at, last_pull_status
		FROM mdm.remote_sources
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	sources := make([]acquisition.RemoteSource, 0)
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sources = append(sources, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error occurred during row iteration: %w", err)
	}
	return sources, nil
}

// RecordPull фиксирует итог завершённой выгрузки. Вызывается один раз после Pull, не во время попыток.
func (r *SourceRepository) RecordPull(ctx context.Context, id string, outcome acquisition.PullOutcome, at time.Time) error {
	query := `
		UPDATE mdm.remote_sources
		SET last_pulled_at = $2, last_pull_status = $3
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, at, string(acquisition.StatusFor(outcome)))
	if err != nil {
		return fmt.Errorf("failed to record pull: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record pull: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("source %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*acquisition.RemoteSource, error) {
	var (
		src        acquisition.RemoteSource
		kind       string
		options    []byte
		lastPulled sql.NullTime
		lastStatus sql.NullString
	)
	if err := row.Scan(&src.ID, &src.Label, &kind, &src.Path, &options, &lastPulled, &lastStatus); err != nil {
		return nil, err
	}
	src.Kind = acquisition.Kind(kind)
	if len(options) > 0 {
		if err := json.Unmarshal(options, &src.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options of source %s: %w", src.ID, err)
		}
	}
	if lastPulled.Valid {
		t := lastPulled.Time
		src.LastPulledAt = &t
	}
	if lastStatus.Valid {
		src.LastPullStatus = acquisition.PullStatus(lastStatus.String)
	}
	return &src, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
