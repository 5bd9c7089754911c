package postgres

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"gomarket_mdm/config"
	"gomarket_mdm/pkg/logger"
)

const (
	defaultMaxRetries = 10
	dbMaxOpenConns    = 20
	defaultRetryDelay = 5 * time.Second
)

type PostgresDatabase struct {
	config.DbConfig
	db  *sql.DB
	mu  sync.Mutex // Для защиты доступа к db
	log logger.Logger

	maxRetries int
	retryDelay time.Duration
}

func NewPgConnector(dbConfig config.DbConfig, log logger.Logger) *PostgresDatabase {
	return &PostgresDatabase{
		DbConfig:   dbConfig,
		log:        logger.OrDiscard(log),
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
}

// WithRetries меняет число попыток подключения и паузу между ними.
func (pg *PostgresDatabase) WithRetries(n int, delay time.Duration) *PostgresDatabase {
	if n > 0 {
		pg.maxRetries = n
	}
	pg.retryDelay = delay
	return pg
}

func (pg *PostgresDatabase) Connect() (*sql.DB, error) {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	if pg.db != nil {
		return pg.db, nil
	}

	var err error
	conStr := pg.GetConnectionString()

	for i := 0; i < pg.maxRetries; i++ {
		var db *sql.DB
		db, err = sql.Open("postgres", conStr)
		if err != nil {
			pg.log.Log("Failed to connect to Postgres (attempt %d/%d): %v", i+1, pg.maxRetries, err)
			time.Sleep(pg.retryDelay)
			continue
		}

		db.SetMaxOpenConns(dbMaxOpenConns)

		if err = db.Ping(); err != nil {
			pg.log.Log("Failed to ping Postgres db (attempt %d/%d): %v", i+1, pg.maxRetries, err)
			db.Close()
			time.Sleep(pg.retryDelay)
			continue
		}

		pg.log.Log("Successfully connected to Postgres")
		pg.db = db
		return pg.db, nil
	}
	return nil, fmt.Errorf("postgres unavailable after %d attempts: %w", pg.maxRetries, err)
}

func (pg *PostgresDatabase) Ping() error {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	if pg.db == nil {
		return fmt.Errorf("database connection is not established")
	}

	if err := pg.db.Ping(); err != nil {
		pg.db.Close()
		pg.db = nil
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (pg *PostgresDatabase) Close() error {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	if pg.db == nil {
		return nil
	}
	err := pg.db.Close()
	pg.db = nil
	return err
}
