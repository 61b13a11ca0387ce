package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store interface for PostgreSQL
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *PostgresStore) BeginTx(ctx context.Context) (Store, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: s.db, tx: tx}, nil
}

// Commit commits the transaction
func (s *PostgresStore) Commit() error {
	if s.tx == nil {
		return nil
	}
	return s.tx.Commit()
}

// Rollback rolls back the transaction
func (s *PostgresStore) Rollback() error {
	if s.tx == nil {
		return nil
	}
	return s.tx.Rollback()
}

// getDB returns tx if in transaction, otherwise db
func (s *PostgresStore) getDB() interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
} {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Migrate creates the schema when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS devices (
			id UUID PRIMARY KEY,
			chip_id TEXT NOT NULL UNIQUE,
			mac_address TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			last_seen TIMESTAMPTZ NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pin_states (
			id UUID PRIMARY KEY,
			device_id UUID NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			pin_number INT NOT NULL,
			mode TEXT NOT NULL DEFAULT 'INPUT',
			value INT NOT NULL DEFAULT 0,
			available BOOLEAN NOT NULL DEFAULT TRUE,
			timestamp TIMESTAMPTZ NOT NULL,
			UNIQUE (device_id, pin_number)
		)`,
		`CREATE TABLE IF NOT EXISTS telemetry_samples (
			id UUID PRIMARY KEY,
			seq BIGSERIAL,
			device_id UUID NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			ip TEXT NOT NULL DEFAULT '',
			flash_size BIGINT NOT NULL DEFAULT 0,
			free_heap BIGINT NOT NULL DEFAULT 0,
			cpu_freq INT NOT NULL DEFAULT 0,
			sdk_version TEXT NOT NULL DEFAULT '',
			core_version TEXT NOT NULL DEFAULT '',
			wifi_rssi INT NOT NULL DEFAULT 0,
			uptime BIGINT NOT NULL DEFAULT 0,
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_telemetry_device_time
			ON telemetry_samples (device_id, timestamp DESC, seq DESC)`,
		`CREATE TABLE IF NOT EXISTS firmware_images (
			id UUID PRIMARY KEY,
			device_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			version TEXT NOT NULL,
			filepath TEXT NOT NULL,
			size BIGINT NOT NULL,
			uploaded_at TIMESTAMPTZ NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_firmware_device
			ON firmware_images (device_id, uploaded_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}
