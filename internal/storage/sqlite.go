package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"durood/internal/core"
	"durood/internal/log"

	_ "modernc.org/sqlite"
)

const (
	loadStateSQL = `SELECT payload FROM aggregate_state WHERE id = 1`
	saveStateSQL = `INSERT INTO aggregate_state (id, version, payload, updated_at)
VALUES (1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    version = excluded.version,
    payload = excluded.payload,
    updated_at = excluded.updated_at`
	updatedAtSQL = `SELECT updated_at FROM aggregate_state WHERE id = 1`
)

// SQLiteRepository keeps the state blob in a single-row table.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer at a time; the blob is rewritten whole on every save
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements tally.Persister
func (r *SQLiteRepository) Load(ctx context.Context) (*core.State, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, loadStateSQL).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return DecodeState([]byte(payload))
}

// Save implements tally.Persister
func (r *SQLiteRepository) Save(ctx context.Context, s core.State) error {
	b, err := EncodeState(s)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, saveStateSQL, core.SchemaVersion, string(b), time.Now().UTC()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	log.ForComponent(log.ComponentStorage).DebugContext(ctx, "State saved to SQLite",
		"total_count", s.TotalCount,
		"entries", len(s.History),
		"closed_days", len(s.DailyTotals))
	return nil
}

// LastSaved returns when the blob was last written, zero if never.
func (r *SQLiteRepository) LastSaved(ctx context.Context) (time.Time, error) {
	var ts time.Time
	err := r.db.QueryRowContext(ctx, updatedAtSQL).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read updated_at: %w", err)
	}
	return ts, nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
