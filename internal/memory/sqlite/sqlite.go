// Package sqlite implements the persistent message log and summary store on
// SQLite via modernc.org/sqlite (pure Go, no CGO), with WAL mode and an
// idempotent schema migration.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/braid-ai/braid/internal/memory"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// defaultBusyTimeout is the SQLite busy timeout in milliseconds.
const defaultBusyTimeout = 5000

// Store implements memory.MessageStore and memory.SummaryStore backed by a
// single SQLite database.
type Store struct {
	db *sql.DB
}

// Compile-time interface guards.
var (
	_ memory.MessageStore = (*Store)(nil)
	_ memory.SummaryStore = (*Store)(nil)
)

// Open opens (creating if needed) a SQLite database at the given path and
// returns a Store backed by it. The database uses WAL mode, a 5 s busy
// timeout, and a single connection (SQLite serialises writes). The schema
// is migrated automatically.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Checkpoint forces a WAL checkpoint. Called from the maintenance sweep in
// serve mode to keep the WAL file bounded on long-running deployments.
func (s *Store) Checkpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("sqlite: wal checkpoint: %w", err)
	}
	return nil
}
