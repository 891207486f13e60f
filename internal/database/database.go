// internal/database/database.go
//
// Opens the SQLite database used by the sqlx store.
//
// - Creates the parent directory for file paths (e.g. ./data/globetrotter.db).
// - Busy timeout, WAL journaling and foreign keys on every connection.
// - _txlock=immediate: every transaction takes the write lock at BEGIN, which
//   serializes read-modify-write sequences such as answer submission.
// - ":memory:" is pinned to one connection so the whole pool sees one database.

package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const dsnParams = "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate"

// Open opens (and creates if missing) the database at path.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	inMemory := path == ":memory:"
	if !inMemory {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	db, err := sqlx.Open("sqlite3", path+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if inMemory {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}
