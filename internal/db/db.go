// Package db opens and migrates the SQLite-backed relational store.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a connection pool to the relational store.
type DB struct {
	*sql.DB
}

// Open opens the database at the given DSN. A plain filesystem path or a
// "file:" DSN are both accepted; ":memory:" opens an in-process database
// for tests.
func Open(dsn string) (*DB, error) {
	path := strings.TrimPrefix(dsn, "file:")
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("db: create directory: %w", err)
			}
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}

	// Bounds the BroadcastEngine's worker pool against connection
	// exhaustion.
	sqlDB.SetMaxOpenConns(16)

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("db: enable foreign keys: %w", err)
	}

	return &DB{sqlDB}, nil
}

// Migrate applies every schema migration in order. Each statement is
// idempotent (CREATE TABLE/INDEX IF NOT EXISTS), so Migrate is safe to run
// on every startup.
func (d *DB) Migrate() error {
	for _, stmt := range migrations {
		if _, err := d.Exec(stmt); err != nil {
			return fmt.Errorf("db: migration failed: %w", err)
		}
	}
	return nil
}
