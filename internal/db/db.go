// Package db provides the database connection and schema for sunrised.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	dsn := dbPath + "?_journal_mode=WAL"
	if dbPath == ":memory:" || strings.HasPrefix(dbPath, "file::memory:") {
		dsn = dbPath
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Fade ledger - append-only history of controller lifecycle events
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS fade_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			run_id TEXT,
			cycle_id TEXT,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_fade_ledger_ts ON fade_ledger(timestamp);
		CREATE INDEX IF NOT EXISTS idx_fade_ledger_run ON fade_ledger(run_id, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("failed to create fade_ledger table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
