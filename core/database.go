package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Database is a durable key/value store on SQLite. Every local collection is
// a single JSON document stored under its own well-known key.
type Database struct {
	dbFile string
	conn   *sql.DB
}

func NewDatabase(dbFile string) *Database {
	if dbFile == "" {
		dbFile = "labdesk.db"
	}
	return &Database{dbFile: dbFile}
}

// Connect opens the database file, creating its directory and schema.
func (db *Database) Connect() error {
	if dir := filepath.Dir(db.dbFile); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", db.dbFile)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	// A single connection serialises writers and keeps :memory: databases
	// shared across calls.
	conn.SetMaxOpenConns(1)
	db.conn = conn

	if err := db.initDatabase(); err != nil {
		conn.Close()
		return err
	}
	return nil
}

func (db *Database) initDatabase() error {
	query := `
    CREATE TABLE IF NOT EXISTS kv (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL,
        updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
    )`
	if _, err := db.conn.Exec(query); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Get returns the value stored under key and whether it exists.
func (db *Database) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (db *Database) Set(ctx context.Context, key, value string) error {
	query := `
    INSERT INTO kv (key, value, updated_at) VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
    ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := db.conn.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (db *Database) Remove(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	return nil
}

// Keys lists every stored key in lexical order.
func (db *Database) Keys(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT key FROM kv ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (db *Database) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}
