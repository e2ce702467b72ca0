package storage

import (
	"database/sql"
	"fmt"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

var sqliteQueries = queries{
	get:     `SELECT value, version FROM kv WHERE key = ?`,
	version: `SELECT version FROM kv WHERE key = ?`,
	insert:  `INSERT INTO kv (key, value, version) VALUES (?, ?, ?) ON CONFLICT (key) DO NOTHING`,
	update:  `UPDATE kv SET value = ?, version = ? WHERE key = ? AND version = ?`,
	delete:  `DELETE FROM kv WHERE key = ?`,
}

// NewSQLite opens the sqlite database at path and runs migrations.
// ":memory:" gives a private in-memory database.
func NewSQLite(path string) (*SQLStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLStore{db: conn, q: sqliteQueries}, nil
}
