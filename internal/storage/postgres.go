package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value BYTEA NOT NULL,
    version BIGINT NOT NULL
);
`

var postgresQueries = queries{
	get:     `SELECT value, version FROM kv WHERE key = $1`,
	version: `SELECT version FROM kv WHERE key = $1 FOR UPDATE`,
	insert:  `INSERT INTO kv (key, value, version) VALUES ($1, $2, $3) ON CONFLICT (key) DO NOTHING`,
	update:  `UPDATE kv SET value = $1, version = $2 WHERE key = $3 AND version = $4`,
	delete:  `DELETE FROM kv WHERE key = $1`,
}

// NewPostgres connects to the PostgreSQL database at dsn and creates the
// schema if needed.
func NewPostgres(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s, err := NewPostgresFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresFromDB wraps an already connected *sql.DB.
func NewPostgresFromDB(db *sql.DB) (*SQLStore, error) {
	if _, err := db.Exec(postgresSchema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLStore{db: db, q: postgresQueries}, nil
}
