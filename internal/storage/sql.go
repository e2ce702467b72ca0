package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// queries holds the dialect-specific statements of SQLStore.
type queries struct {
	get     string
	version string
	insert  string
	update  string
	delete  string
}

// SQLStore is a Store backed by a single kv table in a SQL database.
type SQLStore struct {
	db *sql.DB
	q  queries
}

// Get retrieves the entry stored under key.
func (s *SQLStore) Get(ctx context.Context, key string) (Entry, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx, s.q.get, key).Scan(&e.Value, &e.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get %s: %w", key, err)
	}
	return e, nil
}

// Put writes value under key inside a transaction. The version check and
// the guarded write make a concurrent writer lose with ErrVersionConflict.
func (s *SQLStore) Put(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, s.q.version, key).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("check version: %w", err)
	}
	if expected != AnyVersion && expected != current {
		return 0, ErrVersionConflict
	}

	next := current + 1
	var res sql.Result
	if current == 0 {
		res, err = tx.ExecContext(ctx, s.q.insert, key, value, next)
	} else {
		res, err = tx.ExecContext(ctx, s.q.update, value, next, key, current)
	}
	if err != nil {
		return 0, fmt.Errorf("put %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("put %s: %w", key, err)
	}
	if n == 0 {
		return 0, ErrVersionConflict
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// Delete removes key.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.q.delete, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
