// Package storage provides the durable key-value namespace the identity and
// expense stores persist into, along with its backends.
package storage

import (
	"context"
	"errors"
)

// Logical keys of the namespace.
const (
	// KeyUsers holds the full registered-user table.
	KeyUsers = "users"
	// KeyActiveUser holds the user of the active session, absent when logged out.
	KeyActiveUser = "user"
	// KeyExpenses holds every user's expenses in one flat table.
	KeyExpenses = "expenses"
)

// AnyVersion disables the version check in Put.
const AnyVersion int64 = -1

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("key not found")
	// ErrVersionConflict is returned by Put when the stored version does not
	// match the expected one. Nothing is written.
	ErrVersionConflict = errors.New("version conflict")
)

// Entry is a stored value together with its version.
// Versions start at 1 and grow by one on every Put; 0 means absent.
type Entry struct {
	Value   []byte
	Version int64
}

// Store is a versioned key-value namespace.
type Store interface {
	// Get returns the entry stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)
	// Put writes value under key if the stored version equals expected
	// (0 for an absent key), or unconditionally when expected is AnyVersion.
	// It returns the new version.
	Put(ctx context.Context, key string, value []byte, expected int64) (int64, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the underlying resources.
	Close() error
}
