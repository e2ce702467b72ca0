// Package app wires storage, the identity store and the expense store
// into one object with an explicit lifecycle.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"spendwise/internal/auth"
	"spendwise/internal/config"
	"spendwise/internal/expense"
	"spendwise/internal/storage"
)

// App owns the stores of one process.
type App struct {
	Auth     *auth.Store
	Expenses *expense.Store

	kv storage.Store
}

// New opens the configured storage backend and builds the stores on it.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kv, err := storage.Open(cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a, err := NewWithStore(kv, cfg, log)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	return a, nil
}

// NewWithStore builds the stores on an already opened kv. The App takes
// ownership of kv and closes it in Close.
func NewWithStore(kv storage.Store, cfg *config.Config, log *zap.Logger) (*App, error) {
	creds, err := auth.NewCredentials(cfg.PasswordScheme)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	identity := auth.NewStore(kv,
		auth.WithCredentials(creds),
		auth.WithLatency(cfg.LoginLatency),
		auth.WithLogger(log.Named("auth")),
	)
	expenses := expense.NewStore(kv,
		expense.WithLogger(log.Named("expense")),
		expense.WithSaveAttempts(cfg.SaveAttempts),
	)
	identity.Subscribe(expenses)

	return &App{Auth: identity, Expenses: expenses, kv: kv}, nil
}

// Initialize restores the persisted session, which also loads its expenses.
func (a *App) Initialize(ctx context.Context) error {
	return a.Auth.Initialize(ctx)
}

// Close tears down both stores and releases storage.
func (a *App) Close() error {
	a.Auth.Close()
	a.Expenses.Close()
	if err := a.kv.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
