// Package expense implements the expense store: the active user's slice of
// the shared expense table, kept in memory and merged back on every change.
package expense

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"spendwise/internal/models"
	"spendwise/internal/storage"
)

// DefaultSaveAttempts bounds the read-merge-write cycle of a save.
const DefaultSaveAttempts = 5

// ErrSaveConflict is returned when the shared table kept changing under a
// save until the attempts ran out. It wraps storage.ErrVersionConflict.
var ErrSaveConflict = errors.New("expense table changed concurrently")

// Store holds the current user's expenses.
type Store struct {
	kv       storage.Store
	log      *zap.Logger
	newID    func() string
	attempts int

	mu       sync.RWMutex
	userID   string
	active   bool
	expenses []models.Expense
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithIDGenerator sets the function producing new expense IDs.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// WithSaveAttempts sets how many times a save re-reads the table after a
// version conflict before giving up.
func WithSaveAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// NewStore returns an empty expense store over kv. It holds nothing until
// SessionChanged is called with a user.
func NewStore(kv storage.Store, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		log:      zap.NewNop(),
		newID:    uuid.NewString,
		attempts: DefaultSaveAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionChanged re-derives the collection for u from the persisted table,
// or empties it when u is nil. If the table cannot be read the store is left
// without a session, so later writes are no-ops instead of clobbering the
// user's rows.
func (s *Store) SessionChanged(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userID, s.active, s.expenses = "", false, nil
	if u == nil {
		return nil
	}

	all, _, err := s.loadTable(ctx)
	if err != nil {
		return fmt.Errorf("load expenses for %s: %w", u.ID, err)
	}
	s.userID, s.active = u.ID, true
	s.expenses = filterByUser(all, u.ID)
	s.log.Debug("expenses loaded", zap.String("user_id", u.ID), zap.Int("count", len(s.expenses)))
	return nil
}

// Add stores a new expense for the current user and returns it. Without a
// session it does nothing and returns the zero Expense.
func (s *Store) Add(ctx context.Context, in models.NewExpense) (models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return models.Expense{}, nil
	}

	e := models.Expense{
		ID:          s.newID(),
		UserID:      s.userID,
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		Date:        in.Date,
	}
	next := append(s.snapshot(), e)
	if err := s.save(ctx, next); err != nil {
		return models.Expense{}, err
	}
	s.expenses = next
	return e, nil
}

// Update applies p to the expense with id. A missing id is a no-op.
func (s *Store) Update(ctx context.Context, id string, p models.ExpensePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	next := s.snapshot()
	next[i] = p.Apply(next[i])
	if err := s.save(ctx, next); err != nil {
		return err
	}
	s.expenses = next
	return nil
}

// Delete removes the expense with id. A missing id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	next := make([]models.Expense, 0, len(s.expenses)-1)
	next = append(next, s.expenses[:i]...)
	next = append(next, s.expenses[i+1:]...)
	if err := s.save(ctx, next); err != nil {
		return err
	}
	s.expenses = next
	return nil
}

// GetByID looks id up in the current collection.
func (s *Store) GetByID(id string) (models.Expense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.expenses[i], true
	}
	return models.Expense{}, false
}

// Total sums the amounts of the current collection.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, e := range s.expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// ByCategory sums amounts per category. Categories without expenses are absent.
func (s *Store) ByCategory() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := make(map[string]decimal.Decimal)
	for _, e := range s.expenses {
		totals[e.Category] = totals[e.Category].Add(e.Amount)
	}
	return totals
}

// List returns a copy of the current collection in table order.
func (s *Store) List() []models.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// Len returns the size of the current collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expenses)
}

// Close drops the in-memory collection. Persisted data is untouched.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID, s.active, s.expenses = "", false, nil
}

// save merges next into the shared table: every row of the current user is
// replaced by next and all other rows are kept. The write is conditional on
// the version read, and the cycle repeats on conflict.
func (s *Store) save(ctx context.Context, next []models.Expense) error {
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		var (
			all     []models.Expense
			version int64
		)
		all, version, err = s.loadTable(ctx)
		if err != nil {
			return err
		}

		merged := make([]models.Expense, 0, len(all)+len(next))
		for _, e := range all {
			if e.UserID != s.userID {
				merged = append(merged, e)
			}
		}
		merged = append(merged, next...)

		_, err = storage.SaveJSON(ctx, s.kv, storage.KeyExpenses, merged, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) {
			return err
		}
		s.log.Warn("expense table changed during save, retrying",
			zap.String("user_id", s.userID), zap.Int("attempt", attempt))
	}
	return fmt.Errorf("%w: %w", ErrSaveConflict, err)
}

func (s *Store) loadTable(ctx context.Context) ([]models.Expense, int64, error) {
	var all []models.Expense
	version, err := storage.LoadJSON(ctx, s.kv, storage.KeyExpenses, &all)
	if err != nil {
		return nil, 0, err
	}
	return all, version, nil
}

func (s *Store) indexOf(id string) int {
	for i, e := range s.expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshot() []models.Expense {
	return append([]models.Expense(nil), s.expenses...)
}

func filterByUser(all []models.Expense, userID string) []models.Expense {
	var out []models.Expense
	for _, e := range all {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}
