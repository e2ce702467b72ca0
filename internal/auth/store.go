// Package auth implements the identity store: the registered-user table and
// the single active session, persisted in the storage namespace.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spendwise/internal/models"
	"spendwise/internal/storage"
)

// DefaultLatency is the simulated round-trip delay of Login and Register.
const DefaultLatency = 500 * time.Millisecond

// maxRegisterAttempts bounds the re-read/re-check cycle when another writer
// changes the user table during registration.
const maxRegisterAttempts = 5

// SessionListener is notified synchronously whenever the active session
// changes. u is nil after logout.
type SessionListener interface {
	SessionChanged(ctx context.Context, u *models.User) error
}

// SessionListenerFunc adapts a function to SessionListener.
type SessionListenerFunc func(ctx context.Context, u *models.User) error

func (f SessionListenerFunc) SessionChanged(ctx context.Context, u *models.User) error {
	return f(ctx, u)
}

// Store owns the user table and the active session.
type Store struct {
	kv      storage.Store
	creds   Credentials
	latency time.Duration
	log     *zap.Logger
	newID   func() string

	mu            sync.RWMutex
	current       *models.User
	authenticated bool
	initialized   bool
	listeners     []SessionListener
}

// Option configures a Store.
type Option func(*Store)

// WithCredentials sets the password scheme. The default is Plaintext.
func WithCredentials(c Credentials) Option {
	return func(s *Store) { s.creds = c }
}

// WithLatency sets the simulated delay of Login and Register.
func WithLatency(d time.Duration) Option {
	return func(s *Store) { s.latency = d }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithIDGenerator sets the function producing new user IDs.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// NewStore creates an identity store persisting into kv.
func NewStore(kv storage.Store, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		creds:   Plaintext{},
		latency: DefaultLatency,
		log:     zap.NewNop(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers l for session changes. Listeners run in subscription order.
func (s *Store) Subscribe(l SessionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Initialize restores the persisted active-user record, if any, without
// re-checking credentials. Only the first call has any effect.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.initialized = true
	s.mu.Unlock()

	var u *models.User
	if _, err := storage.LoadJSON(ctx, s.kv, storage.KeyActiveUser, &u); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if u == nil {
		return nil
	}

	s.log.Info("session restored", zap.String("user_id", u.ID))
	return s.setSession(ctx, u)
}

// Login authenticates email and password against the user table.
// It returns false, nil when no user matches; the session is then unchanged.
func (s *Store) Login(ctx context.Context, email, password string) (bool, error) {
	if err := s.simulateLatency(ctx); err != nil {
		return false, err
	}

	users, _, err := s.loadUsers(ctx)
	if err != nil {
		return false, err
	}

	for i := range users {
		u := users[i]
		if u.Email == email && s.creds.Verify(u.Password, password) {
			if err := s.persistActive(ctx, &u); err != nil {
				return false, err
			}
			s.log.Info("login succeeded", zap.String("user_id", u.ID))
			return true, s.setSession(ctx, &u)
		}
	}

	s.log.Info("login rejected", zap.String("email", email))
	return false, nil
}

// Register creates a user and logs it in. It returns false, nil when the
// email is already taken; nothing is changed then.
func (s *Store) Register(ctx context.Context, name, email, password string) (bool, error) {
	if err := s.simulateLatency(ctx); err != nil {
		return false, err
	}

	sealed, err := s.creds.Seal(password)
	if err != nil {
		return false, err
	}
	u := models.User{ID: s.newID(), Name: name, Email: email, Password: sealed}

	for attempt := 1; ; attempt++ {
		users, version, err := s.loadUsers(ctx)
		if err != nil {
			return false, err
		}
		for _, existing := range users {
			if existing.Email == email {
				s.log.Info("registration rejected", zap.String("email", email))
				return false, nil
			}
		}

		_, err = storage.SaveJSON(ctx, s.kv, storage.KeyUsers, append(users, u), version)
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrVersionConflict) || attempt == maxRegisterAttempts {
			return false, err
		}
		s.log.Warn("user table changed during registration, retrying", zap.Int("attempt", attempt))
	}

	if err := s.persistActive(ctx, &u); err != nil {
		return false, err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID))
	return true, s.setSession(ctx, &u)
}

// Logout clears the session and removes the active-user record. The user
// table is not touched.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.kv.Delete(ctx, storage.KeyActiveUser); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.log.Info("logged out")
	return s.setSession(ctx, nil)
}

// CurrentUser returns the user of the active session.
func (s *Store) CurrentUser() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.User{}, false
	}
	return *s.current, true
}

// IsAuthenticated reports whether a session is active.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Close drops listeners and the in-memory session. The persisted
// active-user record stays so the next Initialize restores it.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = nil
	s.current = nil
	s.authenticated = false
}

// setSession swaps the in-memory session and notifies listeners.
// Listener errors are returned joined; the session change stands.
func (s *Store) setSession(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	s.current = u
	s.authenticated = u != nil
	listeners := append([]SessionListener(nil), s.listeners...)
	s.mu.Unlock()

	var errs []error
	for _, l := range listeners {
		if err := l.SessionChanged(ctx, u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) loadUsers(ctx context.Context) ([]models.User, int64, error) {
	var users []models.User
	version, err := storage.LoadJSON(ctx, s.kv, storage.KeyUsers, &users)
	if err != nil {
		return nil, 0, err
	}
	return users, version, nil
}

func (s *Store) persistActive(ctx context.Context, u *models.User) error {
	if _, err := storage.SaveJSON(ctx, s.kv, storage.KeyActiveUser, u, storage.AnyVersion); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (s *Store) simulateLatency(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
