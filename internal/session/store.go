package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pscheid92/thereiwas/internal/auth"
	"github.com/pscheid92/thereiwas/internal/domain"
)

// Store holds the session of one browser and keeps it in sync with its
// persistent storage.
type Store struct {
	mu      sync.RWMutex
	storage domain.SessionStorage
	auth    domain.Authenticator
	session domain.Session
}

// NewStore restores the persisted session once. A missing or unreadable value
// leaves the store unauthenticated.
func NewStore(ctx context.Context, storage domain.SessionStorage, authenticator domain.Authenticator) *Store {
	s := &Store{storage: storage, auth: authenticator}
	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	raw, ok, err := s.storage.Load(ctx, domain.SessionStorageKey)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load persisted session", "error", err)
		return
	}
	if !ok {
		return
	}

	var persisted domain.Session
	if err := json.Unmarshal(raw, &persisted); err != nil {
		slog.WarnContext(ctx, "Discarding unparseable persisted session", "error", err)
		return
	}
	s.session = persisted
}

func (s *Store) save(ctx context.Context, session domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.storage.Save(ctx, domain.SessionStorageKey, raw); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// SignIn exchanges the credentials for a token. Every failure is reported as
// domain.ErrAuthenticationFailed wrapping the cause. A rejected attempt leaves
// both the in-memory and the persisted session untouched.
func (s *Store) SignIn(ctx context.Context, username, password string) error {
	session, err := s.auth.RequestToken(ctx, username, password)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAuthenticationFailed, err)
	}

	if err := s.save(ctx, session); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAuthenticationFailed, err)
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	return nil
}

// SignOut clears the session. Storage errors are logged; signing out twice is a no-op.
func (s *Store) SignOut(ctx context.Context) {
	s.mu.Lock()
	s.session = domain.Session{}
	s.mu.Unlock()

	if err := s.storage.Delete(ctx, domain.SessionStorageKey); err != nil {
		slog.WarnContext(ctx, "Failed to delete persisted session", "error", err)
	}
}

func (s *Store) Session() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *Store) Token() string {
	return s.Session().AccessToken
}

func (s *Store) Authenticated() bool {
	return s.Session().Authenticated()
}

// Username is the token's subject, or "unknown".
func (s *Store) Username() string {
	return auth.UsernameFromToken(s.Token())
}
