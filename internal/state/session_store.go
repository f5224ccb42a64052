package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// TokenRevoker invalidates durable auth tokens on logout.
type TokenRevoker interface {
	RevokeTokens(ctx context.Context, tokens Tokens) error
}

// ProfileFetcher loads the current user's profile from the backend.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, tokens Tokens) (ProfilePatch, error)
}

// SessionStore owns the authenticated Session.
type SessionStore struct {
	mu        sync.RWMutex
	storage   Storage
	sealer    *Sealer
	selection *StoreSelection
	revoker   TokenRevoker
	logger    *slog.Logger
	current   *Session
}

// SessionOption customizes a SessionStore.
type SessionOption func(*SessionStore)

// WithRevoker sets the collaborator used to revoke tokens on logout.
func WithRevoker(r TokenRevoker) SessionOption {
	return func(s *SessionStore) { s.revoker = r }
}

// WithLogger sets the logger used for non-fatal failures.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *SessionStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSessionStore returns an empty SessionStore. Login and logout also reset
// selection.
func NewSessionStore(storage Storage, sealer *Sealer, selection *StoreSelection, opts ...SessionOption) *SessionStore {
	s := &SessionStore{
		storage:   storage,
		sealer:    sealer,
		selection: selection,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) rebind(storage Storage) Storage {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.storage
	s.storage = storage
	return previous
}

// Restore loads the persisted session. Payloads that cannot be opened are
// discarded so the browser falls back to the login screen.
func (s *SessionStore) Restore(ctx context.Context) error {
	sealed, err := s.storage.Get(ctx, KeySession)
	if err != nil {
		if errors.Is(err, ErrNoValue) {
			return nil
		}
		return err
	}
	payload, err := s.sealer.Open(sealed)
	if err != nil {
		s.logger.Warn("discard unreadable session", slog.Any("error", err))
		return s.storage.Delete(ctx, KeySession)
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		s.logger.Warn("discard malformed session", slog.Any("error", err))
		return s.storage.Delete(ctx, KeySession)
	}
	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
	return nil
}

// Current returns a copy of the active session or nil.
func (s *SessionStore) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	out := *s.current
	return &out
}

// Login replaces the session unconditionally, persists it and clears any
// store picked under a previous session. The in-memory session is replaced
// even when persistence fails.
func (s *SessionStore) Login(ctx context.Context, sess Session) error {
	s.mu.Lock()
	next := sess
	s.current = &next
	s.mu.Unlock()

	var errs []error
	if err := s.persist(ctx, sess); err != nil {
		errs = append(errs, err)
	}
	if s.selection != nil {
		if err := s.selection.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear selected store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Logout clears the session and the selected store, removes both keys and
// revokes the tokens. Calling it without an active session is a no-op.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	prev := s.current
	s.current = nil
	s.mu.Unlock()

	hadStore := s.selection != nil && s.selection.Selected() != nil
	if prev == nil && !hadStore {
		return nil
	}

	var errs []error
	if s.selection != nil {
		if err := s.selection.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear selected store: %w", err))
		}
	}
	if err := s.storage.Delete(ctx, KeySession); err != nil {
		errs = append(errs, fmt.Errorf("delete session: %w", err))
	}
	if prev != nil && s.revoker != nil && prev.Tokens.Refresh != "" {
		if err := s.revoker.RevokeTokens(ctx, prev.Tokens); err != nil {
			s.logger.Warn("revoke tokens", slog.Any("error", err))
		}
	}
	return errors.Join(errs...)
}

// RefreshProfile merges the fetched profile into the session. Tokens and any
// field absent from the response are preserved. On failure the session is
// left untouched and the error is returned for optional display.
func (s *SessionStore) RefreshProfile(ctx context.Context, fetcher ProfileFetcher) error {
	cur := s.Current()
	if cur == nil {
		return nil
	}
	patch, err := fetcher.FetchProfile(ctx, cur.Tokens)
	if err != nil {
		s.logger.Warn("refresh profile", slog.Any("error", err))
		return fmt.Errorf("refresh profile: %w", err)
	}

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	s.current.User = patch.apply(s.current.User)
	merged := *s.current
	s.mu.Unlock()
	return s.persist(ctx, merged)
}

// UpdateTokens swaps the tokens after a refresh, keeping the user record.
func (s *SessionStore) UpdateTokens(ctx context.Context, tokens Tokens) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	if tokens.Refresh == "" {
		tokens.Refresh = s.current.Tokens.Refresh
	}
	s.current.Tokens = tokens
	merged := *s.current
	s.mu.Unlock()
	return s.persist(ctx, merged)
}

func (s *SessionStore) persist(ctx context.Context, sess Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	sealed, err := s.sealer.Seal(payload)
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}
	if err := s.storage.Set(ctx, KeySession, sealed); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}
