package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
)

// Authenticator exchanges credentials with the backend.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (state.Session, error)
}

// Service wraps authentication business rules.
type Service struct {
	backend Authenticator
	repo    Repository
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a new Service. repo may be nil when no audit database
// is configured.
func NewService(backend Authenticator, repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, repo: repo, logger: logger, now: time.Now}
}

// ClientInfo describes the browser signing in.
type ClientInfo struct {
	SessionID string
	IP        string
	UserAgent string
	TTL       time.Duration
}

// Login authenticates against the backend and installs the session in p. A
// role the dashboard does not know is rejected as invalid credentials.
func (s *Service) Login(ctx context.Context, p *state.Provider, email, password string, client ClientInfo) (state.Session, error) {
	sess, err := s.backend.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, backend.ErrInvalidCredentials) {
			return state.Session{}, shared.ErrInvalidCredentials
		}
		return state.Session{}, err
	}
	if !state.ResolveRole(sess.User.Role).Valid() {
		s.logger.Warn("login with unknown role", slog.String("role", sess.User.Role), slog.Int64("user_id", sess.User.ID))
		return state.Session{}, shared.ErrInvalidCredentials
	}
	if err := p.Login(ctx, sess); err != nil {
		// the session is live in memory; only the durable copy failed
		s.logger.Error("persist session", slog.Any("error", err))
	}
	s.register(ctx, sess, client)
	return sess, nil
}

// Logout ends the session held by p.
func (s *Service) Logout(ctx context.Context, p *state.Provider, sessionID string) error {
	err := p.Logout(ctx)
	if s.repo != nil && sessionID != "" {
		if endErr := s.repo.EndSession(ctx, sessionID, s.now()); endErr != nil {
			s.logger.Warn("end session record", slog.Any("error", endErr))
		}
	}
	return err
}

func (s *Service) register(ctx context.Context, sess state.Session, client ClientInfo) {
	if s.repo == nil || client.SessionID == "" {
		return
	}
	now := s.now()
	rec := SessionRecord{
		ID:        client.SessionID,
		UserID:    sess.User.ID,
		Email:     sess.User.Email,
		Role:      string(state.ResolveRole(sess.User.Role)),
		StoreID:   sess.User.StoreID,
		CreatedAt: now,
		ExpiresAt: now.Add(client.TTL),
		IP:        client.IP,
		UserAgent: client.UserAgent,
	}
	if err := s.repo.CreateSession(ctx, rec); err != nil {
		s.logger.Warn("register session", slog.Any("error", err))
	}
}
