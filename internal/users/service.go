package users

import (
	"context"
	"errors"
	"strings"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/view"
)

// Directory is the account surface of the backend API.
type Directory interface {
	Users(ctx context.Context, storeID int64) ([]backend.StoreUser, error)
	CreateUser(ctx context.Context, user backend.NewUser) error
	UpdateUser(ctx context.Context, id int64, patch backend.UserPatch) error
	DeleteUser(ctx context.Context, id int64) error
}

// Connector binds a Directory to the request's session.
type Connector func(p *state.Provider) Directory

// Service handles store account rules on top of the backend directory.
type Service struct {
	connect   Connector
	mediaBase string
}

// NewService builds Service instance.
func NewService(connect Connector, mediaBaseURL string) *Service {
	return &Service{connect: connect, mediaBase: strings.TrimRight(mediaBaseURL, "/")}
}

// ErrSelfDelete is returned when a user tries to delete their own account.
var ErrSelfDelete = shared.NewSafeError("You cannot delete your own account", nil)

// ErrRoleNotAllowed is returned when the actor may not grant a role.
var ErrRoleNotAllowed = shared.NewSafeError("You cannot assign that role", nil)

// ListUsers returns the accounts of a store.
func (s *Service) ListUsers(ctx context.Context, p *state.Provider, storeID int64) ([]Member, error) {
	list, err := s.connect(p).Users(ctx, storeID)
	if err != nil {
		return nil, err
	}
	out := make([]Member, 0, len(list))
	for _, u := range list {
		role := state.ResolveRole(u.Role)
		m := Member{
			ID:         u.ID,
			Name:       strings.TrimSpace(u.FirstName + " " + u.LastName),
			Email:      u.Email,
			Role:       role,
			RoleLabel:  role.Label(),
			LastActive: u.LastActive,
			Initials:   state.User{FirstName: u.FirstName, LastName: u.LastName}.Initials(),
			Image:      view.MediaURL(s.mediaBase, u.ProfileImage),
		}
		if strings.TrimSpace(m.LastActive) == "" {
			m.LastActive = "-"
		}
		out = append(out, m)
	}
	return out, nil
}

// CreateUser adds an account to the store.
func (s *Service) CreateUser(ctx context.Context, p *state.Provider, storeID int64, form NewMember) error {
	role := state.ResolveRole(form.Role)
	if !canAssign(p.Role(), role) {
		return ErrRoleNotAllowed
	}
	first, last := SplitName(form.Name)
	return s.connect(p).CreateUser(ctx, backend.NewUser{
		FirstName: first,
		LastName:  last,
		Email:     strings.TrimSpace(form.Email),
		Role:      string(role),
		Password:  form.Password,
		Store:     storeID,
	})
}

// ChangeRole updates the role of an account.
func (s *Service) ChangeRole(ctx context.Context, p *state.Provider, id int64, raw string) error {
	role := state.ResolveRole(raw)
	if !canAssign(p.Role(), role) {
		return ErrRoleNotAllowed
	}
	return s.connect(p).UpdateUser(ctx, id, backend.UserPatch{Role: string(role)})
}

// DeleteUser removes an account. Users cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, p *state.Provider, id int64) error {
	if u := p.User(); u != nil && u.ID == id {
		return ErrSelfDelete
	}
	err := s.connect(p).DeleteUser(ctx, id)
	if errors.Is(err, backend.ErrNotFound) {
		return nil
	}
	return err
}
