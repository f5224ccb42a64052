// Package settings serves the store's voice agent settings and the signed in
// user's account settings.
package settings

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/rbac"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/view"
)

// Backend is the settings surface of the backend API.
type Backend interface {
	AIBehavior(ctx context.Context, storeID int64) (backend.AIBehavior, error)
	CreateAIBehavior(ctx context.Context, storeID int64, cfg backend.AIBehavior) error
	UpdateAIBehavior(ctx context.Context, storeID int64, cfg backend.AIBehavior) error
	APIConfig(ctx context.Context, storeID int64) (backend.APIConfig, error)
	UpdateAPIConfig(ctx context.Context, storeID int64, cfg backend.APIConfig) error
	UpdateProfile(ctx context.Context, update backend.ProfileUpdate) error
	ChangePassword(ctx context.Context, change backend.PasswordChange) error
}

// Connector binds a Backend to the request's session.
type Connector func(p *state.Provider) Backend

// Handler manages settings endpoints.
type Handler struct {
	logger    *slog.Logger
	connect   Connector
	responder *view.Responder
	profiles  state.ProfileFetcher
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance. profiles reloads the session user after
// a profile update.
func NewHandler(logger *slog.Logger, connect Connector, responder *view.Responder, profiles state.ProfileFetcher, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		connect:   connect,
		responder: responder,
		profiles:  profiles,
		rbac:      rbacMW,
		validator: validator.New(),
	}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/settings/profile", http.StatusSeeOther)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRoles())
		r.Get("/profile", h.showProfile)
		r.Post("/profile", h.saveProfile)
		r.Get("/password", h.showPassword)
		r.Post("/password", h.savePassword)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRoles(rbac.Managers...))
		r.Get("/ai", h.showAI)
		r.Post("/ai", h.saveAI)
		r.Get("/api", h.showAPI)
		r.Post("/api", h.saveAPI)
		r.Post("/api/key", h.saveAPIKey)
	})
}

type formErrors map[string]string

// check validates form and maps failures through messages keyed by
// "Field.tag".
func (h *Handler) check(form any, messages map[string]string) formErrors {
	errs := formErrors{}
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				if _, seen := errs[fe.Field()]; seen {
					continue
				}
				msg, ok := messages[fe.Field()+"."+fe.Tag()]
				if !ok {
					msg = fe.Field() + " is invalid"
				}
				errs[fe.Field()] = msg
			}
		}
	}
	return errs
}
