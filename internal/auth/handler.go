package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fixline-ai/fixline/internal/screen"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	responder  *view.Responder
	registry   *screen.Registry
	sessionTTL time.Duration
	validator  *validator.Validate
	scope      func(id string) state.Storage
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, responder *view.Responder, registry *screen.Registry, sessionTTL time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		service:    service,
		responder:  responder,
		registry:   registry,
		sessionTTL: sessionTTL,
		validator:  validator.New(),
	}
}

// RotateSessions makes a login attempt issue a fresh session id and move the
// browser's state onto scope(id).
func (h *Handler) RotateSessions(scope func(id string) state.Storage) *Handler {
	h.scope = scope
	return h
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

var loginMessages = map[string]string{
	"Email.required":    "Email is required",
	"Email.email":       "Enter a valid email address",
	"Password.required": "Password is required",
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if p := state.FromContext(r.Context()); p != nil && p.Authenticated() {
		http.Redirect(w, r, h.landing(r, p), http.StatusSeeOther)
		return
	}
	h.responder.Render(w, r, "pages/login.html", "Sign In", loginPageData{}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = loginMessages[fieldErr.Field()+"."+fieldErr.Tag()]
			}
		}
	}

	p := state.FromContext(r.Context())
	sess := shared.SessionFromContext(r.Context())
	if len(errs) == 0 && p != nil {
		client := ClientInfo{IP: r.RemoteAddr, UserAgent: r.UserAgent(), TTL: h.sessionTTL}
		if sess != nil {
			h.registry.Drop(sess.ID)
			if h.scope != nil {
				sess.Renew()
				if err := p.Rebind(r.Context(), h.scope(sess.ID)); err != nil {
					h.logger.Warn("rebind state", slog.Any("error", err))
				}
			}
			client.SessionID = sess.ID
		}
		_, err := h.service.Login(r.Context(), p, form.Email, form.Password, client)
		if err == nil {
			target := h.landing(r, p)
			if sess != nil {
				sess.Delete("next")
			}
			h.responder.Redirect(w, r, target, shared.FlashSuccess, "Welcome back")
			return
		}
		if errors.Is(err, shared.ErrInvalidCredentials) {
			errs["general"] = "Invalid email or password"
		} else {
			h.logger.Error("login", slog.Any("error", err))
			errs["general"] = "Sign in is unavailable right now, please try again"
		}
	}

	form.Password = ""
	h.responder.Render(w, r, "pages/login.html", "Sign In", loginPageData{Form: form, Errors: errs}, http.StatusBadRequest)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	p := state.FromContext(r.Context())
	sess := shared.SessionFromContext(r.Context())
	var id string
	if sess != nil {
		id = sess.ID
		h.registry.Drop(id)
	}
	if p != nil {
		if err := h.service.Logout(r.Context(), p, id); err != nil {
			h.logger.Warn("logout", slog.Any("error", err))
		}
	}
	h.responder.Redirect(w, r, "/auth/login", shared.FlashInfo, "You have been signed out")
}

// landing picks where a signed in user goes: the page that sent them to
// login, the store picker for a super admin without a store, or the
// dashboard.
func (h *Handler) landing(r *http.Request, p *state.Provider) string {
	if p.NeedsStoreSelection() {
		return "/stores"
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if next := sess.Get("next"); strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") && !strings.HasPrefix(next, "/auth/") {
			return next
		}
	}
	return "/dashboard"
}
