// Package users manages the accounts attached to the Active Store.
package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fixline-ai/fixline/internal/rbac"
	"github.com/fixline-ai/fixline/internal/screen"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/view"
)

const idempotencyScope = "users.create"

// Idempotency guards form submissions against replays.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	responder *view.Responder
	idem      Idempotency
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance. idem may be nil.
func NewHandler(logger *slog.Logger, service *Service, responder *view.Responder, idem Idempotency, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, responder: responder, idem: idem, rbac: rbacMW, validator: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRoles(rbac.Managers...))
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Post("/{id}/role", h.changeRole)
		r.Post("/{id}/delete", h.deleteUser)
	})
}

type formErrors map[string]string

var userMessages = map[string]string{
	"Name.required":     "Name is required",
	"Email.required":    "Email is required",
	"Email.email":       "Enter a valid email address",
	"Role.required":     "Select a role",
	"Password.required": "Password is required",
	"Password.min":      "Password must be at least 6 characters",
}

type pageData struct {
	Users          []Member
	Loaded         bool
	Roles          []state.Role
	Form           NewMember
	Errors         formErrors
	ShowForm       bool
	IdempotencyKey string
	SelfID         int64
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, NewMember{Role: string(state.RoleStaff)}, nil, r.URL.Query().Get("add") == "1", http.StatusOK)
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, form NewMember, errs formErrors, showForm bool, status int) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	p := state.FromContext(r.Context())
	snap, err := screen.Open(r.Context(), "users", screen.Key{StoreID: storeID}, func(ctx context.Context, key screen.Key) ([]Member, error) {
		list, err := h.service.ListUsers(ctx, p, key.StoreID)
		if err != nil {
			return nil, shared.NewSafeError("Failed to load users", err)
		}
		return list, nil
	})
	if err != nil {
		h.responder.Fail(w, r, err, "/dashboard")
		return
	}
	if snap.Err != nil && !h.responder.Toast(w, r, snap.Err) {
		return
	}
	data := pageData{
		Users:          snap.Data,
		Loaded:         snap.HasData,
		Roles:          AssignableRoles(p.Role()),
		Form:           form,
		Errors:         errs,
		ShowForm:       showForm || len(errs) > 0,
		IdempotencyKey: uuid.NewString(),
	}
	if u := p.User(); u != nil {
		data.SelfID = u.ID
	}
	h.responder.Render(w, r, "pages/users.html", "User Management", data, status)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := NewMember{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Role:     r.PostFormValue("role"),
		Password: r.PostFormValue("password"),
	}
	errs := formErrors{}
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs[fe.Field()] = userMessages[fe.Field()+"."+fe.Tag()]
			}
		}
	}
	if len(errs) > 0 {
		form.Password = ""
		h.renderList(w, r, form, errs, true, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	key := strings.TrimSpace(r.PostFormValue(shared.IdempotencyFormField))
	if h.idem != nil && key != "" {
		if err := h.idem.CheckAndInsert(ctx, key, idempotencyScope); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				h.responder.Redirect(w, r, "/users", shared.FlashInfo, "This user was already submitted")
				return
			}
			h.logger.Warn("idempotency check", slog.Any("error", err))
			key = ""
		}
	}
	if err := h.service.CreateUser(ctx, state.FromContext(ctx), storeID, form); err != nil {
		if h.idem != nil && key != "" {
			if derr := h.idem.Delete(ctx, key); derr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		h.responder.Fail(w, r, shared.NewSafeError("User creation failed", err), "/users")
		return
	}
	h.responder.Redirect(w, r, "/users", shared.FlashSuccess, "User created")
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := h.service.ChangeRole(ctx, state.FromContext(ctx), id, r.PostFormValue("role")); err != nil {
		h.responder.Fail(w, r, err, "/users")
		return
	}
	h.responder.Redirect(w, r, "/users", shared.FlashSuccess, "Role updated")
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := h.service.DeleteUser(ctx, state.FromContext(ctx), id); err != nil {
		if !errors.Is(err, ErrSelfDelete) {
			err = shared.NewSafeError("Delete failed", err)
		}
		h.responder.Fail(w, r, err, "/users")
		return
	}
	h.responder.Redirect(w, r, "/users", shared.FlashSuccess, "User deleted")
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if _, ok := h.responder.ActiveStore(w, r); !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
