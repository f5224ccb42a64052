package view

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/platform/httpx"
	"github.com/fixline-ai/fixline/internal/screen"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
)

// ShellHook decorates the page chrome, for example with the unread count.
type ShellHook func(ctx context.Context, p *state.Provider, shell *Shell)

// Responder renders pages and turns errors into the dashboard's user visible
// behavior: expired sessions log out, other failures become toasts.
type Responder struct {
	logger   *slog.Logger
	engine   *Engine
	csrf     *shared.CSRFManager
	registry *screen.Registry
	hooks    []ShellHook
}

// NewResponder constructs a Responder.
func NewResponder(logger *slog.Logger, engine *Engine, csrf *shared.CSRFManager, registry *screen.Registry, hooks ...ShellHook) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{logger: logger, engine: engine, csrf: csrf, registry: registry, hooks: hooks}
}

// Render executes a page inside the application shell.
func (rs *Responder) Render(w http.ResponseWriter, r *http.Request, name, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	var token string
	var flashes []shared.FlashMessage
	if sess != nil {
		token, _ = rs.csrf.EnsureToken(sess)
		flashes = sess.PopFlashes()
	}
	td := TemplateData{
		Title:       title,
		CSRFToken:   token,
		Flashes:     flashes,
		CurrentPath: r.URL.Path,
		Shell:       rs.shell(r.Context()),
		Data:        data,
	}
	if err := rs.engine.Render(w, name, td, status); err != nil {
		rs.logger.Error("render template", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (rs *Responder) shell(ctx context.Context) Shell {
	p := state.FromContext(ctx)
	if p == nil || !p.Authenticated() {
		return Shell{}
	}
	shell := Shell{User: p.User(), Role: p.Role(), Store: p.SelectedStore()}
	shell.StoreID, shell.HasStore = p.ActiveStoreID()
	for _, hook := range rs.hooks {
		hook(ctx, p, &shell)
	}
	return shell
}

// Redirect queues a toast and redirects with 303.
func (rs *Responder) Redirect(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && message != "" {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// ActiveStore returns the request's Active Store ID. When there is none it
// renders the blocking store selection page and reports false; the caller
// must not fetch anything.
func (rs *Responder) ActiveStore(w http.ResponseWriter, r *http.Request) (int64, bool) {
	p := state.FromContext(r.Context())
	if p == nil {
		rs.Expire(w, r)
		return 0, false
	}
	if id, ok := p.ActiveStoreID(); ok {
		return id, true
	}
	if httpx.WantsJSON(r) {
		httpx.RespondError(w, httpx.ErrStoreRequired)
		return 0, false
	}
	rs.Render(w, r, "pages/select_store.html", "Select a Store", map[string]any{
		"CanSelect": p.Role() == state.RoleSuperAdmin,
	}, http.StatusOK)
	return 0, false
}

// Fail maps err to the dashboard error taxonomy. Transient failures redirect
// to fallback with a toast.
func (rs *Responder) Fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, backend.ErrAuthExpired):
		rs.Expire(w, r)
		return
	case errors.Is(err, screen.ErrSuperseded):
		// another request moved the screen to a newer store; show that one
		http.Redirect(w, r, r.URL.RequestURI(), http.StatusSeeOther)
		return
	case errors.Is(err, shared.ErrStoreRequired):
		rs.Redirect(w, r, "/stores", shared.FlashInfo, "Please select a store")
		return
	case errors.Is(err, context.Canceled):
		return
	}
	rs.logger.Warn("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	if httpx.WantsJSON(r) {
		httpx.RespondError(w, err)
		return
	}
	rs.Redirect(w, r, fallback, shared.FlashError, Message(err))
}

// Toast queues an error toast for the page being rendered, unless err ends
// the session.
func (rs *Responder) Toast(w http.ResponseWriter, r *http.Request, err error) bool {
	if errors.Is(err, backend.ErrAuthExpired) {
		rs.Expire(w, r)
		return false
	}
	rs.logger.Warn("screen fetch failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: shared.FlashError, Message: Message(err)})
	}
	return true
}

// Expire ends the browser's dashboard session and sends it to the login page.
func (rs *Responder) Expire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if p := state.FromContext(ctx); p != nil {
		if err := p.Logout(ctx); err != nil {
			rs.logger.Warn("logout expired session", slog.Any("error", err))
		}
	}
	if sess := shared.SessionFromContext(ctx); sess != nil && rs.registry != nil {
		rs.registry.Drop(sess.ID)
	}
	if httpx.WantsJSON(r) {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	rs.Redirect(w, r, "/auth/login", shared.FlashError, "Your session expired, please sign in again")
}

// Message returns the toast text for err. Backend validation details are
// shown as sent.
func Message(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" && apiErr.Status < http.StatusInternalServerError {
		return apiErr.Detail
	}
	if errors.Is(err, backend.ErrNotFound) {
		return shared.UserSafeMessage(shared.ErrNotFound)
	}
	return shared.UserSafeMessage(err)
}
