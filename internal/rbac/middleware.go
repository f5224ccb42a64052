// Package rbac gates dashboard routes on the canonical role of the viewer.
package rbac

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/fixline-ai/fixline/internal/platform/httpx"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
)

// Role groups used by the router.
var (
	Managers = []state.Role{state.RoleSuperAdmin, state.RoleStoreManager}
	Admins   = []state.Role{state.RoleSuperAdmin}
)

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAuth sends visitors without a session to the login page.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := state.FromContext(r.Context())
		if p == nil || !p.Authenticated() {
			if httpx.WantsJSON(r) {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRoles lets through users whose role is one of roles. Other signed in
// users land on the dashboard.
func (m Middleware) RequireRoles(roles ...state.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := state.FromContext(r.Context()).Role()
			if Allowed(role, roles...) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("rbac denied", slog.String("path", r.URL.Path), slog.String("role", string(role)))
			}
			if httpx.WantsJSON(r) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
				return
			}
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: shared.FlashError, Message: "You do not have access to that page"})
			}
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		}))
	}
}

// Allowed reports whether role is in roles. An empty list allows any valid
// role.
func Allowed(role state.Role, roles ...state.Role) bool {
	if !role.Valid() {
		return false
	}
	return len(roles) == 0 || slices.Contains(roles, role)
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && r.Method == http.MethodGet {
		sess.Set("next", r.URL.RequestURI())
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}
