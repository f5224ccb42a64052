package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
)

func requestAs(t *testing.T, role string, target string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	ctx := shared.ContextWithSession(req.Context(), &shared.Session{ID: "s1"})
	if role != "" {
		p := state.New(state.NewMemoryStorage(), state.NewSealer("secret"))
		store := int64(7)
		require.NoError(t, p.Login(context.Background(), state.Session{
			User:   state.User{ID: 1, Role: role, StoreID: &store},
			Tokens: state.Tokens{Access: "a"},
		}))
		ctx = state.ContextWithProvider(ctx, p)
	}
	return req.WithContext(ctx)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
}

func TestRequireAuthRedirectsAnonymous(t *testing.T) {
	rec := httptest.NewRecorder()
	req := requestAs(t, "", "/calls?search=iphone")
	Middleware{}.RequireAuth(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
	assert.Equal(t, "/calls?search=iphone", shared.SessionFromContext(req.Context()).Get("next"))
}

func TestRequireAuthAnswersJSONWith401(t *testing.T) {
	rec := httptest.NewRecorder()
	Middleware{}.RequireAuth(okHandler()).ServeHTTP(rec, requestAs(t, "", "/dashboard/summary.json"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoles(t *testing.T) {
	gate := Middleware{}.RequireRoles(Managers...)(okHandler())

	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, requestAs(t, "store_manager", "/users"))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, requestAs(t, "STAFF", "/users"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, requestAs(t, "MANAGER", "/users"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed(state.RoleStaff))
	assert.False(t, Allowed(state.RoleNone))
	assert.True(t, Allowed(state.RoleSuperAdmin, Admins...))
	assert.False(t, Allowed(state.RoleStoreManager, Admins...))
}
