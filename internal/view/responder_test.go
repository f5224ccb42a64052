package view_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/platform/webtest"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/view"
)

func TestRenderRunsShellHooks(t *testing.T) {
	env := webtest.New(t, func(ctx context.Context, p *state.Provider, shell *view.Shell) {
		shell.UnreadCount = 4
	})
	b := env.Browser(t, webtest.Manager(3))
	b.Session.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: "Saved"})

	rec := httptest.NewRecorder()
	env.Responder.Render(rec, b.Request(http.MethodGet, "/users", nil), "pages/select_store.html", "Users", map[string]any{}, http.StatusOK)
	body := rec.Body.String()
	assert.Contains(t, body, `<span class="badge">4</span>`)
	assert.Contains(t, body, "Saved")
	assert.Contains(t, body, "Riley Tech")
	assert.Empty(t, b.Flashes())
}

func TestActiveStoreBlocksSuperAdminWithoutStore(t *testing.T) {
	env := webtest.New(t)
	b := env.Browser(t, webtest.SuperAdmin())

	rec := httptest.NewRecorder()
	_, ok := env.Responder.ActiveStore(rec, b.Request(http.MethodGet, "/calls", nil))
	assert.False(t, ok)
	assert.Contains(t, rec.Body.String(), "Please select a store")

	require.NoError(t, b.Provider.SelectStore(context.Background(), state.Store{ID: 8, Name: "Harbor"}))
	id, ok := env.Responder.ActiveStore(httptest.NewRecorder(), b.Request(http.MethodGet, "/calls", nil))
	assert.True(t, ok)
	assert.Equal(t, int64(8), id)
}

func TestActiveStoreJSON(t *testing.T) {
	env := webtest.New(t)
	b := env.Browser(t, webtest.SuperAdmin())
	req := b.Request(http.MethodGet, "/dashboard/summary.json", nil)
	req.Header.Set("Accept", "application/json")

	rec := httptest.NewRecorder()
	_, ok := env.Responder.ActiveStore(rec, req)
	assert.False(t, ok)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFailExpiresSession(t *testing.T) {
	env := webtest.New(t)
	b := env.Browser(t, webtest.Manager(3))

	rec := httptest.NewRecorder()
	env.Responder.Fail(rec, b.Request(http.MethodGet, "/calls", nil), fmt.Errorf("calls: %w", backend.ErrAuthExpired), "/dashboard")
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
	assert.False(t, b.Provider.Authenticated())
}

func TestFailRedirectsWithToast(t *testing.T) {
	env := webtest.New(t)
	b := env.Browser(t, webtest.Manager(3))

	rec := httptest.NewRecorder()
	env.Responder.Fail(rec, b.Request(http.MethodPost, "/pricing", nil), shared.NewSafeError("Failed to save price", errors.New("boom")), "/pricing")
	assert.Equal(t, "/pricing", rec.Header().Get("Location"))
	assert.Equal(t, []shared.FlashMessage{{Kind: shared.FlashError, Message: "Failed to save price"}}, b.Flashes())
	assert.True(t, b.Provider.Authenticated())
}

func TestFailIgnoresCanceled(t *testing.T) {
	env := webtest.New(t)
	b := env.Browser(t, webtest.Manager(3))

	rec := httptest.NewRecorder()
	env.Responder.Fail(rec, b.Request(http.MethodGet, "/calls", nil), context.Canceled, "/dashboard")
	assert.Empty(t, rec.Header().Get("Location"))
	assert.Empty(t, b.Flashes())
}
