package stores_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/platform/webtest"
	"github.com/fixline-ai/fixline/internal/screen"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/stores"
)

type fakeBackend struct {
	stores []state.Store
	err    error
}

func (f fakeBackend) Stores(ctx context.Context) ([]state.Store, error) { return f.stores, f.err }

type recorder struct{ logs []shared.AuditLog }

func (r *recorder) Record(ctx context.Context, log shared.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

var catalog = []state.Store{
	{ID: 3, Name: "Queens Center", Address: "789 Queens Blvd, NY", Status: "online"},
	{ID: 9, Name: "Boston Downtown", Address: "555 Boylston St, MA", Status: "offline"},
}

func newRouter(t *testing.T, be stores.Backend, audit stores.Auditor) (http.Handler, *webtest.Env) {
	t.Helper()
	env := webtest.New(t)
	h := stores.NewHandler(env.Logger, func(*state.Provider) stores.Backend { return be }, env.Responder, audit)
	r := chi.NewRouter()
	r.Route("/stores", h.MountRoutes)
	return r, env
}

func TestStoresPageListsStores(t *testing.T) {
	router, env := newRouter(t, fakeBackend{stores: catalog}, nil)
	b := env.Browser(t, webtest.SuperAdmin())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodGet, "/stores", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Queens Center")
	assert.Contains(t, rec.Body.String(), "Offline")
}

func TestSelectStoreSwitchesActiveStoreAndResetsScreens(t *testing.T) {
	audit := &recorder{}
	router, env := newRouter(t, fakeBackend{stores: catalog}, audit)
	b := env.Browser(t, webtest.SuperAdmin())
	require.NoError(t, b.Provider.SelectStore(context.Background(), catalog[0]))

	set, detach := env.Registry.Attach(b.Session.ID, b.Provider)
	defer detach()
	loader := screen.Use[screen.Key, string](set, "dashboard")
	_, err := loader.Fetch(context.Background(), screen.Key{StoreID: 3}, func(ctx context.Context, k screen.Key) (string, error) {
		return "store 3 cards", nil
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodPost, "/stores/select", webtest.Form("store_id", "9", "next", "/pricing")))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/pricing", rec.Header().Get("Location"))

	id, ok := b.Provider.ActiveStoreID()
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)
	assert.Equal(t, screen.StatusIdle, loader.Snapshot().Status)
	assert.Empty(t, loader.Snapshot().Data)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, shared.AuditStoreSelect, audit.logs[0].Action)
	assert.Equal(t, int64(3), audit.logs[0].Meta["from_store"])
}

func TestSelectUnknownStore(t *testing.T) {
	router, env := newRouter(t, fakeBackend{stores: catalog}, nil)
	b := env.Browser(t, webtest.SuperAdmin())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodPost, "/stores/select", webtest.Form("store_id", "42", "next", "//evil.test")))
	assert.Equal(t, "/stores", rec.Header().Get("Location"))
	_, ok := b.Provider.ActiveStoreID()
	assert.False(t, ok)
}

func TestStoresExpiredSessionLogsOut(t *testing.T) {
	router, env := newRouter(t, fakeBackend{err: backend.ErrAuthExpired}, nil)
	b := env.Browser(t, webtest.SuperAdmin())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodGet, "/stores", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
	assert.Nil(t, b.Provider.Session())
}
