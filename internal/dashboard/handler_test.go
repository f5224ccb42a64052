package dashboard_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/dashboard"
	"github.com/fixline-ai/fixline/internal/platform/webtest"
	"github.com/fixline-ai/fixline/internal/state"
)

type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	summary  backend.StoreSummary
	trends   backend.CallTrends
	trendErr error
	stores   []int64
	byStore  map[int64]backend.StoreSummary
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) StoreSummary(ctx context.Context, storeID int64, rangeKey string) (backend.StoreSummary, error) {
	f.record("summary")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stores = append(f.stores, storeID)
	if s, ok := f.byStore[storeID]; ok {
		return s, nil
	}
	return f.summary, nil
}

func (f *fakeBackend) CallTrends(ctx context.Context, storeID int64, rangeKey string) (backend.CallTrends, error) {
	f.record("trends")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trends, f.trendErr
}

func (f *fakeBackend) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newRouter(t *testing.T, be dashboard.Backend) (http.Handler, *webtest.Env) {
	t.Helper()
	env := webtest.New(t)
	h := dashboard.NewHandler(env.Logger, func(*state.Provider) dashboard.Backend { return be }, env.Responder)
	r := chi.NewRouter()
	r.Route("/dashboard", h.MountRoutes)
	return r, env
}

func sample() *fakeBackend {
	return &fakeBackend{
		summary: backend.StoreSummary{TotalCalls: 1240, AIHandled: 900, WarmTransfers: 200, AppointmentsBooked: 90, MissedCalls: 50, AvgCallDuration: "2m 10s"},
		trends:  backend.CallTrends{TotalCalls: 1240, Trend: []backend.TrendPoint{{Label: "Mon", Calls: 400}, {Label: "Tue", Calls: 840}}},
	}
}

func TestDashboardRendersCardsAndTrend(t *testing.T) {
	be := sample()
	router, env := newRouter(t, be)
	b := env.Browser(t, webtest.Manager(3))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodGet, "/dashboard?range=this-week", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "1,240")
	assert.Contains(t, body, "2m 10s")
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, `value="this-week" selected`)
	assert.Equal(t, 2, be.count())
}

func TestDashboardSuperAdminWithoutStoreFetchesNothing(t *testing.T) {
	be := sample()
	router, env := newRouter(t, be)
	b := env.Browser(t, webtest.SuperAdmin())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please select a store")
	assert.Zero(t, be.count())
}

func TestDashboardRefetchesWhenStoreChanges(t *testing.T) {
	be := sample()
	be.byStore = map[int64]backend.StoreSummary{
		3: {TotalCalls: 3000, AvgCallDuration: "1m"},
		9: {TotalCalls: 9000, AvgCallDuration: "4m"},
	}
	router, env := newRouter(t, be)
	b := env.Browser(t, webtest.SuperAdmin()).Attach(t)
	ctx := context.Background()

	require.NoError(t, b.Provider.SelectStore(ctx, state.Store{ID: 3, Name: "Queens Center"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "3,000")

	require.NoError(t, b.Provider.SelectStore(ctx, state.Store{ID: 9, Name: "Jersey City"}))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "9,000")
	assert.NotContains(t, body, "3,000")

	be.mu.Lock()
	defer be.mu.Unlock()
	assert.Equal(t, []int64{3, 9}, be.stores)
}

func TestDashboardRefreshFailureKeepsData(t *testing.T) {
	be := sample()
	router, env := newRouter(t, be)
	b := env.Browser(t, webtest.Manager(3))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	be.mu.Lock()
	be.trendErr = errors.New("backend down")
	be.mu.Unlock()

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "1,240")
	assert.Contains(t, body, "Failed to load dashboard data")
}

func TestDashboardSummaryJSON(t *testing.T) {
	router, env := newRouter(t, sample())
	b := env.Browser(t, webtest.Staff(3))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodGet, "/dashboard/summary.json?range=bogus", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string `json:"status"`
		Range  string `json:"range"`
		Store  int64  `json:"store_id"`
		Data   struct {
			Summary backend.StoreSummary `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "loaded", resp.Status)
	assert.Equal(t, "today", resp.Range)
	assert.Equal(t, int64(3), resp.Store)
	assert.Equal(t, int64(900), resp.Data.Summary.AIHandled)
}

func TestDashboardSummaryJSONWithoutStore(t *testing.T) {
	router, env := newRouter(t, sample())
	b := env.Browser(t, webtest.SuperAdmin())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodGet, "/dashboard/summary.json", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDashboardExpiredSession(t *testing.T) {
	be := sample()
	be.trendErr = backend.ErrAuthExpired
	router, env := newRouter(t, be)
	b := env.Browser(t, webtest.Manager(3))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, b.Request(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
	assert.False(t, b.Provider.Authenticated())
}
