package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixline-ai/fixline/internal/auth"
	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/platform/webtest"
	"github.com/fixline-ai/fixline/internal/state"
	_ "github.com/fixline-ai/fixline/testing"
)

type stubBackend struct {
	sess state.Session
	err  error
}

func (s stubBackend) Login(ctx context.Context, email, password string) (state.Session, error) {
	return s.sess, s.err
}

type stubRepo struct {
	created []auth.SessionRecord
	ended   []string
}

func (s *stubRepo) CreateSession(ctx context.Context, rec auth.SessionRecord) error {
	s.created = append(s.created, rec)
	return nil
}

func (s *stubRepo) EndSession(ctx context.Context, id string, at time.Time) error {
	s.ended = append(s.ended, id)
	return nil
}

func newAuthHandler(t *testing.T, be auth.Authenticator, repo auth.Repository) (*auth.Handler, *webtest.Env) {
	t.Helper()
	env := webtest.New(t)
	service := auth.NewService(be, repo, env.Logger)
	return auth.NewHandler(env.Logger, service, env.Responder, env.Registry, time.Hour), env
}

func serve(h *auth.Handler, req *http.Request) *httptest.ResponseRecorder {
	r := chiRouter(h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLoginPage(t *testing.T) {
	handler, env := newAuthHandler(t, stubBackend{}, nil)
	b := env.Browser(t, nil)

	res := serve(handler, b.Request(http.MethodGet, "/auth/login", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
	assert.Contains(t, res.Body.String(), `name="csrf_token"`)
}

func TestLoginInvalidCredentials(t *testing.T) {
	handler, env := newAuthHandler(t, stubBackend{err: backend.ErrInvalidCredentials}, nil)
	b := env.Browser(t, nil)

	res := serve(handler, b.Request(http.MethodPost, "/auth/login", webtest.Form("email", "ada@fixline.test", "password", "wrong")))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid email or password")
	assert.False(t, b.Provider.Authenticated())
}

func TestLoginRequiresFields(t *testing.T) {
	handler, env := newAuthHandler(t, stubBackend{err: backend.ErrInvalidCredentials}, nil)
	b := env.Browser(t, nil)

	res := serve(handler, b.Request(http.MethodPost, "/auth/login", webtest.Form("email", "not-an-email")))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Enter a valid email address")
	assert.Contains(t, res.Body.String(), "Password is required")
}

func TestStaffLoginLandsOnDashboard(t *testing.T) {
	repo := &stubRepo{}
	handler, env := newAuthHandler(t, stubBackend{sess: *webtest.Staff(7)}, repo)
	b := env.Browser(t, nil)

	res := serve(handler, b.Request(http.MethodPost, "/auth/login", webtest.Form("email", "riley@fixline.test", "password", "secret")))
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/dashboard", res.Header().Get("Location"))

	id, ok := b.Provider.ActiveStoreID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "STAFF", repo.created[0].Role)
	assert.Equal(t, b.Session.ID, repo.created[0].ID)
}

func TestSuperAdminLoginClearsPreviousStore(t *testing.T) {
	handler, env := newAuthHandler(t, stubBackend{sess: *webtest.SuperAdmin()}, nil)
	b := env.Browser(t, webtest.SuperAdmin())
	require.NoError(t, b.Provider.SelectStore(context.Background(), state.Store{ID: 3, Name: "Queens"}))

	res := serve(handler, b.Request(http.MethodPost, "/auth/login", webtest.Form("email", "root@fixline.test", "password", "secret")))
	assert.Equal(t, "/stores", res.Header().Get("Location"))
	_, ok := b.Provider.ActiveStoreID()
	assert.False(t, ok)
}

func TestLoginRejectsUnknownRole(t *testing.T) {
	sess := *webtest.Staff(7)
	sess.User.Role = "TECHNICIAN"
	handler, env := newAuthHandler(t, stubBackend{sess: sess}, nil)
	b := env.Browser(t, nil)

	res := serve(handler, b.Request(http.MethodPost, "/auth/login", webtest.Form("email", "riley@fixline.test", "password", "secret")))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Nil(t, b.Provider.Session())
}

func TestLogoutIsIdempotent(t *testing.T) {
	repo := &stubRepo{}
	handler, env := newAuthHandler(t, stubBackend{}, repo)
	b := env.Browser(t, webtest.Manager(4))

	for range 2 {
		res := serve(handler, b.Request(http.MethodPost, "/auth/logout", webtest.Form()))
		assert.Equal(t, http.StatusSeeOther, res.Code)
		assert.Equal(t, "/auth/login", res.Header().Get("Location"))
	}
	assert.Nil(t, b.Provider.Session())
	assert.Len(t, repo.ended, 2)
}
