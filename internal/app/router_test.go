package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixline-ai/fixline/internal/app"
	"github.com/fixline-ai/fixline/internal/auth"
	"github.com/fixline-ai/fixline/internal/platform/webtest"
	"github.com/fixline-ai/fixline/internal/rbac"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
)

type staticLogin struct{ sess state.Session }

func (s staticLogin) Login(context.Context, string, string) (state.Session, error) {
	return s.sess, nil
}

type harness struct {
	router   http.Handler
	sessions *shared.SessionManager
	storage  *state.RedisStorage
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := webtest.New(t)
	sessions := shared.NewSessionManager(client, "fixline_session", time.Hour, false)
	storage := state.NewRedisStorage(client, time.Hour)
	service := auth.NewService(staticLogin{sess: *webtest.Staff(7)}, nil, env.Logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         env.Logger,
		Config:         &app.Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second},
		SessionManager: sessions,
		CSRFManager:    env.CSRF,
		State: app.StateConfig{
			Storage:  storage,
			Sealer:   state.NewSealer("session-secret"),
			Registry: env.Registry,
		},
		RBACMiddleware: rbac.Middleware{Logger: env.Logger},
		AuthHandler:    auth.NewHandler(env.Logger, service, env.Responder, env.Registry, time.Hour).RotateSessions(func(id string) state.Storage {
			return storage.Scope(id)
		}),
	})
	return &harness{router: router, sessions: sessions, storage: storage}
}

func (h *harness) do(t *testing.T, req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == "fixline_session" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func (h *harness) csrfToken(t *testing.T, cookie *http.Cookie) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	sess, err := h.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	token := sess.Get(shared.CSRFSessionKey)
	require.NotEmpty(t, token)
	return token
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestRootRedirectsVisitorsToLogin(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/auth/login", rr.Header().Get("Location"))
	assert.NotEmpty(t, rr.Header().Get("X-Frame-Options"))
}

func TestPostWithoutCSRFTokenIsRejected(t *testing.T) {
	h := newHarness(t)
	form := url.Values{"email": {"riley@fixline.test"}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := h.do(t, req, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestLoginSurvivesAcrossRequests(t *testing.T) {
	h := newHarness(t)

	page := h.do(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil), nil)
	require.Equal(t, http.StatusOK, page.Code)
	cookie := sessionCookie(t, page)

	form := url.Values{
		"email":              {"riley@fixline.test"},
		"password":           {"secret"},
		shared.CSRFFormField: {h.csrfToken(t, cookie)},
	}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	login := h.do(t, req, cookie)
	require.Equal(t, http.StatusSeeOther, login.Code)
	assert.Equal(t, "/dashboard", login.Header().Get("Location"))
	signedIn := sessionCookie(t, login)
	assert.NotEqual(t, cookie.Value, signedIn.Value)

	// the provider is rebuilt from Redis on the next request
	p := state.New(h.storage.Scope(signedIn.Value), state.NewSealer("session-secret"))
	require.NoError(t, p.Restore(context.Background()))
	id, ok := p.ActiveStoreID()
	require.True(t, ok)
	assert.Equal(t, int64(7), id)

	root := h.do(t, httptest.NewRequest(http.MethodGet, "/", nil), signedIn)
	assert.Equal(t, http.StatusSeeOther, root.Code)
	assert.Equal(t, "/dashboard", root.Header().Get("Location"))

	// the pre-login cookie no longer carries the signed in state
	stale := h.do(t, httptest.NewRequest(http.MethodGet, "/", nil), cookie)
	assert.Equal(t, http.StatusSeeOther, stale.Code)
	assert.Equal(t, "/auth/login", stale.Header().Get("Location"))
}

func TestStaticAssetsAreCached(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil), nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
}
