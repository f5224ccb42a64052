// Package webtest builds request contexts for dashboard handler tests.
package webtest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/fixline-ai/fixline/internal/screen"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/view"
)

// Env bundles the shared rendering dependencies of handler tests.
type Env struct {
	Logger    *slog.Logger
	Engine    *view.Engine
	CSRF      *shared.CSRFManager
	Registry  *screen.Registry
	Responder *view.Responder
}

// New parses the real templates and wires a Responder.
func New(t *testing.T, hooks ...view.ShellHook) *Env {
	t.Helper()
	engine, err := view.NewEngine(view.Options{MediaBaseURL: "https://media.fixline.test"})
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	csrf := shared.NewCSRFManager("csrf-secret")
	registry := screen.NewRegistry()
	return &Env{
		Logger:    logger,
		Engine:    engine,
		CSRF:      csrf,
		Registry:  registry,
		Responder: view.NewResponder(logger, engine, csrf, registry, hooks...),
	}
}

// Browser is one visitor with its cookie session, state and screens.
type Browser struct {
	env      *Env
	Session  *shared.Session
	Provider *state.Provider
	Storage  *state.MemoryStorage
}

// Browser returns a visitor, signed in with sess when it is not nil.
func (e *Env) Browser(t *testing.T, sess *state.Session) *Browser {
	t.Helper()
	storage := state.NewMemoryStorage()
	b := &Browser{
		env:      e,
		Session:  &shared.Session{ID: "browser-" + strings.ReplaceAll(t.Name(), "/", "-")},
		Provider: state.New(storage, state.NewSealer("session-secret")),
		Storage:  storage,
	}
	if sess != nil {
		if err := b.Provider.Login(context.Background(), *sess); err != nil {
			t.Fatalf("login: %v", err)
		}
	}
	return b
}

// Attach subscribes the browser's screens to its provider the way the state
// middleware does, so switching stores resets them.
func (b *Browser) Attach(t *testing.T) *Browser {
	t.Helper()
	_, detach := b.env.Registry.Attach(b.Session.ID, b.Provider)
	t.Cleanup(detach)
	return b
}

// Screens returns the browser's screen set.
func (b *Browser) Screens() *screen.Set {
	return b.env.Registry.Session(b.Session.ID)
}

// Request builds a request carrying the browser's contexts. form, when not
// nil, is sent urlencoded.
func (b *Browser) Request(method, target string, form url.Values) *http.Request {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	ctx := shared.ContextWithSession(req.Context(), b.Session)
	ctx = state.ContextWithProvider(ctx, b.Provider)
	ctx = screen.ContextWithSet(ctx, b.Screens())
	return req.WithContext(ctx)
}

// Flashes pops the toasts queued on the browser's session.
func (b *Browser) Flashes() []shared.FlashMessage {
	return b.Session.PopFlashes()
}

// SuperAdmin returns a super admin session.
func SuperAdmin() *state.Session {
	return &state.Session{
		User:   state.User{ID: 1, FirstName: "Sam", LastName: "Root", Email: "root@fixline.test", Role: "SUPER_ADMIN"},
		Tokens: state.Tokens{Access: "access-admin", Refresh: "refresh-admin"},
	}
}

// Manager returns a store manager session for store.
func Manager(store int64) *state.Session {
	return member("STORE_MANAGER", store)
}

// Staff returns a staff session for store.
func Staff(store int64) *state.Session {
	return member("STAFF", store)
}

func member(role string, store int64) *state.Session {
	return &state.Session{
		User:   state.User{ID: 20, FirstName: "Riley", LastName: "Tech", Email: "riley@fixline.test", Role: role, StoreID: &store},
		Tokens: state.Tokens{Access: "access-" + strings.ToLower(role), Refresh: "refresh"},
	}
}

// Form is a shorthand for url.Values from key/value pairs.
func Form(pairs ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Add(pairs[i], pairs[i+1])
	}
	return v
}
