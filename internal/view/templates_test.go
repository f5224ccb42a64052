package view

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(Options{})
	require.NoError(t, err, "Templates should parse without error")
	for _, page := range []string{"pages/dashboard.html", "pages/calls.html", "pages/pricing.html", "pages/settings_ai.html", "pages/select_store.html"} {
		assert.True(t, engine.Has(page), page)
	}
	assert.False(t, engine.Has("pages/missing.html"))
}

func TestEngineRenderUnknownPage(t *testing.T) {
	engine, err := NewEngine(Options{})
	require.NoError(t, err)
	assert.Error(t, engine.Render(httptest.NewRecorder(), "pages/missing.html", TemplateData{}, 0))

	var nilEngine *Engine
	assert.Error(t, nilEngine.Render(httptest.NewRecorder(), "pages/login.html", TemplateData{}, 0))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1,240", Count(1240))
	assert.Equal(t, "0", Count(0))
	assert.Equal(t, "Warm Transfer", Humanize("WARM_TRANSFER"))
	assert.Equal(t, "", Humanize("  "))
	assert.Equal(t, "$120.50", Money(backend.Text("120.5")))
	assert.Equal(t, "call us", Money(backend.Text("call us")))
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", TimeAgo(now.Add(-30*time.Second), now))
	assert.Equal(t, "5 min ago", TimeAgo(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3 hour ago", TimeAgo(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2 day ago", TimeAgo(now.Add(-50*time.Hour), now))
}

func TestMediaURL(t *testing.T) {
	assert.Equal(t, "https://media.test/media/a.png", MediaURL("https://media.test", "/media/a.png"))
	assert.Equal(t, "https://cdn.test/a.png", MediaURL("https://media.test", "https://cdn.test/a.png"))
	assert.Equal(t, "/media/a.png", MediaURL("", "/media/a.png"))
	assert.Equal(t, "", MediaURL("https://media.test", " "))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Price already exists", Message(&backend.APIError{Status: 400, Detail: "Price already exists"}))
	assert.Equal(t, "Something went wrong, please try again", Message(&backend.APIError{Status: 502, Detail: "bad gateway"}))
	assert.Equal(t, shared.UserSafeMessage(shared.ErrNotFound), Message(backend.ErrNotFound))
	assert.Equal(t, "Failed to load users", Message(shared.NewSafeError("Failed to load users", errors.New("dial tcp"))))
}
