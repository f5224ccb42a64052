package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"

	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/web"
)

// Engine renders HTML templates. Each page is parsed into its own clone of
// the layouts so pages can share block names.
type Engine struct {
	pages map[string]*template.Template
}

// Shell is the chrome around every authenticated page.
type Shell struct {
	User        *state.User
	Role        state.Role
	Store       *state.Store
	StoreID     int64
	HasStore    bool
	UnreadCount int
}

// IsSuperAdmin reports whether the viewer administers every store.
func (s Shell) IsSuperAdmin() bool { return s.Role == state.RoleSuperAdmin }

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flashes     []shared.FlashMessage
	CurrentPath string
	Shell       Shell
	Data        any
}

// Options tune template helpers.
type Options struct {
	MediaBaseURL string
}

// NewEngine parses templates at build-time.
func NewEngine(opts Options) (*Engine, error) {
	base, err := template.New("root").Funcs(funcMap(opts)).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, err
	}
	files, err := fs.Glob(web.Templates, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		page, err := clone.ParseFS(web.Templates, file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages["pages/"+path.Base(file)] = page
	}
	return &Engine{pages: pages}, nil
}

// Has reports whether a page template exists.
func (e *Engine) Has(name string) bool {
	_, ok := e.pages[name]
	return ok
}

// Render executes a named page with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData, status int) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	page, ok := e.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := page.ExecuteTemplate(&buf, path.Base(name), data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
