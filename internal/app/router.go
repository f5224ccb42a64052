package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fixline-ai/fixline/internal/appointments"
	"github.com/fixline-ai/fixline/internal/auth"
	"github.com/fixline-ai/fixline/internal/calls"
	"github.com/fixline-ai/fixline/internal/dashboard"
	"github.com/fixline-ai/fixline/internal/notifications"
	"github.com/fixline-ai/fixline/internal/observability"
	"github.com/fixline-ai/fixline/internal/pricing"
	"github.com/fixline-ai/fixline/internal/rbac"
	"github.com/fixline-ai/fixline/internal/settings"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/stores"
	"github.com/fixline-ai/fixline/internal/users"
	"github.com/fixline-ai/fixline/jobs"
	"github.com/fixline-ai/fixline/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	State          StateConfig
	RBACMiddleware rbac.Middleware
	Metrics        *observability.Metrics

	AuthHandler          *auth.Handler
	StoresHandler        *stores.Handler
	DashboardHandler     *dashboard.Handler
	CallsHandler         *calls.Handler
	AppointmentsHandler  *appointments.Handler
	PricingHandler       *pricing.Handler
	NotificationsHandler *notifications.Handler
	UsersHandler         *users.Handler
	SettingsHandler      *settings.Handler
	JobsHandler          *jobs.Handler
}

// NewRouter constructs the chi.Router with Fixline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		State:          params.State,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if p := state.FromContext(r.Context()); p != nil && p.Authenticated() {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireAuth)
		if params.StoresHandler != nil {
			r.Route("/stores", func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireRoles(rbac.Admins...))
				params.StoresHandler.MountRoutes(r)
			})
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireRoles(rbac.Admins...))
				params.JobsHandler.MountRoutes(r)
			})
		}
		if params.DashboardHandler != nil {
			r.Route("/dashboard", params.DashboardHandler.MountRoutes)
		}
		if params.CallsHandler != nil {
			r.Route("/calls", params.CallsHandler.MountRoutes)
		}
		if params.AppointmentsHandler != nil {
			r.Route("/appointments", params.AppointmentsHandler.MountRoutes)
		}
		if params.PricingHandler != nil {
			r.Route("/pricing", params.PricingHandler.MountRoutes)
		}
		if params.NotificationsHandler != nil {
			r.Route("/notifications", params.NotificationsHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.SettingsHandler != nil {
			r.Route("/settings", params.SettingsHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets are cached for 1 hour in browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
