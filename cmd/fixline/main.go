package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fixline-ai/fixline/internal/app"
	"github.com/fixline-ai/fixline/internal/appointments"
	"github.com/fixline-ai/fixline/internal/auth"
	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/calls"
	"github.com/fixline-ai/fixline/internal/dashboard"
	"github.com/fixline-ai/fixline/internal/notifications"
	"github.com/fixline-ai/fixline/internal/observability"
	"github.com/fixline-ai/fixline/internal/platform/cache"
	"github.com/fixline-ai/fixline/internal/platform/db"
	"github.com/fixline-ai/fixline/internal/pricing"
	"github.com/fixline-ai/fixline/internal/rbac"
	"github.com/fixline-ai/fixline/internal/screen"
	"github.com/fixline-ai/fixline/internal/settings"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/stores"
	"github.com/fixline-ai/fixline/internal/users"
	"github.com/fixline-ai/fixline/internal/view"
	"github.com/fixline-ai/fixline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	// the audit database is optional; the dashboard keeps working without it
	var auditDB shared.Execer
	var authRepo auth.Repository
	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Warn("connect postgres, audit trail disabled", slog.Any("error", err))
	} else {
		defer dbpool.Close()
		auditDB = dbpool
		authRepo = auth.NewRepository(dbpool)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	client, err := backend.New(backend.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Logger:  logger,
		Metrics: backend.NewMetrics(metrics.Registerer()),
	})
	if err != nil {
		logger.Error("init backend client", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	queue := asynq.NewClient(redisOpts)
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	sealer := state.NewSealer(cfg.SessionSecret)
	sessionManager := shared.NewSessionManager(redisClient, "fixline_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	registry := screen.NewRegistry()
	revoker := jobs.NewRevoker(queue, sealer, client, logger)

	engine, err := view.NewEngine(view.Options{MediaBaseURL: cfg.MediaBaseURL})
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	unread := notifications.UnreadBadge(logger, func(p *state.Provider) notifications.Backend { return client.As(p) })
	responder := view.NewResponder(logger, engine, csrfManager, registry, unread)

	auditLogger := shared.NewAuditLogger(auditDB)
	idempotencyStore := shared.NewIdempotencyStore(auditDB)
	catalog := pricing.NewCatalog(redisClient, cfg.CatalogTTL)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	authService := auth.NewService(client, authRepo, logger)
	stateStorage := state.NewRedisStorage(redisClient, cfg.SessionTTL)
	userService := users.NewService(func(p *state.Provider) users.Directory { return client.As(p) }, cfg.MediaBaseURL)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		State: app.StateConfig{
			Storage:  stateStorage,
			Sealer:   sealer,
			Revoker:  revoker,
			Registry: registry,
		},
		RBACMiddleware: rbacMiddleware,
		Metrics:        metrics,

		AuthHandler: auth.NewHandler(logger, authService, responder, registry, cfg.SessionTTL).RotateSessions(func(id string) state.Storage {
			return stateStorage.Scope(id)
		}),
		StoresHandler: stores.NewHandler(logger, func(p *state.Provider) stores.Backend {
			return client.As(p)
		}, responder, auditLogger),
		DashboardHandler: dashboard.NewHandler(logger, func(p *state.Provider) dashboard.Backend {
			return client.As(p)
		}, responder),
		CallsHandler: calls.NewHandler(logger, func(p *state.Provider) calls.Backend {
			return client.As(p)
		}, responder),
		AppointmentsHandler: appointments.NewHandler(logger, func(p *state.Provider) appointments.Backend {
			return client.As(p)
		}, responder, cfg.BookingBaseURL),
		PricingHandler: pricing.NewHandler(logger, func(p *state.Provider) pricing.Backend {
			return client.As(p)
		}, responder, catalog, idempotencyStore, rbacMiddleware),
		NotificationsHandler: notifications.NewHandler(logger, func(p *state.Provider) notifications.Backend {
			return client.As(p)
		}, responder),
		UsersHandler: users.NewHandler(logger, userService, responder, idempotencyStore, rbacMiddleware),
		SettingsHandler: settings.NewHandler(logger, func(p *state.Provider) settings.Backend {
			return client.As(p)
		}, responder, client, rbacMiddleware),
		JobsHandler: jobs.NewHandler(inspector, logger),
	})

	go registry.Run(ctx, time.Minute, cfg.ScreenIdleTTL)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.BackendURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
