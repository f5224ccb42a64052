package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"

	"github.com/fixline-ai/fixline/internal/app"
	"github.com/fixline-ai/fixline/internal/auth"
	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/observability"
	"github.com/fixline-ai/fixline/internal/platform/cache"
	"github.com/fixline-ai/fixline/internal/platform/db"
	"github.com/fixline-ai/fixline/internal/pricing"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
	metrics := observability.NewMetrics()

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

	var tx jobs.TxRunner
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Warn("connect postgres, retention cleanup disabled", slog.Any("error", err))
	} else {
		defer pool.Close()
		tx = func(ctx context.Context, fn func(shared.Execer) error) error {
			return db.WithTx(ctx, pool, func(t pgx.Tx) error { return fn(t) })
		}
	}

	sealer := state.NewSealer(cfg.SessionSecret)
	revokeJob := jobs.NewRevokeJob(client, sealer, logger, metrics.Jobs())
	catalogJob := jobs.NewCatalogRefreshJob(pricing.NewCatalog(redisClient, cfg.CatalogTTL), logger, metrics.Jobs())
	retentionJob := jobs.NewRetentionJob(tx, auth.PurgeSessions, logger, metrics.Jobs())

	retentionTask, err := jobs.NewRetentionTask(cfg.IdempotencyTTL, cfg.SessionRecordTTL)
	if err != nil {
		logger.Error("build retention task", slog.Any("error", err))
		os.Exit(1)
	}

	cron := []jobs.CronRegistration{
		{Spec: cfg.CatalogRefreshCron, Task: jobs.NewCatalogRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
	}
	if tx != nil {
		cron = append(cron, jobs.CronRegistration{Spec: "30 3 * * *", Task: retentionTask, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRevokeTokens, Handler: revokeJob.Handle},
			{Type: jobs.TaskCatalogRefresh, Handler: catalogJob.Handle},
			{Type: jobs.TaskRetentionCleanup, Handler: retentionJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: cfg.AppReadTimeout}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
