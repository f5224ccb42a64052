package jobs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/fixline-ai/fixline/internal/jobs"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRevokeTokens blacklists the refresh token of a signed out session.
	TaskRevokeTokens = "auth:revoke"
	// TaskCatalogRefresh bumps the repair catalog cache version.
	TaskCatalogRefresh = "catalog:refresh"
	// TaskRetentionCleanup drops expired idempotency keys and old session records.
	TaskRetentionCleanup = "retention:cleanup"
)

// RevokePayload carries sealed tokens so the queue never holds them in clear.
type RevokePayload struct {
	Sealed string `json:"sealed"`
}

// NewRevokeTask seals tokens into an Asynq task.
func NewRevokeTask(sealer *state.Sealer, tokens state.Tokens) (*asynq.Task, error) {
	raw, err := json.Marshal(tokens)
	if err != nil {
		return nil, err
	}
	sealed, err := sealer.Seal(raw)
	if err != nil {
		return nil, fmt.Errorf("seal tokens: %w", err)
	}
	data, err := json.Marshal(RevokePayload{Sealed: base64.StdEncoding.EncodeToString(sealed)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRevokeTokens, data), nil
}

// RevokeJob performs queued token revocations against the backend.
type RevokeJob struct {
	revoker state.TokenRevoker
	sealer  *state.Sealer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewRevokeJob constructs the handler for TaskRevokeTokens.
func NewRevokeJob(revoker state.TokenRevoker, sealer *state.Sealer, logger *slog.Logger, metrics *jobmetrics.Metrics) *RevokeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RevokeJob{revoker: revoker, sealer: sealer, logger: logger, metrics: metrics}
}

// Handle processes TaskRevokeTokens tasks.
func (j *RevokeJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	tracker := j.metrics.Track("token_revoke")
	defer func() { err = tracker.End(err) }()

	var payload RevokePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	sealed, err := base64.StdEncoding.DecodeString(payload.Sealed)
	if err != nil {
		return fmt.Errorf("decode sealed tokens: %v: %w", err, asynq.SkipRetry)
	}
	raw, err := j.sealer.Open(sealed)
	if err != nil {
		// sealed under a rotated secret; nothing left to revoke with
		return fmt.Errorf("open sealed tokens: %v: %w", err, asynq.SkipRetry)
	}
	var tokens state.Tokens
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return fmt.Errorf("decode tokens: %v: %w", err, asynq.SkipRetry)
	}
	if err := j.revoker.RevokeTokens(ctx, tokens); err != nil {
		j.logger.Warn("revoke tokens", slog.Any("error", err))
		return err
	}
	return nil
}

// CatalogBumper invalidates the shared catalog cache.
type CatalogBumper interface {
	Bump(ctx context.Context) (int64, error)
}

// CatalogRefreshJob periodically expires cached catalog entries so price
// screens pick up backend edits made outside the dashboard.
type CatalogRefreshJob struct {
	catalog CatalogBumper
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewCatalogRefreshJob constructs the handler for TaskCatalogRefresh.
func NewCatalogRefreshJob(catalog CatalogBumper, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogRefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogRefreshJob{catalog: catalog, logger: logger, metrics: metrics}
}

// NewCatalogRefreshTask builds the cron task.
func NewCatalogRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskCatalogRefresh, nil)
}

// Handle processes TaskCatalogRefresh tasks.
func (j *CatalogRefreshJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("catalog_refresh")
	ver, err := j.catalog.Bump(ctx)
	if err != nil {
		return tracker.End(fmt.Errorf("bump catalog: %w", err))
	}
	j.logger.Info("catalog cache refreshed", slog.Int64("version", ver))
	return tracker.End(nil)
}

// RetentionPayload configures a cleanup run.
type RetentionPayload struct {
	IdempotencyTTL string `json:"idempotency_ttl"`
	SessionTTL     string `json:"session_ttl"`
}

// NewRetentionTask builds the cron task.
func NewRetentionTask(idempotencyTTL, sessionTTL time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(RetentionPayload{
		IdempotencyTTL: idempotencyTTL.String(),
		SessionTTL:     sessionTTL.String(),
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRetentionCleanup, data), nil
}

// TxRunner executes fn inside one database transaction.
type TxRunner func(ctx context.Context, fn func(shared.Execer) error) error

// SessionPurger deletes session records that ended before the cutoff.
type SessionPurger func(ctx context.Context, db shared.Execer, before time.Time) (int64, error)

// RetentionJob trims the dashboard's own Postgres tables.
type RetentionJob struct {
	tx      TxRunner
	purge   SessionPurger
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	now     func() time.Time
}

// NewRetentionJob constructs the handler for TaskRetentionCleanup.
func NewRetentionJob(tx TxRunner, purge SessionPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *RetentionJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionJob{tx: tx, purge: purge, logger: logger, metrics: metrics, now: time.Now}
}

// Handle processes TaskRetentionCleanup tasks.
func (j *RetentionJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	tracker := j.metrics.Track("retention_cleanup")
	defer func() { err = tracker.End(err) }()

	idemTTL, sessionTTL := 24*time.Hour, 30*24*time.Hour
	if len(t.Payload()) > 0 {
		var payload RetentionPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
		if d, err := time.ParseDuration(payload.IdempotencyTTL); err == nil && d > 0 {
			idemTTL = d
		}
		if d, err := time.ParseDuration(payload.SessionTTL); err == nil && d > 0 {
			sessionTTL = d
		}
	}
	if j.tx == nil {
		return errors.New("retention: no database configured")
	}

	var keys, sessions int64
	err = j.tx(ctx, func(db shared.Execer) error {
		var err error
		if keys, err = shared.NewIdempotencyStore(db).Cleanup(ctx, idemTTL); err != nil {
			return fmt.Errorf("cleanup idempotency keys: %w", err)
		}
		if j.purge != nil {
			if sessions, err = j.purge(ctx, db, j.now().Add(-sessionTTL)); err != nil {
				return fmt.Errorf("purge sessions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	j.metrics.AddRemoved("idempotency_keys", keys)
	j.metrics.AddRemoved("dashboard_sessions", sessions)
	j.logger.Info("retention cleanup", slog.Int64("idempotency_keys", keys), slog.Int64("sessions", sessions))
	return nil
}
