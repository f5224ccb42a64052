package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Dashboard audit actions.
const (
	AuditLogin       = "auth.login"
	AuditLogout      = "auth.logout"
	AuditStoreSelect = "store.select"
)

// Execer is the subset of pgxpool.Pool used by the Postgres writers.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLog represents a record stored in dashboard_audit_logs.
type AuditLog struct {
	ActorID   int64
	ActorRole string
	Action    string
	StoreID   *int64
	Meta      map[string]any
	At        time.Time
}

// AuditLogger writes records into dashboard_audit_logs.
type AuditLogger struct {
	db Execer
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" {
		return errors.New("audit log requires action")
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(ctx, `INSERT INTO dashboard_audit_logs (actor_id, actor_role, action, store_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		log.ActorID, log.ActorRole, log.Action, log.StoreID, metaJSON, log.At)
	return err
}
