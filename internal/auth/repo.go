package auth

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixline-ai/fixline/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	CreateSession(ctx context.Context, rec SessionRecord) error
	EndSession(ctx context.Context, id string, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const createSession = `INSERT INTO dashboard_sessions (id, user_id, email, role, store_id, created_at, expires_at, ip, user_agent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, email = EXCLUDED.email, role = EXCLUDED.role,
	store_id = EXCLUDED.store_id, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at, ended_at = NULL`

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, rec SessionRecord) error {
	var store pgtype.Int8
	if rec.StoreID != nil {
		store = pgtype.Int8{Int64: *rec.StoreID, Valid: true}
	}
	_, err := r.pool.Exec(ctx, createSession,
		rec.ID,
		rec.UserID,
		rec.Email,
		rec.Role,
		store,
		pgtype.Timestamptz{Time: rec.CreatedAt.UTC(), Valid: true},
		pgtype.Timestamptz{Time: rec.ExpiresAt.UTC(), Valid: true},
		pgtype.Text{String: rec.IP, Valid: rec.IP != ""},
		pgtype.Text{String: rec.UserAgent, Valid: rec.UserAgent != ""},
	)
	return err
}

// EndSession stamps the sign out time of a session.
func (r *PGRepository) EndSession(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE dashboard_sessions SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL`, id, pgtype.Timestamptz{Time: at.UTC(), Valid: true})
	return err
}

// PurgeSessions deletes records of sessions that ended or expired before the
// cutoff.
func PurgeSessions(ctx context.Context, db shared.Execer, before time.Time) (int64, error) {
	tag, err := db.Exec(ctx, `DELETE FROM dashboard_sessions WHERE COALESCE(ended_at, expires_at) < $1`, pgtype.Timestamptz{Time: before.UTC(), Valid: true})
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
