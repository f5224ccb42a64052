package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "fixline_session", time.Hour, false), mr
}

func TestSessionRoundTripWithFlashes(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set("next", "/calls")
	sess.AddFlash(FlashMessage{Kind: FlashSuccess, Message: "Saved"})

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	assert.True(t, mr.Exists("fixline:session:"+sess.ID))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "/calls", loaded.Get("next"))
	assert.Equal(t, []FlashMessage{{Kind: FlashSuccess, Message: "Saved"}}, loaded.PopFlashes())
	assert.Nil(t, loaded.PopFlashes())
}

func TestSessionDestroyClearsCookie(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))

	sm.Destroy(sess)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	assert.False(t, mr.Exists("fixline:session:"+sess.ID))
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestSessionRenewMovesRecord(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set(CSRFSessionKey, "token")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	old := sess.ID

	sess.Renew()
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	assert.NotEqual(t, old, sess.ID)
	assert.False(t, mr.Exists("fixline:session:"+old))
	assert.True(t, mr.Exists("fixline:session:"+sess.ID))
	assert.Equal(t, sess.ID, rec.Result().Cookies()[0].Value)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "token", loaded.Get(CSRFSessionKey))
}

func TestSessionIgnoresForgedCookie(t *testing.T) {
	sm, _ := newManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "fixline_session", Value: "../../etc"})
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "../../etc", sess.ID)
}

func TestCSRFToken(t *testing.T) {
	m := NewCSRFManager("csrf-secret")
	sess := &Session{ID: "abc"}
	token, err := m.EnsureToken(sess)
	require.NoError(t, err)
	again, err := m.EnsureToken(sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, m.VerifyToken(sess, token))
	assert.ErrorIs(t, m.VerifyToken(sess, "other"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, m.VerifyToken(sess, ""), ErrCSRFTokenMissing)
}

func TestPaginate(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i + 1
	}
	page, p := Paginate(items, 3, 10)
	assert.Equal(t, []int{21, 22, 23}, page)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 21, p.From)
	assert.True(t, p.HasPrev())
	assert.False(t, p.HasNext())

	page, p = Paginate(items, 9, 10)
	assert.Equal(t, 3, p.Page)
	assert.Len(t, page, 3)

	page, p = Paginate([]int{}, 1, 10)
	assert.Empty(t, page)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 0, p.From)
}

func TestUserSafeMessage(t *testing.T) {
	assert.Equal(t, "Price is required", UserSafeMessage(NewSafeError("Price is required", errors.New("validation"))))
	assert.Equal(t, "Please select a store", UserSafeMessage(fmt.Errorf("pricing: %w", ErrStoreRequired)))
	assert.Equal(t, "Something went wrong, please try again", UserSafeMessage(errors.New("dial tcp: refused")))
	assert.Empty(t, UserSafeMessage(nil))
}

type fakeExec struct {
	seen map[string]bool
	sql  []string
}

func (f *fakeExec) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	if len(args) == 3 {
		key := args[0].(string)
		if f.seen[key] {
			return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"}
		}
		f.seen[key] = true
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestIdempotencyRejectsDuplicate(t *testing.T) {
	store := NewIdempotencyStore(&fakeExec{seen: map[string]bool{}})
	ctx := context.Background()
	require.NoError(t, store.CheckAndInsert(ctx, "k1", "pricing.create"))
	assert.ErrorIs(t, store.CheckAndInsert(ctx, "k1", "pricing.create"), ErrIdempotencyConflict)
	assert.Error(t, store.CheckAndInsert(ctx, "", "pricing.create"))

	var disabled *IdempotencyStore
	assert.NoError(t, disabled.CheckAndInsert(ctx, "k1", "pricing.create"))
}

func TestAuditRecordDefaultsTimestamp(t *testing.T) {
	exec := &fakeExec{seen: map[string]bool{}}
	logger := NewAuditLogger(exec)
	store := int64(3)
	require.NoError(t, logger.Record(context.Background(), AuditLog{ActorID: 1, Action: AuditStoreSelect, StoreID: &store}))
	require.Len(t, exec.sql, 1)
	assert.Contains(t, exec.sql[0], "dashboard_audit_logs")
	assert.Error(t, logger.Record(context.Background(), AuditLog{}))
}
