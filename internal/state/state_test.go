package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRevoker struct {
	calls  int
	tokens Tokens
	err    error
}

func (s *stubRevoker) RevokeTokens(ctx context.Context, tokens Tokens) error {
	s.calls++
	s.tokens = tokens
	return s.err
}

type stubFetcher struct {
	patch ProfilePatch
	err   error
}

func (s stubFetcher) FetchProfile(ctx context.Context, tokens Tokens) (ProfilePatch, error) {
	return s.patch, s.err
}

func storeID(id int64) *int64 { return &id }

func strPtr(v string) *string { return &v }

func newTestProvider(t *testing.T) (*Provider, *MemoryStorage, *stubRevoker) {
	t.Helper()
	storage := NewMemoryStorage()
	revoker := &stubRevoker{}
	return New(storage, NewSealer("secret"), WithRevoker(revoker)), storage, revoker
}

func sessionFor(role string, store *int64) Session {
	return Session{
		User:   User{ID: 10, FirstName: "Ada", LastName: "Lovelace", Email: "ada@fixline.test", Role: role, StoreID: store},
		Tokens: Tokens{Access: "access-token", Refresh: "refresh-token"},
	}
}

func TestResolveRole(t *testing.T) {
	cases := map[string]Role{
		"SUPER_ADMIN":   RoleSuperAdmin,
		"super_admin":   RoleSuperAdmin,
		"SuperAdmin":    RoleSuperAdmin,
		"SUPERADMIN":    RoleSuperAdmin,
		"Super Admin":   RoleSuperAdmin,
		"STORE_MANAGER": RoleStoreManager,
		"storemanager":  RoleStoreManager,
		"store-manager": RoleStoreManager,
		"STAFF":         RoleStaff,
		" staff ":       RoleStaff,
		"":              RoleNone,
		"ADMIN":         RoleNone,
		"MANAGER":       RoleNone,
		"STAFFER":       RoleNone,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ResolveRole(raw), "raw role %q", raw)
	}
}

func TestActiveStoreIDForStoreBoundRoles(t *testing.T) {
	for _, role := range []string{"STORE_MANAGER", "STAFF"} {
		p, _, _ := newTestProvider(t)
		ctx := context.Background()
		require.NoError(t, p.Login(ctx, sessionFor(role, storeID(7))))
		require.NoError(t, p.SelectStore(ctx, Store{ID: 99, Name: "Other"}))

		id, ok := p.ActiveStoreID()
		assert.True(t, ok)
		assert.Equal(t, int64(7), id, "role %s must ignore selected store", role)
		assert.False(t, p.NeedsStoreSelection())
	}
}

func TestActiveStoreIDForSuperAdmin(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()
	require.NoError(t, p.Login(ctx, sessionFor("SUPER_ADMIN", storeID(7))))

	_, ok := p.ActiveStoreID()
	assert.False(t, ok)
	assert.True(t, p.NeedsStoreSelection())

	require.NoError(t, p.SelectStore(ctx, Store{ID: 3, Name: "Queens Center"}))
	id, ok := p.ActiveStoreID()
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)
}

func TestActiveStoreIDWithoutSessionOrRole(t *testing.T) {
	p, _, _ := newTestProvider(t)
	_, ok := p.ActiveStoreID()
	assert.False(t, ok)

	require.NoError(t, p.Login(context.Background(), sessionFor("GUEST", storeID(4))))
	_, ok = p.ActiveStoreID()
	assert.False(t, ok)
	assert.False(t, p.Authenticated())
}

func TestLoginClearsStaleStore(t *testing.T) {
	p, storage, _ := newTestProvider(t)
	ctx := context.Background()
	require.NoError(t, p.Login(ctx, sessionFor("SUPER_ADMIN", nil)))
	require.NoError(t, p.SelectStore(ctx, Store{ID: 3}))
	require.True(t, storage.Has(KeySelectedStore))

	require.NoError(t, p.Login(ctx, sessionFor("SUPER_ADMIN", nil)))
	_, ok := p.ActiveStoreID()
	assert.False(t, ok)
	assert.Nil(t, p.SelectedStore())
	assert.False(t, storage.Has(KeySelectedStore))
}

func TestLogoutIsIdempotent(t *testing.T) {
	p, storage, revoker := newTestProvider(t)
	ctx := context.Background()
	require.NoError(t, p.Login(ctx, sessionFor("SUPER_ADMIN", nil)))
	require.NoError(t, p.SelectStore(ctx, Store{ID: 3}))

	require.NoError(t, p.Logout(ctx))
	assert.Nil(t, p.Session())
	assert.Nil(t, p.SelectedStore())
	assert.False(t, storage.Has(KeySession))
	assert.False(t, storage.Has(KeySelectedStore))
	assert.Equal(t, 1, revoker.calls)
	assert.Equal(t, "refresh-token", revoker.tokens.Refresh)

	require.NoError(t, p.Logout(ctx))
	assert.Nil(t, p.Session())
	assert.Nil(t, p.SelectedStore())
	assert.Equal(t, 1, revoker.calls)
}

func TestLogoutIgnoresRevokeFailure(t *testing.T) {
	p, _, revoker := newTestProvider(t)
	revoker.err = errors.New("backend down")
	ctx := context.Background()
	require.NoError(t, p.Login(ctx, sessionFor("STAFF", storeID(1))))
	assert.NoError(t, p.Logout(ctx))
	assert.Nil(t, p.Session())
}

func TestRefreshProfileMergesShallowly(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()
	require.NoError(t, p.Login(ctx, sessionFor("STAFF", storeID(7))))

	err := p.RefreshProfile(ctx, stubFetcher{patch: ProfilePatch{FirstName: strPtr("Grace"), ProfileImage: strPtr("/media/grace.png")}})
	require.NoError(t, err)

	sess := p.Session()
	require.NotNil(t, sess)
	assert.Equal(t, "Grace", sess.User.FirstName)
	assert.Equal(t, "Lovelace", sess.User.LastName)
	assert.Equal(t, "/media/grace.png", sess.User.ProfileImage)
	assert.Equal(t, "access-token", sess.Tokens.Access)
	assert.Equal(t, "refresh-token", sess.Tokens.Refresh)
}

func TestRefreshProfileFailureKeepsSession(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()
	require.NoError(t, p.Login(ctx, sessionFor("STAFF", storeID(7))))

	err := p.RefreshProfile(ctx, stubFetcher{err: errors.New("timeout")})
	assert.Error(t, err)
	assert.Equal(t, "Ada", p.Session().User.FirstName)
}

func TestRestoreRoundTripsThroughStorage(t *testing.T) {
	storage := NewMemoryStorage()
	sealer := NewSealer("secret")
	ctx := context.Background()

	first := New(storage, sealer)
	require.NoError(t, first.Login(ctx, sessionFor("SUPER_ADMIN", nil)))
	require.NoError(t, first.SelectStore(ctx, Store{ID: 9, Name: "Jersey City"}))

	sealed, err := storage.Get(ctx, KeySession)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "access-token")

	reloaded := New(storage, sealer)
	require.NoError(t, reloaded.Restore(ctx))
	id, ok := reloaded.ActiveStoreID()
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)
	assert.Equal(t, "access-token", reloaded.Tokens().Access)
}

func TestRestoreDiscardsForeignSeal(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, New(storage, NewSealer("one")).Login(ctx, sessionFor("STAFF", storeID(1))))

	other := New(storage, NewSealer("two"))
	require.NoError(t, other.Restore(ctx))
	assert.Nil(t, other.Session())
	assert.False(t, storage.Has(KeySession))
}

func TestSubscribeFiresOnActiveStoreChange(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()
	var changes []Change
	unsubscribe := p.Subscribe(func(c Change) { changes = append(changes, c) })

	require.NoError(t, p.Login(ctx, sessionFor("SUPER_ADMIN", nil)))
	require.NoError(t, p.SelectStore(ctx, Store{ID: 3}))
	require.NoError(t, p.SelectStore(ctx, Store{ID: 3}))
	require.NoError(t, p.SelectStore(ctx, Store{ID: 9}))
	unsubscribe()
	require.NoError(t, p.Logout(ctx))

	assert.Equal(t, []Change{{From: 0, To: 3}, {From: 3, To: 9}}, changes)
}

func TestRedisStorageScopesKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	root := NewRedisStorage(client, time.Hour)
	ctx := context.Background()

	a := root.Scope("browser-a")
	b := root.Scope("browser-b")
	require.NoError(t, a.Set(ctx, KeySelectedStore, []byte(`{"id":3}`)))

	_, err := b.Get(ctx, KeySelectedStore)
	assert.ErrorIs(t, err, ErrNoValue)
	assert.True(t, mr.Exists("fixline:state:browser-a:store"))

	require.NoError(t, a.Delete(ctx, KeySelectedStore, KeySession))
	assert.False(t, mr.Exists("fixline:state:browser-a:store"))
}

func TestRebindMovesStateToNewScope(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	root := NewRedisStorage(client, time.Hour)
	sealer := NewSealer("secret")
	ctx := context.Background()

	p := New(root.Scope("before"), sealer)
	require.NoError(t, p.SelectStore(ctx, Store{ID: 3}))
	require.True(t, mr.Exists("fixline:state:before:store"))

	require.NoError(t, p.Rebind(ctx, root.Scope("after")))
	assert.False(t, mr.Exists("fixline:state:before:store"))
	require.NoError(t, p.Login(ctx, sessionFor("STAFF", storeID(4))))
	assert.True(t, mr.Exists("fixline:state:after:auth"))
	assert.False(t, mr.Exists("fixline:state:before:auth"))

	reloaded := New(root.Scope("after"), sealer)
	require.NoError(t, reloaded.Restore(ctx))
	id, ok := reloaded.ActiveStoreID()
	assert.True(t, ok)
	assert.Equal(t, int64(4), id)
}
