package screen

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixline-ai/fixline/internal/state"
)

type gatedFetch struct {
	gates map[int64]chan struct{}
	calls atomic.Int32
}

func newGatedFetch(ids ...int64) *gatedFetch {
	g := &gatedFetch{gates: make(map[int64]chan struct{})}
	for _, id := range ids {
		g.gates[id] = make(chan struct{})
	}
	return g
}

func (g *gatedFetch) fetch(ctx context.Context, key Key) (string, error) {
	g.calls.Add(1)
	if gate, ok := g.gates[key.StoreID]; ok {
		<-gate
	}
	return fmt.Sprintf("calls for store %d", key.StoreID), nil
}

func TestLoaderDiscardsResponseForPreviousStore(t *testing.T) {
	g := newGatedFetch(1)
	l := NewLoader[Key, string]()

	l.Watch(Key{StoreID: 1}, g.fetch)
	assert.Equal(t, StatusLoading, l.Snapshot().Status)

	snap, err := l.Load(context.Background(), Key{StoreID: 2}, g.fetch)
	require.NoError(t, err)
	assert.Equal(t, StatusLoaded, snap.Status)
	assert.Equal(t, "calls for store 2", snap.Data)

	close(g.gates[1])
	time.Sleep(20 * time.Millisecond)

	after := l.Snapshot()
	assert.Equal(t, int64(2), after.Key.StoreID)
	assert.Equal(t, "calls for store 2", after.Data)
}

func TestLoaderKeySwitchClearsDataImmediately(t *testing.T) {
	g := newGatedFetch(2)
	l := NewLoader[Key, string]()
	_, err := l.Load(context.Background(), Key{StoreID: 1}, g.fetch)
	require.NoError(t, err)

	l.Watch(Key{StoreID: 2}, g.fetch)
	snap := l.Snapshot()
	assert.Equal(t, StatusLoading, snap.Status)
	assert.False(t, snap.HasData)
	assert.Empty(t, snap.Data)
	close(g.gates[2])
}

func TestLoaderWatchSameKeyIsNoop(t *testing.T) {
	g := newGatedFetch()
	l := NewLoader[Key, string]()
	key := Key{StoreID: 4, Params: "range=today"}
	_, err := l.Load(context.Background(), key, g.fetch)
	require.NoError(t, err)
	_, err = l.Load(context.Background(), key, g.fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(1), g.calls.Load())
}

func TestLoaderRefreshFailureKeepsData(t *testing.T) {
	fail := false
	fetch := func(ctx context.Context, key Key) (string, error) {
		if fail {
			return "", errors.New("backend unavailable")
		}
		return "trends", nil
	}
	l := NewLoader[Key, string]()
	_, err := l.Load(context.Background(), Key{StoreID: 1}, fetch)
	require.NoError(t, err)

	fail = true
	l.Refresh()
	snap, err := l.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusErrored, snap.Status)
	assert.True(t, snap.HasData)
	assert.Equal(t, "trends", snap.Data)
	assert.EqualError(t, snap.Err, "backend unavailable")
}

func TestLoaderInitialFailureHasNoData(t *testing.T) {
	l := NewLoader[Key, []string]()
	snap, err := l.Load(context.Background(), Key{StoreID: 1}, func(ctx context.Context, key Key) ([]string, error) {
		return nil, errors.New("boom")
	})
	require.NoError(t, err)
	assert.Equal(t, StatusErrored, snap.Status)
	assert.False(t, snap.HasData)
}

func TestLoaderResetCancelsInFlight(t *testing.T) {
	cancelled := make(chan struct{})
	l := NewLoader[Key, string]()
	l.Watch(Key{StoreID: 1}, func(ctx context.Context, key Key) (string, error) {
		<-ctx.Done()
		close(cancelled)
		return "", ctx.Err()
	})

	waitErr := make(chan error, 1)
	go func() {
		_, err := l.Wait(context.Background())
		waitErr <- err
	}()
	time.Sleep(10 * time.Millisecond)
	l.Reset()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("fetch was not cancelled")
	}
	assert.ErrorIs(t, <-waitErr, ErrNotWatching)
	assert.Equal(t, StatusIdle, l.Snapshot().Status)
}

func TestLoadReportsSupersededKey(t *testing.T) {
	g := newGatedFetch(1)
	l := NewLoader[Key, string]()

	result := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), Key{StoreID: 1}, g.fetch)
		result <- err
	}()
	time.Sleep(10 * time.Millisecond)
	l.Watch(Key{StoreID: 2}, g.fetch)

	assert.ErrorIs(t, <-result, ErrSuperseded)
	close(g.gates[1])
}

func TestRegistryResetsOnActiveStoreChange(t *testing.T) {
	reg := NewRegistry()
	p := state.New(state.NewMemoryStorage(), state.NewSealer("secret"))
	ctx := context.Background()
	require.NoError(t, p.Login(ctx, state.Session{User: state.User{ID: 1, Role: "SUPER_ADMIN"}}))
	require.NoError(t, p.SelectStore(ctx, state.Store{ID: 1}))

	set, detach := reg.Attach("browser", p)
	defer detach()
	l := Use[Key, string](set, "calls")
	_, err := l.Load(ctx, Key{StoreID: 1}, newGatedFetch().fetch)
	require.NoError(t, err)

	require.NoError(t, p.SelectStore(ctx, state.Store{ID: 2}))
	assert.Equal(t, StatusIdle, l.Snapshot().Status)
	assert.Same(t, l, Use[Key, string](reg.Session("browser"), "calls"))
}

func TestRegistryDropAndSweep(t *testing.T) {
	reg := NewRegistry()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	reg.Session("a")
	reg.Session("b")
	reg.Drop("a")
	assert.Equal(t, 1, reg.Len())

	now = now.Add(2 * time.Hour)
	reg.Session("c")
	assert.Equal(t, 1, reg.Sweep(time.Hour))
	assert.Equal(t, 1, reg.Len())
}

func TestFetchRefetchesSameKeyKeepingData(t *testing.T) {
	var calls atomic.Int32
	fail := atomic.Bool{}
	fetch := func(ctx context.Context, key Key) (string, error) {
		calls.Add(1)
		if fail.Load() {
			return "", errors.New("backend unavailable")
		}
		return fmt.Sprintf("visit %d", calls.Load()), nil
	}
	l := NewLoader[Key, string]()
	key := Key{StoreID: 4, Params: "range=today"}

	snap, err := l.Fetch(context.Background(), key, fetch)
	require.NoError(t, err)
	assert.Equal(t, "visit 1", snap.Data)

	snap, err = l.Fetch(context.Background(), key, fetch)
	require.NoError(t, err)
	assert.Equal(t, "visit 2", snap.Data)

	fail.Store(true)
	snap, err = l.Fetch(context.Background(), key, fetch)
	require.NoError(t, err)
	assert.Equal(t, StatusErrored, snap.Status)
	assert.True(t, snap.HasData)
	assert.Equal(t, "visit 2", snap.Data)
	assert.EqualError(t, snap.Err, "backend unavailable")
}

func TestOpenUsesRequestSet(t *testing.T) {
	reg := NewRegistry()
	set := reg.Session("browser-1")
	ctx := ContextWithSet(context.Background(), set)
	fetch := func(ctx context.Context, key Key) (int, error) { return int(key.StoreID) * 10, nil }

	snap, err := Open(ctx, "appointments", Key{StoreID: 3}, fetch)
	require.NoError(t, err)
	assert.Equal(t, 30, snap.Data)
	assert.Equal(t, StatusLoaded, Use[Key, int](set, "appointments").Snapshot().Status)

	snap, err = Open(context.Background(), "appointments", Key{StoreID: 5}, fetch)
	require.NoError(t, err)
	assert.Equal(t, 50, snap.Data)
}
