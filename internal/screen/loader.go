// Package screen implements the data lifecycle of store-scoped screens.
package screen

import (
	"context"
	"errors"
	"sync"
)

// Status is the lifecycle stage of a screen's data.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusErrored Status = "errored"
)

var (
	// ErrNotWatching is returned by Wait when the loader has no key.
	ErrNotWatching = errors.New("screen: loader is idle")
	// ErrSuperseded is returned by Load when its key was replaced mid-flight.
	ErrSuperseded = errors.New("screen: key superseded")
)

// Key identifies what a screen is showing: the store plus any filters.
type Key struct {
	StoreID int64
	Params  string
}

// FetchFunc loads data for key. ctx is cancelled once key is superseded.
type FetchFunc[K comparable, T any] func(ctx context.Context, key K) (T, error)

// Snapshot is an immutable view of a loader.
type Snapshot[K comparable, T any] struct {
	Status Status
	Key    K
	Data   T
	Err    error
	// HasData is true when Data belongs to Key, including data kept through a
	// failed refresh.
	HasData bool
}

// Loader runs fetches for the watched key and discards results whose key or
// generation no longer match.
type Loader[K comparable, T any] struct {
	mu       sync.Mutex
	fetch    FetchFunc[K, T]
	watching bool
	key      K
	gen      uint64
	status   Status
	data     T
	hasData  bool
	err      error
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewLoader returns an idle loader.
func NewLoader[K comparable, T any]() *Loader[K, T] {
	return &Loader[K, T]{status: StatusIdle}
}

// Watch points the loader at key. A new key clears previous data at once and
// starts a fetch; the same key is a no-op unless the last load failed. fetch
// replaces the previous one so credentials stay current across requests.
func (l *Loader[K, T]) Watch(key K, fetch FetchFunc[K, T]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetch = fetch
	if l.watching && l.key == key && l.status != StatusErrored && l.status != StatusIdle {
		return
	}
	keep := l.watching && l.key == key
	l.startLocked(key, keep)
}

// Refresh re-fetches the current key, keeping loaded data until the new
// result arrives.
func (l *Loader[K, T]) Refresh() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.watching {
		return
	}
	l.startLocked(l.key, true)
}

// Reset cancels any fetch and returns to Idle with no data.
func (l *Loader[K, T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
	var zeroK K
	var zeroT T
	l.watching = false
	l.key = zeroK
	l.data = zeroT
	l.hasData = false
	l.err = nil
	l.status = StatusIdle
	l.gen++
}

// Snapshot returns the current state without blocking.
func (l *Loader[K, T]) Snapshot() Snapshot[K, T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Wait blocks until the current fetch settles or ctx ends. If the key is
// switched while waiting, Wait follows the newest fetch.
func (l *Loader[K, T]) Wait(ctx context.Context) (Snapshot[K, T], error) {
	for {
		l.mu.Lock()
		if !l.watching {
			snap := l.snapshotLocked()
			l.mu.Unlock()
			return snap, ErrNotWatching
		}
		if l.status != StatusLoading {
			snap := l.snapshotLocked()
			l.mu.Unlock()
			return snap, nil
		}
		done := l.done
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return l.Snapshot(), ctx.Err()
		case <-done:
		}
	}
}

// Load watches key and waits for its result. ErrSuperseded is returned when
// another caller moved the loader to a different key meanwhile.
func (l *Loader[K, T]) Load(ctx context.Context, key K, fetch FetchFunc[K, T]) (Snapshot[K, T], error) {
	l.Watch(key, fetch)
	return l.settle(ctx, key)
}

// Fetch loads key afresh, the way a screen does on every visit. The same key
// refreshes while keeping the loaded data; a new key starts clean.
func (l *Loader[K, T]) Fetch(ctx context.Context, key K, fetch FetchFunc[K, T]) (Snapshot[K, T], error) {
	l.mu.Lock()
	l.fetch = fetch
	l.startLocked(key, l.watching && l.key == key)
	l.mu.Unlock()
	return l.settle(ctx, key)
}

func (l *Loader[K, T]) settle(ctx context.Context, key K) (Snapshot[K, T], error) {
	snap, err := l.Wait(ctx)
	if errors.Is(err, ErrNotWatching) || (err == nil && snap.Key != key) {
		return snap, ErrSuperseded
	}
	return snap, err
}

func (l *Loader[K, T]) startLocked(key K, keepData bool) {
	l.stopLocked()
	l.gen++
	gen := l.gen
	if !keepData {
		var zero T
		l.data = zero
		l.hasData = false
	}
	l.watching = true
	l.key = key
	l.err = nil
	l.status = StatusLoading
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	done := make(chan struct{})
	l.done = done
	go l.run(ctx, l.fetch, gen, key, done)
}

func (l *Loader[K, T]) stopLocked() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.done != nil {
		close(l.done)
		l.done = nil
	}
}

func (l *Loader[K, T]) run(ctx context.Context, fetch FetchFunc[K, T], gen uint64, key K, done chan struct{}) {
	data, err := fetch(ctx, key)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen || key != l.key || l.done != done {
		// superseded; stopLocked already released waiters
		return
	}
	if err != nil {
		l.err = err
		l.status = StatusErrored
	} else {
		l.data = data
		l.hasData = true
		l.status = StatusLoaded
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	close(done)
	l.done = nil
}

func (l *Loader[K, T]) snapshotLocked() Snapshot[K, T] {
	return Snapshot[K, T]{Status: l.status, Key: l.key, Data: l.data, Err: l.err, HasData: l.hasData}
}
