package screen

import (
	"context"
	"sync"
	"time"

	"github.com/fixline-ai/fixline/internal/state"
)

type resetter interface {
	Reset()
}

// Set holds the loaders of one browser session, keyed by screen name.
type Set struct {
	mu       sync.Mutex
	loaders  map[string]resetter
	lastUsed time.Time
}

func newSet(now time.Time) *Set {
	return &Set{loaders: make(map[string]resetter), lastUsed: now}
}

// Use returns the named loader of s, creating it on first use.
func Use[K comparable, T any](s *Set, name string) *Loader[K, T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.loaders[name].(*Loader[K, T]); ok {
		return existing
	}
	l := NewLoader[K, T]()
	s.loaders[name] = l
	return l
}

// Reset returns every loader in s to Idle.
func (s *Set) Reset() {
	s.mu.Lock()
	loaders := make([]resetter, 0, len(s.loaders))
	for _, l := range s.loaders {
		loaders = append(loaders, l)
	}
	s.mu.Unlock()
	for _, l := range loaders {
		l.Reset()
	}
}

// Registry tracks screen sets per browser session.
type Registry struct {
	mu   sync.Mutex
	sets map[string]*Set
	now  func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sets: make(map[string]*Set), now: time.Now}
}

// Session returns the set for a browser session id.
func (r *Registry) Session(id string) *Set {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sets[id]
	if !ok {
		set = newSet(r.now())
		r.sets[id] = set
	}
	set.mu.Lock()
	set.lastUsed = r.now()
	set.mu.Unlock()
	return set
}

// Attach returns the set for id and resets it whenever the provider's Active
// Store ID changes. The returned func detaches the subscription.
func (r *Registry) Attach(id string, p *state.Provider) (*Set, func()) {
	set := r.Session(id)
	unsubscribe := p.Subscribe(func(state.Change) { set.Reset() })
	return set, unsubscribe
}

// Drop resets and forgets the set of a session, typically on logout.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	set, ok := r.sets[id]
	delete(r.sets, id)
	r.mu.Unlock()
	if ok {
		set.Reset()
	}
}

// Len reports the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sets)
}

// Sweep drops sets idle for longer than maxIdle and returns how many.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	var stale []*Set
	r.mu.Lock()
	for id, set := range r.sets {
		set.mu.Lock()
		idle := set.lastUsed.Before(cutoff)
		set.mu.Unlock()
		if idle {
			stale = append(stale, set)
			delete(r.sets, id)
		}
	}
	r.mu.Unlock()
	for _, set := range stale {
		set.Reset()
	}
	return len(stale)
}

// Run sweeps idle sets every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(maxIdle)
		}
	}
}

type setContextKey struct{}

// ContextWithSet stores the request's screen set in ctx.
func ContextWithSet(ctx context.Context, s *Set) context.Context {
	return context.WithValue(ctx, setContextKey{}, s)
}

// SetFromContext returns the screen set of the request, or nil.
func SetFromContext(ctx context.Context) *Set {
	s, _ := ctx.Value(setContextKey{}).(*Set)
	return s
}

// Open fetches the named screen of the request's set for key. Without a set
// in ctx the fetch runs on a throwaway loader.
func Open[T any](ctx context.Context, name string, key Key, fetch FetchFunc[Key, T]) (Snapshot[Key, T], error) {
	set := SetFromContext(ctx)
	if set == nil {
		set = newSet(time.Now())
	}
	return Use[Key, T](set, name).Fetch(ctx, key, fetch)
}
