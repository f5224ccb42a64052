package state

import (
	"context"
	"sync"
)

// Change describes a transition of the Active Store ID. Zero means no store.
type Change struct {
	From int64
	To   int64
}

// Provider exposes the session, role, selected store and active store id to
// every screen. One Provider exists per browser session.
type Provider struct {
	sessions  *SessionStore
	selection *StoreSelection

	mu          sync.Mutex
	nextSub     int
	subscribers map[int]func(Change)
}

// NewProvider wires a Provider over its two stores.
func NewProvider(sessions *SessionStore, selection *StoreSelection) *Provider {
	return &Provider{
		sessions:    sessions,
		selection:   selection,
		subscribers: make(map[int]func(Change)),
	}
}

// New builds a Provider whose stores share storage.
func New(storage Storage, sealer *Sealer, opts ...SessionOption) *Provider {
	selection := NewStoreSelection(storage)
	return NewProvider(NewSessionStore(storage, sealer, selection, opts...), selection)
}

// Rebind moves both stores onto storage and drops the keys left in the
// storage they used before.
func (p *Provider) Rebind(ctx context.Context, storage Storage) error {
	previous := p.sessions.rebind(storage)
	p.selection.rebind(storage)
	if previous == nil {
		return nil
	}
	return previous.Delete(ctx, KeySession, KeySelectedStore)
}

// Restore loads both durable keys.
func (p *Provider) Restore(ctx context.Context) error {
	if err := p.sessions.Restore(ctx); err != nil {
		return err
	}
	return p.selection.Restore(ctx)
}

// Session returns a copy of the active session or nil.
func (p *Provider) Session() *Session {
	return p.sessions.Current()
}

// User returns the signed in user or nil.
func (p *Provider) User() *User {
	sess := p.sessions.Current()
	if sess == nil {
		return nil
	}
	u := sess.User
	return &u
}

// Tokens returns the current tokens; empty when signed out.
func (p *Provider) Tokens() Tokens {
	if sess := p.sessions.Current(); sess != nil {
		return sess.Tokens
	}
	return Tokens{}
}

// Role resolves the canonical role from the live session.
func (p *Provider) Role() Role {
	sess := p.sessions.Current()
	if sess == nil {
		return RoleNone
	}
	return ResolveRole(sess.User.Role)
}

// Authenticated reports whether a session with a recognized role exists.
func (p *Provider) Authenticated() bool {
	return p.sessions.Current() != nil && p.Role().Valid()
}

// SelectedStore returns the super admin's chosen store or nil.
func (p *Provider) SelectedStore() *Store {
	return p.selection.Selected()
}

// ActiveStoreID derives the store that scopes the next API call. It is
// recomputed on every call. The boolean is false when no store applies.
func (p *Provider) ActiveStoreID() (int64, bool) {
	sess := p.sessions.Current()
	if sess == nil {
		return 0, false
	}
	switch ResolveRole(sess.User.Role) {
	case RoleSuperAdmin:
		if store := p.selection.Selected(); store != nil && store.ID != 0 {
			return store.ID, true
		}
		return 0, false
	case RoleStoreManager, RoleStaff:
		if sess.User.StoreID != nil && *sess.User.StoreID != 0 {
			return *sess.User.StoreID, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// NeedsStoreSelection reports whether a super admin must pick a store before
// store-scoped screens may fetch.
func (p *Provider) NeedsStoreSelection() bool {
	_, ok := p.ActiveStoreID()
	return !ok && p.Role() == RoleSuperAdmin
}

// Login replaces the session and clears any previously selected store.
func (p *Provider) Login(ctx context.Context, sess Session) error {
	return p.track(func() error { return p.sessions.Login(ctx, sess) })
}

// Logout ends the session; safe to call repeatedly.
func (p *Provider) Logout(ctx context.Context) error {
	return p.track(func() error { return p.sessions.Logout(ctx) })
}

// SelectStore records the super admin's store choice.
func (p *Provider) SelectStore(ctx context.Context, store Store) error {
	return p.track(func() error { return p.selection.Select(ctx, store) })
}

// RefreshProfile patches the session from the backend profile.
func (p *Provider) RefreshProfile(ctx context.Context, fetcher ProfileFetcher) error {
	return p.track(func() error { return p.sessions.RefreshProfile(ctx, fetcher) })
}

// UpdateTokens stores refreshed tokens.
func (p *Provider) UpdateTokens(ctx context.Context, tokens Tokens) error {
	return p.sessions.UpdateTokens(ctx, tokens)
}

// Subscribe registers fn for Active Store ID changes and returns a function
// that removes it.
func (p *Provider) Subscribe(fn func(Change)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.subscribers, id)
		p.mu.Unlock()
	}
}

func (p *Provider) track(mutate func() error) error {
	before, _ := p.ActiveStoreID()
	err := mutate()
	after, _ := p.ActiveStoreID()
	if before != after {
		p.notify(Change{From: before, To: after})
	}
	return err
}

func (p *Provider) notify(c Change) {
	p.mu.Lock()
	subs := make([]func(Change), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(c)
	}
}

type providerContextKey struct{}

// ContextWithProvider stores the provider in ctx.
func ContextWithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, providerContextKey{}, p)
}

// FromContext extracts the provider from ctx.
func FromContext(ctx context.Context) *Provider {
	p, _ := ctx.Value(providerContextKey{}).(*Provider)
	return p
}
