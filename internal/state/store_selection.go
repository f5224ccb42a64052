package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// StoreSelection holds the store a super admin chose to administer.
type StoreSelection struct {
	mu       sync.RWMutex
	storage  Storage
	selected *Store
}

// NewStoreSelection returns an empty selection backed by storage.
func NewStoreSelection(storage Storage) *StoreSelection {
	return &StoreSelection{storage: storage}
}

func (s *StoreSelection) rebind(storage Storage) {
	s.mu.Lock()
	s.storage = storage
	s.mu.Unlock()
}

// Restore loads the persisted selection. A missing or corrupt value leaves
// the selection empty.
func (s *StoreSelection) Restore(ctx context.Context) error {
	payload, err := s.storage.Get(ctx, KeySelectedStore)
	if err != nil {
		if errors.Is(err, ErrNoValue) {
			return nil
		}
		return err
	}
	var store Store
	if err := json.Unmarshal(payload, &store); err != nil {
		_ = s.storage.Delete(ctx, KeySelectedStore)
		return nil
	}
	s.mu.Lock()
	s.selected = &store
	s.mu.Unlock()
	return nil
}

// Select overwrites the selection and persists it. The store is not
// validated here; callers pass a store obtained from the store listing.
func (s *StoreSelection) Select(ctx context.Context, store Store) error {
	s.mu.Lock()
	picked := store
	s.selected = &picked
	s.mu.Unlock()
	payload, err := json.Marshal(store)
	if err != nil {
		return err
	}
	return s.storage.Set(ctx, KeySelectedStore, payload)
}

// Selected returns a copy of the selected store or nil.
func (s *StoreSelection) Selected() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	out := *s.selected
	return &out
}

// Clear drops the selection from memory and storage.
func (s *StoreSelection) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
	return s.storage.Delete(ctx, KeySelectedStore)
}
