// Package memory provides an in-process session store, used for tests and
// single-instance development deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/storage"
)

// Store keeps one session's keys in a map.
type Store struct {
	mu      sync.RWMutex
	data    map[string][]byte
	updated time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte), updated: time.Now()}
}

// Get returns a copy of the value under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, storage.KeyNotFound(key)
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), value...)
	s.updated = time.Now()
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	s.updated = time.Now()
	return nil
}

// Has reports whether key is present, regardless of its value.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[key]
	return ok
}

func (s *Store) stat() (keys int, updated time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data), s.updated
}

// Registry hands out one Store per session ID. Sessions stay until
// PurgeStale drops them.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// ForSession returns the store of sessionID, creating it on first use.
func (r *Registry) ForSession(sessionID string) storage.Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stores[sessionID]
	if !ok {
		s = NewStore()
		r.stores[sessionID] = s
	}
	return s
}

// Len returns the number of sessions held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.stores)
}

// PurgeStale drops every session not written since before cutoff and returns
// the number of keys removed with them.
func (r *Registry) PurgeStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, s := range r.stores {
		keys, updated := s.stat()
		if updated.Before(cutoff) {
			delete(r.stores, id)
			removed += int64(keys)
		}
	}
	return removed, nil
}
