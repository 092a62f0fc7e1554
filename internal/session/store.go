// Package session holds per-session UI flags, such as warning dismissals.
// Flags are in-memory only and reset when the service restarts.
package session

import "sync"

// Store is a concurrency-safe flag store. The zero value is not usable;
// construct with NewStore.
type Store struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewStore creates an empty flag store.
func NewStore() *Store {
	return &Store{
		flags: make(map[string]bool),
	}
}

// Set records a flag value under key, overwriting any previous value.
func (s *Store) Set(key string, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[key] = value
}

// Get returns the flag value for key. Unset flags are false.
func (s *Store) Get(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[key]
}

// Clear removes all flags, returning the store to its initial state.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = make(map[string]bool)
}
