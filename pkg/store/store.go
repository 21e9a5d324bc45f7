// Package store provides the in-memory entity collections that back every
// reconciliation scope.
//
// A Store holds the client's current best-known projection of one logical
// collection (likes for the rendered thoughts, messages in the open
// conversation, the signed-in user's notifications). It is not persisted:
// a fresh fetch re-seeds it after a restart.
//
// Example:
//
//	comments := store.New[social.Comment]()
//	comments.Upsert(c)
//	thread := comments.Sorted(func(a, b social.Comment) bool {
//	    return a.CreatedAt.Before(b.CreatedAt)
//	})
package store

import (
	"sort"
	"sync"
)

// Entity is anything a Store can hold. The id is the upsert key; a Store
// never contains two entries with the same id.
type Entity interface {
	EntityID() string
}

// Store maps entity ids to their current client-side representation.
//
// All methods take copy-on-write snapshots, so slices returned from All and
// Sorted remain stable while the store keeps mutating. Mutation is
// mutex-guarded: committer goroutines and the realtime dispatch goroutine
// both write into the same scope's store.
type Store[T Entity] struct {
	mu      sync.RWMutex
	entries map[string]T
}

// New creates an empty store.
func New[T Entity]() *Store[T] {
	return &Store[T]{entries: make(map[string]T)}
}

// Get returns the entity with the given id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[id]
	return v, ok
}

// Has reports whether an entity with the given id exists.
func (s *Store[T]) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Upsert inserts or overwrites by id. Last write wins.
func (s *Store[T]) Upsert(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[v.EntityID()] = v
}

// Remove deletes the entity with the given id. Removing an absent id is a
// no-op.
func (s *Store[T]) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Update applies fn to the entity with the given id, if present, and stores
// the result. Returns false if the id is absent.
func (s *Store[T]) Update(id string, fn func(T) T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[id]
	if !ok {
		return false
	}
	s.entries[id] = fn(v)
	return true
}

// Rekey removes the entity stored under oldID and stores v under its own id.
// Used to replace an optimistic temp entity with the server-returned
// canonical one. Returns false if oldID is absent.
func (s *Store[T]) Rekey(oldID string, v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[oldID]; !ok {
		return false
	}
	delete(s.entries, oldID)
	s.entries[v.EntityID()] = v
	return true
}

// Len returns the number of entities held.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// All returns an unordered snapshot of every entity.
func (s *Store[T]) All() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.entries))
	for _, v := range s.entries {
		out = append(out, v)
	}
	return out
}

// Sorted returns a snapshot ordered by less. Message lists use creation-time
// order; like state is unordered and never calls this.
func (s *Store[T]) Sorted(less func(a, b T) bool) []T {
	out := s.All()
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Replace swaps the entire contents for the given entities. Later duplicates
// by id win, matching Upsert semantics.
func (s *Store[T]) Replace(entities []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]T, len(entities))
	for _, v := range entities {
		s.entries[v.EntityID()] = v
	}
}

// Clear removes all entities.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]T)
}

// Filter returns an unordered snapshot of entities for which keep returns
// true.
func (s *Store[T]) Filter(keep func(T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.entries))
	for _, v := range s.entries {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
