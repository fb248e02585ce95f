// Package store holds the client-side read model for the dashboard: an
// in-memory mapping from entity id to the latest complete snapshot, for
// cards, execution loops, workers, and projects. All writes funnel
// through the same upsert/remove entry points whether they originate
// from pushed events or from REST mutation responses, so there is
// exactly one reconciliation rule.
package store

import (
	"sync"
	"time"
)

// Entity is anything the store can hold: a snapshot with a stable id
// and a server-assigned modification timestamp.
type Entity interface {
	EntityID() string
	ModifiedAt() time.Time
}

// Store is a mutex-guarded snapshot map for one entity family. Upserts
// are full replacements, never field merges; the server always sends
// complete snapshots. Safe for concurrent use, though in practice all
// writes arrive on the single event-processing path.
type Store[T Entity] struct {
	mu       sync.RWMutex
	items    map[string]T
	watchers []func()
}

// New creates an empty Store.
func New[T Entity]() *Store[T] {
	return &Store[T]{items: make(map[string]T)}
}

// Upsert replaces the snapshot for the entity's id. A snapshot whose
// modification timestamp is strictly earlier than the held one is
// treated as a reordered stale delivery and discarded; Upsert reports
// whether the write was applied.
func (s *Store[T]) Upsert(entity T) bool {
	s.mu.Lock()
	if current, ok := s.items[entity.EntityID()]; ok {
		if entity.ModifiedAt().Before(current.ModifiedAt()) {
			s.mu.Unlock()
			return false
		}
	}
	s.items[entity.EntityID()] = entity
	watchers := s.snapshotWatchers()
	s.mu.Unlock()

	notify(watchers)
	return true
}

// Remove deletes the entity with the given id, reporting whether it was
// present. Removal is never inferred from absence; only explicit
// deletion events or responses reach this method.
func (s *Store[T]) Remove(id string) bool {
	s.mu.Lock()
	_, ok := s.items[id]
	if ok {
		delete(s.items, id)
	}
	watchers := s.snapshotWatchers()
	s.mu.Unlock()

	if ok {
		notify(watchers)
	}
	return ok
}

// Get returns the snapshot for the id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// All returns a copy of every held snapshot, in no particular order.
func (s *Store[T]) All() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	return out
}

// Len returns the number of held snapshots.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear drops every snapshot. Used when switching projects.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	s.items = make(map[string]T)
	watchers := s.snapshotWatchers()
	s.mu.Unlock()

	notify(watchers)
}

// Watch registers a callback invoked after every applied mutation. The
// container stays framework-free; the dashboard adapts callbacks into
// its own message loop.
func (s *Store[T]) Watch(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

func (s *Store[T]) snapshotWatchers() []func() {
	out := make([]func(), len(s.watchers))
	copy(out, s.watchers)
	return out
}

func notify(watchers []func()) {
	for _, fn := range watchers {
		fn()
	}
}
