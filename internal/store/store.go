// Package store keeps the latest known status of every repository
package store

import (
	"sync"

	"gitdash/internal/domain"
	"gitdash/internal/eventbus"
)

// StatusStore is an in-memory, concurrency-safe map from repository path to
// its latest status. It remembers the order repositories were first seen
type StatusStore struct {
	mu       sync.RWMutex
	statuses map[string]domain.RepoStatus
	order    []string
}

// NewStatusStore creates an empty store
func NewStatusStore() *StatusStore {
	return &StatusStore{
		statuses: make(map[string]domain.RepoStatus),
	}
}

// Get returns the status recorded for path
func (s *StatusStore) Get(path string) (domain.RepoStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[path]
	return st, ok
}

// All returns every status in first-seen order
func (s *StatusStore) All() []domain.RepoStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.RepoStatus, 0, len(s.order))
	for _, path := range s.order {
		result = append(result, s.statuses[path])
	}
	return result
}

// Len returns the number of known repositories
func (s *StatusStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Update records statuses, replacing earlier records for the same paths
func (s *StatusStore) Update(statuses ...domain.RepoStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range statuses {
		s.put(st)
	}
}

// Replace drops everything and records statuses
func (s *StatusStore) Replace(statuses []domain.RepoStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = make(map[string]domain.RepoStatus, len(statuses))
	s.order = s.order[:0]
	for _, st := range statuses {
		s.put(st)
	}
}

func (s *StatusStore) put(st domain.RepoStatus) {
	if _, ok := s.statuses[st.Path]; !ok {
		s.order = append(s.order, st.Path)
	}
	s.statuses[st.Path] = st
}

// Apply folds an engine event into the store: a completed scan replaces
// the contents, a completed refresh updates the refreshed entries.
// Other events are ignored
func (s *StatusStore) Apply(event domain.Event) {
	switch e := event.(type) {
	case domain.ScanCompleteEvent:
		s.Replace(e.Statuses)
	case domain.RefreshCompleteEvent:
		s.Update(e.Statuses...)
	}
}

// Attach keeps the store in sync with bus and returns a func that detaches it
func (s *StatusStore) Attach(bus eventbus.EventBus) func() {
	unsubScan := bus.Subscribe(domain.EventScanComplete, s.Apply)
	unsubRefresh := bus.Subscribe(domain.EventRefreshComplete, s.Apply)
	return func() {
		unsubScan()
		unsubRefresh()
	}
}
