package store

import (
	"sort"
	"sync"

	"github.com/haniff/arena/internal/core"
)

// entry pairs a record with its per-debate lock. The lock serializes
// mutations and snapshot reads for one debate without blocking others.
type entry struct {
	mu    sync.Mutex
	state *core.DebateState
}

// MemoryStore is the default in-memory repository. A global lock guards
// the id map; a per-entry lock guards each record.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
	}
}

// Create persists a new record.
func (s *MemoryStore) Create(state *core.DebateState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[state.DebateID]; exists {
		return core.NewError(core.KindInvalidTransition, "debate %s already exists", state.DebateID)
	}
	s.entries[state.DebateID] = &entry{state: state.Clone()}
	return nil
}

// Get returns a snapshot of the record.
func (s *MemoryStore) Get(id string) (*core.DebateState, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone(), nil
}

// List returns snapshots of all records, oldest first.
func (s *MemoryStore) List() ([]*core.DebateState, error) {
	s.mu.RLock()
	all := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}
	s.mu.RUnlock()

	out := make([]*core.DebateState, 0, len(all))
	for _, e := range all {
		e.mu.Lock()
		out = append(out, e.state.Clone())
		e.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].DebateID < out[j].DebateID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Update runs the mutator on a working copy under the entry lock and
// commits it only on success.
func (s *MemoryStore) Update(id string, mutate Mutator) (*core.DebateState, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.state.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	e.state = working
	return working.Clone(), nil
}

// Delete removes the record.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; !exists {
		return notFound(id)
	}
	delete(s.entries, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, notFound(id)
	}
	return e, nil
}
