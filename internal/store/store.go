// Package store provides repositories for debate records with snapshot
// semantics: every read returns a deep copy, and mutations run serialized
// per debate.
package store

import "github.com/haniff/arena/internal/core"

// Mutator transforms a debate state in place. It runs under the entry's
// lock and must not block: no I/O, no cross-debate access.
type Mutator func(*core.DebateState) error

// Store defines the repository interface for debate persistence. The
// in-memory implementation is the default; the SQLite implementation is a
// drop-in alternative behind the same contract.
type Store interface {
	// Create persists a new record. Fails if the ID already exists.
	Create(state *core.DebateState) error

	// Get returns a snapshot of the record, or a not_found error.
	Get(id string) (*core.DebateState, error)

	// List returns snapshots of all records, oldest first.
	List() ([]*core.DebateState, error)

	// Update runs the mutator under the entry's lock and returns a
	// snapshot of the result. If the mutator errors, no change is kept.
	Update(id string, mutate Mutator) (*core.DebateState, error)

	// Delete removes the record, or returns a not_found error.
	Delete(id string) error

	// Close releases any resources held by the store.
	Close() error
}

func notFound(id string) error {
	return core.NewError(core.KindNotFound, "debate %s not found", id)
}
