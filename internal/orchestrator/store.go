package orchestrator

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no instance exists for a correlation id.
	ErrNotFound = errors.New("saga instance not found")

	// ErrAlreadyExists is returned by Create when an instance with the
	// same correlation id is already stored.
	ErrAlreadyExists = errors.New("saga instance already exists")

	// ErrConflict is returned by Update when the instance was modified
	// since it was loaded (revision mismatch). The caller re-reads and
	// re-applies instead of overwriting.
	ErrConflict = errors.New("saga instance revision conflict")
)

// InstanceStore is the port for persisting saga instances. The coordinator
// depends on this abstraction, not on SQLite directly, so the store can be
// swapped for Postgres, in-memory (tests), etc.
//
// Update is a compare-and-swap: the write succeeds only if the stored
// revision equals the revision the instance was loaded with, and the stored
// revision is incremented atomically with the write. On success the passed
// instance's Revision is bumped to match.
type InstanceStore interface {
	Create(ctx context.Context, ins *Instance) error
	Load(ctx context.Context, id string) (*Instance, error)
	Update(ctx context.Context, ins *Instance) error
}
