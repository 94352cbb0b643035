package orchestrator

import (
	"context"
	"sync"
)

// Ensure MemoryStore implements the port at compile time.
var _ InstanceStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory InstanceStore intended for tests and local
// development. It honours the same revision CAS contract as the durable
// implementations.
type MemoryStore struct {
	mu        sync.Mutex
	instances map[string]*Instance
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{instances: make(map[string]*Instance)}
}

func (s *MemoryStore) Create(ctx context.Context, ins *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[ins.ID]; ok {
		return ErrAlreadyExists
	}
	ins.Revision = 1
	s.instances[ins.ID] = ins.Clone()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ins, ok := s.instances[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ins.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, ins *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.instances[ins.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Revision != ins.Revision {
		return ErrConflict
	}
	ins.Revision++
	s.instances[ins.ID] = ins.Clone()
	return nil
}
