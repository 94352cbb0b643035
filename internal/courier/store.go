package courier

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNoneAvailable is returned when every courier in the pool is busy.
var ErrNoneAvailable = errors.New("courier: none available")

// Courier is one delivery rider in the pool.
type Courier struct {
	ID         string
	Name       string
	ETAMinutes int
}

// Allocation binds a courier to an order. Ref is the token the orchestrator
// holds for release.
type Allocation struct {
	Ref        string
	CourierID  string
	OrderID    string
	ETAMinutes int
	CreatedAt  time.Time
}

// Store is the courier service's own pool, injected so the in-memory seed
// can be replaced by a real dispatch system.
type Store interface {
	// Allocate reserves a free courier for the order, or ErrNoneAvailable.
	Allocate(ctx context.Context, orderID string) (*Allocation, error)

	// Release frees the courier behind the allocation ref. Releasing an
	// unknown or already-released ref is a no-op returning false.
	Release(ctx context.Context, ref string) (bool, error)
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the courier pool in process memory. Couriers are picked
// in id order so behaviour is deterministic.
type MemoryStore struct {
	mu          sync.Mutex
	couriers    map[string]*Courier
	busy        map[string]bool
	allocations map[string]*Allocation
}

func NewMemoryStore(couriers ...*Courier) *MemoryStore {
	s := &MemoryStore{
		couriers:    make(map[string]*Courier),
		busy:        make(map[string]bool),
		allocations: make(map[string]*Allocation),
	}
	for _, c := range couriers {
		s.couriers[c.ID] = c
	}
	return s
}

func (s *MemoryStore) Allocate(ctx context.Context, orderID string) (*Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.couriers))
	for id := range s.couriers {
		if !s.busy[id] {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, ErrNoneAvailable
	}
	sort.Strings(ids)

	c := s.couriers[ids[0]]
	s.busy[c.ID] = true
	alloc := &Allocation{
		Ref:        "ALLOC-" + c.ID + "-" + orderID,
		CourierID:  c.ID,
		OrderID:    orderID,
		ETAMinutes: c.ETAMinutes,
		CreatedAt:  time.Now().UTC(),
	}
	s.allocations[alloc.Ref] = alloc
	return alloc, nil
}

func (s *MemoryStore) Release(ctx context.Context, ref string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alloc, ok := s.allocations[ref]
	if !ok {
		return false, nil
	}
	delete(s.allocations, ref)
	s.busy[alloc.CourierID] = false
	return true, nil
}
