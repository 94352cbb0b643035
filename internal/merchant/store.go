package merchant

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned for unknown merchants or order refs.
var ErrNotFound = errors.New("merchant: not found")

// Store is the merchant service's own storage. It is injected so the
// in-memory seed used for development can be replaced by a real backing
// store without touching the service logic.
type Store interface {
	Merchant(ctx context.Context, id string) (*Merchant, error)
	SaveOrder(ctx context.Context, order *Order) error
	Order(ctx context.Context, ref string) (*Order, error)
	SetOrderStatus(ctx context.Context, ref string, status OrderStatus) error
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps merchants and orders in process memory.
type MemoryStore struct {
	mu        sync.Mutex
	merchants map[string]*Merchant
	orders    map[string]*Order
}

func NewMemoryStore(merchants ...*Merchant) *MemoryStore {
	s := &MemoryStore{
		merchants: make(map[string]*Merchant),
		orders:    make(map[string]*Order),
	}
	for _, m := range merchants {
		s.merchants[m.ID] = m
	}
	return s
}

func (s *MemoryStore) Merchant(ctx context.Context, id string) (*Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.merchants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) SaveOrder(ctx context.Context, order *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[order.Ref] = order
	return nil
}

func (s *MemoryStore) Order(ctx context.Context, ref string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *MemoryStore) SetOrderStatus(ctx context.Context, ref string, status OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[ref]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}
