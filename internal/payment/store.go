package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned for unknown transaction refs.
var ErrNotFound = errors.New("payment: authorization not found")

// Authorization is one captured payment, identified by the transaction ref
// the orchestrator holds for reversal.
type Authorization struct {
	Ref        string
	OrderID    string
	CustomerID string
	Amount     decimal.Decimal
	Method     string
	Reversed   bool
	CreatedAt  time.Time
}

// Store is the payment service's own ledger, injected so the in-memory
// seed can be replaced by a real backing store.
type Store interface {
	Save(ctx context.Context, a *Authorization) error
	Get(ctx context.Context, ref string) (*Authorization, error)
	MarkReversed(ctx context.Context, ref string) error
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps authorizations in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Authorization
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Authorization)}
}

func (s *MemoryStore) Save(ctx context.Context, a *Authorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[a.Ref] = a
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, ref string) (*Authorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.entries[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) MarkReversed(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.entries[ref]
	if !ok {
		return ErrNotFound
	}
	a.Reversed = true
	return nil
}
