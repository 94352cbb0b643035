package idempotency

import (
	"context"
	"sync"
	"time"
)

var _ Guard = (*memoryGuard)(nil)

type entry struct {
	metadata  string
	expiresAt time.Time
}

type memoryGuard struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryGuard returns an in-process Guard for tests and single-node
// development runs. Expired entries are evicted lazily on access.
func NewMemoryGuard(ttl time.Duration) Guard {
	return &memoryGuard{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (g *memoryGuard) HasProcessed(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[key]
	if !ok {
		return false, nil
	}
	if g.now().After(e.expiresAt) {
		delete(g.entries, key)
		return false, nil
	}
	return true, nil
}

func (g *memoryGuard) MarkProcessed(ctx context.Context, key, metadata string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entries[key] = entry{metadata: metadata, expiresAt: g.now().Add(g.ttl)}
	return nil
}
