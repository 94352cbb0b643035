package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "payment:reverse:TXN-1", Key("payment", "reverse", "TXN-1"))
}

func TestMemoryGuardMarkAndCheck(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(time.Hour)

	seen, err := g.HasProcessed(ctx, "courier:release:ALLOC-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, g.MarkProcessed(ctx, "courier:release:ALLOC-1", "ord-1"))

	seen, err = g.HasProcessed(ctx, "courier:release:ALLOC-1")
	require.NoError(t, err)
	assert.True(t, seen)

	// Other keys stay unaffected.
	seen, err = g.HasProcessed(ctx, "courier:release:ALLOC-2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryGuardExpiry(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(time.Minute).(*memoryGuard)

	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return clock }

	require.NoError(t, g.MarkProcessed(ctx, "merchant:cancel:REF-1", "ord-1"))

	seen, err := g.HasProcessed(ctx, "merchant:cancel:REF-1")
	require.NoError(t, err)
	assert.True(t, seen)

	clock = clock.Add(2 * time.Minute)
	seen, err = g.HasProcessed(ctx, "merchant:cancel:REF-1")
	require.NoError(t, err)
	assert.False(t, seen)
}
