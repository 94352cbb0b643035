package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ins := &Instance{ID: "ord-1", State: StateValidatingMerchant, StartedAt: time.Now().UTC()}
	require.NoError(t, store.Create(ctx, ins))
	assert.Equal(t, int64(1), ins.Revision)

	err := store.Create(ctx, &Instance{ID: "ord-1"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestMemoryStoreLoadNotFound(t *testing.T) {
	_, err := NewMemoryStore().Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpdateCAS(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, &Instance{ID: "ord-1", State: StateValidatingMerchant}))

	a, err := store.Load(ctx, "ord-1")
	require.NoError(t, err)
	b, err := store.Load(ctx, "ord-1")
	require.NoError(t, err)

	a.State = StateProcessingPayment
	require.NoError(t, store.Update(ctx, a))
	assert.Equal(t, int64(2), a.Revision)

	// b still carries the old revision, its write must lose.
	b.State = StateCancelled
	assert.ErrorIs(t, store.Update(ctx, b), ErrConflict)

	got, err := store.Load(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, StateProcessingPayment, got.State)
	assert.Equal(t, int64(2), got.Revision)
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	err := NewMemoryStore().Update(context.Background(), &Instance{ID: "missing", Revision: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, &Instance{ID: "ord-1", State: StateValidatingMerchant}))

	loaded, err := store.Load(ctx, "ord-1")
	require.NoError(t, err)
	loaded.State = StateCompleted

	again, err := store.Load(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, StateValidatingMerchant, again.State)
}
