package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/delivery-sagas/internal/orchestrator"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "instances.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	ins := &orchestrator.Instance{
		ID:         "ord-1",
		State:      orchestrator.StateValidatingMerchant,
		CustomerID: "cust-1",
		MerchantID: "merchant_1",
		StartedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Create(ctx, ins))
	assert.Equal(t, int64(1), ins.Revision)

	got, err := store.Load(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", got.ID)
	assert.Equal(t, orchestrator.StateValidatingMerchant, got.State)
	assert.Equal(t, "cust-1", got.CustomerID)
	assert.Equal(t, int64(1), got.Revision)
	assert.True(t, got.StartedAt.Equal(ins.StartedAt))
}

func TestCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Create(ctx, &orchestrator.Instance{ID: "ord-1", State: orchestrator.StateValidatingMerchant}))
	err := store.Create(ctx, &orchestrator.Instance{ID: "ord-1", State: orchestrator.StateValidatingMerchant})
	assert.ErrorIs(t, err, orchestrator.ErrAlreadyExists)
}

func TestLoadMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, orchestrator.ErrNotFound)
}

func TestUpdateCAS(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Create(ctx, &orchestrator.Instance{ID: "ord-1", State: orchestrator.StateValidatingMerchant}))

	a, err := store.Load(ctx, "ord-1")
	require.NoError(t, err)
	b, err := store.Load(ctx, "ord-1")
	require.NoError(t, err)

	a.State = orchestrator.StateProcessingPayment
	require.NoError(t, store.Update(ctx, a))
	assert.Equal(t, int64(2), a.Revision)

	b.State = orchestrator.StateCancelled
	assert.ErrorIs(t, store.Update(ctx, b), orchestrator.ErrConflict)

	got, err := store.Load(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StateProcessingPayment, got.State)
	assert.Equal(t, int64(2), got.Revision)
}

func TestUpdateMissing(t *testing.T) {
	store := openTestStore(t)
	err := store.Update(context.Background(), &orchestrator.Instance{ID: "ghost", Revision: 1})
	assert.ErrorIs(t, err, orchestrator.ErrNotFound)
}
