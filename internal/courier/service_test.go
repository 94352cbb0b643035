package courier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/delivery-sagas/internal/messages"
	"github.com/jcmexdev/delivery-sagas/internal/pkg/idempotency"
)

type capturePub struct {
	mu   sync.Mutex
	msgs []messages.Message
}

func (p *capturePub) Publish(ctx context.Context, msg messages.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *capturePub) last(t *testing.T) messages.Message {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.msgs)
	return p.msgs[len(p.msgs)-1]
}

func newTestService(couriers ...*Courier) (*Service, *capturePub) {
	pub := &capturePub{}
	svc := NewService(NewMemoryStore(couriers...), idempotency.NewMemoryGuard(time.Hour), pub)
	return svc, pub
}

func TestAllocateCourierPicksLowestID(t *testing.T) {
	svc, pub := newTestService(
		&Courier{ID: "courier_2", Name: "Bruno", ETAMinutes: 20},
		&Courier{ID: "courier_1", Name: "Ana", ETAMinutes: 15},
	)

	err := svc.HandleAllocateCourier(context.Background(), messages.AllocateCourier{OrderID: "ord-1"})
	require.NoError(t, err)

	res, ok := pub.last(t).(messages.CourierAllocationResult)
	require.True(t, ok)
	assert.True(t, res.Allocated)
	assert.Equal(t, "ALLOC-courier_1-ord-1", res.CourierRef)
	assert.Equal(t, 15, res.ETAMinutes)
}

func TestAllocateCourierPoolExhausted(t *testing.T) {
	svc, pub := newTestService(&Courier{ID: "courier_1", Name: "Ana", ETAMinutes: 15})
	ctx := context.Background()

	require.NoError(t, svc.HandleAllocateCourier(ctx, messages.AllocateCourier{OrderID: "ord-1"}))
	require.NoError(t, svc.HandleAllocateCourier(ctx, messages.AllocateCourier{OrderID: "ord-2"}))

	res, ok := pub.last(t).(messages.CourierAllocationResult)
	require.True(t, ok)
	assert.False(t, res.Allocated)
	assert.Equal(t, "no courier available", res.FailureReason)
	assert.Equal(t, "ord-2", res.OrderID)
}

func TestReleaseCourierFreesThePool(t *testing.T) {
	svc, pub := newTestService(&Courier{ID: "courier_1", Name: "Ana", ETAMinutes: 15})
	ctx := context.Background()

	require.NoError(t, svc.HandleAllocateCourier(ctx, messages.AllocateCourier{OrderID: "ord-1"}))
	ref := pub.last(t).(messages.CourierAllocationResult).CourierRef

	require.NoError(t, svc.HandleReleaseCourier(ctx, messages.ReleaseCourier{OrderID: "ord-1", CourierRef: ref}))

	rel, ok := pub.last(t).(messages.CourierReleased)
	require.True(t, ok)
	assert.True(t, rel.Succeeded)

	// The courier is free again.
	require.NoError(t, svc.HandleAllocateCourier(ctx, messages.AllocateCourier{OrderID: "ord-2"}))
	res := pub.last(t).(messages.CourierAllocationResult)
	assert.True(t, res.Allocated)
}

func TestReleaseCourierIsIdempotent(t *testing.T) {
	svc, pub := newTestService(&Courier{ID: "courier_1", Name: "Ana", ETAMinutes: 15})
	ctx := context.Background()

	require.NoError(t, svc.HandleAllocateCourier(ctx, messages.AllocateCourier{OrderID: "ord-1"}))
	ref := pub.last(t).(messages.CourierAllocationResult).CourierRef

	release := messages.ReleaseCourier{OrderID: "ord-1", CourierRef: ref}
	require.NoError(t, svc.HandleReleaseCourier(ctx, release))
	require.NoError(t, svc.HandleReleaseCourier(ctx, release))

	rel, ok := pub.last(t).(messages.CourierReleased)
	require.True(t, ok)
	assert.True(t, rel.Succeeded)
}

func TestReleaseUnknownRefSucceeds(t *testing.T) {
	svc, pub := newTestService(&Courier{ID: "courier_1", Name: "Ana", ETAMinutes: 15})

	err := svc.HandleReleaseCourier(context.Background(), messages.ReleaseCourier{
		OrderID:    "ord-1",
		CourierRef: "ALLOC-never-issued",
	})
	require.NoError(t, err)

	rel, ok := pub.last(t).(messages.CourierReleased)
	require.True(t, ok)
	assert.True(t, rel.Succeeded)
}
