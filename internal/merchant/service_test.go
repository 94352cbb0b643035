package merchant

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
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

func testMerchant() *Merchant {
	return &Merchant{
		ID:   "merchant_1",
		Name: "Cantina da Praça",
		Open: true,
		Prices: map[string]decimal.Decimal{
			"prod_1": decimal.RequireFromString("24.90"),
			"prod_2": decimal.RequireFromString("15.00"),
		},
		PrepBaseMinutes:    15,
		PrepPerItemMinutes: 2,
	}
}

func newTestService(merchants ...*Merchant) (*Service, *MemoryStore, *capturePub) {
	store := NewMemoryStore(merchants...)
	pub := &capturePub{}
	svc := NewService(store, idempotency.NewMemoryGuard(time.Hour), pub)
	return svc, store, pub
}

func TestValidateOrderAccepted(t *testing.T) {
	svc, store, pub := newTestService(testMerchant())

	err := svc.HandleValidateOrder(context.Background(), messages.ValidateMerchantOrder{
		OrderID:    "ord-1",
		MerchantID: "merchant_1",
		Items: []messages.LineItem{
			{ProductID: "prod_1", Quantity: 2},
			{ProductID: "prod_2", Quantity: 1},
		},
	})
	require.NoError(t, err)

	res, ok := pub.last(t).(messages.MerchantValidationResult)
	require.True(t, ok)
	assert.True(t, res.Accepted)
	assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("64.80")), "got %s", res.TotalAmount)
	assert.Equal(t, 21, res.PrepTimeMinutes) // 15 base + 2*3 units
	assert.NotEmpty(t, res.MerchantOrderRef)

	order, err := store.Order(context.Background(), res.MerchantOrderRef)
	require.NoError(t, err)
	assert.Equal(t, OrderAccepted, order.Status)
}

func TestValidateOrderRejections(t *testing.T) {
	closed := testMerchant()
	closed.ID = "merchant_2"
	closed.Open = false

	tests := []struct {
		name string
		cmd  messages.ValidateMerchantOrder
		want string
	}{
		{
			name: "unknown merchant",
			cmd:  messages.ValidateMerchantOrder{OrderID: "ord-1", MerchantID: "ghost"},
			want: `unknown merchant "ghost"`,
		},
		{
			name: "closed merchant",
			cmd: messages.ValidateMerchantOrder{
				OrderID:    "ord-2",
				MerchantID: "merchant_2",
				Items:      []messages.LineItem{{ProductID: "prod_1", Quantity: 1}},
			},
			want: `merchant "merchant_2" is closed`,
		},
		{
			name: "empty order",
			cmd:  messages.ValidateMerchantOrder{OrderID: "ord-3", MerchantID: "merchant_1"},
			want: "order has no items",
		},
		{
			name: "item off the menu",
			cmd: messages.ValidateMerchantOrder{
				OrderID:    "ord-4",
				MerchantID: "merchant_1",
				Items:      []messages.LineItem{{ProductID: "prod_99", Quantity: 1}},
			},
			want: `item "prod_99" is not on the menu`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, pub := newTestService(testMerchant(), closed)

			require.NoError(t, svc.HandleValidateOrder(context.Background(), tt.cmd))

			res, ok := pub.last(t).(messages.MerchantValidationResult)
			require.True(t, ok)
			assert.False(t, res.Accepted)
			assert.Equal(t, tt.want, res.RejectionReason)
		})
	}
}

func TestCancelOrderIsIdempotent(t *testing.T) {
	svc, store, pub := newTestService(testMerchant())
	ctx := context.Background()

	require.NoError(t, svc.HandleValidateOrder(ctx, messages.ValidateMerchantOrder{
		OrderID:    "ord-1",
		MerchantID: "merchant_1",
		Items:      []messages.LineItem{{ProductID: "prod_1", Quantity: 1}},
	}))
	ref := pub.last(t).(messages.MerchantValidationResult).MerchantOrderRef

	cancel := messages.CancelMerchantOrder{OrderID: "ord-1", MerchantID: "merchant_1", MerchantOrderRef: ref}
	require.NoError(t, svc.HandleCancelOrder(ctx, cancel))
	require.NoError(t, svc.HandleCancelOrder(ctx, cancel))

	order, err := store.Order(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, OrderCancelled, order.Status)

	// Both deliveries respond success.
	res, ok := pub.last(t).(messages.MerchantOrderCancelled)
	require.True(t, ok)
	assert.True(t, res.Succeeded)
	assert.Equal(t, ref, res.MerchantOrderRef)
}

func TestCancelUnknownOrderSucceeds(t *testing.T) {
	svc, _, pub := newTestService(testMerchant())

	err := svc.HandleCancelOrder(context.Background(), messages.CancelMerchantOrder{
		OrderID:          "ord-1",
		MerchantID:       "merchant_1",
		MerchantOrderRef: "never-created",
	})
	require.NoError(t, err)

	res, ok := pub.last(t).(messages.MerchantOrderCancelled)
	require.True(t, ok)
	assert.True(t, res.Succeeded)
}
