// Package merchant implements the merchant-validation participant: it
// accepts or rejects an order against the merchant's menu and opening
// state, and cancels accepted orders when the saga compensates.
package merchant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/delivery-sagas/internal/messages"
	"github.com/jcmexdev/delivery-sagas/internal/pkg/idempotency"
)

// Publisher is where the service emits its responses.
type Publisher interface {
	Publish(ctx context.Context, msg messages.Message) error
}

// Service handles ValidateMerchantOrder and CancelMerchantOrder commands.
type Service struct {
	store Store
	guard idempotency.Guard
	pub   Publisher
}

func NewService(store Store, guard idempotency.Guard, pub Publisher) *Service {
	return &Service{store: store, guard: guard, pub: pub}
}

// HandleValidateOrder prices the order against the merchant's own menu and
// either accepts it (creating a cancellable merchant order) or rejects it
// with a reason. Rejections are responses, not errors.
func (s *Service) HandleValidateOrder(ctx context.Context, msg messages.Message) error {
	cmd, ok := msg.(messages.ValidateMerchantOrder)
	if !ok {
		return fmt.Errorf("merchant: unexpected message %s", msg.Kind())
	}

	m, err := s.store.Merchant(ctx, cmd.MerchantID)
	if errors.Is(err, ErrNotFound) {
		return s.reject(ctx, cmd, fmt.Sprintf("unknown merchant %q", cmd.MerchantID))
	}
	if err != nil {
		return fmt.Errorf("merchant: load %q: %w", cmd.MerchantID, err)
	}
	if !m.Open {
		return s.reject(ctx, cmd, fmt.Sprintf("merchant %q is closed", cmd.MerchantID))
	}
	if len(cmd.Items) == 0 {
		return s.reject(ctx, cmd, "order has no items")
	}

	total := decimal.Zero
	units := 0
	for _, item := range cmd.Items {
		price, ok := m.Prices[item.ProductID]
		if !ok {
			return s.reject(ctx, cmd, fmt.Sprintf("item %q is not on the menu", item.ProductID))
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		units += item.Quantity
	}
	prep := m.PrepBaseMinutes + m.PrepPerItemMinutes*units

	order := &Order{
		Ref:        uuid.NewString(),
		OrderID:    cmd.OrderID,
		MerchantID: cmd.MerchantID,
		Total:      total,
		Status:     OrderAccepted,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveOrder(ctx, order); err != nil {
		return fmt.Errorf("merchant: save order %q: %w", order.Ref, err)
	}

	slog.InfoContext(ctx, "merchant order accepted",
		"order_id", cmd.OrderID, "merchant_id", cmd.MerchantID, "total", total.String())

	return s.pub.Publish(ctx, messages.MerchantValidationResult{
		OrderID:          cmd.OrderID,
		Accepted:         true,
		TotalAmount:      total,
		PrepTimeMinutes:  prep,
		MerchantOrderRef: order.Ref,
	})
}

// HandleCancelOrder is the compensating operation. It is idempotent:
// cancelling an already-cancelled or unknown order reports success without
// doing anything twice.
func (s *Service) HandleCancelOrder(ctx context.Context, msg messages.Message) error {
	cmd, ok := msg.(messages.CancelMerchantOrder)
	if !ok {
		return fmt.Errorf("merchant: unexpected message %s", msg.Kind())
	}

	key := idempotency.Key("merchant", "cancel", cmd.MerchantOrderRef)
	done, err := s.guard.HasProcessed(ctx, key)
	if err != nil {
		return fmt.Errorf("merchant: idempotency check: %w", err)
	}
	if !done {
		err := s.store.SetOrderStatus(ctx, cmd.MerchantOrderRef, OrderCancelled)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("merchant: cancel order %q: %w", cmd.MerchantOrderRef, err)
		}
		if errors.Is(err, ErrNotFound) {
			slog.WarnContext(ctx, "no merchant order to cancel",
				"order_id", cmd.OrderID, "merchant_order_ref", cmd.MerchantOrderRef)
		}
		if err := s.guard.MarkProcessed(ctx, key, cmd.OrderID); err != nil {
			return fmt.Errorf("merchant: idempotency mark: %w", err)
		}
		slog.InfoContext(ctx, "merchant order cancelled",
			"order_id", cmd.OrderID, "merchant_order_ref", cmd.MerchantOrderRef)
	}

	return s.pub.Publish(ctx, messages.MerchantOrderCancelled{
		OrderID:          cmd.OrderID,
		Succeeded:        true,
		MerchantOrderRef: cmd.MerchantOrderRef,
	})
}

func (s *Service) reject(ctx context.Context, cmd messages.ValidateMerchantOrder, reason string) error {
	slog.InfoContext(ctx, "merchant order rejected",
		"order_id", cmd.OrderID, "merchant_id", cmd.MerchantID, "reason", reason)
	return s.pub.Publish(ctx, messages.MerchantValidationResult{
		OrderID:         cmd.OrderID,
		Accepted:        false,
		RejectionReason: reason,
	})
}
