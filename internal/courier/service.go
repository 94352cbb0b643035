// Package courier implements the delivery-allocation participant: it binds
// a free courier from the pool to an order and releases the courier when
// the saga compensates.
package courier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/delivery-sagas/internal/messages"
	"github.com/jcmexdev/delivery-sagas/internal/pkg/idempotency"
)

// Publisher is where the service emits its responses.
type Publisher interface {
	Publish(ctx context.Context, msg messages.Message) error
}

// Service handles AllocateCourier and ReleaseCourier commands.
type Service struct {
	store Store
	guard idempotency.Guard
	pub   Publisher
}

func NewService(store Store, guard idempotency.Guard, pub Publisher) *Service {
	return &Service{store: store, guard: guard, pub: pub}
}

// HandleAllocateCourier reserves a courier. An exhausted pool is a
// response, not an error.
func (s *Service) HandleAllocateCourier(ctx context.Context, msg messages.Message) error {
	cmd, ok := msg.(messages.AllocateCourier)
	if !ok {
		return fmt.Errorf("courier: unexpected message %s", msg.Kind())
	}

	alloc, err := s.store.Allocate(ctx, cmd.OrderID)
	if errors.Is(err, ErrNoneAvailable) {
		slog.InfoContext(ctx, "no courier available", "order_id", cmd.OrderID)
		return s.pub.Publish(ctx, messages.CourierAllocationResult{
			OrderID:       cmd.OrderID,
			Allocated:     false,
			FailureReason: "no courier available",
		})
	}
	if err != nil {
		return fmt.Errorf("courier: allocate for %q: %w", cmd.OrderID, err)
	}

	slog.InfoContext(ctx, "courier allocated",
		"order_id", cmd.OrderID, "courier_ref", alloc.Ref, "eta_minutes", alloc.ETAMinutes)

	return s.pub.Publish(ctx, messages.CourierAllocationResult{
		OrderID:    cmd.OrderID,
		Allocated:  true,
		CourierRef: alloc.Ref,
		ETAMinutes: alloc.ETAMinutes,
	})
}

// HandleReleaseCourier is the compensating operation. Releasing the same
// courier twice leaves it released, not double-counted; the guard skips the
// second application and the pool treats unknown refs as no-ops anyway.
func (s *Service) HandleReleaseCourier(ctx context.Context, msg messages.Message) error {
	cmd, ok := msg.(messages.ReleaseCourier)
	if !ok {
		return fmt.Errorf("courier: unexpected message %s", msg.Kind())
	}

	key := idempotency.Key("courier", "release", cmd.CourierRef)
	done, err := s.guard.HasProcessed(ctx, key)
	if err != nil {
		return fmt.Errorf("courier: idempotency check: %w", err)
	}
	if !done {
		released, err := s.store.Release(ctx, cmd.CourierRef)
		if err != nil {
			return fmt.Errorf("courier: release %q: %w", cmd.CourierRef, err)
		}
		if !released {
			slog.WarnContext(ctx, "no allocation to release",
				"order_id", cmd.OrderID, "courier_ref", cmd.CourierRef)
		}
		if err := s.guard.MarkProcessed(ctx, key, cmd.OrderID); err != nil {
			return fmt.Errorf("courier: idempotency mark: %w", err)
		}
		slog.InfoContext(ctx, "courier released",
			"order_id", cmd.OrderID, "courier_ref", cmd.CourierRef)
	}

	return s.pub.Publish(ctx, messages.CourierReleased{
		OrderID:    cmd.OrderID,
		Succeeded:  true,
		CourierRef: cmd.CourierRef,
	})
}
