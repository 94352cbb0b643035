// Package payment implements the payment participant: it authorizes the
// order amount against a provider (simulated by default) and reverses
// committed authorizations when the saga compensates.
package payment

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

// Provider performs the actual capture against the acquirer. The default
// provider succeeds immediately; tests and simulations inject slow or
// failing ones. The context carries the service's own per-call budget,
// distinct from the orchestrator's step deadline.
type Provider func(ctx context.Context, a *Authorization) error

var supportedMethods = map[string]bool{
	"credit_card": true,
	"debit_card":  true,
	"pix":         true,
	"wallet":      true,
}

// Service handles ProcessPayment and ReversePayment commands.
type Service struct {
	store    Store
	guard    idempotency.Guard
	pub      Publisher
	limit    decimal.Decimal
	timeout  time.Duration
	provider Provider
}

// Option configures a Service.
type Option func(*Service)

// WithProvider replaces the default instant-success provider.
func WithProvider(p Provider) Option {
	return func(s *Service) { s.provider = p }
}

// NewService builds the payment participant. limit caps the amount a single
// authorization may carry; timeout is the per-call provider budget.
func NewService(store Store, guard idempotency.Guard, pub Publisher, limit decimal.Decimal, timeout time.Duration, opts ...Option) *Service {
	s := &Service{
		store:    store,
		guard:    guard,
		pub:      pub,
		limit:    limit,
		timeout:  timeout,
		provider: func(ctx context.Context, a *Authorization) error { return nil },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleProcessPayment authorizes the amount. Declines (unsupported method,
// over-limit amount, provider failure or provider timeout) are responses,
// not errors: the participant reports failure itself instead of leaving the
// orchestrator waiting.
func (s *Service) HandleProcessPayment(ctx context.Context, msg messages.Message) error {
	cmd, ok := msg.(messages.ProcessPayment)
	if !ok {
		return fmt.Errorf("payment: unexpected message %s", msg.Kind())
	}

	if !supportedMethods[cmd.PaymentMethod] {
		return s.decline(ctx, cmd, fmt.Sprintf("unsupported payment method %q", cmd.PaymentMethod))
	}
	if cmd.Amount.GreaterThan(s.limit) {
		return s.decline(ctx, cmd, fmt.Sprintf("amount %s exceeds authorization limit %s", cmd.Amount, s.limit))
	}

	auth := &Authorization{
		Ref:        "TXN-" + uuid.NewString(),
		OrderID:    cmd.OrderID,
		CustomerID: cmd.CustomerID,
		Amount:     cmd.Amount,
		Method:     cmd.PaymentMethod,
		CreatedAt:  time.Now().UTC(),
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.provider(callCtx, auth); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return s.decline(ctx, cmd, "payment provider timed out")
		}
		return s.decline(ctx, cmd, err.Error())
	}

	if err := s.store.Save(ctx, auth); err != nil {
		return fmt.Errorf("payment: save authorization %q: %w", auth.Ref, err)
	}

	slog.InfoContext(ctx, "payment authorized",
		"order_id", cmd.OrderID, "transaction_ref", auth.Ref, "amount", cmd.Amount.String())

	return s.pub.Publish(ctx, messages.PaymentResult{
		OrderID:        cmd.OrderID,
		Succeeded:      true,
		TransactionRef: auth.Ref,
	})
}

// HandleReversePayment is the compensating operation. Reversing twice with
// the same ref reports success both times without double-reversing; an
// unknown ref is a success no-op (there is nothing left to undo).
func (s *Service) HandleReversePayment(ctx context.Context, msg messages.Message) error {
	cmd, ok := msg.(messages.ReversePayment)
	if !ok {
		return fmt.Errorf("payment: unexpected message %s", msg.Kind())
	}

	key := idempotency.Key("payment", "reverse", cmd.TransactionRef)
	done, err := s.guard.HasProcessed(ctx, key)
	if err != nil {
		return fmt.Errorf("payment: idempotency check: %w", err)
	}
	if !done {
		err := s.store.MarkReversed(ctx, cmd.TransactionRef)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("payment: reverse %q: %w", cmd.TransactionRef, err)
		}
		if errors.Is(err, ErrNotFound) {
			slog.WarnContext(ctx, "no authorization to reverse",
				"order_id", cmd.OrderID, "transaction_ref", cmd.TransactionRef)
		}
		if err := s.guard.MarkProcessed(ctx, key, cmd.OrderID); err != nil {
			return fmt.Errorf("payment: idempotency mark: %w", err)
		}
		slog.InfoContext(ctx, "payment reversed",
			"order_id", cmd.OrderID, "transaction_ref", cmd.TransactionRef)
	}

	return s.pub.Publish(ctx, messages.PaymentReversed{
		OrderID:        cmd.OrderID,
		Succeeded:      true,
		TransactionRef: cmd.TransactionRef,
	})
}

func (s *Service) decline(ctx context.Context, cmd messages.ProcessPayment, reason string) error {
	slog.InfoContext(ctx, "payment declined", "order_id", cmd.OrderID, "reason", reason)
	return s.pub.Publish(ctx, messages.PaymentResult{
		OrderID:       cmd.OrderID,
		Succeeded:     false,
		FailureReason: reason,
	})
}
