package orchestrator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/delivery-sagas/internal/orchestrator/sagalog"
)

// DefaultDeliveryFee is applied when no fee is configured.
var DefaultDeliveryFee = decimal.RequireFromString("7.90")

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTransitionLog enables the durable saga transition log. The log is
// best-effort: a failed append is logged, never blocks the workflow.
func WithTransitionLog(repo sagalog.Repository) Option {
	return func(o *Orchestrator) { o.log = repo }
}

// WithStepTimeout sets the deadline applied to each forward step. A missing
// response within the deadline is treated as a rejection of that step.
// Zero disables the timer (useful in deterministic tests).
func WithStepTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stepTimeout = d }
}

// WithDeliveryFee sets the flat delivery fee added on top of the merchant
// total when charging the customer.
func WithDeliveryFee(fee decimal.Decimal) Option {
	return func(o *Orchestrator) { o.deliveryFee = fee }
}

// WithClock overrides the time source. Tests use it to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
		o.router.now = now
	}
}
