// Package orchestrator implements the saga coordination core: a
// correlation-keyed state machine that drives an order transaction through
// merchant validation, payment, courier allocation and customer
// notification, and compensates the steps that committed when a later step
// fails.
//
// Handling one message is a single logical unit: resolve the instance,
// evaluate the transition, persist the mutated instance conditioned on its
// revision, then emit the follow-up commands. A revision conflict means
// another handler won the write; the message is re-read and re-applied
// rather than the write overwriting.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/delivery-sagas/internal/messages"
	"github.com/jcmexdev/delivery-sagas/internal/orchestrator/sagalog"
)

// Publisher is where the orchestrator hands off the commands it emits.
// The in-process bus implements it; a broker adapter can as well.
type Publisher interface {
	Publish(ctx context.Context, msg messages.Message) error
}

// Orchestrator owns all transition logic, compensation sequencing and
// completion detection. It keeps no in-process state between messages:
// everything it knows about a saga lives in the InstanceStore.
type Orchestrator struct {
	store  InstanceStore
	router *Router
	pub    Publisher
	log    sagalog.Repository // nil-safe: transition logging skipped if nil

	stepTimeout time.Duration
	deliveryFee decimal.Decimal
	now         func() time.Time
}

// conflictRetries bounds the re-read/re-apply loop on revision conflicts
// before the message is handed back to the transport for redelivery.
const conflictRetries = 5

func New(store InstanceStore, pub Publisher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		router:      NewRouter(store),
		pub:         pub,
		deliveryFee: DefaultDeliveryFee,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleMessage consumes one inbound message: the initiating command or any
// participant response. It never returns business failures as errors — those
// are absorbed into the state machine. A returned error means an
// infrastructure fault the transport should retry.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg messages.Message) error {
	backoff := retry.WithMaxRetries(conflictRetries, retry.NewConstant(25*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := o.apply(ctx, msg)
		if errors.Is(err, ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (o *Orchestrator) apply(ctx context.Context, msg messages.Message) error {
	ins, created, err := o.router.Resolve(ctx, msg)
	switch {
	case errors.Is(err, ErrAlreadyExists):
		// Idempotent creation: a second initiating command is ignored.
		slog.WarnContext(ctx, "duplicate initiating command ignored", "saga_id", msg.CorrelationID())
		return nil
	case errors.Is(err, ErrNotFound):
		// A response that belongs to no saga: logged and dropped, since
		// at-least-once delivery can surface stale retries.
		slog.WarnContext(ctx, "unroutable message dropped",
			"saga_id", msg.CorrelationID(), "kind", msg.Kind())
		return nil
	case err != nil:
		return err
	}

	if created {
		slog.InfoContext(ctx, "saga started",
			"saga_id", ins.ID, "merchant_id", ins.MerchantID, "customer_id", ins.CustomerID)
		o.record(ctx, ins, msg.Kind())
		return o.dispatch(ctx, ins, []messages.Message{
			messages.ValidateMerchantOrder{
				OrderID:    ins.ID,
				MerchantID: ins.MerchantID,
				Items:      ins.Items,
			},
		})
	}

	if ins.State.Terminal() {
		slog.DebugContext(ctx, "message for terminal saga ignored",
			"saga_id", ins.ID, "kind", msg.Kind(), "state", ins.State)
		return nil
	}

	out, changed := o.transition(ctx, ins, msg)
	if !changed {
		slog.DebugContext(ctx, "message ignored by state machine",
			"saga_id", ins.ID, "kind", msg.Kind(), "state", ins.State)
		return nil
	}

	if err := o.store.Update(ctx, ins); err != nil {
		return fmt.Errorf("persist saga %q: %w", ins.ID, err)
	}

	o.record(ctx, ins, msg.Kind())
	return o.dispatch(ctx, ins, out)
}

// transition applies one response to the instance and returns the commands
// to emit. The second return value is false when the message does not
// belong to the current state (duplicate, late, or unmodeled): the state
// machine is monotonic and fails closed.
func (o *Orchestrator) transition(ctx context.Context, ins *Instance, msg messages.Message) ([]messages.Message, bool) {
	switch m := msg.(type) {
	case messages.MerchantValidationResult:
		if ins.State != StateValidatingMerchant {
			return nil, false
		}
		if !m.Accepted {
			// Nothing committed yet: no compensation owed.
			slog.InfoContext(ctx, "merchant rejected order", "saga_id", ins.ID, "reason", m.RejectionReason)
			return o.cancelOutright(ins, m.RejectionReason), true
		}
		ins.TotalAmount = m.TotalAmount
		ins.PrepTimeMinutes = m.PrepTimeMinutes
		ins.MerchantOrderRef = m.MerchantOrderRef
		ins.MerchantCommitted = true
		ins.DeliveryFee = o.deliveryFee
		ins.State = StateProcessingPayment
		return []messages.Message{messages.ProcessPayment{
			OrderID:       ins.ID,
			CustomerID:    ins.CustomerID,
			Amount:        ins.TotalAmount.Add(ins.DeliveryFee),
			PaymentMethod: ins.PaymentMethod,
		}}, true

	case messages.PaymentResult:
		if ins.State != StateProcessingPayment {
			return nil, false
		}
		if !m.Succeeded {
			slog.InfoContext(ctx, "payment failed", "saga_id", ins.ID, "reason", m.FailureReason)
			return o.beginCompensation(ins, m.FailureReason), true
		}
		ins.TransactionRef = m.TransactionRef
		ins.PaymentCommitted = true
		ins.State = StateAllocatingCourier
		return []messages.Message{messages.AllocateCourier{
			OrderID:         ins.ID,
			MerchantID:      ins.MerchantID,
			DeliveryAddress: ins.DeliveryAddress,
			DeliveryFee:     ins.DeliveryFee,
		}}, true

	case messages.CourierAllocationResult:
		if ins.State != StateAllocatingCourier {
			return nil, false
		}
		if !m.Allocated {
			slog.InfoContext(ctx, "courier allocation failed", "saga_id", ins.ID, "reason", m.FailureReason)
			return o.beginCompensation(ins, m.FailureReason), true
		}
		ins.CourierRef = m.CourierRef
		ins.ETAMinutes = m.ETAMinutes
		ins.CourierCommitted = true
		ins.State = StateNotifyingCustomer
		return []messages.Message{messages.NotifyCustomer{
			OrderID:          ins.ID,
			CustomerID:       ins.CustomerID,
			Message:          fmt.Sprintf("Order confirmed. Courier on the way, ETA %d min.", ins.ETAMinutes),
			NotificationKind: messages.NotificationOrderConfirmed,
		}}, true

	case messages.NotificationResult:
		if ins.State != StateNotifyingCustomer {
			return nil, false
		}
		if !m.Delivered {
			// Notification is best-effort and never blocks completion.
			slog.WarnContext(ctx, "customer notification not delivered", "saga_id", ins.ID)
		}
		o.complete(ins)
		return nil, true

	case messages.MerchantOrderCancelled:
		return o.foldCompensation(ctx, ins, CompensationMerchantOrderCancelled, m.Succeeded)

	case messages.PaymentReversed:
		return o.foldCompensation(ctx, ins, CompensationPaymentReversed, m.Succeeded)

	case messages.CourierReleased:
		return o.foldCompensation(ctx, ins, CompensationCourierReleased, m.Succeeded)

	case messages.StepTimedOut:
		if string(ins.State) != m.State {
			// The saga advanced before the timer fired.
			return nil, false
		}
		switch ins.State {
		case StateValidatingMerchant:
			return o.cancelOutright(ins, "merchant validation timed out"), true
		case StateProcessingPayment:
			return o.beginCompensation(ins, "payment timed out"), true
		case StateAllocatingCourier:
			return o.beginCompensation(ins, "courier allocation timed out"), true
		case StateNotifyingCustomer:
			slog.WarnContext(ctx, "customer notification timed out", "saga_id", ins.ID)
			o.complete(ins)
			return nil, true
		}
		return nil, false

	default:
		slog.WarnContext(ctx, "unexpected message type for saga",
			"saga_id", ins.ID, "kind", msg.Kind(), "state", ins.State)
		return nil, false
	}
}

// cancelOutright terminates a saga that failed before anything committed.
// The customer is told the order was rejected; no compensation runs.
func (o *Orchestrator) cancelOutright(ins *Instance, reason string) []messages.Message {
	now := o.now().UTC()
	ins.FailureReason = reason
	ins.State = StateCancelled
	ins.CompletedAt = &now
	return []messages.Message{o.customerNotice(ins, messages.NotificationOrderRejected,
		fmt.Sprintf("Your order was rejected: %s", reason))}
}

// beginCompensation switches the saga onto the compensation branch and
// emits one compensating command per committed side effect. The commands
// target disjoint participants; no relative order between them is required.
func (o *Orchestrator) beginCompensation(ins *Instance, reason string) []messages.Message {
	now := o.now().UTC()
	ins.FailureReason = reason
	ins.Compensating = true
	ins.CompensationStartedAt = &now

	var out []messages.Message
	if ins.CourierCommitted {
		out = append(out, messages.ReleaseCourier{OrderID: ins.ID, CourierRef: ins.CourierRef})
	}
	if ins.PaymentCommitted {
		out = append(out, messages.ReversePayment{OrderID: ins.ID, TransactionRef: ins.TransactionRef})
	}
	if ins.MerchantCommitted {
		out = append(out, messages.CancelMerchantOrder{
			OrderID:          ins.ID,
			MerchantID:       ins.MerchantID,
			MerchantOrderRef: ins.MerchantOrderRef,
		})
	}

	if len(out) == 0 {
		// Failure before any commit: nothing to undo.
		return o.finishCancellation(ins)
	}
	ins.State = StateExecutingCompensation
	return out
}

// foldCompensation records one completed compensating action and checks
// whether every committed side effect has now been undone.
func (o *Orchestrator) foldCompensation(ctx context.Context, ins *Instance, step CompensationStep, succeeded bool) ([]messages.Message, bool) {
	if ins.State != StateExecutingCompensation {
		return nil, false
	}
	if !succeeded {
		// Participants report compensations as idempotent successes; a
		// failure here is left to transport redelivery.
		slog.WarnContext(ctx, "compensation step reported failure", "saga_id", ins.ID, "step", step)
		return nil, false
	}
	if ins.HasCompensated(step) {
		return nil, false
	}
	ins.MarkCompensated(step)
	if !ins.CompensationDone() {
		return nil, true
	}
	return o.finishCancellation(ins), true
}

func (o *Orchestrator) finishCancellation(ins *Instance) []messages.Message {
	now := o.now().UTC()
	ins.State = StateCancelled
	ins.CompensationEndedAt = &now
	ins.CompletedAt = &now
	return []messages.Message{o.customerNotice(ins, messages.NotificationOrderCancelled,
		fmt.Sprintf("Your order was cancelled: %s", ins.FailureReason))}
}

func (o *Orchestrator) complete(ins *Instance) {
	now := o.now().UTC()
	ins.State = StateCompleted
	ins.CompletedAt = &now
}

func (o *Orchestrator) customerNotice(ins *Instance, kind messages.NotificationKind, text string) messages.Message {
	return messages.NotifyCustomer{
		OrderID:          ins.ID,
		CustomerID:       ins.CustomerID,
		Message:          text,
		NotificationKind: kind,
	}
}

// dispatch publishes the emitted commands and arms the step deadline for
// the state the saga now sits in.
func (o *Orchestrator) dispatch(ctx context.Context, ins *Instance, out []messages.Message) error {
	for _, m := range out {
		if err := o.pub.Publish(ctx, m); err != nil {
			return fmt.Errorf("publish %s for saga %q: %w", m.Kind(), ins.ID, err)
		}
	}
	switch ins.State {
	case StateValidatingMerchant, StateProcessingPayment, StateAllocatingCourier, StateNotifyingCustomer:
		timer := &stepTimer{pub: o.pub, timeout: o.stepTimeout}
		timer.arm(ins.ID, ins.State)
	}
	return nil
}

// record appends a transition entry to the saga log. Best-effort: the log
// is an audit trail, not part of the consistency model.
func (o *Orchestrator) record(ctx context.Context, ins *Instance, messageKind string) {
	if o.log == nil {
		return
	}
	entry := sagalog.NewEntry(ctx, ins.ID, string(ins.State), messageKind, ins.FailureReason)
	if err := o.log.Save(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "failed to append saga log entry", "saga_id", ins.ID, "error", err)
	}
}
