package orchestrator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/delivery-sagas/internal/messages"
)

// State is the lifecycle state of a saga instance.
type State string

const (
	StateValidatingMerchant    State = "VALIDATING_MERCHANT"
	StateProcessingPayment     State = "PROCESSING_PAYMENT"
	StateAllocatingCourier     State = "ALLOCATING_COURIER"
	StateNotifyingCustomer     State = "NOTIFYING_CUSTOMER"
	StateCompleted             State = "COMPLETED"
	StateExecutingCompensation State = "EXECUTING_COMPENSATION"
	StateCancelled             State = "CANCELLED"
)

// Terminal reports whether no further transition may be applied.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// CompensationStep labels one completed compensating action on the instance.
type CompensationStep string

const (
	CompensationMerchantOrderCancelled CompensationStep = "MERCHANT_ORDER_CANCELLED"
	CompensationPaymentReversed        CompensationStep = "PAYMENT_REVERSED"
	CompensationCourierReleased        CompensationStep = "COURIER_RELEASED"
)

// Instance is the durable record of one order transaction. One instance
// exists per correlation id; every mutation goes through the state machine
// and is persisted with a revision check.
type Instance struct {
	// ID is the correlation identifier. Assigned once, never changes.
	ID string `json:"id"`

	// Revision increases by one on every persisted mutation. The store
	// rejects a write whose revision does not match the stored row.
	Revision int64 `json:"revision"`

	State State `json:"state"`

	// Order attributes, captured at creation and immutable thereafter.
	CustomerID      string              `json:"customer_id"`
	MerchantID      string              `json:"merchant_id"`
	Items           []messages.LineItem `json:"items"`
	DeliveryAddress string              `json:"delivery_address"`
	PaymentMethod   string              `json:"payment_method"`

	// Derived attributes, filled in as the workflow progresses.
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PrepTimeMinutes int             `json:"prep_time_minutes"`
	DeliveryFee     decimal.Decimal `json:"delivery_fee"`
	ETAMinutes      int             `json:"eta_minutes"`

	// References needed to undo committed side effects.
	MerchantOrderRef string `json:"merchant_order_ref,omitempty"`
	TransactionRef   string `json:"transaction_ref,omitempty"`
	CourierRef       string `json:"courier_ref,omitempty"`

	// Side-effect flags. A flag is set when the corresponding forward
	// step's success response is folded in and is never reset; it decides
	// whether a compensation is owed.
	MerchantCommitted bool `json:"merchant_committed"`
	PaymentCommitted  bool `json:"payment_committed"`
	CourierCommitted  bool `json:"courier_committed"`

	// Compensation bookkeeping.
	Compensating          bool               `json:"compensating"`
	CompensatedSteps      []CompensationStep `json:"compensated_steps,omitempty"`
	CompensationStartedAt *time.Time         `json:"compensation_started_at,omitempty"`
	CompensationEndedAt   *time.Time         `json:"compensation_ended_at,omitempty"`

	// FailureReason records the business rejection or timeout that drove
	// the saga off the happy path.
	FailureReason string `json:"failure_reason,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewInstance builds the initial record for a just-submitted order.
func NewInstance(cmd messages.SubmitOrder, now time.Time) *Instance {
	return &Instance{
		ID:              cmd.OrderID,
		State:           StateValidatingMerchant,
		CustomerID:      cmd.CustomerID,
		MerchantID:      cmd.MerchantID,
		Items:           cmd.Items,
		DeliveryAddress: cmd.DeliveryAddress,
		PaymentMethod:   cmd.PaymentMethod,
		StartedAt:       now.UTC(),
	}
}

// HasCompensated reports whether the given compensating step has already
// been folded into the instance.
func (i *Instance) HasCompensated(step CompensationStep) bool {
	for _, s := range i.CompensatedSteps {
		if s == step {
			return true
		}
	}
	return false
}

// MarkCompensated appends the step label once; re-delivered compensation
// responses fold into the same entry.
func (i *Instance) MarkCompensated(step CompensationStep) {
	if !i.HasCompensated(step) {
		i.CompensatedSteps = append(i.CompensatedSteps, step)
	}
}

// CompensationDone reports whether every side effect that committed has a
// matching completed compensation. Completion is set membership, not queue
// order: participants may respond in any order.
func (i *Instance) CompensationDone() bool {
	if i.MerchantCommitted && !i.HasCompensated(CompensationMerchantOrderCancelled) {
		return false
	}
	if i.PaymentCommitted && !i.HasCompensated(CompensationPaymentReversed) {
		return false
	}
	if i.CourierCommitted && !i.HasCompensated(CompensationCourierReleased) {
		return false
	}
	return true
}

// Clone returns a deep copy so store implementations can hand out
// instances without sharing mutable slices.
func (i *Instance) Clone() *Instance {
	c := *i
	c.Items = append([]messages.LineItem(nil), i.Items...)
	c.CompensatedSteps = append([]CompensationStep(nil), i.CompensatedSteps...)
	if i.CompensationStartedAt != nil {
		t := *i.CompensationStartedAt
		c.CompensationStartedAt = &t
	}
	if i.CompensationEndedAt != nil {
		t := *i.CompensationEndedAt
		c.CompensationEndedAt = &t
	}
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
