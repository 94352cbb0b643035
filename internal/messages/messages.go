// Package messages defines the command and response contracts exchanged
// between the orchestrator and the participant services.
//
// Every message carries the correlation identifier of the order transaction
// it belongs to. The transport is free to choose its own wire encoding; these
// types are the in-process representation shared by all parties.
package messages

import "github.com/shopspring/decimal"

// Message is implemented by every command and response in the system.
type Message interface {
	// CorrelationID returns the identifier of the saga instance this
	// message belongs to.
	CorrelationID() string

	// Kind returns a stable name for the message type, used for bus
	// routing and for the saga audit log.
	Kind() string
}

// LineItem is one ordered product line.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// NotificationKind classifies the customer notification being sent.
type NotificationKind string

const (
	NotificationOrderConfirmed NotificationKind = "ORDER_CONFIRMED"
	NotificationOrderRejected  NotificationKind = "ORDER_REJECTED"
	NotificationOrderCancelled NotificationKind = "ORDER_CANCELLED"
)

// --- Initiating command ---

// SubmitOrder starts a new order transaction. The correlation id is chosen
// by the caller (the gateway) and identifies the saga for its whole life.
type SubmitOrder struct {
	OrderID         string     `json:"order_id"`
	CustomerID      string     `json:"customer_id"`
	MerchantID      string     `json:"merchant_id"`
	Items           []LineItem `json:"items"`
	DeliveryAddress string     `json:"delivery_address"`
	PaymentMethod   string     `json:"payment_method"`
}

func (m SubmitOrder) CorrelationID() string { return m.OrderID }
func (m SubmitOrder) Kind() string          { return "SubmitOrder" }

// --- Forward commands ---

type ValidateMerchantOrder struct {
	OrderID    string     `json:"order_id"`
	MerchantID string     `json:"merchant_id"`
	Items      []LineItem `json:"items"`
}

func (m ValidateMerchantOrder) CorrelationID() string { return m.OrderID }
func (m ValidateMerchantOrder) Kind() string          { return "ValidateMerchantOrder" }

type ProcessPayment struct {
	OrderID       string          `json:"order_id"`
	CustomerID    string          `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
}

func (m ProcessPayment) CorrelationID() string { return m.OrderID }
func (m ProcessPayment) Kind() string          { return "ProcessPayment" }

type AllocateCourier struct {
	OrderID         string          `json:"order_id"`
	MerchantID      string          `json:"merchant_id"`
	DeliveryAddress string          `json:"delivery_address"`
	DeliveryFee     decimal.Decimal `json:"delivery_fee"`
}

func (m AllocateCourier) CorrelationID() string { return m.OrderID }
func (m AllocateCourier) Kind() string          { return "AllocateCourier" }

type NotifyCustomer struct {
	OrderID          string           `json:"order_id"`
	CustomerID       string           `json:"customer_id"`
	Message          string           `json:"message"`
	NotificationKind NotificationKind `json:"notification_kind"`
}

func (m NotifyCustomer) CorrelationID() string { return m.OrderID }
func (m NotifyCustomer) Kind() string          { return "NotifyCustomer" }

// --- Forward responses ---

type MerchantValidationResult struct {
	OrderID          string          `json:"order_id"`
	Accepted         bool            `json:"accepted"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PrepTimeMinutes  int             `json:"prep_time_minutes"`
	MerchantOrderRef string          `json:"merchant_order_ref"`
	RejectionReason  string          `json:"rejection_reason,omitempty"`
}

func (m MerchantValidationResult) CorrelationID() string { return m.OrderID }
func (m MerchantValidationResult) Kind() string          { return "MerchantValidationResult" }

type PaymentResult struct {
	OrderID        string `json:"order_id"`
	Succeeded      bool   `json:"succeeded"`
	TransactionRef string `json:"transaction_ref,omitempty"`
	FailureReason  string `json:"failure_reason,omitempty"`
}

func (m PaymentResult) CorrelationID() string { return m.OrderID }
func (m PaymentResult) Kind() string          { return "PaymentResult" }

type CourierAllocationResult struct {
	OrderID       string `json:"order_id"`
	Allocated     bool   `json:"allocated"`
	CourierRef    string `json:"courier_ref,omitempty"`
	ETAMinutes    int    `json:"eta_minutes,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func (m CourierAllocationResult) CorrelationID() string { return m.OrderID }
func (m CourierAllocationResult) Kind() string          { return "CourierAllocationResult" }

type NotificationResult struct {
	OrderID   string `json:"order_id"`
	Delivered bool   `json:"delivered"`
}

func (m NotificationResult) CorrelationID() string { return m.OrderID }
func (m NotificationResult) Kind() string          { return "NotificationResult" }

// --- Compensating commands ---

type CancelMerchantOrder struct {
	OrderID          string `json:"order_id"`
	MerchantID       string `json:"merchant_id"`
	MerchantOrderRef string `json:"merchant_order_ref"`
}

func (m CancelMerchantOrder) CorrelationID() string { return m.OrderID }
func (m CancelMerchantOrder) Kind() string          { return "CancelMerchantOrder" }

type ReversePayment struct {
	OrderID        string `json:"order_id"`
	TransactionRef string `json:"transaction_ref"`
}

func (m ReversePayment) CorrelationID() string { return m.OrderID }
func (m ReversePayment) Kind() string          { return "ReversePayment" }

type ReleaseCourier struct {
	OrderID    string `json:"order_id"`
	CourierRef string `json:"courier_ref"`
}

func (m ReleaseCourier) CorrelationID() string { return m.OrderID }
func (m ReleaseCourier) Kind() string          { return "ReleaseCourier" }

// --- Compensating responses ---

type MerchantOrderCancelled struct {
	OrderID          string `json:"order_id"`
	Succeeded        bool   `json:"succeeded"`
	MerchantOrderRef string `json:"merchant_order_ref"`
}

func (m MerchantOrderCancelled) CorrelationID() string { return m.OrderID }
func (m MerchantOrderCancelled) Kind() string          { return "MerchantOrderCancelled" }

type PaymentReversed struct {
	OrderID        string `json:"order_id"`
	Succeeded      bool   `json:"succeeded"`
	TransactionRef string `json:"transaction_ref"`
}

func (m PaymentReversed) CorrelationID() string { return m.OrderID }
func (m PaymentReversed) Kind() string          { return "PaymentReversed" }

type CourierReleased struct {
	OrderID    string `json:"order_id"`
	Succeeded  bool   `json:"succeeded"`
	CourierRef string `json:"courier_ref"`
}

func (m CourierReleased) CorrelationID() string { return m.OrderID }
func (m CourierReleased) Kind() string          { return "CourierReleased" }

// --- Internal scheduler message ---

// StepTimedOut is published by the orchestrator's step timer when a forward
// step's response has not arrived within its deadline. State carries the
// saga state the step belongs to, so a late timeout for an already-advanced
// saga is recognised and dropped.
type StepTimedOut struct {
	OrderID string `json:"order_id"`
	State   string `json:"state"`
}

func (m StepTimedOut) CorrelationID() string { return m.OrderID }
func (m StepTimedOut) Kind() string          { return "StepTimedOut" }
