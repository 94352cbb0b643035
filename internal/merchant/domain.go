package merchant

import (
	"time"

	"github.com/shopspring/decimal"
)

// Merchant is one restaurant known to the validation service.
type Merchant struct {
	ID   string
	Name string

	// Open gates whether new orders are accepted at all.
	Open bool

	// Prices is the menu: product id to unit price. Items not present are
	// rejected.
	Prices map[string]decimal.Decimal

	// Preparation estimate: base plus a per-unit surcharge.
	PrepBaseMinutes    int
	PrepPerItemMinutes int
}

// OrderStatus is the lifecycle of an accepted merchant order.
type OrderStatus string

const (
	OrderAccepted  OrderStatus = "ACCEPTED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Order is the merchant-side record created when a validation is accepted.
// Ref is the token the orchestrator later uses to cancel it.
type Order struct {
	Ref        string
	OrderID    string
	MerchantID string
	Total      decimal.Decimal
	Status     OrderStatus
	CreatedAt  time.Time
}
