package httpx

import "github.com/shopspring/decimal"

type SubmitOrderRequest struct {
	CustomerID      string            `json:"customer_id"`
	MerchantID      string            `json:"merchant_id"`
	DeliveryAddress string            `json:"delivery_address"`
	PaymentMethod   string            `json:"payment_method"`
	Items           []SubmitOrderItem `json:"items"`
}

type SubmitOrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SubmitOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type OrderStatusResponse struct {
	OrderID          string          `json:"order_id"`
	State            string          `json:"state"`
	CustomerID       string          `json:"customer_id"`
	MerchantID       string          `json:"merchant_id"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	DeliveryFee      decimal.Decimal `json:"delivery_fee"`
	PrepTimeMinutes  int             `json:"prep_time_minutes,omitempty"`
	ETAMinutes       int             `json:"eta_minutes,omitempty"`
	TransactionRef   string          `json:"transaction_ref,omitempty"`
	CourierRef       string          `json:"courier_ref,omitempty"`
	MerchantOrderRef string          `json:"merchant_order_ref,omitempty"`
	Compensating     bool            `json:"compensating"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	StartedAt        string          `json:"started_at"`
	CompletedAt      string          `json:"completed_at,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
