// Package httpx is the HTTP entry point: it accepts a new order, assigns
// the correlation identifier, publishes the initiating command and exposes
// saga status for polling by that identifier.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jcmexdev/delivery-sagas/internal/messages"
	"github.com/jcmexdev/delivery-sagas/internal/orchestrator"
)

// Publisher is where the gateway hands off the initiating command.
type Publisher interface {
	Publish(ctx context.Context, msg messages.Message) error
}

// Handler handles incoming HTTP requests for the order workflow.
type Handler struct {
	pub   Publisher
	store orchestrator.InstanceStore
}

func NewHandler(pub Publisher, store orchestrator.InstanceStore) *Handler {
	return &Handler{pub: pub, store: store}
}

// SubmitOrder assigns a correlation id, publishes the initiating command
// and returns 202 with the id the caller polls status with.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if req.CustomerID == "" || req.MerchantID == "" || len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request",
			"customer_id, merchant_id and items are required")
		return
	}
	if req.DeliveryAddress == "" || req.PaymentMethod == "" {
		writeError(w, http.StatusBadRequest, "invalid_request",
			"delivery_address and payment_method are required")
		return
	}

	items := make([]messages.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity <= 0 || it.UnitPrice.IsNegative() {
			writeError(w, http.StatusBadRequest, "invalid_item",
				"product_id, quantity and unit_price must be valid")
			return
		}
		items = append(items, messages.LineItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	orderID := uuid.NewString()
	cmd := messages.SubmitOrder{
		OrderID:         orderID,
		CustomerID:      req.CustomerID,
		MerchantID:      req.MerchantID,
		Items:           items,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   req.PaymentMethod,
	}

	slog.InfoContext(r.Context(), "order submitted",
		"order_id", orderID, "customer_id", req.CustomerID, "merchant_id", req.MerchantID)

	// Detach from the HTTP request context so the saga is not cancelled
	// when the response is sent, while keeping tracing metadata.
	if err := h.pub.Publish(context.WithoutCancel(r.Context()), cmd); err != nil {
		writeError(w, http.StatusServiceUnavailable, "publish_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitOrderResponse{
		OrderID: orderID,
		Status:  string(orchestrator.StateValidatingMerchant),
	})
}

// GetOrderStatus returns the current saga instance view for a correlation id.
func (h *Handler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "order_id_required", "")
		return
	}

	ins, err := h.store.Load(r.Context(), orderID)
	if errors.Is(err, orchestrator.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order_not_found", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, mapInstance(ins))
}

func mapInstance(ins *orchestrator.Instance) OrderStatusResponse {
	resp := OrderStatusResponse{
		OrderID:          ins.ID,
		State:            string(ins.State),
		CustomerID:       ins.CustomerID,
		MerchantID:       ins.MerchantID,
		TotalAmount:      ins.TotalAmount,
		DeliveryFee:      ins.DeliveryFee,
		PrepTimeMinutes:  ins.PrepTimeMinutes,
		ETAMinutes:       ins.ETAMinutes,
		TransactionRef:   ins.TransactionRef,
		CourierRef:       ins.CourierRef,
		MerchantOrderRef: ins.MerchantOrderRef,
		Compensating:     ins.Compensating,
		FailureReason:    ins.FailureReason,
		StartedAt:        ins.StartedAt.Format(time.RFC3339),
	}
	if ins.CompletedAt != nil {
		resp.CompletedAt = ins.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
