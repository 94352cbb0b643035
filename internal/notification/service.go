// Package notification implements the customer-notification participant.
// Notification is one-way and best-effort: there is no compensating
// operation, and a failed delivery never propagates into the workflow.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jcmexdev/delivery-sagas/internal/messages"
)

// Publisher is where the service emits its responses.
type Publisher interface {
	Publish(ctx context.Context, msg messages.Message) error
}

// Notification is one recorded customer message.
type Notification struct {
	OrderID    string
	CustomerID string
	Kind       messages.NotificationKind
	Message    string
	SentAt     time.Time
}

// Service handles NotifyCustomer commands by recording the notification
// and acknowledging delivery.
type Service struct {
	pub Publisher

	mu   sync.Mutex
	sent []Notification
}

func NewService(pub Publisher) *Service {
	return &Service{pub: pub}
}

func (s *Service) HandleNotifyCustomer(ctx context.Context, msg messages.Message) error {
	cmd, ok := msg.(messages.NotifyCustomer)
	if !ok {
		return fmt.Errorf("notification: unexpected message %s", msg.Kind())
	}

	s.mu.Lock()
	s.sent = append(s.sent, Notification{
		OrderID:    cmd.OrderID,
		CustomerID: cmd.CustomerID,
		Kind:       cmd.NotificationKind,
		Message:    cmd.Message,
		SentAt:     time.Now().UTC(),
	})
	s.mu.Unlock()

	slog.InfoContext(ctx, "customer notified",
		"order_id", cmd.OrderID, "customer_id", cmd.CustomerID, "kind", cmd.NotificationKind)

	return s.pub.Publish(ctx, messages.NotificationResult{
		OrderID:   cmd.OrderID,
		Delivered: true,
	})
}

// Sent returns a snapshot of everything delivered so far.
func (s *Service) Sent() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.sent...)
}
