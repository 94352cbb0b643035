package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/jcmexdev/delivery-sagas/internal/messages"
)

// Router maps an inbound message to the saga instance sharing its
// correlation identifier. Only the initiating command may create a new
// instance; every other message must find an existing one.
type Router struct {
	store InstanceStore
	now   func() time.Time
}

func NewRouter(store InstanceStore) *Router {
	return &Router{store: store, now: time.Now}
}

// Resolve returns the instance the message belongs to and whether it was
// just created. Exactly one of "route to existing" or "create new" happens,
// never both.
//
// Error conditions surface as the store sentinels: ErrAlreadyExists for a
// duplicate initiating command, ErrNotFound for a non-initiating message
// with no matching instance. Both are routing errors the caller logs and
// drops — at-least-once delivery makes them expected, not fatal.
func (r *Router) Resolve(ctx context.Context, msg messages.Message) (*Instance, bool, error) {
	if cmd, ok := msg.(messages.SubmitOrder); ok {
		ins := NewInstance(cmd, r.now())
		if err := r.store.Create(ctx, ins); err != nil {
			return nil, false, fmt.Errorf("router: create saga %q: %w", cmd.OrderID, err)
		}
		return ins, true, nil
	}

	ins, err := r.store.Load(ctx, msg.CorrelationID())
	if err != nil {
		return nil, false, fmt.Errorf("router: resolve %s for saga %q: %w", msg.Kind(), msg.CorrelationID(), err)
	}
	return ins, false, nil
}
