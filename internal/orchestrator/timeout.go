package orchestrator

import (
	"context"
	"time"

	"github.com/jcmexdev/delivery-sagas/internal/messages"
)

// stepTimer arms a deadline for a forward step. When the deadline fires it
// publishes a StepTimedOut message instead of mutating state directly: the
// timeout travels through the same pipeline as every other message, and the
// state guard in the transition function absorbs timers that fire after the
// saga has already moved on.
type stepTimer struct {
	pub     Publisher
	timeout time.Duration
}

func (t *stepTimer) arm(sagaID string, state State) {
	if t == nil || t.timeout <= 0 {
		return
	}
	time.AfterFunc(t.timeout, func() {
		// Detached context: the message handler that armed the timer has
		// long since returned when this fires.
		_ = t.pub.Publish(context.Background(), messages.StepTimedOut{
			OrderID: sagaID,
			State:   string(state),
		})
	})
}
