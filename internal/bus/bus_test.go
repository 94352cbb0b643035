package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/delivery-sagas/internal/messages"
)

func runBus(t *testing.T, b *Bus) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestBusDeliversToRegisteredHandler(t *testing.T) {
	b := New(WithWorkers(2))

	var mu sync.Mutex
	var got []string
	b.Register(messages.SubmitOrder{}.Kind(), func(ctx context.Context, msg messages.Message) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg.CorrelationID())
		return nil
	})
	runBus(t, b)

	require.NoError(t, b.Publish(context.Background(), messages.SubmitOrder{OrderID: "ord-1"}))
	require.NoError(t, b.Publish(context.Background(), messages.SubmitOrder{OrderID: "ord-2"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBusRetriesThenSucceeds(t *testing.T) {
	b := New(WithWorkers(1), WithAttempts(3))

	var calls atomic.Int32
	b.Register(messages.PaymentResult{}.Kind(), func(ctx context.Context, msg messages.Message) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	runBus(t, b)

	require.NoError(t, b.Publish(context.Background(), messages.PaymentResult{OrderID: "ord-1", Succeeded: true}))

	assert.Eventually(t, func() bool { return calls.Load() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, b.DeadLetters())
}

func TestBusParksAfterExhaustedRetries(t *testing.T) {
	b := New(WithWorkers(1), WithAttempts(2))

	var calls atomic.Int32
	b.Register(messages.PaymentResult{}.Kind(), func(ctx context.Context, msg messages.Message) error {
		calls.Add(1)
		return errors.New("permanent")
	})
	runBus(t, b)

	require.NoError(t, b.Publish(context.Background(), messages.PaymentResult{OrderID: "ord-1"}))

	assert.Eventually(t, func() bool { return len(b.DeadLetters()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 2, calls.Load())

	dl := b.DeadLetters()[0]
	assert.Equal(t, "ord-1", dl.Msg.CorrelationID())
	assert.Equal(t, 2, dl.Attempts)
	assert.Contains(t, dl.Err, "permanent")
}

func TestBusDropsUnhandledKind(t *testing.T) {
	b := New(WithWorkers(1))
	runBus(t, b)

	require.NoError(t, b.Publish(context.Background(), messages.StepTimedOut{OrderID: "ord-1"}))

	// Give the worker a moment; an unhandled kind is dropped, not parked.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, b.DeadLetters())
}

func TestBusPublishHonoursContext(t *testing.T) {
	b := New(WithQueueSize(1))
	require.NoError(t, b.Publish(context.Background(), messages.SubmitOrder{OrderID: "fills-buffer"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Publish(ctx, messages.SubmitOrder{OrderID: "ord-2"})
	assert.ErrorIs(t, err, context.Canceled)
}
