// Package bus provides the in-process message transport wiring the
// orchestrator and the participant services together.
//
// It delivers each message to the single handler registered for its kind,
// with bounded worker concurrency, per-message retry, and dead-letter
// parking when retries are exhausted. The contracts match what a broker
// adapter would honour, so swapping in an external transport replaces this
// package without touching the orchestrator or the participants.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/jcmexdev/delivery-sagas/internal/messages"
)

// Handler consumes one message. Returning an error requests redelivery;
// after the retry budget is spent the message is parked.
type Handler func(ctx context.Context, msg messages.Message) error

// DeadLetter is a message parked for operator attention after delivery
// retries were exhausted.
type DeadLetter struct {
	Msg      messages.Message
	Err      string
	Attempts int
	ParkedAt time.Time
}

// Bus is the in-process dispatcher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	queue chan messages.Message

	deadMu sync.Mutex
	dead   []DeadLetter

	workers  int
	attempts int
}

// Option configures a Bus.
type Option func(*Bus)

// WithWorkers bounds how many messages are handled concurrently.
func WithWorkers(n int) Option {
	return func(b *Bus) { b.workers = n }
}

// WithAttempts sets how many delivery attempts a message gets before it is
// parked in the dead-letter list.
func WithAttempts(n int) Option {
	return func(b *Bus) { b.attempts = n }
}

// WithQueueSize sets the publish buffer.
func WithQueueSize(n int) Option {
	return func(b *Bus) { b.queue = make(chan messages.Message, n) }
}

func New(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[string]Handler),
		queue:    make(chan messages.Message, 256),
		workers:  4,
		attempts: 3,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register binds the handler for a message kind. Last registration wins;
// call it during wiring, before Run.
func (b *Bus) Register(kind string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = h
}

// Publish enqueues a message for delivery. It blocks only when the buffer
// is full, and gives up when ctx is cancelled.
func (b *Bus) Publish(ctx context.Context, msg messages.Message) error {
	select {
	case b.queue <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("bus: publish %s: %w", msg.Kind(), ctx.Err())
	}
}

// Run consumes the queue with the configured number of workers until ctx
// is cancelled.
func (b *Bus) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for range b.workers {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case msg := <-b.queue:
					b.deliver(ctx, msg)
				}
			}
		})
	}
	return g.Wait()
}

func (b *Bus) deliver(ctx context.Context, msg messages.Message) {
	b.mu.RLock()
	h, ok := b.handlers[msg.Kind()]
	b.mu.RUnlock()
	if !ok {
		slog.WarnContext(ctx, "no handler for message kind, dropping", "kind", msg.Kind())
		return
	}

	backoff := retry.WithMaxRetries(uint64(b.attempts-1), retry.NewConstant(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := h(ctx, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		b.park(msg, err)
	}
}

func (b *Bus) park(msg messages.Message, err error) {
	slog.Error("message delivery exhausted retries, parking",
		"kind", msg.Kind(), "saga_id", msg.CorrelationID(), "error", err)
	b.deadMu.Lock()
	defer b.deadMu.Unlock()
	b.dead = append(b.dead, DeadLetter{
		Msg:      msg,
		Err:      err.Error(),
		Attempts: b.attempts,
		ParkedAt: time.Now().UTC(),
	})
}

// DeadLetters returns a snapshot of the parked messages.
func (b *Bus) DeadLetters() []DeadLetter {
	b.deadMu.Lock()
	defer b.deadMu.Unlock()
	return append([]DeadLetter(nil), b.dead...)
}
