package pipeline

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	busMessageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensorsink_pipeline_bus_message_total",
			Help: "Total number of messages posted to pipeline buses",
		},
		[]string{"kind"},
	)
)

// Bus carries messages from the streaming thread to consumers. Posting never
// blocks and never drops: the queue is unbounded, so the streaming thread can
// always make progress regardless of how slowly the consumer drains.
type Bus struct {
	mu       sync.Mutex
	queue    []Message
	watchers []func(Message)
	wake     chan struct{}
}

func NewBus() *Bus {
	return &Bus{wake: make(chan struct{}, 1)}
}

// Post appends a message to the queue and invokes watchers on the posting
// goroutine, in registration order.
func (b *Bus) Post(msg Message) {
	busMessageTotal.WithLabelValues(msg.Kind.String()).Inc()

	b.mu.Lock()
	b.queue = append(b.queue, msg)
	watchers := append([]func(Message){}, b.watchers...)
	b.mu.Unlock()

	for _, watch := range watchers {
		watch(msg)
	}

	select {
	case b.wake <- struct{}{}:
	default: // a wake-up is already pending
	}
}

// Watch registers an observer invoked for every subsequently posted message.
// Watchers run on the posting goroutine and should not block.
func (b *Bus) Watch(watch func(Message)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.watchers = append(b.watchers, watch)
}

// Next blocks until a message is available or the context expires. Messages
// are delivered in post order.
func (b *Bus) Next(ctx context.Context) (Message, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			msg := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()

			return msg, nil
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-b.wake:
			// retry the queue
		}
	}
}

// WaitTerminal drains messages until the first terminal one (ERROR, WARNING
// or EOS) and returns it. Informational messages are discarded.
func (b *Bus) WaitTerminal(ctx context.Context) (Message, error) {
	for {
		msg, err := b.Next(ctx)
		if err != nil {
			return Message{}, err
		}

		if msg.Kind.Terminal() {
			return msg, nil
		}
	}
}
