package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"estatetoken/internal/logger"

	"go.uber.org/zap"
)

// Handler consumes one event. A returned error is logged by the bus and never
// reaches the publisher or sibling handlers.
type Handler func(ctx context.Context, event Event) error

// On adapts a handler for one concrete payload type. Events of any other type
// are ignored.
func On[T Event](fn func(ctx context.Context, event T) error) Handler {
	return func(ctx context.Context, event Event) error {
		typed, ok := event.(T)
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	}
}

// Publisher publishes events after the state they describe is committed.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Subscriber registers named handlers on a topic.
type Subscriber interface {
	Subscribe(topic Topic, name string, handler Handler)
}

type subscription struct {
	name    string
	handler Handler
}

// Bus is a synchronous in-process event bus. Publish runs each subscriber of
// the event's topic in registration order, each under its own timeout and
// with its own panic recovery.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Topic][]subscription
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewBus creates a Bus. handlerTimeout bounds how long Publish waits on any
// single subscriber.
func NewBus(handlerTimeout time.Duration) *Bus {
	return &Bus{
		subs:    make(map[Topic][]subscription),
		timeout: handlerTimeout,
		log:     logger.Named("events"),
	}
}

// Subscribe appends handler to topic's subscriber list.
func (b *Bus) Subscribe(topic Topic, name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], subscription{name: name, handler: handler})
}

// Subscribers returns the registered handler names for topic, in order.
func (b *Bus) Subscribers(topic Topic) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.subs[topic]))
	for _, s := range b.subs[topic] {
		names = append(names, s.name)
	}
	return names
}

// Publish delivers event to every subscriber of its topic. It never fails:
// handler errors, panics and timeouts are logged as delivery failures.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if event == nil {
		return
	}
	meta := event.Meta()

	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[meta.Topic]...)
	b.mu.RUnlock()

	// Subscribers outlive the request that triggered the event.
	base := context.WithoutCancel(ctx)
	for _, s := range subs {
		b.deliver(base, meta, event, s)
	}
}

func (b *Bus) deliver(ctx context.Context, meta Envelope, event Event, s subscription) {
	hctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("handler panicked: %v", r)
			}
		}()
		done <- s.handler(hctx, event)
	}()

	select {
	case err := <-done:
		if err != nil {
			b.log.Errorw("Event delivery failed",
				"topic", meta.Topic, "event_id", meta.EventID, "subscriber", s.name, "error", err)
		}
	case <-hctx.Done():
		b.log.Errorw("Event delivery timed out",
			"topic", meta.Topic, "event_id", meta.EventID, "subscriber", s.name, "timeout", b.timeout)
	}
}
