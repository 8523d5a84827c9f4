// Package broadcast is the in-process change broadcaster. Delivery is
// synchronous and at-most-once per Publish; there is no queue or replay.
package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/petshop-storefront/pkg/logger"
	"github.com/angelmondragon/petshop-storefront/pkg/metrics"
)

// Handler receives events for a subscribed topic. Handlers that publish must
// pass the ctx they were given so re-entrant publishes can be detected.
type Handler func(ctx context.Context, event Event)

// Publisher is the narrow surface repositories depend on.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type deliveringKey struct{}

// Bus fans events out to subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic]map[uint64]Handler
	nextID   uint64

	logg    *logger.Logger
	metrics *metrics.Storefront
}

func NewBus(logg *logger.Logger, m *metrics.Storefront) *Bus {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Bus{
		handlers: make(map[Topic]map[uint64]Handler),
		logg:     logg,
		metrics:  m,
	}
}

// Subscribe registers handler for topic and returns an idempotent unsubscribe.
func (b *Bus) Subscribe(topic Topic, handler Handler) func() {
	if handler == nil || !topic.IsValid() {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[uint64]Handler)
	}
	b.handlers[topic][id] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers[topic], id)
			if len(b.handlers[topic]) == 0 {
				delete(b.handlers, topic)
			}
		})
	}
}

// SubscribeAll registers handler on every topic.
func (b *Bus) SubscribeAll(handler Handler) func() {
	unsubs := make([]func(), 0, len(validTopics))
	for _, topic := range validTopics {
		unsubs = append(unsubs, b.Subscribe(topic, handler))
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// On subscribes a handler typed to a single event struct.
func On[E Event](b *Bus, handler func(ctx context.Context, event E)) func() {
	var zero E
	return b.Subscribe(zero.Topic(), func(ctx context.Context, event Event) {
		if typed, ok := event.(E); ok {
			handler(ctx, typed)
		}
	})
}

// Publish delivers event to every current subscriber of its topic. A publish of
// a topic that is already being delivered on this call chain is dropped.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if event == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	topic := event.Topic()

	if isDelivering(ctx, topic) {
		b.metrics.IncSuppressed(topic.String())
		b.logg.Warn(b.logg.WithTopic(ctx, topic.String()), "suppressed re-entrant publish")
		return
	}

	handlers := b.snapshot(topic)
	b.metrics.IncPublished(topic.String())
	if len(handlers) == 0 {
		return
	}

	deliverCtx := markDelivering(ctx, topic)
	for _, handler := range handlers {
		b.deliver(deliverCtx, topic, handler, event)
	}
}

// SubscriberCount reports the number of handlers on topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}

func (b *Bus) snapshot(topic Topic) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := b.handlers[topic]
	out := make([]Handler, 0, len(subs))
	for _, handler := range subs {
		out = append(out, handler)
	}
	return out
}

func (b *Bus) deliver(ctx context.Context, topic Topic, handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logg.Error(b.logg.WithTopic(ctx, topic.String()), "broadcast handler panicked", fmt.Errorf("%v", r))
		}
	}()
	handler(ctx, event)
}

func isDelivering(ctx context.Context, topic Topic) bool {
	set, _ := ctx.Value(deliveringKey{}).(map[Topic]struct{})
	_, ok := set[topic]
	return ok
}

func markDelivering(ctx context.Context, topic Topic) context.Context {
	parent, _ := ctx.Value(deliveringKey{}).(map[Topic]struct{})
	set := make(map[Topic]struct{}, len(parent)+1)
	for t := range parent {
		set[t] = struct{}{}
	}
	set[topic] = struct{}{}
	return context.WithValue(ctx, deliveringKey{}, set)
}
