// Package refresh coordinates data re-fetching across dashboard components:
// a topic-keyed event bus for cross-component invalidation and a polling
// controller that re-runs a fetch function on an interval without
// interrupting active user input.
package refresh

import (
	"fmt"
	"sync"

	"alankar-sync/internal/logging"
)

// Payload is the optional data handed to topic subscribers.
type Payload = map[string]any

// Callback receives the trigger payload. Callbacks run synchronously, in
// registration order, inside the caller's Trigger stack.
type Callback func(data Payload)

type subscription struct {
	id int
	fn Callback
}

// Bus is the in-process publish/subscribe registry for refresh topics.
// Delivery is synchronous and unbuffered: a trigger with no subscribers is
// lost, and a subscriber that panics never aborts the remaining fan-out.
type Bus struct {
	logger *logging.Logger

	mu     sync.Mutex
	topics map[string][]subscription
	nextID int
}

func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		panic("refresh.NewBus: logger must not be nil")
	}
	return &Bus{
		logger: logger,
		topics: map[string][]subscription{},
	}
}

// Subscribe registers fn under topic and returns a function that removes
// exactly that subscription. Each call creates a distinct subscription, even
// for an identical callback. When the last subscriber of a topic leaves, the
// topic entry itself is removed.
func (b *Bus) Subscribe(topic string, fn Callback) func() {
	if fn == nil {
		panic("refresh.Bus.Subscribe: callback must not be nil")
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.topics[topic] = append(b.topics[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.topics[topic]
		for i, sub := range subs {
			if sub.id != id {
				continue
			}
			subs = append(subs[:i], subs[i+1:]...)
			if len(subs) == 0 {
				delete(b.topics, topic)
			} else {
				b.topics[topic] = subs
			}
			return
		}
	}
}

// Trigger synchronously invokes every subscriber of topic in registration
// order. A nil data is delivered as an empty payload. Subscriber panics are
// recovered and logged per callback.
func (b *Bus) Trigger(topic string, data Payload) {
	if data == nil {
		data = Payload{}
	}
	b.mu.Lock()
	subs := append([]subscription(nil), b.topics[topic]...)
	b.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	b.logger.Debug("refresh trigger", logging.Field("topic", topic), logging.Field("subscribers", len(subs)))
	for _, sub := range subs {
		b.invoke(topic, sub, data)
	}
}

// TriggerMultiple triggers each topic in order with the same payload.
func (b *Bus) TriggerMultiple(topics []string, data Payload) {
	for _, topic := range topics {
		b.Trigger(topic, data)
	}
}

// ListenerCount reports the number of active subscriptions for topic.
func (b *Bus) ListenerCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

// Clear drops every subscription on every topic.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.topics = map[string][]subscription{}
	b.mu.Unlock()
}

func (b *Bus) invoke(topic string, sub subscription, data Payload) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("refresh callback panicked",
				logging.Field("topic", topic),
				logging.Field("error", fmt.Sprintf("%v", r)),
			)
		}
	}()
	sub.fn(data)
}
