// Package bus provides in-process publish/subscribe broadcast of validated
// events. Delivery is synchronous and replay-free: subscribers receive events
// published after they subscribe, in subscription order, on the publisher's
// goroutine.
package bus

import (
	"sync"

	"github.com/minitel/chat-client/internal/protocol"
)

// Handler is the callback invoked for each matching event. Handlers run on
// the publisher's goroutine and should not block for extended periods.
type Handler func(ev protocol.Event)

// Subscription is a handle for cancelling a subscriber.
type Subscription struct {
	id  int
	bus *Bus
}

// Unsubscribe removes the subscriber. It is safe to call multiple times.
func (s *Subscription) Unsubscribe() {
	s.bus.remove(s.id)
}

type entry struct {
	id      int
	types   map[string]struct{} // nil means all types
	handler Handler
}

// Bus is a goroutine-safe broadcast hub keyed by event type.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []entry // subscription order preserved for deterministic dispatch
}

// New creates an empty Bus ready for use.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for the given event types. With no types the
// handler receives every event. The returned Subscription cancels delivery.
func (b *Bus) Subscribe(handler Handler, types ...string) *Subscription {
	var filter map[string]struct{}
	if len(types) > 0 {
		filter = make(map[string]struct{}, len(types))
		for _, t := range types {
			filter[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, entry{id: id, types: filter, handler: handler})
	b.mu.Unlock()

	return &Subscription{id: id, bus: b}
}

// Publish delivers the event to every matching subscriber, synchronously and
// in subscription order. Handlers run outside the bus lock so they may
// subscribe or unsubscribe without deadlocking; such changes take effect for
// subsequent publishes.
func (b *Bus) Publish(ev protocol.Event) {
	b.mu.RLock()
	matched := make([]Handler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.types != nil {
			if _, ok := sub.types[ev.Type]; !ok {
				continue
			}
		}
		matched = append(matched, sub.handler)
	}
	b.mu.RUnlock()

	for _, h := range matched {
		h(ev)
	}
}

// SubscriberCount returns the current number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return n
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
}
