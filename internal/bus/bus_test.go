package bus

import (
	"testing"
	"time"

	"github.com/minitel/chat-client/internal/protocol"
)

func event(eventType string) protocol.Event {
	return protocol.Event{Type: eventType, Timestamp: time.Now()}
}

func TestPublish_FiltersByType(t *testing.T) {
	b := New()

	var presence, typing, all int
	b.Subscribe(func(protocol.Event) { presence++ }, protocol.TypePresenceUpdate)
	b.Subscribe(func(protocol.Event) { typing++ }, protocol.TypeTypingStart, protocol.TypeTypingStop)
	b.Subscribe(func(protocol.Event) { all++ })

	b.Publish(event(protocol.TypePresenceUpdate))
	b.Publish(event(protocol.TypeTypingStart))
	b.Publish(event(protocol.TypeTypingStop))
	b.Publish(event(protocol.TypeMessageNew))

	if presence != 1 {
		t.Errorf("presence handler called %d times, want 1", presence)
	}
	if typing != 2 {
		t.Errorf("typing handler called %d times, want 2", typing)
	}
	if all != 4 {
		t.Errorf("catch-all handler called %d times, want 4", all)
	}
}

func TestPublish_SynchronousInSubscriptionOrder(t *testing.T) {
	b := New()

	var order []string
	b.Subscribe(func(protocol.Event) { order = append(order, "first") })
	b.Subscribe(func(protocol.Event) { order = append(order, "second") })

	b.Publish(event(protocol.TypeMessageNew))

	// No goroutines involved: by the time Publish returns, both handlers ran.
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("handlers ran as %v, want [first second]", order)
	}
}

func TestLateSubscriberSeesOnlyFutureEvents(t *testing.T) {
	b := New()
	b.Publish(event(protocol.TypeMessageNew))

	var got int
	b.Subscribe(func(protocol.Event) { got++ })
	if got != 0 {
		t.Errorf("late subscriber replayed %d events, want 0", got)
	}

	b.Publish(event(protocol.TypeMessageNew))
	if got != 1 {
		t.Errorf("late subscriber received %d events, want 1", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()

	var got int
	sub := b.Subscribe(func(protocol.Event) { got++ })

	b.Publish(event(protocol.TypeMessageNew))
	sub.Unsubscribe()
	sub.Unsubscribe() // second call is a no-op
	b.Publish(event(protocol.TypeMessageNew))

	if got != 1 {
		t.Errorf("handler called %d times after unsubscribe, want 1", got)
	}
	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount = %d, want 0", n)
	}
}

func TestHandlerMaySubscribeDuringPublish(t *testing.T) {
	b := New()

	var nested int
	b.Subscribe(func(protocol.Event) {
		b.Subscribe(func(protocol.Event) { nested++ })
	}, protocol.TypeMessageNew)

	b.Publish(event(protocol.TypeMessageNew)) // must not deadlock
	if nested != 0 {
		t.Errorf("nested subscriber should not see the event that created it")
	}

	b.Publish(event(protocol.TypeMessageNew))
	if nested != 1 {
		t.Errorf("nested handler called %d times, want 1", nested)
	}
}
