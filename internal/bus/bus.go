package bus

import "sync"

// Bus is an in-process publish/subscribe broadcaster with topic-scoped
// delivery. One topic exists per conversation plus a global topic for
// conversation summary updates; a subscriber only receives events for
// topics it explicitly joined.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	topic string
	ch    chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish sends an event to all subscribers of the given topic. Delivery
// is best-effort and at-most-once: a subscriber whose buffer is full loses
// the event without blocking the publisher or other subscribers.
func (b *Bus) Publish(topic string, evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.topic != topic {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop event if subscriber is full (non-blocking).
		}
	}
}

// Subscribe joins a topic and returns a channel that receives its events.
// bufSize controls the channel buffer. Returns the channel and an
// unsubscribe function; joining is always explicit, never a side effect of
// connecting.
func (b *Bus) Subscribe(topic string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{topic: topic, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
