// Package fanout delivers values to any number of topic subscribers.
//
// A subscription is a buffered channel plus a cancel function. Publishing
// never blocks: if a subscriber's buffer is full the value is dropped for
// that subscriber and the drop is logged. A broker created with CloseSlow
// closes that subscription instead, so the subscriber sees the end of the
// stream rather than a gap. Cancelling closes the channel exactly once.
package fanout

import (
	"log/slog"
	"sync"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

type subscriber[T any] struct {
	ch   chan T
	once sync.Once
}

func (s *subscriber[T]) close() {
	s.once.Do(func() { close(s.ch) })
}

// Broker is a topic-keyed fan-out of values of type T.
// Safe for concurrent use.
type Broker[T any] struct {
	mu        sync.RWMutex
	name      string
	buffer    int
	closeSlow bool
	topics    map[string]map[*subscriber[T]]struct{}
	closed    bool
}

type brokerOptions struct {
	closeSlow bool
}

// Option configures a Broker.
type Option func(*brokerOptions)

// CloseSlow makes Publish close a subscription whose buffer is full
// instead of dropping the value for it. Use it for feeds where every value
// matters and the subscriber can resubscribe to catch up.
func CloseSlow() Option {
	return func(o *brokerOptions) { o.closeSlow = true }
}

// NewBroker creates a broker. name only appears in log lines.
func NewBroker[T any](name string, buffer int, opts ...Option) *Broker[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	var o brokerOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Broker[T]{
		name:      name,
		buffer:    buffer,
		closeSlow: o.closeSlow,
		topics:    make(map[string]map[*subscriber[T]]struct{}),
	}
}

// Subscribe registers a new subscriber on topic. The returned cancel
// function unregisters it and closes the channel; it is safe to call more
// than once. Subscribing to a closed broker returns an already-closed
// channel.
func (b *Broker[T]) Subscribe(topic string) (<-chan T, func()) {
	sub := &subscriber[T]{ch: make(chan T, b.buffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return sub.ch, func() {}
	}
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*subscriber[T]]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if subs, ok := b.topics[topic]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(b.topics, topic)
			}
		}
		b.mu.Unlock()
		sub.close()
	}
	return sub.ch, cancel
}

// Publish delivers v to every subscriber of topic. It returns the number
// of subscribers that received the value.
func (b *Broker[T]) Publish(topic string, v T) int {
	if b.closeSlow {
		// Closing a subscriber must not race another Publish sending to it.
		b.mu.Lock()
		defer b.mu.Unlock()
	} else {
		b.mu.RLock()
		defer b.mu.RUnlock()
	}

	subs := b.topics[topic]
	delivered := 0
	for sub := range subs {
		select {
		case sub.ch <- v:
			delivered++
		default:
			if b.closeSlow {
				slog.Warn("subscriber buffer full, closing subscription",
					"broker", b.name,
					"topic", topic,
				)
				delete(subs, sub)
				sub.close()
				continue
			}
			slog.Warn("subscriber buffer full, dropping update",
				"broker", b.name,
				"topic", topic,
			)
		}
	}
	if b.closeSlow && subs != nil && len(subs) == 0 {
		delete(b.topics, topic)
	}
	return delivered
}

// Subscribers returns the number of live subscribers on topic.
func (b *Broker[T]) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close closes every subscriber channel. Later Subscribe calls get closed
// channels and Publish becomes a no-op.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.topics {
		for sub := range subs {
			sub.close()
		}
		delete(b.topics, topic)
	}
}
