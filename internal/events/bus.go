// SPDX-License-Identifier: MPL-2.0

// Package events provides the in-process notification channel between the
// watch session and its consumers. Events carry a name; subscribers choose
// which names they receive.
package events

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// Recompiled is published after a recompilation was written to disk.
	Recompiled = "recompiled"

	defaultSubscriberBufferSize = 128
)

type (
	// Event is a named notification.
	Event struct {
		Name string
		// Unit is the logical path of the source file that triggered the event.
		Unit string
		// Outputs are the files written for Unit.
		Outputs []string
		// At is the publish time.
		At time.Time
	}

	// Options configures a Bus.
	Options struct {
		// SubscriberBufferSize is the per-subscriber channel capacity.
		// Zero or negative values fall back to 128.
		SubscriberBufferSize int
	}

	// Bus fans events out to subscribers. A full subscriber channel drops the
	// event for that subscriber. The zero value is not usable; call NewBus.
	Bus struct {
		mu          sync.Mutex
		subscribers map[uint64]subscription
		nextID      uint64
		closed      bool
		bufferSize  int
		published   int
		dropped     int
	}

	subscription struct {
		ch    chan Event
		names map[string]struct{}
	}
)

// NewBus creates an open Bus.
func NewBus(opts Options) *Bus {
	size := opts.SubscriberBufferSize
	if size <= 0 {
		size = defaultSubscriberBufferSize
	}
	return &Bus{
		subscribers: make(map[uint64]subscription),
		bufferSize:  size,
	}
}

// Subscribe returns a channel receiving events whose name is in names, or all
// events when names is empty, and a cancel function that unsubscribes and
// closes the channel. Subscribing to a closed bus returns a closed channel.
func (b *Bus) Subscribe(names ...string) (<-chan Event, func()) {
	ch := make(chan Event, b.bufferSize)

	var filter map[string]struct{}
	if len(names) > 0 {
		filter = make(map[string]struct{}, len(names))
		for _, n := range names {
			filter[n] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	b.nextID++
	id := b.nextID
	b.subscribers[id] = subscription{ch: ch, names: filter}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(sub.ch)
			}
		})
	}
	return ch, cancel
}

// Publish delivers e to every matching subscriber without blocking.
// A zero At is set to the current time.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.published++

	for _, sub := range b.subscribers {
		if sub.names != nil {
			if _, ok := sub.names[e.Name]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- e:
		default:
			b.dropped++
			slog.Warn("event dropped for slow subscriber", "event", e.Name, "unit", e.Unit)
		}
	}
}

// Close closes every subscriber channel. Further publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}

// Stats returns the number of published and dropped deliveries.
func (b *Bus) Stats() (published, dropped int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published, b.dropped
}
