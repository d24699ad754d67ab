package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Subscriber handles notifications.
type Subscriber func(ctx context.Context, event Event)

// EventFilter determines if a notification should be delivered.
type EventFilter func(event Event) bool

// Bus delivers notifications to subscribers. Delivery is synchronous and in
// subscription order, so a subscriber observes a notification only after the
// cache change it describes.
type Bus struct {
	logger zerolog.Logger

	mu          sync.RWMutex
	nextID      int
	subscribers []subscriberEntry
}

type subscriberEntry struct {
	id         int
	subscriber Subscriber
	filter     EventFilter
}

// NewBus creates an empty bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		logger: logger.With().Str("component", "bus").Logger(),
	}
}

// Subscribe adds a subscriber. A nil filter accepts every notification. The
// returned function removes the subscription.
func (b *Bus) Subscribe(subscriber Subscriber, filter EventFilter) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subscribers = append(b.subscribers, subscriberEntry{
		id:         id,
		subscriber: subscriber,
		filter:     filter,
	})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, entry := range b.subscribers {
			if entry.id == id {
				b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Emit implements Emitter.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	entries := make([]subscriberEntry, len(b.subscribers))
	copy(entries, b.subscribers)
	b.mu.RUnlock()

	delivered := 0
	for _, entry := range entries {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		b.deliver(ctx, entry, event)
		delivered++
	}
	b.logger.Trace().Str("event", string(event.Name())).Int("subscribers", delivered).Msg("Notification delivered")
}

func (b *Bus) deliver(ctx context.Context, entry subscriberEntry, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("event", string(event.Name())).Msg("Subscriber panicked")
		}
	}()
	entry.subscriber(ctx, event)
}

// Await returns a channel that receives the next notification matching
// filter. The subscription ends after one delivery or when ctx is done.
func (b *Bus) Await(ctx context.Context, filter EventFilter) <-chan Event {
	ch := make(chan Event, 1)
	done := make(chan struct{})
	var once sync.Once
	unsubscribe := b.Subscribe(func(_ context.Context, event Event) {
		once.Do(func() {
			ch <- event
			close(done)
		})
	}, filter)

	go func() {
		select {
		case <-done:
		case <-ctx.Done():
		}
		unsubscribe()
	}()

	return ch
}

// Common notification filters.

// FilterByName accepts notifications of the given types.
func FilterByName(names ...EventName) EventFilter {
	set := make(map[EventName]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(event Event) bool {
		return set[event.Name()]
	}
}

// FilterBySite accepts notifications about the site with the given local id.
func FilterBySite(siteID int64) EventFilter {
	return func(event Event) bool {
		site := SiteOf(event)
		return site != nil && site.ID == siteID
	}
}

// FilterErrors accepts failed notifications only.
func FilterErrors() EventFilter {
	return func(event Event) bool {
		return event.Err() != nil
	}
}

// All combines filters; every filter must accept.
func All(filters ...EventFilter) EventFilter {
	return func(event Event) bool {
		for _, f := range filters {
			if f != nil && !f(event) {
				return false
			}
		}
		return true
	}
}
