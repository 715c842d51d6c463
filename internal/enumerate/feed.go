package enumerate

import (
	"context"
	"sync"

	"github.com/fruitsalade/folderview/internal/metrics"
	"github.com/fruitsalade/folderview/internal/models"
)

// Feed fans enumeration events out to subscribers. Events are never
// dropped; Publish waits for slow subscribers.
type Feed struct {
	mu          sync.RWMutex
	subscribers map[chan models.Event]struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan models.Event]struct{})}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (f *Feed) Subscribe() chan models.Event {
	ch := make(chan models.Event, 256)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	n := len(f.subscribers)
	f.mu.Unlock()
	metrics.SetFeedSubscribers(n)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (f *Feed) Unsubscribe(ch chan models.Event) {
	f.mu.Lock()
	if _, ok := f.subscribers[ch]; ok {
		delete(f.subscribers, ch)
		close(ch)
	}
	n := len(f.subscribers)
	f.mu.Unlock()
	metrics.SetFeedSubscribers(n)
}

// Publish delivers ev to every subscriber, waiting on full channels until
// ctx is done.
func (f *Feed) Publish(ctx context.Context, ev models.Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subscribers {
		select {
		case ch <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Emit returns an emit function for providers that publishes with ctx.
func (f *Feed) Emit(ctx context.Context) func(models.Event) {
	return func(ev models.Event) {
		_ = f.Publish(ctx, ev)
	}
}

// Count returns the current number of subscribers.
func (f *Feed) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

// Pump posts each event from events to sink on the dispatcher's goroutine,
// preserving order, until events is closed or ctx is done.
func Pump(ctx context.Context, events <-chan models.Event, disp Dispatcher, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			disp.Post(func() { sink.OnEnumerationEvent(ev) })
		}
	}
}
