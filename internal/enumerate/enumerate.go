// Package enumerate lists folders and reports their changes as item store
// events.
package enumerate

import (
	"context"

	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/models"
)

// Provider enumerates one folder. Implementations emit a Reset carrying the
// first batch of entries, Added events for later batches and a final Done,
// all on the calling goroutine.
type Provider interface {
	Enumerate(ctx context.Context, folder string, emit func(models.Event)) error
}

// Watcher reports changes to a folder until ctx is done. emit is called
// from the watcher's goroutine.
type Watcher interface {
	Watch(ctx context.Context, folder string, emit func(models.Event)) error
}

// Sink receives enumeration events on the control goroutine.
type Sink interface {
	OnEnumerationEvent(ev models.Event)
}

// Dispatcher runs functions on the control goroutine.
type Dispatcher interface {
	Post(fn func())
}

// Collect enumerates folder and returns the listed entries in emit order.
func Collect(ctx context.Context, p Provider, folder string) ([]*models.Entry, error) {
	var entries []*models.Entry
	err := p.Enumerate(ctx, folder, func(ev models.Event) {
		switch ev.Kind {
		case models.EventReset:
			entries = append(entries[:0], ev.Entries...)
		case models.EventAdded:
			entries = append(entries, ev.Entry)
		}
	})
	return entries, err
}

// sessionLogger tags log with the list session carried by ctx, if any.
func sessionLogger(ctx context.Context, log *zap.Logger) *zap.Logger {
	if id := logging.SessionID(ctx); id != "" {
		return log.With(zap.String("session", id))
	}
	return log
}
