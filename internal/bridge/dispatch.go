package bridge

import (
	"context"
	"sync"
)

// Dispatcher runs functions on the control's owning goroutine.
type Dispatcher interface {
	// Post queues fn. It must not block and may be called from any goroutine.
	Post(fn func())
}

// Loop is a Dispatcher whose queue is drained by Run or Drain on the owning
// goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	pending chan struct{}
}

// NewLoop creates an empty loop.
func NewLoop() *Loop {
	return &Loop{pending: make(chan struct{}, 1)}
}

// Post queues fn without blocking.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.pending <- struct{}{}:
	default:
	}
}

// Pending is signalled after Post; Drain then runs the queued work.
func (l *Loop) Pending() <-chan struct{} { return l.pending }

// Drain runs every queued function, including ones queued while draining,
// and returns how many ran.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
			n++
		}
	}
}

// Run drains the queue whenever work is posted until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.pending:
			l.Drain()
		}
	}
}
