package thumbcache

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type task struct {
	key        Key
	producer   Producer
	generation uint64
}

// pool runs production tasks on a fixed set of workers.
type pool struct {
	queue   chan task
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	workers int
	closed  bool
}

// enqueue must be called with the cache lock held.
func (p *pool) enqueue(t task) bool {
	if p.closed {
		return false
	}
	select {
	case p.queue <- t:
		return true
	default:
		return false
	}
}

// Start launches the worker goroutines. Without Start every Request runs on
// its own goroutine.
func (c *Cache) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool != nil {
		return
	}

	p := &pool{
		queue:   make(chan task, c.opts.QueueSize),
		workers: c.opts.Workers,
	}
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go c.worker(ctx, p)
	}
	c.pool = p
	c.log.Info("thumbnail workers started", zap.Int("workers", p.workers))
}

// Stop signals workers to stop and waits for them to finish. Queued tasks
// that have not started are abandoned.
func (c *Cache) Stop() {
	c.mu.Lock()
	p := c.pool
	if p == nil || p.closed {
		c.mu.Unlock()
		return
	}
	p.closed = true
	p.cancel()
	close(p.queue)
	c.mu.Unlock()

	p.wg.Wait()

	c.mu.Lock()
	for len(p.queue) > 0 {
		t := <-p.queue
		if g, ok := c.inflight[t.key]; ok && g == t.generation {
			delete(c.inflight, t.key)
		}
	}
	c.mu.Unlock()
	c.log.Info("thumbnail workers stopped")
}

func (c *Cache) worker(ctx context.Context, p *pool) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-p.queue:
			if !ok {
				return
			}
			c.run(ctx, t)
		}
	}
}
