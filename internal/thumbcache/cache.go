// Package thumbcache maps an item identity and requested size to a produced
// bitmap. Production runs on a worker pool, at most once per key at a time.
package thumbcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fruitsalade/folderview/internal/compositor"
	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/metrics"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/retry"
)

var (
	// ErrNoImage is returned by producers that have nothing to draw for a key.
	ErrNoImage = errors.New("no image available")
	// ErrNegative is returned by Load while a key is negatively cached.
	ErrNegative = errors.New("key recently failed")
	// ErrStale is returned by Load when the identity was invalidated during production.
	ErrStale = errors.New("result superseded")
)

// Mode selects what a key renders.
type Mode int

const (
	ModeIcon Mode = iota
	ModeThumbnail
)

func (m Mode) String() string {
	if m == ModeThumbnail {
		return "thumbnail"
	}
	return "icon"
}

// Key identifies one cached bitmap.
type Key struct {
	ID   models.Identity
	Size int
	Mode Mode
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%d/%s", k.ID, k.Size, k.Mode)
}

// Producer renders the bitmap for key. It runs off the control thread.
type Producer func(ctx context.Context, key Key) (*compositor.Bitmap, error)

// ReadyFunc is called from a worker goroutine when production for key
// finished. err is non-nil when the producer failed, and wraps ErrStale when
// the identity was invalidated while the producer ran.
type ReadyFunc func(key Key, h models.Handle, err error)

// Options configures a Cache.
type Options struct {
	Capacity    int
	NegativeTTL time.Duration
	Backoff     retry.Config // growth of the negative interval on repeated failures
	Workers     int
	QueueSize   int
}

// DefaultOptions returns the defaults used by the CLI.
func DefaultOptions() Options {
	return Options{
		Capacity:    512,
		NegativeTTL: 5 * time.Second,
		Backoff: retry.Config{
			InitialWait: 5 * time.Second,
			MaxWait:     5 * time.Minute,
			Multiplier:  2,
		},
		Workers:   4,
		QueueSize: 1000,
	}
}

type entry struct {
	key        Key
	handle     models.Handle
	bmp        *compositor.Bitmap
	lastAccess time.Time
	generation uint64
	refs       int
	static     bool
	detached   bool // removed from entries while still borrowed
}

type negative struct {
	until    time.Time
	failures int
}

type subscriber struct {
	id int
	fn ReadyFunc
}

// Cache is safe for concurrent use by one control goroutine and many workers.
type Cache struct {
	opts Options
	log  *zap.Logger

	mu          sync.Mutex
	entries     map[Key]*entry
	handles     map[models.Handle]*entry
	inflight    map[Key]uint64
	negatives   map[Key]*negative
	generations map[models.Identity]uint64
	dynamic     int
	nextHandle  models.Handle
	subscribers []subscriber
	nextSub     int

	group singleflight.Group
	pool  *pool

	now func() time.Time
}

// New creates a cache. Zero option fields take their defaults.
func New(opts Options) *Cache {
	def := DefaultOptions()
	if opts.Capacity <= 0 {
		opts.Capacity = def.Capacity
	}
	if opts.NegativeTTL <= 0 {
		opts.NegativeTTL = def.NegativeTTL
	}
	if opts.Backoff.InitialWait <= 0 {
		opts.Backoff = def.Backoff
		opts.Backoff.InitialWait = opts.NegativeTTL
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	return &Cache{
		opts:        opts,
		log:         logging.Named("thumbcache"),
		entries:     make(map[Key]*entry),
		handles:     make(map[models.Handle]*entry),
		inflight:    make(map[Key]uint64),
		negatives:   make(map[Key]*negative),
		generations: make(map[models.Identity]uint64),
		now:         time.Now,
	}
}

// Get returns the handle cached for key without blocking.
func (c *Cache) Get(key Key) (models.Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		metrics.RecordCacheLookup("miss")
		return 0, false
	}
	if !e.static && e.generation != c.generations[key.ID] {
		metrics.RecordCacheLookup("stale")
		return 0, false
	}
	e.lastAccess = c.now()
	metrics.RecordCacheLookup("hit")
	return e.handle, true
}

// Failed reports whether key is inside its negative-cache interval.
func (c *Cache) Failed(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.negatives[key]
	return ok && c.now().Before(n.until)
}

// Request schedules producer for key unless the key is cached, already in
// flight, or negatively cached. It never blocks on production and reports
// whether a new task was scheduled.
func (c *Cache) Request(key Key, producer Producer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && (e.static || e.generation == c.generations[key.ID]) {
		metrics.RecordRequest("cached")
		return false
	}
	if g, ok := c.inflight[key]; ok && g == c.generations[key.ID] {
		metrics.RecordRequest("coalesced")
		return false
	}
	if n, ok := c.negatives[key]; ok && c.now().Before(n.until) {
		metrics.RecordRequest("negative")
		return false
	}

	t := task{key: key, producer: producer, generation: c.generations[key.ID]}
	c.inflight[key] = t.generation

	if c.pool == nil {
		go c.run(context.Background(), t)
		metrics.RecordRequest("scheduled")
		return true
	}
	if !c.pool.enqueue(t) {
		delete(c.inflight, key)
		c.log.Warn("production queue full, dropping", zap.Stringer("key", key))
		metrics.RecordRequest("dropped")
		return false
	}
	metrics.RecordRequest("scheduled")
	return true
}

// InFlight reports whether production for key at its current generation
// is scheduled or running.
func (c *Cache) InFlight(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.inflight[key]
	return ok && g == c.generations[key.ID]
}

// Load returns the handle for key, producing it on the calling goroutine if
// needed. Concurrent Load and Request calls for one key share one producer run.
func (c *Cache) Load(ctx context.Context, key Key, producer Producer) (models.Handle, error) {
	if h, ok := c.Get(key); ok {
		return h, nil
	}
	c.mu.Lock()
	if n, ok := c.negatives[key]; ok && c.now().Before(n.until) {
		c.mu.Unlock()
		return 0, fmt.Errorf("%s: %w", key, ErrNegative)
	}
	gen := c.generations[key.ID]
	c.mu.Unlock()

	return c.produce(ctx, key, producer, gen)
}

func (c *Cache) run(ctx context.Context, t task) {
	c.mu.Lock()
	if e, ok := c.entries[t.key]; ok && e.generation == t.generation {
		// A Load finished first.
		if g, ok := c.inflight[t.key]; ok && g == t.generation {
			delete(c.inflight, t.key)
		}
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if _, err := c.produce(ctx, t.key, t.producer, t.generation); err != nil && !errors.Is(err, ErrStale) {
		c.log.Debug("production failed", zap.Stringer("key", t.key), zap.Error(err))
	}
}

// produce runs producer through the singleflight group and stores the
// result. Calls for the same key and generation share one producer run.
func (c *Cache) produce(ctx context.Context, key Key, producer Producer, gen uint64) (models.Handle, error) {
	v, err, _ := c.group.Do(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		start := time.Now()
		bmp, err := producer(ctx, key)
		metrics.RecordProduction(key.Mode.String(), time.Since(start), err == nil)
		if err == nil && bmp == nil {
			err = ErrNoImage
		}
		return c.store(key, gen, bmp, err)
	})
	if err != nil {
		return 0, err
	}
	return v.(models.Handle), nil
}

// store records a production outcome and notifies subscribers.
func (c *Cache) store(key Key, gen uint64, bmp *compositor.Bitmap, perr error) (models.Handle, error) {
	c.mu.Lock()
	if g, ok := c.inflight[key]; ok && g == gen {
		delete(c.inflight, key)
	}

	if c.generations[key.ID] != gen {
		subs := c.snapshotSubscribers()
		c.mu.Unlock()
		metrics.RecordStaleResult()
		err := fmt.Errorf("%s: %w", key, ErrStale)
		for _, s := range subs {
			s.fn(key, 0, err)
		}
		return 0, err
	}

	var h models.Handle
	if perr != nil {
		n := c.negatives[key]
		if n == nil {
			n = &negative{}
			c.negatives[key] = n
		}
		n.failures++
		n.until = c.now().Add(retry.Backoff(c.opts.Backoff, n.failures))
	} else {
		delete(c.negatives, key)
		h = c.insert(key, gen, bmp)
	}
	subs := c.snapshotSubscribers()
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(key, h, perr)
	}
	if perr != nil {
		return 0, fmt.Errorf("produce %s: %w", key, perr)
	}
	return h, nil
}

// snapshotSubscribers must be called with the lock held.
func (c *Cache) snapshotSubscribers() []subscriber {
	subs := make([]subscriber, len(c.subscribers))
	copy(subs, c.subscribers)
	return subs
}

// insert must be called with the lock held.
func (c *Cache) insert(key Key, gen uint64, bmp *compositor.Bitmap) models.Handle {
	if old, ok := c.entries[key]; ok {
		c.detach(old)
	}
	c.nextHandle++
	e := &entry{
		key:        key,
		handle:     c.nextHandle,
		bmp:        bmp,
		lastAccess: c.now(),
		generation: gen,
	}
	c.entries[key] = e
	c.handles[e.handle] = e
	c.dynamic++

	for c.dynamic > c.opts.Capacity {
		if !c.evictOldest() {
			break
		}
	}
	metrics.SetCacheEntries(len(c.entries))
	return e.handle
}

// RegisterStatic stores a permanent bitmap, such as a placeholder icon.
// Static entries are never evicted or invalidated and do not count against
// the capacity.
func (c *Cache) RegisterStatic(key Key, bmp *compositor.Bitmap) models.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.detach(old)
	}
	c.nextHandle++
	e := &entry{key: key, handle: c.nextHandle, bmp: bmp, lastAccess: c.now(), static: true}
	c.entries[key] = e
	c.handles[e.handle] = e
	return e.handle
}

// Acquire borrows the bitmap behind h. The entry cannot be evicted until
// release is called. ok is false for unknown or evicted handles.
func (c *Cache) Acquire(h models.Handle) (bmp *compositor.Bitmap, release func(), ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.handles[h]
	if !found {
		return nil, func() {}, false
	}
	e.refs++
	e.lastAccess = c.now()

	var once sync.Once
	release = func() {
		once.Do(func() { c.release(e) })
	}
	return e.bmp, release, true
}

func (c *Cache) release(e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.refs--
	if e.refs > 0 {
		return
	}
	if e.detached {
		delete(c.handles, e.handle)
		return
	}
	for c.dynamic > c.opts.Capacity {
		if !c.evictOldest() {
			break
		}
	}
	metrics.SetCacheEntries(len(c.entries))
}

// evictOldest removes the least recently used entry that is neither static
// nor borrowed. Must be called with lock held.
func (c *Cache) evictOldest() bool {
	var oldest *entry
	for _, e := range c.entries {
		if e.static || e.refs > 0 {
			continue
		}
		if oldest == nil || e.lastAccess.Before(oldest.lastAccess) {
			oldest = e
		}
	}
	if oldest == nil {
		return false
	}
	c.detach(oldest)
	metrics.RecordEviction()
	return true
}

// detach removes e from the key index; its handle stays valid while borrowed.
// Must be called with lock held.
func (c *Cache) detach(e *entry) {
	if c.entries[e.key] == e {
		delete(c.entries, e.key)
		if !e.static {
			c.dynamic--
		}
	}
	if e.refs > 0 {
		e.detached = true
		return
	}
	delete(c.handles, e.handle)
}

// Invalidate drops every cached bitmap and negative entry for id. Production
// already in flight for id finishes but its result is discarded, and
// subscribers receive ErrStale for it.
func (c *Cache) Invalidate(id models.Identity) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[id]++
	n := 0
	for key, e := range c.entries {
		if key.ID != id || e.static {
			continue
		}
		c.detach(e)
		n++
	}
	for key := range c.negatives {
		if key.ID == id {
			delete(c.negatives, key)
		}
	}
	metrics.SetCacheEntries(len(c.entries))
	return n
}

// Clear removes all entries that are neither static nor borrowed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if e.static || e.refs > 0 {
			continue
		}
		c.detach(e)
		n++
	}
	metrics.SetCacheEntries(len(c.entries))
	return n
}

// Subscribe registers fn for completion notifications and returns a func
// that removes it.
func (c *Cache) Subscribe(fn ReadyFunc) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSub++
	id := c.nextSub
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subscribers {
			if s.id == id {
				c.subscribers = append(c.subscribers[:i:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Stats is a snapshot of cache occupancy.
type Stats struct {
	Entries  int
	Static   int
	Borrowed int
	InFlight int
	Negative int
	Capacity int
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Entries:  c.dynamic,
		Static:   len(c.entries) - c.dynamic,
		InFlight: len(c.inflight),
		Negative: len(c.negatives),
		Capacity: c.opts.Capacity,
	}
	for _, e := range c.handles {
		if e.refs > 0 {
			s.Borrowed++
		}
	}
	return s
}

// Len returns the number of non-static cached bitmaps.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dynamic
}
