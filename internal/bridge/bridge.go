// Package bridge keeps an owner-data list control's index space in step with
// the item store and answers the control's per-row callbacks.
//
// A Bridge is not safe for concurrent use. Every method runs on the
// control's owning goroutine; thumbnail completions arrive through the
// Dispatcher passed to Attach.
package bridge

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/compositor"
	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/metrics"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/store"
	"github.com/fruitsalade/folderview/internal/thumbcache"
	"github.com/fruitsalade/folderview/internal/thumbs"
)

var (
	// ErrDisposed is returned by calls on a detached Bridge.
	ErrDisposed = errors.New("bridge disposed")
	// ErrAttached is returned by Attach on a Bridge that already has a control.
	ErrAttached = errors.New("control already attached")
)

// State is the list session state.
type State int

const (
	StateEmpty State = iota
	StatePopulating
	StateSteady
	StateUpdating
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePopulating:
		return "populating"
	case StateSteady:
		return "steady"
	case StateUpdating:
		return "updating"
	case StateDisposed:
		return "disposed"
	}
	return "unknown"
}

// Field selects what OnItemQuery fills in.
type Field uint

const (
	FieldName Field = 1 << iota
	FieldSize
	FieldType
	FieldModified
	FieldState
	FieldImage

	FieldText = FieldName | FieldSize | FieldType | FieldModified
	FieldAll  = FieldText | FieldState | FieldImage
)

var fieldColumns = []struct {
	field Field
	col   store.Column
}{
	{FieldName, store.ColumnName},
	{FieldSize, store.ColumnSize},
	{FieldType, store.ColumnType},
	{FieldModified, store.ColumnModified},
}

// ItemView is the answer to a row query. Text holds one cell per requested
// column in display order.
type ItemView struct {
	Index      int
	ID         models.Identity
	IsDir      bool
	Text       []string
	State      models.StateFlags
	Overlay    models.Overlay
	Image      models.Handle
	ImageState models.ImageState
}

// ImageResult is the answer to an image query.
type ImageResult struct {
	Handle      models.Handle
	Placeholder bool
	Ghosted     bool
	Overlay     models.Overlay
}

// ImageSource supplies producers and placeholders for list images.
type ImageSource interface {
	For(e *models.Entry) thumbcache.Producer
	Placeholder(size int) *compositor.Bitmap
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithThumbnailMinSize sets the image size from which full thumbnails are
// produced instead of type icons.
func WithThumbnailMinSize(px int) Option {
	return func(b *Bridge) { b.thumbMin = px }
}

// WithFilter hides entries that do not satisfy match.
func WithFilter(match func(*models.Entry) bool) Option {
	return func(b *Bridge) { b.store.SetFilter(match) }
}

// WithSort starts the session sorted.
func WithSort(col store.Column, ascending bool) Option {
	return func(b *Bridge) { b.store.Sort(col, ascending) }
}

// Bridge is one list session.
type Bridge struct {
	cache  *thumbcache.Cache
	images ImageSource
	store  *store.Store

	control Control
	disp    Dispatcher

	state   State
	epoch   uint64
	session string
	counted bool
	count   int

	pending     map[thumbcache.Key]uint64 // key -> epoch of the request
	echo        map[models.Identity]models.StateFlags
	overlays    map[int]*thumbs.OverlaySheet
	unsubscribe func()
	thumbMin    int

	log *zap.Logger
}

// New creates a detached Bridge. The cache is shared; its lifetime is the
// caller's.
func New(cache *thumbcache.Cache, images ImageSource, opts ...Option) *Bridge {
	b := &Bridge{
		cache:    cache,
		images:   images,
		store:    store.New(),
		pending:  make(map[thumbcache.Key]uint64),
		echo:     make(map[models.Identity]models.StateFlags),
		overlays: make(map[int]*thumbs.OverlaySheet),
		thumbMin: 48,
		log:      logging.Named("bridge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach connects the native control and the dispatcher for its goroutine.
func (b *Bridge) Attach(control Control, disp Dispatcher) error {
	if b.state == StateDisposed {
		return ErrDisposed
	}
	if b.control != nil {
		return ErrAttached
	}
	b.control = control
	b.disp = disp
	b.session = uuid.New().String()
	b.epoch++
	b.state = StateEmpty
	b.counted = false
	b.log = b.log.With(zap.String("session", b.session))

	b.unsubscribe = b.cache.Subscribe(func(key thumbcache.Key, h models.Handle, err error) {
		disp.Post(func() { b.onImageReady(key, h, err) })
	})
	b.log.Debug("attached", zap.Uint64("epoch", b.epoch))
	return nil
}

// Detach disposes the session. Later callbacks are rejected.
func (b *Bridge) Detach() {
	if b.state == StateDisposed {
		return
	}
	if b.unsubscribe != nil {
		b.unsubscribe()
		b.unsubscribe = nil
	}
	b.epoch++
	b.state = StateDisposed
	b.control = nil
	b.store.Reset(nil)
	clear(b.pending)
	clear(b.echo)
	metrics.SetBridgeItems(0)
	b.log.Debug("detached")
}

// State returns the session state.
func (b *Bridge) State() State { return b.state }

// Epoch returns the generation tag of the current folder.
func (b *Bridge) Epoch() uint64 { return b.epoch }

// Session returns the session id assigned by Attach.
func (b *Bridge) Session() string { return b.session }

// Count returns the row count last reported to the control.
func (b *Bridge) Count() int { return b.count }

// Store returns the item store. Callers must not mutate it.
func (b *Bridge) Store() *store.Store { return b.store }

// active rejects callbacks on a detached or unattached session.
func (b *Bridge) active(query string) bool {
	if b.state == StateDisposed || b.control == nil {
		b.violation(query, "callback on detached session", -1)
		return false
	}
	return true
}

func (b *Bridge) violation(query, msg string, index int) {
	metrics.RecordProtocolViolation(query)
	b.log.Warn(msg,
		zap.String("query", query),
		zap.Uint64("epoch", b.epoch),
		zap.Int("index", index),
		zap.Stringer("state", b.state))
}

// row resolves a callback index. A missing row after SetCount is a benign
// race with enumeration.
func (b *Bridge) row(query string, index int) (*models.Entry, bool) {
	if !b.active(query) {
		return nil, false
	}
	if !b.counted {
		b.violation(query, "query before SetCount", index)
		return nil, false
	}
	if index < 0 || index >= b.count {
		metrics.RecordStaleQuery(query)
		b.log.Debug("stale index", zap.String("query", query), zap.Int("index", index), zap.Int("count", b.count))
		return nil, false
	}
	e, ok := b.store.At(index)
	if !ok {
		metrics.RecordStaleQuery(query)
		return nil, false
	}
	return e, true
}

// SetCount reports the total row count to the control.
func (b *Bridge) SetCount(n int) {
	if !b.active("set_count") {
		return
	}
	b.control.SetItemCount(n)
	b.count = n
	b.counted = true
	metrics.SetBridgeItems(n)
	metrics.RecordNotification("set_count")
}

// NotifyInsert tells the control a row was inserted at index.
func (b *Bridge) NotifyInsert(index int) {
	if !b.active("insert") {
		return
	}
	b.control.InsertItem(index)
	b.count++
	metrics.SetBridgeItems(b.count)
	metrics.RecordNotification("insert")
}

// NotifyDelete tells the control the row at index was removed.
func (b *Bridge) NotifyDelete(index int) {
	if !b.active("delete") {
		return
	}
	b.control.DeleteItem(index)
	b.count--
	metrics.SetBridgeItems(b.count)
	metrics.RecordNotification("delete")
}

// NotifyUpdate tells the control to re-query the row at index.
func (b *Bridge) NotifyUpdate(index int) {
	if !b.active("update") {
		return
	}
	b.control.UpdateItem(index)
	metrics.RecordNotification("update")
}

func (b *Bridge) redrawAll() {
	if b.count > 0 {
		b.control.RedrawItems(0, b.count-1)
		metrics.RecordNotification("redraw")
	}
}

// OnEnumerationEvent applies one folder event to the store and issues the
// matching index-space notification. Each store mutation is followed by its
// notification before the next mutation.
func (b *Bridge) OnEnumerationEvent(ev models.Event) {
	if !b.active("enumeration") {
		return
	}
	metrics.RecordEnumerationEvent(ev.Kind.String())

	switch ev.Kind {
	case models.EventReset:
		b.navigate(ev.Entries)
		return
	case models.EventDone:
		if b.state != StateSteady {
			if !b.counted {
				b.SetCount(b.store.Len())
			}
			b.state = StateSteady
		}
		return
	}

	if !b.counted {
		b.SetCount(b.store.Len())
	}
	steady := b.state == StateSteady
	if steady {
		b.state = StateUpdating
	} else if b.state == StateEmpty {
		b.state = StatePopulating
	}

	switch ev.Kind {
	case models.EventAdded:
		b.add(ev.Entry)
	case models.EventRemoved:
		if i, ok := b.store.Remove(ev.ID); ok {
			b.NotifyDelete(i)
		}
	case models.EventUpdated:
		b.update(ev.Entry)
	}

	if steady {
		b.state = StateSteady
	}
}

func (b *Bridge) add(e *models.Entry) {
	if e == nil {
		return
	}
	if i, ok := b.store.Insert(e.Clone()); ok {
		b.NotifyInsert(i)
	}
}

func (b *Bridge) update(e *models.Entry) {
	if e == nil {
		return
	}
	prev, ok := b.store.Get(e.ID)
	if !ok {
		b.add(e)
		return
	}
	changed := prev.Size != e.Size || !prev.ModTime.Equal(e.ModTime)

	oldIndex, newIndex, _ := b.store.Update(e)
	if changed {
		b.cache.Invalidate(e.ID)
		for key := range b.pending {
			if key.ID == e.ID {
				delete(b.pending, key)
			}
		}
	}
	switch {
	case newIndex < 0:
		b.NotifyDelete(oldIndex)
	case newIndex == oldIndex:
		b.NotifyUpdate(oldIndex)
	default:
		b.NotifyDelete(oldIndex)
		b.NotifyInsert(newIndex)
		// The control dropped the row's selection and focus with the delete.
		if owned := prev.State & models.ControlOwned; owned != 0 && b.counted {
			b.control.SetItemState(newIndex, owned, owned)
		}
	}
}

// navigate replaces the folder contents and starts a new epoch; results of
// image work requested for the previous folder are dropped on arrival.
func (b *Bridge) navigate(entries []*models.Entry) {
	b.epoch++
	clear(b.pending)
	clear(b.echo)

	cloned := make([]*models.Entry, len(entries))
	for i, e := range entries {
		cloned[i] = e.Clone()
	}
	b.store.Reset(cloned)
	b.state = StatePopulating
	b.SetCount(b.store.Len())
	b.redrawAll()
	b.log.Debug("navigated", zap.Uint64("epoch", b.epoch), zap.Int("count", b.count))
}

// OnItemQuery answers a row query. ok is false for rows outside the current
// count, which is a benign race rather than an error.
func (b *Bridge) OnItemQuery(index int, fields Field) (ItemView, bool) {
	e, ok := b.row("item", index)
	if !ok {
		return ItemView{}, false
	}
	v := ItemView{Index: index, ID: e.ID, IsDir: e.IsDir, Overlay: e.Overlay}
	for _, fc := range fieldColumns {
		if fields&fc.field != 0 {
			v.Text = append(v.Text, fc.col.Text(e))
		}
	}
	if fields&FieldState != 0 {
		v.State = e.State
	}
	if fields&FieldImage != 0 {
		v.Image, v.ImageState = e.Image, e.ImageState
	}
	return v, true
}

// OnStateQuery returns the state flags of a row.
func (b *Bridge) OnStateQuery(index int) (models.StateFlags, bool) {
	e, ok := b.row("state", index)
	if !ok {
		return 0, false
	}
	return e.State, true
}

// OnStateSet applies a state change made by the control, such as the user
// toggling selection. It is the only path by which selection reaches the
// store, and the change is not echoed back to the control this turn.
func (b *Bridge) OnStateSet(index int, mask, value models.StateFlags) bool {
	e, ok := b.row("state_set", index)
	if !ok {
		return false
	}
	e.State = e.State.Apply(mask, value)

	if len(b.echo) == 0 {
		b.disp.Post(b.endTurn)
	}
	b.echo[e.ID] |= mask
	return true
}

func (b *Bridge) endTurn() {
	clear(b.echo)
}

// SetState changes state from the application side (cut marks, select all).
// Control-owned bits are pushed to the control unless they were just
// received from it; ghosting changes trigger a row update.
func (b *Bridge) SetState(id models.Identity, mask, value models.StateFlags) error {
	if !b.active("set_state") {
		return ErrDisposed
	}
	i, ok := b.store.IndexOf(id)
	if !ok {
		return fmt.Errorf("set state %s: %w", id, store.ErrNotFound)
	}
	e, _ := b.store.At(i)
	before := e.State
	e.State = e.State.Apply(mask, value)

	if owned := mask & models.ControlOwned &^ b.echo[id]; owned != 0 {
		b.control.SetItemState(i, owned, value)
	}
	if before.Ghosted() != e.State.Ghosted() {
		b.NotifyUpdate(i)
	}
	return nil
}

// Selected returns the identities of selected rows in index order.
func (b *Bridge) Selected() []models.Identity {
	var ids []models.Identity
	for i := 0; i < b.store.Len(); i++ {
		if e, _ := b.store.At(i); e.State.Has(models.StateSelected) {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// OnSort reorders the store by column and invalidates every row. Selection
// and focus follow their items to the new indices.
func (b *Bridge) OnSort(column int, ascending bool) bool {
	if !b.active("sort") {
		return false
	}
	if column < 0 || column >= len(store.Columns()) {
		b.violation("sort", "unknown sort column", column)
		return false
	}
	prev := b.state
	b.state = StateUpdating
	b.store.Sort(store.Column(column), ascending)

	if b.counted {
		b.redrawAll()
		b.reconcileOwned()
	}
	b.state = prev
	return true
}

// reconcileOwned pushes the store's selection and focus to every row whose
// control state differs. Rows the control already agrees with are left
// alone, so a state it reported this turn is never sent back.
func (b *Bridge) reconcileOwned() {
	selected := make(map[int]bool)
	for _, i := range b.control.SelectedIndices() {
		selected[i] = true
	}
	focused := b.control.FocusedIndex()

	for i := 0; i < b.store.Len() && i < b.count; i++ {
		e, _ := b.store.At(i)
		var have models.StateFlags
		if selected[i] {
			have |= models.StateSelected
		}
		if i == focused {
			have |= models.StateFocused
		}
		if want := e.State & models.ControlOwned; want != have {
			b.control.SetItemState(i, models.ControlOwned, want)
		}
	}
}

// OnFindItem returns the first row at or after start, wrapping, whose name
// starts with prefix (case-insensitive), or -1.
func (b *Bridge) OnFindItem(prefix string, start int) int {
	if !b.active("find") {
		return -1
	}
	prefix = strings.ToLower(prefix)
	return b.store.Find(func(e *models.Entry) bool {
		return strings.HasPrefix(strings.ToLower(e.Name), prefix)
	}, start)
}

func (b *Bridge) mode(size int) thumbcache.Mode {
	if size >= b.thumbMin {
		return thumbcache.ModeThumbnail
	}
	return thumbcache.ModeIcon
}

// OnImageQuery returns the image for a row without blocking. When the image
// is not cached a placeholder is returned and production is scheduled; the
// row is updated once the image is ready.
func (b *Bridge) OnImageQuery(index, size int) (ImageResult, bool) {
	e, ok := b.row("image", index)
	if !ok {
		return ImageResult{Handle: b.placeholder(size), Placeholder: true}, false
	}
	res := ImageResult{Ghosted: e.State.Ghosted(), Overlay: e.Overlay}

	key := thumbcache.Key{ID: e.ID, Size: size, Mode: b.mode(size)}
	if key.Mode == thumbcache.ModeThumbnail && b.cache.Failed(key) {
		key.Mode = thumbcache.ModeIcon
	}
	if h, ok := b.cache.Get(key); ok {
		e.Image, e.ImageState = h, models.ImageReady
		res.Handle = h
		return res, true
	}

	res.Handle, res.Placeholder = b.placeholder(size), true
	if b.cache.Failed(key) {
		e.ImageState = models.ImageFailed
		return res, true
	}
	if _, ok := b.pending[key]; !ok {
		if !b.cache.Request(key, b.images.For(e)) && !b.cache.InFlight(key) {
			// Nothing is in flight, so the key must not be marked pending.
			// A request dropped by a full queue is retried on the next query.
			if h, ok := b.cache.Get(key); ok {
				e.Image, e.ImageState = h, models.ImageReady
				res.Handle, res.Placeholder = h, false
				return res, true
			}
			if b.cache.Failed(key) {
				e.ImageState = models.ImageFailed
				return res, true
			}
			e.ImageState = models.ImagePending
			return res, true
		}
		b.pending[key] = b.epoch
	}
	e.ImageState = models.ImagePending
	return res, true
}

func (b *Bridge) placeholder(size int) models.Handle {
	key := thumbcache.Key{ID: "\x00placeholder", Size: size, Mode: thumbcache.ModeIcon}
	if h, ok := b.cache.Get(key); ok {
		return h
	}
	return b.cache.RegisterStatic(key, b.images.Placeholder(size))
}

// onImageReady runs on the control goroutine after production finished.
func (b *Bridge) onImageReady(key thumbcache.Key, h models.Handle, err error) {
	epoch, ok := b.pending[key]
	if b.state == StateDisposed || !ok || epoch != b.epoch {
		return
	}
	delete(b.pending, key)

	i, ok := b.store.IndexOf(key.ID)
	if !ok {
		return
	}
	e, _ := b.store.At(i)
	switch {
	case errors.Is(err, thumbcache.ErrStale):
		// The row changed while the producer ran; the next query requests
		// the current content.
		e.ImageState = models.ImageUnresolved
	case err != nil:
		e.ImageState = models.ImageFailed
		if key.Mode == thumbcache.ModeIcon {
			return
		}
		// Fall back to the type icon on the next query.
	default:
		e.Image, e.ImageState = h, models.ImageReady
	}
	if b.counted && i < b.count {
		b.NotifyUpdate(i)
	}
}

// OnDrawItem renders the image cell of a row at size×size: the image,
// ghosted for cut or hidden items, with the overlay badge in the lower left.
// The returned bitmap is premultiplied for the native blend.
func (b *Bridge) OnDrawItem(index, size int) (*compositor.Bitmap, bool) {
	res, ok := b.OnImageQuery(index, size)
	cell := compositor.New(size, size)

	bmp, release, found := b.cache.Acquire(res.Handle)
	defer release()
	if !found {
		bmp = b.images.Placeholder(size)
	}

	switch {
	case res.Ghosted:
		compositor.AlphaBlendDraw(cell, bmp, image.Point{}, image.Pt(size, size), compositor.GhostOpacity)
	case compositor.DetectAlphaChannel(bmp) || bmp.Bounds().Size() != image.Pt(size, size):
		compositor.AlphaBlendDraw(cell, bmp, image.Point{}, image.Pt(size, size), 1)
	default:
		compositor.Blit(cell, bmp, image.Point{})
	}

	if res.Overlay != models.OverlayNone {
		badge := max(size/2, 4)
		sheet := b.overlaySheet(badge)
		if off, ok := sheet.Offset(res.Overlay); ok {
			compositor.AlphaBlendDraw(cell, sheet.Bitmap, image.Pt(0, size-badge), image.Pt(badge, badge), 1,
				compositor.WithSourceOffset(off))
		}
	}

	compositor.PremultiplyAlpha(cell)
	return cell, ok
}

func (b *Bridge) overlaySheet(cell int) *thumbs.OverlaySheet {
	s, ok := b.overlays[cell]
	if !ok {
		s = thumbs.Overlays(cell)
		b.overlays[cell] = s
	}
	return s
}
