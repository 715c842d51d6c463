package bridge

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fruitsalade/folderview/internal/compositor"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/store"
	"github.com/fruitsalade/folderview/internal/thumbcache"
)

// fakeControl logs every call and keeps selection and focus by index the
// way a list view does.
type fakeControl struct {
	ops      []string
	selected map[int]bool
	focused  int // index+1, zero for none
}

func (c *fakeControl) SetItemCount(n int) {
	c.ops = append(c.ops, fmt.Sprintf("count %d", n))
	clear(c.selected)
	c.focused = 0
}

func (c *fakeControl) InsertItem(index int) {
	c.ops = append(c.ops, fmt.Sprintf("insert %d", index))
	c.shift(index, 1)
}

func (c *fakeControl) DeleteItem(index int) {
	c.ops = append(c.ops, fmt.Sprintf("delete %d", index))
	delete(c.selected, index)
	if c.focused == index+1 {
		c.focused = 0
	}
	c.shift(index+1, -1)
}

func (c *fakeControl) shift(from, by int) {
	moved := make(map[int]bool, len(c.selected))
	for i := range c.selected {
		if i >= from {
			i += by
		}
		moved[i] = true
	}
	c.selected = moved
	if c.focused > from {
		c.focused += by
	}
}

func (c *fakeControl) UpdateItem(index int) { c.ops = append(c.ops, fmt.Sprintf("update %d", index)) }

func (c *fakeControl) RedrawItems(first, last int) {
	c.ops = append(c.ops, fmt.Sprintf("redraw %d %d", first, last))
}

func (c *fakeControl) SetItemState(index int, mask, value models.StateFlags) {
	c.ops = append(c.ops, fmt.Sprintf("state %d", index))
	if mask.Has(models.StateSelected) {
		if c.selected == nil {
			c.selected = make(map[int]bool)
		}
		if value.Has(models.StateSelected) {
			c.selected[index] = true
		} else {
			delete(c.selected, index)
		}
	}
	if mask.Has(models.StateFocused) {
		switch {
		case value.Has(models.StateFocused):
			c.focused = index + 1
		case c.focused == index+1:
			c.focused = 0
		}
	}
}

func (c *fakeControl) SelectedIndices() []int {
	var out []int
	for i := range c.selected {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}

func (c *fakeControl) FocusedIndex() int { return c.focused - 1 }

// click selects and focuses a row in the control and reports it to the
// bridge, as a user click would.
func (h *harness) click(t *testing.T, index int) {
	t.Helper()
	h.control.SetItemState(index, models.ControlOwned, models.ControlOwned)
	if !h.b.OnStateSet(index, models.ControlOwned, models.ControlOwned) {
		t.Fatalf("OnStateSet(%d) rejected", index)
	}
	h.control.take()
}

func (c *fakeControl) take() []string {
	ops := c.ops
	c.ops = nil
	return ops
}

func solid(size int, c color.NRGBA) *compositor.Bitmap {
	b := compositor.New(size, size)
	b.Fill(c)
	return b
}

type fakeImages struct {
	gate  chan struct{}
	fail  bool
	calls *atomic.Int32
}

func (f *fakeImages) For(e *models.Entry) thumbcache.Producer {
	return func(ctx context.Context, key thumbcache.Key) (*compositor.Bitmap, error) {
		if f.calls != nil {
			f.calls.Add(1)
		}
		if f.gate != nil {
			select {
			case <-f.gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if f.fail {
			return nil, thumbcache.ErrNoImage
		}
		return solid(key.Size, color.NRGBA{B: 0xff, A: 0xff}), nil
	}
}

func (f *fakeImages) Placeholder(size int) *compositor.Bitmap {
	return solid(size, color.NRGBA{R: 0xff, A: 0xff})
}

func entry(name string, size int64) *models.Entry {
	return &models.Entry{ID: models.Identity("/" + name), Name: name, Size: size}
}

type harness struct {
	b       *Bridge
	control *fakeControl
	loop    *Loop
	cache   *thumbcache.Cache
	images  *fakeImages
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	return newHarnessWithCache(t, thumbcache.New(thumbcache.DefaultOptions()), opts...)
}

func newHarnessWithCache(t *testing.T, cache *thumbcache.Cache, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		control: &fakeControl{},
		loop:    NewLoop(),
		cache:   cache,
		images:  &fakeImages{},
	}
	h.b = New(h.cache, h.images, opts...)
	if err := h.b.Attach(h.control, h.loop); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(h.b.Detach)
	return h
}

func (h *harness) navigate(entries ...*models.Entry) {
	h.b.OnEnumerationEvent(models.Event{Kind: models.EventReset, Entries: entries})
	h.b.OnEnumerationEvent(models.Event{Kind: models.EventDone})
	h.control.take()
}

func (h *harness) waitPosted(t *testing.T) {
	t.Helper()
	select {
	case <-h.loop.Pending():
	case <-time.After(2 * time.Second):
		t.Fatal("nothing posted to the loop")
	}
	h.loop.Drain()
}

func TestRemoveShiftsIndices(t *testing.T) {
	h := newHarness(t)

	h.b.OnEnumerationEvent(models.Event{Kind: models.EventReset, Entries: []*models.Entry{
		entry("A", 1), entry("B", 2), entry("C", 3),
	}})
	if got, want := h.control.take(), []string{"count 3", "redraw 0 2"}; !slices.Equal(got, want) {
		t.Fatalf("reset ops = %v, want %v", got, want)
	}

	h.b.OnEnumerationEvent(models.Removed("/B"))
	if got, want := h.control.take(), []string{"delete 1"}; !slices.Equal(got, want) {
		t.Fatalf("remove ops = %v, want %v", got, want)
	}

	v, ok := h.b.OnItemQuery(1, FieldName)
	if !ok || v.Text[0] != "C" {
		t.Errorf("OnItemQuery(1) = %v, %v, want C", v.Text, ok)
	}
	if _, ok := h.b.OnItemQuery(2, FieldName); ok {
		t.Error("OnItemQuery(2) should be unavailable after delete")
	}
	if h.b.Count() != 2 {
		t.Errorf("Count() = %d, want 2", h.b.Count())
	}
}

func TestOutOfRangeQueries(t *testing.T) {
	h := newHarness(t)
	h.navigate(entry("a", 1), entry("b", 2), entry("c", 3))

	for _, i := range []int{-1, 3, 4, 1 << 20} {
		if _, ok := h.b.OnItemQuery(i, FieldAll); ok {
			t.Errorf("OnItemQuery(%d) ok, want unavailable", i)
		}
		if _, ok := h.b.OnStateQuery(i); ok {
			t.Errorf("OnStateQuery(%d) ok, want unavailable", i)
		}
		if h.b.OnStateSet(i, models.StateSelected, models.StateSelected) {
			t.Errorf("OnStateSet(%d) applied, want rejected", i)
		}
		res, ok := h.b.OnImageQuery(i, 16)
		if ok || !res.Placeholder {
			t.Errorf("OnImageQuery(%d) = %+v, %v, want placeholder", i, res, ok)
		}
		if cell, ok := h.b.OnDrawItem(i, 16); ok || cell == nil {
			t.Errorf("OnDrawItem(%d) = %v, %v, want placeholder cell", i, cell, ok)
		}
	}
	for i := 0; i < 3; i++ {
		if _, ok := h.b.OnItemQuery(i, FieldAll); !ok {
			t.Errorf("OnItemQuery(%d) unavailable", i)
		}
	}
}

func TestQueryBeforeCount(t *testing.T) {
	h := newHarness(t)
	if _, ok := h.b.OnItemQuery(0, FieldName); ok {
		t.Error("query before SetCount should be rejected")
	}
	if h.b.State() != StateEmpty {
		t.Errorf("State() = %v, want empty", h.b.State())
	}
}

func TestDetach(t *testing.T) {
	h := newHarness(t)
	h.navigate(entry("a", 1))

	h.b.Detach()
	if h.b.State() != StateDisposed {
		t.Fatalf("State() = %v, want disposed", h.b.State())
	}
	if _, ok := h.b.OnItemQuery(0, FieldName); ok {
		t.Error("query after Detach should be rejected")
	}
	if err := h.b.SetState("/a", models.StateCut, models.StateCut); !errors.Is(err, ErrDisposed) {
		t.Errorf("SetState after Detach: got %v, want ErrDisposed", err)
	}
	if err := h.b.Attach(h.control, h.loop); !errors.Is(err, ErrDisposed) {
		t.Errorf("Attach after Detach: got %v, want ErrDisposed", err)
	}
	if ops := h.control.take(); len(ops) != 0 {
		t.Errorf("control touched after Detach: %v", ops)
	}
}

func TestAttachTwice(t *testing.T) {
	h := newHarness(t)
	if err := h.b.Attach(&fakeControl{}, h.loop); !errors.Is(err, ErrAttached) {
		t.Errorf("second Attach: got %v, want ErrAttached", err)
	}
	if h.b.Session() == "" {
		t.Error("Session() empty after Attach")
	}
}

func TestStateMachine(t *testing.T) {
	h := newHarness(t)
	h.b.OnEnumerationEvent(models.Added(entry("a", 1)))
	if h.b.State() != StatePopulating {
		t.Errorf("State() = %v after first add, want populating", h.b.State())
	}
	if got, want := h.control.take(), []string{"count 0", "insert 0"}; !slices.Equal(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	h.b.OnEnumerationEvent(models.Event{Kind: models.EventDone})
	if h.b.State() != StateSteady {
		t.Errorf("State() = %v after done, want steady", h.b.State())
	}
	h.b.OnEnumerationEvent(models.Added(entry("b", 1)))
	if h.b.State() != StateSteady {
		t.Errorf("State() = %v after delta, want steady", h.b.State())
	}
}

func TestImagePlaceholderThenUpdate(t *testing.T) {
	h := newHarness(t)
	h.navigate(entry("a.txt", 1))

	first, ok := h.b.OnImageQuery(0, 32)
	if !ok || !first.Placeholder {
		t.Fatalf("first OnImageQuery = %+v, %v, want placeholder", first, ok)
	}

	h.waitPosted(t)
	if got := h.control.take(); !slices.Contains(got, "update 0") {
		t.Fatalf("ops = %v, want update 0", got)
	}

	second, ok := h.b.OnImageQuery(0, 32)
	if !ok || second.Placeholder {
		t.Fatalf("second OnImageQuery = %+v, %v, want real image", second, ok)
	}
	if second.Handle == first.Handle {
		t.Error("real image has the placeholder handle")
	}
	v, _ := h.b.OnItemQuery(0, FieldImage)
	if v.Image != second.Handle || v.ImageState != models.ImageReady {
		t.Errorf("item image = %d/%d, want %d/ready", v.Image, v.ImageState, second.Handle)
	}
}

func TestImageResultAfterNavigationIsDropped(t *testing.T) {
	h := newHarness(t)
	h.images.gate = make(chan struct{})
	h.navigate(entry("old.txt", 1))

	if res, _ := h.b.OnImageQuery(0, 32); !res.Placeholder {
		t.Fatal("expected placeholder")
	}
	epoch := h.b.Epoch()

	h.navigate(entry("new.txt", 1))
	if h.b.Epoch() == epoch {
		t.Fatal("navigation did not advance the epoch")
	}
	close(h.images.gate)

	h.waitPosted(t)
	for _, op := range h.control.take() {
		if strings.HasPrefix(op, "update") {
			t.Errorf("stale result updated a row: %s", op)
		}
	}
	key := thumbcache.Key{ID: "/old.txt", Size: 32, Mode: thumbcache.ModeIcon}
	if _, ok := h.cache.Get(key); !ok {
		t.Error("cache should keep the stale-epoch result")
	}
}

func TestThumbnailFailureFallsBackToIcon(t *testing.T) {
	h := newHarness(t, WithThumbnailMinSize(32))
	h.images.fail = true
	h.navigate(entry("broken.jpg", 1))

	h.b.OnImageQuery(0, 64)
	h.waitPosted(t)
	if got := h.control.take(); !slices.Contains(got, "update 0") {
		t.Fatalf("ops = %v, want update 0 after failure", got)
	}

	h.images.fail = false
	res, _ := h.b.OnImageQuery(0, 64)
	if !res.Placeholder {
		t.Fatal("icon fallback should be scheduled behind a placeholder")
	}
	h.waitPosted(t)
	if _, ok := h.cache.Get(thumbcache.Key{ID: "/broken.jpg", Size: 64, Mode: thumbcache.ModeIcon}); !ok {
		t.Error("icon fallback not cached")
	}
}

func TestStateSetIsNotEchoed(t *testing.T) {
	h := newHarness(t)
	h.navigate(entry("a", 1), entry("b", 2))

	if !h.b.OnStateSet(0, models.StateSelected, models.StateSelected) {
		t.Fatal("OnStateSet rejected")
	}
	if err := h.b.SetState("/a", models.StateSelected, models.StateSelected); err != nil {
		t.Fatal(err)
	}
	if ops := h.control.take(); len(ops) != 0 {
		t.Errorf("state echoed back in the same turn: %v", ops)
	}
	if got := h.b.Selected(); !slices.Equal(got, []models.Identity{"/a"}) {
		t.Errorf("Selected() = %v, want [/a]", got)
	}

	h.loop.Drain()
	if err := h.b.SetState("/a", models.StateSelected, 0); err != nil {
		t.Fatal(err)
	}
	if got, want := h.control.take(), []string{"state 0"}; !slices.Equal(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	if err := h.b.SetState("/missing", models.StateCut, models.StateCut); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SetState unknown id: got %v, want ErrNotFound", err)
	}
}

func TestCutUpdatesRow(t *testing.T) {
	h := newHarness(t)
	h.navigate(entry("a", 1), entry("b", 2))

	if err := h.b.SetState("/b", models.StateCut, models.StateCut); err != nil {
		t.Fatal(err)
	}
	if got, want := h.control.take(), []string{"update 1"}; !slices.Equal(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	res, _ := h.b.OnImageQuery(1, 16)
	if !res.Ghosted {
		t.Error("cut item image should be ghosted")
	}
}

func TestSortRedrawsAndMovesSelection(t *testing.T) {
	h := newHarness(t)
	h.navigate(entry("b", 1), entry("a", 2))
	h.click(t, 0)
	h.loop.Drain()

	if !h.b.OnSort(int(store.ColumnName), true) {
		t.Fatal("OnSort rejected")
	}
	if got, want := h.control.take(), []string{"redraw 0 1", "state 0", "state 1"}; !slices.Equal(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	if got, want := h.control.SelectedIndices(), []int{1}; !slices.Equal(got, want) {
		t.Errorf("control selection = %v, want %v", got, want)
	}
	if got := h.control.FocusedIndex(); got != 1 {
		t.Errorf("control focus = %d, want 1", got)
	}
	v, _ := h.b.OnItemQuery(0, FieldName|FieldState)
	if v.Text[0] != "a" || v.State.Has(models.StateSelected) {
		t.Errorf("row 0 = %v %b, want unselected a", v.Text, v.State)
	}

	// Sorting again into the same order leaves the control alone.
	h.b.OnSort(int(store.ColumnName), true)
	if got, want := h.control.take(), []string{"redraw 0 1"}; !slices.Equal(got, want) {
		t.Errorf("ops for unchanged order = %v, want %v", got, want)
	}
	if h.b.OnSort(99, true) {
		t.Error("OnSort accepted an unknown column")
	}
}

func TestSortInSameTurnAsSelection(t *testing.T) {
	h := newHarness(t)
	h.navigate(entry("A", 1), entry("B", 1), entry("C", 1))
	h.click(t, 0)

	if !h.b.OnSort(int(store.ColumnName), false) {
		t.Fatal("OnSort rejected")
	}
	if got, want := h.b.Selected(), []models.Identity{"/A"}; !slices.Equal(got, want) {
		t.Errorf("bridge selection = %v, want %v", got, want)
	}
	if got, want := h.control.SelectedIndices(), []int{2}; !slices.Equal(got, want) {
		t.Errorf("control selection = %v, want %v", got, want)
	}
	if got := h.control.FocusedIndex(); got != 2 {
		t.Errorf("control focus = %d, want 2", got)
	}
}

func TestUpdateMovesRow(t *testing.T) {
	h := newHarness(t, WithSort(store.ColumnName, true))
	h.navigate(entry("a", 1), entry("b", 1), entry("c", 1))

	moved := entry("a", 1)
	moved.Name = "d"
	h.b.OnEnumerationEvent(models.Updated(moved))
	if got, want := h.control.take(), []string{"delete 0", "insert 2"}; !slices.Equal(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}

	if got := h.control.SelectedIndices(); len(got) != 0 {
		t.Errorf("control selection = %v, want none", got)
	}

	same := entry("b", 1)
	h.b.OnEnumerationEvent(models.Updated(same))
	if got, want := h.control.take(), []string{"update 0"}; !slices.Equal(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	if h.b.Count() != 3 {
		t.Errorf("Count() = %d, want 3", h.b.Count())
	}
}

func TestUpdateMoveKeepsSelection(t *testing.T) {
	h := newHarness(t, WithSort(store.ColumnName, true))
	h.navigate(entry("a", 1), entry("b", 1), entry("c", 1))
	h.click(t, 0)
	h.loop.Drain()

	moved := entry("a", 1)
	moved.Name = "d"
	h.b.OnEnumerationEvent(models.Updated(moved))
	if got, want := h.control.take(), []string{"delete 0", "insert 2", "state 2"}; !slices.Equal(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	if got, want := h.control.SelectedIndices(), []int{2}; !slices.Equal(got, want) {
		t.Errorf("control selection = %v, want %v", got, want)
	}
	if got := h.control.FocusedIndex(); got != 2 {
		t.Errorf("control focus = %d, want 2", got)
	}
	if got, want := h.b.Selected(), []models.Identity{"/a"}; !slices.Equal(got, want) {
		t.Errorf("bridge selection = %v, want %v", got, want)
	}
}

func TestUpdateDuringProductionRequestsAgain(t *testing.T) {
	h := newHarness(t)
	var calls atomic.Int32
	h.images.calls = &calls
	h.images.gate = make(chan struct{})
	h.navigate(entry("a.jpg", 10))

	if res, _ := h.b.OnImageQuery(0, 16); !res.Placeholder {
		t.Fatal("first query should return the placeholder")
	}
	h.b.OnEnumerationEvent(models.Updated(entry("a.jpg", 20)))
	h.control.take()
	if res, _ := h.b.OnImageQuery(0, 16); !res.Placeholder {
		t.Fatal("query after update should return the placeholder")
	}
	close(h.images.gate)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-h.loop.Pending():
			h.loop.Drain()
		case <-deadline:
			t.Fatalf("row never left the placeholder, producer calls = %d", calls.Load())
		}
		res, _ := h.b.OnImageQuery(0, 16)
		if !res.Placeholder {
			break
		}
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("producer calls = %d, want 2", got)
	}
	v, _ := h.b.OnItemQuery(0, FieldImage)
	if v.ImageState != models.ImageReady {
		t.Errorf("image state = %v, want ready", v.ImageState)
	}
}

func TestStaleResultReissuesRequest(t *testing.T) {
	h := newHarness(t)
	var calls atomic.Int32
	h.images.calls = &calls
	h.images.gate = make(chan struct{})
	h.navigate(entry("a.jpg", 10))

	h.b.OnImageQuery(0, 16)
	// Invalidation from outside the bridge leaves the pending key in place
	// until the superseded result arrives.
	h.cache.Invalidate("/a.jpg")
	close(h.images.gate)
	h.waitPosted(t)
	if got, want := h.control.take(), []string{"update 0"}; !slices.Equal(got, want) {
		t.Fatalf("ops after stale result = %v, want %v", got, want)
	}

	if res, _ := h.b.OnImageQuery(0, 16); !res.Placeholder {
		t.Fatal("superseded result was served")
	}
	h.waitPosted(t)
	if res, _ := h.b.OnImageQuery(0, 16); res.Placeholder {
		t.Fatal("row still on the placeholder after the second production")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("producer calls = %d, want 2", got)
	}
}

func TestDroppedRequestIsNotPending(t *testing.T) {
	opts := thumbcache.DefaultOptions()
	opts.Workers = 1
	opts.QueueSize = 1
	h := newHarnessWithCache(t, thumbcache.New(opts))
	h.cache.Start(context.Background())
	t.Cleanup(h.cache.Stop)

	h.images.gate = make(chan struct{})
	h.navigate(entry("a", 1), entry("b", 1), entry("c", 1), entry("d", 1))
	for i := 0; i < 4; i++ {
		h.b.OnImageQuery(i, 16)
	}
	if n := len(h.b.pending); n >= 4 {
		t.Fatalf("pending = %d, want dropped requests left out", n)
	}
	close(h.images.gate)

	deadline := time.After(5 * time.Second)
	for ready := 0; ready < 4; {
		select {
		case <-h.loop.Pending():
			h.loop.Drain()
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("%d of 4 rows ready", ready)
		}
		ready = 0
		for i := 0; i < 4; i++ {
			if res, _ := h.b.OnImageQuery(i, 16); !res.Placeholder {
				ready++
			}
		}
	}
}

func TestFilter(t *testing.T) {
	h := newHarness(t, WithFilter(func(e *models.Entry) bool { return e.Size > 1 }))
	h.navigate(entry("small", 1), entry("big", 2))
	if h.b.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", h.b.Count())
	}
	h.b.OnEnumerationEvent(models.Added(entry("tiny", 0)))
	if ops := h.control.take(); len(ops) != 0 {
		t.Errorf("filtered add notified the control: %v", ops)
	}
}

func TestFindItem(t *testing.T) {
	h := newHarness(t)
	h.navigate(entry("alpha", 1), entry("beta", 1), entry("Alps", 1))

	tests := []struct {
		prefix string
		start  int
		want   int
	}{
		{"al", 0, 0},
		{"AL", 1, 2},
		{"al", 3, 0},
		{"zz", 0, -1},
	}
	for _, tt := range tests {
		if got := h.b.OnFindItem(tt.prefix, tt.start); got != tt.want {
			t.Errorf("OnFindItem(%q, %d) = %d, want %d", tt.prefix, tt.start, got, tt.want)
		}
	}
}

func TestDrawGhostedCell(t *testing.T) {
	h := newHarness(t)
	h.navigate(entry("a", 1))

	cell, ok := h.b.OnDrawItem(0, 16)
	if !ok {
		t.Fatal("OnDrawItem unavailable")
	}
	if got := cell.NRGBAAt(8, 8); got.A != 0xff || got.R != 0xff {
		t.Errorf("opaque cell pixel = %v, want opaque red", got)
	}

	h.b.SetState("/a", models.StateCut, models.StateCut)
	cell, _ = h.b.OnDrawItem(0, 16)
	got := cell.NRGBAAt(8, 8)
	if got.A < 126 || got.A > 128 {
		t.Errorf("ghosted alpha = %d, want ~127", got.A)
	}
	// The first draw scheduled the real image, which may have replaced the
	// placeholder by now.
	if c := max(got.R, got.B); int(c) < int(got.A)-2 || c > got.A+2 {
		t.Errorf("ghosted colour = %v, want premultiplied ~%d", got, got.A)
	}
}

func TestDrawOverlayBadge(t *testing.T) {
	h := newHarness(t)
	e := entry("a", 1)
	e.Overlay = models.OverlayCloud
	h.navigate(e)

	cell, _ := h.b.OnDrawItem(0, 32)
	// Centre of the lower-left badge is drawn in the badge colour, not the image.
	if got := cell.NRGBAAt(8, 24); got.R == 0xff && got.G == 0 && got.B == 0 {
		t.Errorf("badge area shows the underlying image: %v", got)
	}
	if got := cell.NRGBAAt(24, 8); got.R != 0xff || got.G != 0 {
		t.Errorf("upper right = %v, want image red", got)
	}
}

func TestLoopDrainRunsNestedWork(t *testing.T) {
	l := NewLoop()
	var order []int
	l.Post(func() {
		order = append(order, 1)
		l.Post(func() { order = append(order, 2) })
	})
	if n := l.Drain(); n != 2 {
		t.Errorf("Drain() = %d, want 2", n)
	}
	if !slices.Equal(order, []int{1, 2}) {
		t.Errorf("order = %v, want [1 2]", order)
	}
}
