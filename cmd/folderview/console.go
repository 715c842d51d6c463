package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/fruitsalade/folderview/internal/bridge"
	"github.com/fruitsalade/folderview/internal/models"
)

// console is a headless owner-data control. Like a native list view it
// stores only a row count and a set of rows awaiting re-query; row contents
// are pulled from the bridge when the console flushes.
type console struct {
	out  io.Writer
	b    *bridge.Bridge
	size int // image size queried per row, 0 for none

	count   int
	dirty   []bool
	removed int

	selected map[int]bool
	focused  int
}

func newConsole(out io.Writer, b *bridge.Bridge, size int) *console {
	return &console{out: out, b: b, size: size, selected: make(map[int]bool), focused: -1}
}

func (c *console) SetItemCount(n int) {
	c.count = n
	c.dirty = make([]bool, n)
	for i := range c.dirty {
		c.dirty[i] = true
	}
	clear(c.selected)
	c.focused = -1
}

func (c *console) InsertItem(index int) {
	c.count++
	c.dirty = slices.Insert(c.dirty, index, true)
	c.shift(index, 1)
}

func (c *console) DeleteItem(index int) {
	c.count--
	c.dirty = slices.Delete(c.dirty, index, index+1)
	delete(c.selected, index)
	if c.focused == index {
		c.focused = -1
	}
	c.shift(index+1, -1)
	c.removed++
}

// shift moves selection and focus at or after index by delta.
func (c *console) shift(index, delta int) {
	moved := make(map[int]bool, len(c.selected))
	for i := range c.selected {
		if i >= index {
			i += delta
		}
		moved[i] = true
	}
	c.selected = moved
	if c.focused >= index {
		c.focused += delta
	}
}

func (c *console) UpdateItem(index int) {
	if index >= 0 && index < len(c.dirty) {
		c.dirty[index] = true
	}
}

func (c *console) RedrawItems(first, last int) {
	for i := max(first, 0); i <= last && i < len(c.dirty); i++ {
		c.dirty[i] = true
	}
}

func (c *console) SetItemState(index int, mask, value models.StateFlags) {
	if mask.Has(models.StateSelected) {
		if value.Has(models.StateSelected) {
			c.selected[index] = true
		} else {
			delete(c.selected, index)
		}
	}
	if mask.Has(models.StateFocused) {
		if value.Has(models.StateFocused) {
			c.focused = index
		} else if c.focused == index {
			c.focused = -1
		}
	}
}

func (c *console) SelectedIndices() []int {
	out := make([]int, 0, len(c.selected))
	for i := range c.selected {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}

func (c *console) FocusedIndex() int { return c.focused }

// Pending returns how many rows await re-query.
func (c *console) Pending() int {
	n := 0
	for _, d := range c.dirty {
		if d {
			n++
		}
	}
	return n
}

// Flush re-queries the invalidated rows and prints them. With all set every
// row is printed, otherwise only changed rows and a removal count.
func (c *console) Flush(all bool) {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if all {
		header := []string{"NAME", "SIZE", "TYPE", "MODIFIED", "FLAGS"}
		if c.size > 0 {
			header = append(header, "IMAGE")
		}
		fmt.Fprintf(tw, " \t%s\n", strings.Join(header, "\t"))
	} else if c.removed > 0 {
		fmt.Fprintf(tw, "-\t%d removed\n", c.removed)
	}
	c.removed = 0

	for i := 0; i < c.count; i++ {
		if !all && !c.dirty[i] {
			continue
		}
		c.dirty[i] = false
		v, ok := c.b.OnItemQuery(i, bridge.FieldAll)
		if !ok {
			continue
		}
		mark := " "
		if !all {
			mark = "~"
		}
		fmt.Fprintf(tw, "%s\t%s\n", mark, strings.Join(c.cells(v), "\t"))
	}
}

func (c *console) cells(v bridge.ItemView) []string {
	name := v.Text[0]
	if v.IsDir {
		name += "/"
	}
	cells := append([]string{name}, v.Text[1:]...)
	cells = append(cells, flags(v.State, v.Overlay))
	if c.size > 0 {
		cells = append(cells, c.image(v.Index))
	}
	return cells
}

// image queries the row image, scheduling production on a cache miss.
func (c *console) image(index int) string {
	res, ok := c.b.OnImageQuery(index, c.size)
	if !ok {
		return ""
	}
	v, _ := c.b.OnItemQuery(index, bridge.FieldImage)
	switch {
	case v.ImageState == models.ImageFailed:
		return "failed"
	case res.Placeholder:
		return "pending"
	}
	return fmt.Sprintf("#%d", res.Handle)
}

// Refresh re-queries the images of invalidated rows without printing, so
// failed thumbnails fall back to icons and finished ones are picked up.
func (c *console) Refresh() {
	for i := 0; i < c.count; i++ {
		if c.dirty[i] {
			c.dirty[i] = false
			if c.size > 0 {
				c.image(i)
			}
		}
	}
	c.removed = 0
}

// Images counts rows by image state after the last query.
func (c *console) Images() (ready, pending, failed int) {
	for i := 0; i < c.count; i++ {
		v, ok := c.b.OnItemQuery(i, bridge.FieldImage)
		if !ok {
			continue
		}
		switch v.ImageState {
		case models.ImageReady:
			ready++
		case models.ImageFailed:
			failed++
		default:
			pending++
		}
	}
	return ready, pending, failed
}

func flags(s models.StateFlags, o models.Overlay) string {
	var sb strings.Builder
	for _, f := range []struct {
		flag models.StateFlags
		c    byte
	}{
		{models.StateHidden, 'h'},
		{models.StateSystem, 's'},
		{models.StateCut, 'x'},
		{models.StateSelected, '*'},
	} {
		if s.Has(f.flag) {
			sb.WriteByte(f.c)
		} else {
			sb.WriteByte('-')
		}
	}
	if o != models.OverlayNone {
		sb.WriteString(" " + o.String())
	}
	return sb.String()
}

var _ bridge.Control = (*console)(nil)
