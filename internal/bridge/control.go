package bridge

import "github.com/fruitsalade/folderview/internal/models"

// Control is the native owner-data list control. The control stores no item
// data; it keeps only a row count and calls back into the Bridge for the
// text, state and image of each visible row.
//
// All methods are called on the control's owning goroutine.
type Control interface {
	// SetItemCount sets the total row count.
	SetItemCount(n int)
	// InsertItem shifts rows at index and after down by one.
	InsertItem(index int)
	// DeleteItem removes the row at index.
	DeleteItem(index int)
	// UpdateItem marks the row at index for lazy re-query.
	UpdateItem(index int)
	// RedrawItems marks the inclusive range for re-query.
	RedrawItems(first, last int)
	// SetItemState pushes control-owned state (selection, focus) for a row.
	SetItemState(index int, mask, value models.StateFlags)
	// SelectedIndices returns the selected rows in ascending order.
	SelectedIndices() []int
	// FocusedIndex returns the focused row, or -1.
	FocusedIndex() int
}
