package models

import "testing"

func TestStateFlagsApply(t *testing.T) {
	tests := []struct {
		start, mask, value, want StateFlags
	}{
		{0, StateSelected, StateSelected, StateSelected},
		{StateSelected | StateCut, StateSelected, 0, StateCut},
		{StateHidden, StateCut | StateSelected, StateCut, StateHidden | StateCut},
		{StateHidden, 0, StateCut, StateHidden},
	}
	for _, tt := range tests {
		if got := tt.start.Apply(tt.mask, tt.value); got != tt.want {
			t.Errorf("%b.Apply(%b, %b) = %b, want %b", tt.start, tt.mask, tt.value, got, tt.want)
		}
	}
}

func TestGhosted(t *testing.T) {
	if StateSelected.Ghosted() {
		t.Error("selected should not be ghosted")
	}
	if !StateCut.Ghosted() || !StateHidden.Ghosted() {
		t.Error("cut and hidden items are ghosted")
	}
}

func TestEntryKind(t *testing.T) {
	tests := []struct {
		e    Entry
		want string
	}{
		{Entry{Name: "photo.JPG"}, "jpg"},
		{Entry{Name: "Makefile"}, "file"},
		{Entry{Name: "src.d", IsDir: true}, "folder"},
	}
	for _, tt := range tests {
		if got := tt.e.Kind(); got != tt.want {
			t.Errorf("Kind(%q) = %q, want %q", tt.e.Name, got, tt.want)
		}
	}
}

func TestPropertiesExcludeControlState(t *testing.T) {
	e := &Entry{Name: "a", State: StateHidden | StateSelected}
	if got := e.Properties()["attributes"]; got != int64(StateHidden) {
		t.Errorf("attributes = %v, want %d", got, StateHidden)
	}
}
