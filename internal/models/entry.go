// Package models contains the data types shared by the list engine.
package models

import (
	"path"
	"strings"
	"time"
)

// Identity is the stable key of a folder item. It does not change when the
// item moves within the list, and two entries with the same Identity are the
// same item across enumeration refreshes.
type Identity string

// StateFlags are per-item visual states.
type StateFlags uint32

const (
	StateHidden StateFlags = 1 << iota
	StateSystem
	StateCut
	StateSelected
	StateFocused
)

// ControlOwned are the bits whose source of truth is the list control.
const ControlOwned = StateSelected | StateFocused

// Has reports whether all bits of f are set.
func (s StateFlags) Has(f StateFlags) bool { return s&f == f }

// Apply returns s with the bits in mask replaced by the bits of value.
func (s StateFlags) Apply(mask, value StateFlags) StateFlags {
	return s&^mask | value&mask
}

// Ghosted reports whether the item is drawn at reduced opacity.
func (s StateFlags) Ghosted() bool {
	return s&(StateCut|StateHidden) != 0
}

// Handle is an opaque bitmap handle issued by the thumbnail cache. Zero means none.
type Handle uint64

// ImageState tracks icon resolution for an entry.
type ImageState int

const (
	ImageUnresolved ImageState = iota
	ImagePending
	ImageReady
	ImageFailed
)

// Overlay badges drawn over an item's icon.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayLink
	OverlayCloud
	OverlayLocked
)

func (o Overlay) String() string {
	switch o {
	case OverlayLink:
		return "link"
	case OverlayCloud:
		return "cloud"
	case OverlayLocked:
		return "locked"
	}
	return "none"
}

// Entry is one item of the current folder.
type Entry struct {
	ID      Identity  `json:"id"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime"`
	IsDir   bool      `json:"is_dir"`

	State   StateFlags `json:"state"`
	Overlay Overlay    `json:"overlay,omitempty"`

	Image      Handle     `json:"-"`
	ImageState ImageState `json:"-"`
}

// Ext returns the lower-case extension without the dot ("" for folders).
func (e *Entry) Ext() string {
	if e.IsDir {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(e.Name)), ".")
}

// Kind returns the type column text.
func (e *Entry) Kind() string {
	if e.IsDir {
		return "folder"
	}
	if ext := e.Ext(); ext != "" {
		return ext
	}
	return "file"
}

// Clone returns a copy of e.
func (e *Entry) Clone() *Entry {
	c := *e
	return &c
}

// Properties returns the entry as a canonical property map, keyed by the
// short names used by condition evaluation and the search index.
func (e *Entry) Properties() map[string]any {
	return map[string]any{
		"name":       e.Name,
		"filename":   e.Name,
		"size":       e.Size,
		"modified":   e.ModTime,
		"type":       e.Kind(),
		"attributes": int64(e.State &^ ControlOwned),
	}
}
