package models

// EventKind identifies an enumeration event.
type EventKind int

const (
	EventAdded EventKind = iota
	EventRemoved
	EventUpdated
	EventReset // navigation: Entries replace the folder contents
	EventDone  // initial enumeration finished
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventUpdated:
		return "updated"
	case EventReset:
		return "reset"
	case EventDone:
		return "done"
	}
	return "unknown"
}

// Event is a folder enumeration event delivered to the item store.
type Event struct {
	Kind    EventKind
	Folder  string
	Entry   *Entry   // Added, Updated
	ID      Identity // Removed
	Entries []*Entry // Reset
}

// Added builds an EventAdded.
func Added(e *Entry) Event { return Event{Kind: EventAdded, Entry: e} }

// Removed builds an EventRemoved.
func Removed(id Identity) Event { return Event{Kind: EventRemoved, ID: id} }

// Updated builds an EventUpdated.
func Updated(e *Entry) Event { return Event{Kind: EventUpdated, Entry: e} }
