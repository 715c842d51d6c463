// Package store holds the ordered contents of the current folder and the
// identity-to-index mapping that mirrors the list control's index space.
package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fruitsalade/folderview/internal/models"
)

// ErrNotFound is returned for identities that are not in the store.
var ErrNotFound = errors.New("entry not found")

// preserved are the state bits an enumeration update must not overwrite:
// selection and focus belong to the control, cut marks to the application.
const preserved = models.ControlOwned | models.StateCut

// Store is the ordered item collection. It is not safe for concurrent use;
// the owning list session mutates it from the control thread only.
type Store struct {
	entries []*models.Entry
	index   map[models.Identity]int

	sorted    bool
	column    Column
	ascending bool

	filter func(*models.Entry) bool
}

// New creates an empty store in enumeration order.
func New() *Store {
	return &Store{index: make(map[models.Identity]int)}
}

// Len returns the number of entries.
func (s *Store) Len() int { return len(s.entries) }

// At returns the entry at index i.
func (s *Store) At(i int) (*models.Entry, bool) {
	if i < 0 || i >= len(s.entries) {
		return nil, false
	}
	return s.entries[i], true
}

// Get returns the entry with the given identity.
func (s *Store) Get(id models.Identity) (*models.Entry, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.entries[i], true
}

// IndexOf returns the current position of id.
func (s *Store) IndexOf(id models.Identity) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// SortOrder returns the active sort column and direction.
func (s *Store) SortOrder() (col Column, ascending, active bool) {
	return s.column, s.ascending, s.sorted
}

// SetFilter installs a predicate; entries failing it are not stored.
// It applies to subsequent inserts and updates only.
func (s *Store) SetFilter(f func(*models.Entry) bool) {
	s.filter = f
}

func (s *Store) accepts(e *models.Entry) bool {
	return s.filter == nil || s.filter(e)
}

// Insert adds e at its sorted position (or appends when unsorted) and
// returns the index. It returns false if e is a duplicate or filtered out.
func (s *Store) Insert(e *models.Entry) (int, bool) {
	if _, dup := s.index[e.ID]; dup || !s.accepts(e) {
		return -1, false
	}

	i := len(s.entries)
	if s.sorted {
		i = s.position(e)
	}

	s.entries = append(s.entries, nil)
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = e
	s.reindex(i)
	return i, true
}

// Remove deletes id and returns the index it occupied.
func (s *Store) Remove(id models.Identity) (int, bool) {
	i, ok := s.index[id]
	if !ok {
		return -1, false
	}
	copy(s.entries[i:], s.entries[i+1:])
	s.entries[len(s.entries)-1] = nil
	s.entries = s.entries[:len(s.entries)-1]
	delete(s.index, id)
	s.reindex(i)
	return i, true
}

// Update replaces the stored entry with the same identity, keeping
// control-owned and cut state bits. It reports the old and new positions;
// newIndex is -1 when the updated entry no longer passes the filter.
// The image handle is kept only if size and modification time are unchanged.
func (s *Store) Update(e *models.Entry) (oldIndex, newIndex int, ok bool) {
	oldIndex, ok = s.index[e.ID]
	if !ok {
		return -1, -1, false
	}
	prev := s.entries[oldIndex]

	next := e.Clone()
	next.State = prev.State&preserved | next.State&^preserved
	if prev.Size == next.Size && prev.ModTime.Equal(next.ModTime) {
		next.Image, next.ImageState = prev.Image, prev.ImageState
	} else {
		next.Image, next.ImageState = 0, models.ImageUnresolved
	}

	if !s.accepts(next) {
		s.Remove(e.ID)
		return oldIndex, -1, true
	}

	if !s.sorted {
		s.entries[oldIndex] = next
		return oldIndex, oldIndex, true
	}

	s.Remove(e.ID)
	newIndex, _ = s.Insert(next)
	return oldIndex, newIndex, true
}

// Reset replaces the contents with entries, applying the filter and the
// active sort.
func (s *Store) Reset(entries []*models.Entry) {
	s.entries = s.entries[:0]
	s.index = make(map[models.Identity]int, len(entries))
	for _, e := range entries {
		if _, dup := s.index[e.ID]; dup || !s.accepts(e) {
			continue
		}
		s.index[e.ID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	if s.sorted {
		s.sortEntries()
	}
}

// Sort orders the entries by column and keeps that order for later inserts.
func (s *Store) Sort(col Column, ascending bool) {
	s.sorted = true
	s.column = col
	s.ascending = ascending
	s.sortEntries()
}

func (s *Store) sortEntries() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.less(s.entries[i], s.entries[j])
	})
	s.reindex(0)
}

func (s *Store) less(a, b *models.Entry) bool {
	c := compare(s.column, a, b)
	if !s.ascending {
		c = -c
	}
	return c < 0
}

// position returns the sorted insertion index for e.
func (s *Store) position(e *models.Entry) int {
	return sort.Search(len(s.entries), func(i int) bool {
		return s.less(e, s.entries[i])
	})
}

func (s *Store) reindex(from int) {
	for i := from; i < len(s.entries); i++ {
		s.index[s.entries[i].ID] = i
	}
}

// Identities returns the identities in index order.
func (s *Store) Identities() []models.Identity {
	ids := make([]models.Identity, len(s.entries))
	for i, e := range s.entries {
		ids[i] = e.ID
	}
	return ids
}

// Find returns the first index at or after start (wrapping around) whose
// entry satisfies match, or -1.
func (s *Store) Find(match func(*models.Entry) bool, start int) int {
	n := len(s.entries)
	if n == 0 {
		return -1
	}
	if start < 0 || start >= n {
		start = 0
	}
	for k := 0; k < n; k++ {
		i := (start + k) % n
		if match(s.entries[i]) {
			return i
		}
	}
	return -1
}

// Check verifies that the identity map is a bijection onto the current order.
func (s *Store) Check() error {
	if len(s.index) != len(s.entries) {
		return fmt.Errorf("index has %d identities for %d entries", len(s.index), len(s.entries))
	}
	for i, e := range s.entries {
		if j, ok := s.index[e.ID]; !ok || j != i {
			return fmt.Errorf("identity %q at %d mapped to %d (present=%v)", e.ID, i, j, ok)
		}
	}
	return nil
}
