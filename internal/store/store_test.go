package store

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/fruitsalade/folderview/internal/models"
)

func entry(name string) *models.Entry {
	return &models.Entry{ID: models.Identity("/" + name), Name: name}
}

func ids(s *Store) []string {
	out := []string{}
	for _, id := range s.Identities() {
		out = append(out, string(id))
	}
	return out
}

func TestInsertRemoveUnsorted(t *testing.T) {
	s := New()
	for _, n := range []string{"a", "b", "c"} {
		if _, ok := s.Insert(entry(n)); !ok {
			t.Fatalf("Insert(%s) failed", n)
		}
	}

	i, ok := s.Remove("/b")
	if !ok || i != 1 {
		t.Fatalf("Remove(/b) = %d, %v; want 1, true", i, ok)
	}
	if got, want := ids(s), []string{"/a", "/c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if i, _ := s.IndexOf("/c"); i != 1 {
		t.Errorf("IndexOf(/c) = %d, want 1", i)
	}
	if err := s.Check(); err != nil {
		t.Fatal(err)
	}
}

func TestInsertDuplicate(t *testing.T) {
	s := New()
	s.Insert(entry("a"))
	if _, ok := s.Insert(entry("a")); ok {
		t.Error("duplicate insert should fail")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestSortedInsertPosition(t *testing.T) {
	s := New()
	s.Sort(ColumnName, true)
	for _, n := range []string{"file10", "file2", "file1"} {
		s.Insert(entry(n))
	}
	dir := &models.Entry{ID: "/zdir", Name: "zdir", IsDir: true}
	if i, _ := s.Insert(dir); i != 0 {
		t.Errorf("folder inserted at %d, want 0", i)
	}
	want := []string{"/zdir", "/file1", "/file2", "/file10"}
	if got := ids(s); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}

	s.Sort(ColumnName, false)
	want = []string{"/file10", "/file2", "/file1", "/zdir"}
	if got := ids(s); !reflect.DeepEqual(got, want) {
		t.Errorf("descending order = %v, want %v", got, want)
	}
	if err := s.Check(); err != nil {
		t.Fatal(err)
	}
}

func TestSortBySize(t *testing.T) {
	s := New()
	for i, n := range []string{"big", "small", "mid"} {
		e := entry(n)
		e.Size = []int64{300, 10, 200}[i]
		s.Insert(e)
	}
	s.Sort(ColumnSize, true)
	want := []string{"/small", "/mid", "/big"}
	if got := ids(s); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestUpdatePreservesStateAndMoves(t *testing.T) {
	s := New()
	s.Sort(ColumnSize, true)
	a, b := entry("a"), entry("b")
	a.Size, b.Size = 1, 2
	s.Insert(a)
	s.Insert(b)
	a.State = models.StateSelected | models.StateCut
	a.Image, a.ImageState = 7, models.ImageReady

	upd := entry("a")
	upd.Size = 3
	upd.State = models.StateHidden
	oldI, newI, ok := s.Update(upd)
	if !ok || oldI != 0 || newI != 1 {
		t.Fatalf("Update = %d, %d, %v; want 0, 1, true", oldI, newI, ok)
	}

	got, _ := s.Get("/a")
	want := models.StateSelected | models.StateCut | models.StateHidden
	if got.State != want {
		t.Errorf("state = %b, want %b", got.State, want)
	}
	if got.Image != 0 || got.ImageState != models.ImageUnresolved {
		t.Errorf("image should be reset after content change, got %d/%d", got.Image, got.ImageState)
	}
	if err := s.Check(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateKeepsImageWhenUnchanged(t *testing.T) {
	s := New()
	now := time.Now()
	a := entry("a")
	a.ModTime = now
	s.Insert(a)
	a.Image, a.ImageState = 9, models.ImageReady

	upd := entry("a")
	upd.ModTime = now
	s.Update(upd)
	got, _ := s.Get("/a")
	if got.Image != 9 {
		t.Errorf("image = %d, want 9", got.Image)
	}
}

func TestFilter(t *testing.T) {
	s := New()
	s.SetFilter(func(e *models.Entry) bool { return e.Size > 0 })
	empty := entry("empty")
	if _, ok := s.Insert(empty); ok {
		t.Error("filtered entry inserted")
	}
	full := entry("full")
	full.Size = 1
	s.Insert(full)

	drop := entry("full")
	_, newI, ok := s.Update(drop)
	if !ok || newI != -1 {
		t.Errorf("Update to filtered-out = %d, %v; want -1, true", newI, ok)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestFindWraps(t *testing.T) {
	s := New()
	for _, n := range []string{"alpha", "beta", "apple"} {
		s.Insert(entry(n))
	}
	startsWithA := func(e *models.Entry) bool { return e.Name[0] == 'a' }
	if i := s.Find(startsWithA, 1); i != 2 {
		t.Errorf("Find from 1 = %d, want 2", i)
	}
	if i := s.Find(startsWithA, 3); i != 0 {
		t.Errorf("Find past end = %d, want 0", i)
	}
}

// Random insert/remove/update sequences keep the identity map equal to the
// current order.
func TestMappingInvariantRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, sorted := range []bool{false, true} {
		s := New()
		if sorted {
			s.Sort(ColumnSize, true)
		}
		live := map[string]bool{}
		for step := 0; step < 2000; step++ {
			name := fmt.Sprintf("f%d", rng.Intn(200))
			switch rng.Intn(3) {
			case 0:
				e := entry(name)
				e.Size = int64(rng.Intn(50))
				if _, ok := s.Insert(e); ok {
					live[name] = true
				}
			case 1:
				if _, ok := s.Remove(models.Identity("/" + name)); ok {
					delete(live, name)
				}
			case 2:
				e := entry(name)
				e.Size = int64(rng.Intn(50))
				s.Update(e)
			}
			if err := s.Check(); err != nil {
				t.Fatalf("sorted=%v step %d: %v", sorted, step, err)
			}
		}
		if s.Len() != len(live) {
			t.Errorf("sorted=%v: Len = %d, want %d", sorted, s.Len(), len(live))
		}
	}
}

func TestNaturalLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"file2", "file10", true},
		{"file10", "file2", false},
		{"file02", "file2", false},
		{"file2", "file02", true},
		{"ab", "abc", true},
		{"abc", "ab", false},
		{"a", "b", true},
	}
	for _, tt := range tests {
		if got := naturalLess(tt.a, tt.b); got != tt.want {
			t.Errorf("naturalLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestColumnText(t *testing.T) {
	e := &models.Entry{Name: "a.txt", Size: 2048}
	if got := ColumnSize.Text(e); got != "2.0 KiB" {
		t.Errorf("size text = %q, want 2.0 KiB", got)
	}
	if got := ColumnType.Text(e); got != "txt" {
		t.Errorf("type text = %q, want txt", got)
	}
	if c, ok := ParseColumn("Modified"); !ok || c != ColumnModified {
		t.Errorf("ParseColumn(Modified) = %v, %v", c, ok)
	}
}
