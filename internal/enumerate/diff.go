package enumerate

import "github.com/fruitsalade/folderview/internal/models"

// Diff returns the events that turn the listing prev into next: removals in
// prev order, then additions and updates in next order.
func Diff(prev, next []*models.Entry) []models.Event {
	old := make(map[models.Identity]*models.Entry, len(prev))
	for _, e := range prev {
		old[e.ID] = e
	}
	seen := make(map[models.Identity]bool, len(next))
	for _, e := range next {
		seen[e.ID] = true
	}

	var events []models.Event
	for _, e := range prev {
		if !seen[e.ID] {
			events = append(events, models.Removed(e.ID))
		}
	}
	for _, e := range next {
		o, ok := old[e.ID]
		switch {
		case !ok:
			events = append(events, models.Added(e))
		case changed(o, e):
			events = append(events, models.Updated(e))
		}
	}
	return events
}

func changed(a, b *models.Entry) bool {
	return a.Name != b.Name ||
		a.Size != b.Size ||
		!a.ModTime.Equal(b.ModTime) ||
		a.IsDir != b.IsDir ||
		a.Overlay != b.Overlay ||
		a.State&^models.ControlOwned != b.State&^models.ControlOwned
}
