package enumerate

import (
	"context"
	"fmt"

	"github.com/fruitsalade/folderview/internal/condition"
	"github.com/fruitsalade/folderview/internal/models"
)

// Index answers condition queries over previously indexed folders.
type Index interface {
	Search(ctx context.Context, folder string, query *condition.Node, limit int) ([]*models.Entry, error)
}

// Search presents the results of a query as a virtual folder. The folder
// passed to Enumerate scopes the search; "" searches everything.
type Search struct {
	index Index
	query *condition.Node
	limit int
}

// NewSearch creates a search provider. limit <= 0 means no limit.
func NewSearch(index Index, query *condition.Node, limit int) *Search {
	return &Search{index: index, query: query, limit: limit}
}

// Enumerate implements Provider.
func (s *Search) Enumerate(ctx context.Context, folder string, emit func(models.Event)) error {
	entries, err := s.index.Search(ctx, folder, s.query, s.limit)
	if err != nil {
		return fmt.Errorf("search %s: %w", s.query, err)
	}
	emit(models.Event{Kind: models.EventReset, Folder: folder, Entries: entries})
	emit(models.Event{Kind: models.EventDone, Folder: folder})
	return nil
}
