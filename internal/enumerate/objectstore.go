package enumerate

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/metrics"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/storage"
)

// ObjectStore enumerates folders of a listing backend such as S3, where
// folders are key prefixes. It has no change notifications; Poll diffs
// successive listings instead.
type ObjectStore struct {
	lister storage.Lister
	log    *zap.Logger
}

// NewObjectStore creates a provider over lister.
func NewObjectStore(lister storage.Lister) *ObjectStore {
	return &ObjectStore{lister: lister, log: logging.Named("enumerate")}
}

// Enumerate implements Provider.
func (o *ObjectStore) Enumerate(ctx context.Context, folder string, emit func(models.Event)) error {
	entries, err := o.list(ctx, folder)
	if err != nil {
		return err
	}
	emit(models.Event{Kind: models.EventReset, Folder: folder, Entries: entries})
	emit(models.Event{Kind: models.EventDone, Folder: folder})
	return nil
}

func (o *ObjectStore) list(ctx context.Context, folder string) ([]*models.Entry, error) {
	objs, err := o.lister.List(ctx, prefix(folder))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}
	entries := make([]*models.Entry, 0, len(objs))
	for _, obj := range objs {
		var state models.StateFlags
		if strings.HasPrefix(obj.Name, ".") {
			state = models.StateHidden
		}
		entries = append(entries, &models.Entry{
			ID:      models.Identity(obj.Key),
			Name:    obj.Name,
			Size:    obj.Size,
			ModTime: obj.ModTime,
			IsDir:   obj.IsDir,
			State:   state,
			Overlay: models.OverlayCloud,
		})
	}
	return entries, nil
}

// Poll lists folder every interval and emits the differences until ctx is
// done. Listing errors are logged and retried on the next tick.
func (o *ObjectStore) Poll(ctx context.Context, folder string, interval time.Duration, emit func(models.Event)) error {
	prev, err := o.list(ctx, folder)
	if err != nil {
		return err
	}

	log := sessionLogger(ctx, o.log)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			next, err := o.list(ctx, folder)
			if err != nil {
				log.Warn("poll failed", zap.String("folder", folder), zap.Error(err))
				continue
			}
			for _, ev := range Diff(prev, next) {
				ev.Folder = folder
				metrics.RecordWatchEvent(ev.Kind.String())
				emit(ev)
			}
			prev = next
		}
	}
}

// Watch implements Watcher by polling every ten seconds.
func (o *ObjectStore) Watch(ctx context.Context, folder string, emit func(models.Event)) error {
	return o.Poll(ctx, folder, 10*time.Second, emit)
}

// prefix turns a folder path into a listing prefix: no leading slash, one
// trailing slash, empty for the root.
func prefix(folder string) string {
	p := strings.Trim(path.Clean("/"+folder), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}
