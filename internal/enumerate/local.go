package enumerate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/metrics"
	"github.com/fruitsalade/folderview/internal/models"
)

// DefaultBatchSize is how many directory entries are read per batch.
const DefaultBatchSize = 256

// Local enumerates and watches directories on the local filesystem.
type Local struct {
	BatchSize  int
	SkipHidden bool

	log *zap.Logger
}

// NewLocal creates a local provider.
func NewLocal() *Local {
	return &Local{BatchSize: DefaultBatchSize, log: logging.Named("enumerate")}
}

// Enumerate implements Provider.
func (l *Local) Enumerate(ctx context.Context, folder string, emit func(models.Event)) error {
	f, err := os.Open(folder)
	if err != nil {
		return fmt.Errorf("open folder: %w", err)
	}
	defer f.Close()

	batch := l.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	first := true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		dirents, rerr := f.ReadDir(batch)
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return fmt.Errorf("read folder %s: %w", folder, rerr)
		}

		entries := make([]*models.Entry, 0, len(dirents))
		for _, de := range dirents {
			e, err := l.Stat(filepath.Join(folder, de.Name()))
			if err != nil {
				l.log.Debug("skipping entry", zap.String("name", de.Name()), zap.Error(err))
				continue
			}
			if l.SkipHidden && e.State.Has(models.StateHidden) {
				continue
			}
			entries = append(entries, e)
		}

		if first {
			emit(models.Event{Kind: models.EventReset, Folder: folder, Entries: entries})
			first = false
		} else {
			for _, e := range entries {
				emit(models.Event{Kind: models.EventAdded, Folder: folder, Entry: e})
			}
		}
		if rerr != nil {
			break
		}
	}
	emit(models.Event{Kind: models.EventDone, Folder: folder})
	return nil
}

// Stat builds the entry for path.
func (l *Local) Stat(path string) (*models.Entry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	state, overlay := attributes(path, info)
	if info.Mode()&fs.ModeSymlink != 0 {
		overlay = models.OverlayLink
		if target, err := os.Stat(path); err == nil {
			info = target
		}
	}
	return &models.Entry{
		ID:      models.Identity(path),
		Name:    filepath.Base(path),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
		State:   state,
		Overlay: overlay,
	}, nil
}

// Watch implements Watcher with fsnotify. Creates become Added, removes and
// renames Removed, writes and attribute changes Updated.
func (l *Local) Watch(ctx context.Context, folder string, emit func(models.Event)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(folder); err != nil {
		return fmt.Errorf("watch %s: %w", folder, err)
	}
	log := sessionLogger(ctx, l.log)
	log.Debug("watching", zap.String("folder", folder))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if out, ok := l.translate(folder, ev); ok {
				metrics.RecordWatchEvent(out.Kind.String())
				emit(out)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.String("folder", folder), zap.Error(err))
		}
	}
}

func (l *Local) translate(folder string, ev fsnotify.Event) (models.Event, bool) {
	id := models.Identity(ev.Name)
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return models.Event{Kind: models.EventRemoved, Folder: folder, ID: id}, true
	case ev.Has(fsnotify.Create):
		e, err := l.Stat(ev.Name)
		if err != nil {
			return models.Event{}, false
		}
		return models.Event{Kind: models.EventAdded, Folder: folder, Entry: e}, true
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Chmod):
		e, err := l.Stat(ev.Name)
		if err != nil {
			return models.Event{}, false
		}
		return models.Event{Kind: models.EventUpdated, Folder: folder, Entry: e}, true
	}
	return models.Event{}, false
}
