package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fruitsalade/folderview/internal/enumerate"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/storage"
	"github.com/fruitsalade/folderview/internal/storage/factory"
)

// source is a folder on the configured backend: how to list it, watch it
// and read its file contents.
type source struct {
	folder   string
	backend  storage.ListingBackend
	provider enumerate.Provider
	watch    func(ctx context.Context, emit func(models.Event)) error
}

// openSource resolves folder against the configured storage backend. Local
// folders are made absolute, since local identities are absolute paths;
// an empty folder means the configured root.
func (a *app) openSource(ctx context.Context, folder string) (*source, error) {
	switch a.cfg.StorageBackend {
	case "s3":
		backend, err := factory.New(ctx, a.cfg)
		if err != nil {
			return nil, fmt.Errorf("open s3 backend: %w", err)
		}
		objects := enumerate.NewObjectStore(backend)
		interval := a.cfg.PollInterval
		return &source{
			folder:   folder,
			backend:  backend,
			provider: objects,
			watch: func(ctx context.Context, emit func(models.Event)) error {
				return objects.Poll(ctx, folder, interval, emit)
			},
		}, nil
	default:
		if folder == "" {
			folder = a.cfg.LocalRoot
		}
		abs, err := filepath.Abs(folder)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", folder, err)
		}
		cfg := *a.cfg
		cfg.StorageBackend = "local"
		cfg.LocalRoot = filepath.VolumeName(abs) + string(filepath.Separator)
		backend, err := factory.New(ctx, &cfg)
		if err != nil {
			return nil, fmt.Errorf("open local backend: %w", err)
		}
		files := enumerate.NewLocal()
		return &source{
			folder:   abs,
			backend:  backend,
			provider: files,
			watch: func(ctx context.Context, emit func(models.Event)) error {
				return files.Watch(ctx, abs, emit)
			},
		}, nil
	}
}

func (s *source) Close() error {
	return s.backend.Close()
}
