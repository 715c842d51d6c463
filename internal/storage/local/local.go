// Package local provides a local filesystem storage backend.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fruitsalade/folderview/internal/storage"
)

// Config holds local filesystem backend settings.
type Config struct {
	RootPath string `yaml:"root_path"`
}

// LocalBackend implements storage.Backend using the local filesystem.
type LocalBackend struct {
	rootPath string
}

// New creates a new local filesystem backend.
func New(cfg Config) (*LocalBackend, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root_path is required")
	}
	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}
	return &LocalBackend{rootPath: cfg.RootPath}, nil
}

// Root returns the directory keys are resolved against.
func (b *LocalBackend) Root() string { return b.rootPath }

// FullPath maps a slash-separated key to a filesystem path under the root.
func (b *LocalBackend) FullPath(key string) string {
	clean := path.Clean("/" + strings.TrimPrefix(key, "/"))
	return filepath.Join(b.rootPath, filepath.FromSlash(clean))
}

// GetObject reads a file from the local filesystem with range support.
func (b *LocalBackend) GetObject(_ context.Context, key string, offset, length int64) (io.ReadCloser, int64, error) {
	f, err := os.Open(b.FullPath(key))
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", key, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", key, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("open %s: is a directory", key)
	}

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, 0, fmt.Errorf("seek %s: %w", key, err)
		}
	}

	if length > 0 {
		return &limitedReadCloser{
			Reader: io.LimitReader(f, length),
			Closer: f,
		}, length, nil
	}

	returnSize := info.Size() - offset
	if returnSize < 0 {
		returnSize = 0
	}
	return f, returnSize, nil
}

// ObjectExists checks if a file exists on the local filesystem.
func (b *LocalBackend) ObjectExists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(b.FullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return true, nil
}

// List returns the children of the directory at prefix, sorted by name.
func (b *LocalBackend) List(_ context.Context, prefix string) ([]storage.Object, error) {
	dir := b.FullPath(prefix)
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	base := strings.Trim(prefix, "/")
	objs := make([]storage.Object, 0, len(des))
	for _, de := range des {
		info, err := de.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		key := de.Name()
		if base != "" {
			key = base + "/" + key
		}
		o := storage.Object{
			Key:     key,
			Name:    de.Name(),
			ModTime: info.ModTime(),
			IsDir:   de.IsDir(),
		}
		if !o.IsDir {
			o.Size = info.Size()
		}
		objs = append(objs, o)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Name < objs[j].Name })
	return objs, nil
}

// Type returns "local".
func (b *LocalBackend) Type() string { return "local" }

// Close is a no-op for local backends.
func (b *LocalBackend) Close() error { return nil }

// limitedReadCloser wraps a LimitReader with a separate Closer.
type limitedReadCloser struct {
	io.Reader
	io.Closer
}
