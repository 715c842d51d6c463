// Package storage defines the read-side Backend interface through which
// folder contents and file bytes are fetched (local filesystem or S3).
package storage

import (
	"context"
	"io"
	"time"
)

// Backend is the interface for content storage backends.
type Backend interface {
	// GetObject retrieves an object by key with optional range support.
	// If offset=0 and length=0, the entire object is returned.
	GetObject(ctx context.Context, key string, offset, length int64) (io.ReadCloser, int64, error)

	// ObjectExists checks if an object exists at the given key.
	ObjectExists(ctx context.Context, key string) (bool, error)

	// Type returns the backend type identifier ("s3", "local").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}

// Object is one child of a listed prefix.
type Object struct {
	Key     string // full key, without a trailing slash for folders
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Lister lists the immediate children of a folder key.
type Lister interface {
	List(ctx context.Context, prefix string) ([]Object, error)
}

// ListingBackend is a Backend that can also list folders.
type ListingBackend interface {
	Backend
	Lister
}
