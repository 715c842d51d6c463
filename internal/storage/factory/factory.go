// Package factory builds the configured storage backend.
package factory

import (
	"context"
	"fmt"

	"github.com/fruitsalade/folderview/internal/config"
	"github.com/fruitsalade/folderview/internal/storage"
	"github.com/fruitsalade/folderview/internal/storage/local"
	s3backend "github.com/fruitsalade/folderview/internal/storage/s3"
)

// New creates the backend named by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (storage.ListingBackend, error) {
	switch cfg.StorageBackend {
	case "s3":
		return s3backend.NewBackend(ctx, s3backend.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
		})
	case "local", "":
		return local.New(local.Config{RootPath: cfg.LocalRoot})
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.StorageBackend)
	}
}
