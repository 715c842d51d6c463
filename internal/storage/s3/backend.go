// Package s3 provides an S3/MinIO storage backend for browsing buckets.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/metrics"
	"github.com/fruitsalade/folderview/internal/retry"
	"github.com/fruitsalade/folderview/internal/storage"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// S3Backend implements storage.Backend and storage.Lister using S3/MinIO.
type S3Backend struct {
	client *s3.Client
	bucket string
}

// NewBackend creates a new S3 backend.
func NewBackend(ctx context.Context, cfg Config) (*S3Backend, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	backend := &S3Backend{
		client: client,
		bucket: cfg.Bucket,
	}

	if err := backend.checkBucket(ctx); err != nil {
		logging.Warn("bucket check failed", zap.String("bucket", cfg.Bucket), zap.Error(err))
	}
	return backend, nil
}

func (b *S3Backend) checkBucket(ctx context.Context) error {
	start := time.Now()
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	metrics.RecordStorageOperation("s3", "head_bucket", time.Since(start), err == nil)
	return err
}

// GetObject retrieves an object from S3 with range support. Failures other
// than a missing key are marked retryable.
func (b *S3Backend) GetObject(ctx context.Context, key string, offset, length int64) (io.ReadCloser, int64, error) {
	start := time.Now()

	input := &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(strings.TrimPrefix(key, "/")),
	}
	if offset > 0 || length > 0 {
		var rangeStr string
		if length > 0 {
			rangeStr = fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
		} else {
			rangeStr = fmt.Sprintf("bytes=%d-", offset)
		}
		input.Range = aws.String(rangeStr)
	}

	result, err := b.client.GetObject(ctx, input)
	if err != nil {
		metrics.RecordStorageOperation("s3", "get_object", time.Since(start), false)
		err = fmt.Errorf("get object %s: %w", key, err)
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, 0, err
		}
		return nil, 0, retry.Retryable(err)
	}
	metrics.RecordStorageOperation("s3", "get_object", time.Since(start), true)

	totalSize := int64(0)
	if result.ContentLength != nil {
		totalSize = *result.ContentLength
	}
	return result.Body, totalSize, nil
}

// ObjectExists checks if an object exists in S3.
func (b *S3Backend) ObjectExists(ctx context.Context, key string) (bool, error) {
	start := time.Now()

	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(strings.TrimPrefix(key, "/")),
	})
	if err != nil {
		metrics.RecordStorageOperation("s3", "head_object", time.Since(start), false)
		return false, nil
	}
	metrics.RecordStorageOperation("s3", "head_object", time.Since(start), true)
	return true, nil
}

// List returns the objects and common prefixes directly under prefix.
func (b *S3Backend) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	start := time.Now()

	p := strings.Trim(prefix, "/")
	if p != "" {
		p += "/"
	}

	var objs []storage.Object
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(p),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			metrics.RecordStorageOperation("s3", "list_objects", time.Since(start), false)
			return nil, retry.Retryable(fmt.Errorf("list %s: %w", prefix, err))
		}
		for _, cp := range page.CommonPrefixes {
			key := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
			objs = append(objs, storage.Object{Key: key, Name: path.Base(key), IsDir: true})
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			if key == p {
				// Folder marker object.
				continue
			}
			objs = append(objs, storage.Object{
				Key:     key,
				Name:    path.Base(key),
				Size:    aws.ToInt64(o.Size),
				ModTime: aws.ToTime(o.LastModified),
			})
		}
	}

	metrics.RecordStorageOperation("s3", "list_objects", time.Since(start), true)
	logging.Debug("S3 list", zap.String("prefix", p), zap.Int("count", len(objs)))
	return objs, nil
}

// Type returns "s3".
func (b *S3Backend) Type() string { return "s3" }

// Close is a no-op for S3 backends.
func (b *S3Backend) Close() error { return nil }
