// Package config loads configuration from an optional YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate for unusable settings.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all folderview settings.
type Config struct {
	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Diagnostics listener ("" disables it)
	MetricsAddr string `yaml:"metrics_addr"`

	// Thumbnail cache
	CacheCapacity    int           `yaml:"cache_capacity"`
	CacheNegativeTTL time.Duration `yaml:"cache_negative_ttl"`
	ThumbWorkers     int           `yaml:"thumb_workers"`
	ThumbQueueSize   int           `yaml:"thumb_queue_size"`
	ThumbMinSize     int           `yaml:"thumb_min_size"` // sizes below this render icons

	// Enumeration
	Watch        bool          `yaml:"watch"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// Storage backend ("local" or "s3", default: "local")
	StorageBackend string `yaml:"storage_backend"`
	LocalRoot      string `yaml:"local_root"`

	// S3 storage
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3Region    string `yaml:"s3_region"`

	// Search index (optional)
	DatabaseURL string `yaml:"database_url"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "console",
		CacheCapacity:    512,
		CacheNegativeTTL: 5 * time.Second,
		ThumbWorkers:     4,
		ThumbQueueSize:   1000,
		ThumbMinSize:     48,
		PollInterval:     10 * time.Second,
		StorageBackend:   "local",
		LocalRoot:        "/",
		S3Region:         "us-east-1",
	}
}

// Load reads configuration: defaults, then the YAML file named by path (or
// FOLDERVIEW_CONFIG when path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("FOLDERVIEW_CONFIG")
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
	c.MetricsAddr = envOr("METRICS_ADDR", c.MetricsAddr)
	c.CacheCapacity = envInt("CACHE_CAPACITY", c.CacheCapacity)
	c.CacheNegativeTTL = envDuration("CACHE_NEGATIVE_TTL", c.CacheNegativeTTL)
	c.ThumbWorkers = envInt("THUMB_WORKERS", c.ThumbWorkers)
	c.ThumbQueueSize = envInt("THUMB_QUEUE_SIZE", c.ThumbQueueSize)
	c.ThumbMinSize = envInt("THUMB_MIN_SIZE", c.ThumbMinSize)
	c.Watch = envBool("WATCH", c.Watch)
	c.PollInterval = envDuration("POLL_INTERVAL", c.PollInterval)
	c.StorageBackend = envOr("STORAGE_BACKEND", c.StorageBackend)
	c.LocalRoot = envOr("LOCAL_ROOT", c.LocalRoot)
	c.S3Endpoint = envOr("S3_ENDPOINT", c.S3Endpoint)
	c.S3Bucket = envOr("S3_BUCKET", c.S3Bucket)
	c.S3AccessKey = envOr("S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = envOr("S3_SECRET_KEY", c.S3SecretKey)
	c.S3Region = envOr("S3_REGION", c.S3Region)
	c.DatabaseURL = envOr("DATABASE_URL", c.DatabaseURL)
}

// Validate rejects settings the core cannot run with.
func (c *Config) Validate() error {
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("%w: cache capacity must be positive, got %d", ErrInvalid, c.CacheCapacity)
	}
	if c.ThumbWorkers <= 0 {
		return fmt.Errorf("%w: thumbnail workers must be positive, got %d", ErrInvalid, c.ThumbWorkers)
	}
	if c.ThumbQueueSize <= 0 {
		return fmt.Errorf("%w: thumbnail queue size must be positive, got %d", ErrInvalid, c.ThumbQueueSize)
	}
	switch c.StorageBackend {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("%w: S3_BUCKET is required for the s3 backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalid, c.StorageBackend)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
