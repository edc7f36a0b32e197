package objectstore

import (
	"context"
	"fmt"
	"strings"
)

const (
	BackendLocal  = "local"
	BackendGridFS = "gridfs"
	BackendS3     = "s3"
)

// Config selects and configures a backend.
type Config struct {
	Backend       string
	Bucket        string
	LocalRoot     string
	MongoURI      string
	MongoDatabase string
	S3            S3Options
}

// Open constructs the configured backend. The caller owns the returned store
// and must Close it.
func Open(ctx context.Context, cfg Config) (Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		bucket = DefaultBucket
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendLocal:
		return NewLocalStore(cfg.LocalRoot, bucket)
	case BackendGridFS:
		return NewGridFSStore(ctx, cfg.MongoURI, cfg.MongoDatabase, bucket)
	case BackendS3:
		opts := cfg.S3
		if opts.Bucket == "" {
			opts.Bucket = bucket
		}
		return NewS3Store(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown object store backend %q", cfg.Backend)
	}
}
