// Package objstore persists durable copies of uploaded tables. Two backends
// are provided: an S3 bucket for deployments and a plain directory tree for
// development and tests.
package objstore

import (
	"context"
	"fmt"
	"io"
)

// Store is the object storage service consumed by the ingest and cube
// pipeline. Objects are addressed by (directory, filename).
type Store interface {
	SaveBuffer(ctx context.Context, directory, filename string, data []byte) error
	LoadBuffer(ctx context.Context, directory, filename string) ([]byte, error)
	SaveStream(ctx context.Context, directory, filename string, r io.Reader) error
	LoadStream(ctx context.Context, directory, filename string) (io.ReadCloser, error)
	Delete(ctx context.Context, directory, filename string) error
	DeleteDirectory(ctx context.Context, directory string) error
	ListFiles(ctx context.Context, directory string) ([]string, error)
}

// Config selects and configures a backend.
type Config struct {
	// Backend is "s3" or "fs".
	Backend string
	// Bucket, Region and Endpoint configure the s3 backend. Endpoint is
	// optional and supports S3-compatible stores.
	Bucket   string
	Region   string
	Endpoint string
	// RootDir configures the fs backend.
	RootDir string
}

// New builds a Store from config.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Store(ctx, cfg)
	case "fs", "":
		return NewFSStore(cfg.RootDir)
	}
	return nil, fmt.Errorf("unknown object storage backend %q", cfg.Backend)
}
