package blob

import (
	"context"
	"fmt"

	"tcrkp/internal/infra/blob/fs"
	memorystore "tcrkp/internal/infra/blob/memory"
	infraS3 "tcrkp/internal/infra/blob/s3"
)

// S3Config re-exports the infra S3 configuration type.
type S3Config = infraS3.Config

// Config selects and configures a backend. The config package fills it from
// YAML and the TCRKP_BLOB_* environment variables.
type Config struct {
	Driver Driver   `yaml:"driver"`
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// Open constructs the store named by cfg.Driver (default fs).
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewFilesystem constructs a filesystem-backed blob.Store rooted at root.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}

// NewMemory returns an in-memory blob.Store.
func NewMemory() Store { return memorystore.New() }

// NewS3 constructs an S3-backed blob.Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}

// NewMockS3ForTests exposes the in-memory S3 mock for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }

// LocalPath returns the directory backing prefix when s is a filesystem
// store, so that external commands can run inside a sample directory.
func LocalPath(s Store, prefix string) (string, bool) {
	fsStore, ok := s.(*fs.Store)
	if !ok {
		return "", false
	}
	p, err := fsStore.Path(prefix)
	if err != nil {
		return "", false
	}
	return p, true
}
