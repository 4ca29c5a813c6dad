// Package storage keeps package images in object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/tech-e/apiserver/config"
)

const (
	BackendNone   = "none"
	BackendMinio  = "minio"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

var (
	// ErrDisabled is returned by Open when no backend is configured.
	ErrDisabled = errors.New("storage: no backend configured")
	// ErrObjectNotFound is returned by Get for a missing key.
	ErrObjectNotFound = errors.New("storage: object not found")
)

// Object is an open object stream. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
}

// Open connects to the backend selected by cfg.Backend and makes sure its
// bucket exists.
func Open(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return nil, ErrDisabled
	case BackendMinio:
		backend, err = NewMinioStorage(cfg.Minio)
	case BackendGCS:
		backend, err = NewGCSStorage(ctx, cfg.GCS)
	case BackendMemory:
		backend = NewMemoryStorage()
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return backend, nil
}

// PackageImageKey returns the object key for a package image. Only the
// extension of filename is kept.
func PackageImageKey(packageID, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	return "packages/" + packageID + "/image" + ext
}
