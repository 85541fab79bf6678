package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/reckon-app/apiserver/config"
)

const contentTypeJSON = "application/json"

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
	Ping(ctx context.Context) error
	Close() error
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// Open connects the backend named in cfg and makes sure its bucket exists.
// It returns nil when object storage is disabled.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var backend ObjectStorage
	switch cfg.Backend {
	case "", config.BackendNone:
		return nil, nil
	case config.BackendMinio:
		client, err := newMinioBackend(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("connect minio: %w", err)
		}
		backend = client
	case config.BackendGCS:
		client, err := newGCSBackend(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("connect gcs: %w", err)
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	s := NewStorage(backend)
	if err := s.EnsureBucket(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return s, nil
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// PutJSON encodes value and uploads it under key.
func (s *Storage) PutJSON(ctx context.Context, key string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentTypeJSON)
}

// Get opens a reader for an object in the configured bucket.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// Ping checks the configured bucket is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close releases the backend client.
func (s *Storage) Close() error {
	return s.backend.Close()
}
