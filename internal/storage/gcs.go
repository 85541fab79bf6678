package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/reckon-app/apiserver/config"
	"google.golang.org/api/option"
)

// gcsBackend stores reports in a Google Cloud Storage bucket.
type gcsBackend struct {
	client    *storage.Client
	bucket    string
	projectID string
}

func newGCSBackend(ctx context.Context, cfg config.GCSConfig) (*gcsBackend, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}

	var opts []option.ClientOption
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &gcsBackend{client: client, bucket: cfg.Bucket, projectID: cfg.ProjectID}, nil
}

// EnsureBucket creates the bucket when missing. Creation needs a project id.
func (g *gcsBackend) EnsureBucket(ctx context.Context) error {
	_, err := g.client.Bucket(g.bucket).Attrs(ctx)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, storage.ErrBucketNotExist):
		return err
	case strings.TrimSpace(g.projectID) == "":
		return fmt.Errorf("bucket %s does not exist and GCS_PROJECT_ID is not set", g.bucket)
	}
	return g.client.Bucket(g.bucket).Create(ctx, g.projectID, nil)
}

// Put uploads r in a single request. Reports are small, so resumable
// chunking is turned off.
func (g *gcsBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.ChunkSize = 0

	if _, err := io.CopyN(w, r, size); err != nil {
		_ = w.Close()
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (g *gcsBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return rc, err
}

func (g *gcsBackend) Delete(ctx context.Context, key string) error {
	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (g *gcsBackend) Bucket() string {
	return g.bucket
}

func (g *gcsBackend) Ping(ctx context.Context) error {
	_, err := g.client.Bucket(g.bucket).Attrs(ctx)
	return err
}

func (g *gcsBackend) Close() error {
	return g.client.Close()
}
