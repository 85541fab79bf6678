package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/reckon-app/apiserver/config"
)

// minioBackend stores reports in a MinIO (or any S3-compatible) bucket.
type minioBackend struct {
	client *minio.Client
	bucket string
}

func newMinioBackend(cfg config.MinioConfig) (*minioBackend, error) {
	var missing []error
	if strings.TrimSpace(cfg.Endpoint) == "" {
		missing = append(missing, errors.New("MINIO_ENDPOINT is required"))
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		missing = append(missing, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required"))
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		missing = append(missing, errors.New("MINIO_BUCKET is required"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &minioBackend{client: client, bucket: cfg.Bucket}, nil
}

func (m *minioBackend) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	if minio.ToErrorResponse(err).Code == "BucketAlreadyOwnedByYou" {
		return nil
	}
	return err
}

func (m *minioBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get stats the object first so a missing key surfaces as ErrObjectNotFound
// here rather than on the first Read.
func (m *minioBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		return nil, m.mapErr(key, err)
	}
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.mapErr(key, err)
	}
	return obj, nil
}

func (m *minioBackend) Delete(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

func (m *minioBackend) Bucket() string {
	return m.bucket
}

func (m *minioBackend) Ping(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", m.bucket)
	}
	return nil
}

func (m *minioBackend) Close() error {
	return nil
}

func (m *minioBackend) mapErr(key string, err error) error {
	if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return fmt.Errorf("get %s: %w", key, err)
}
