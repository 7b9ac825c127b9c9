// Package gcs keeps context file payloads in a Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/PabloGalante/brandbot/internal/domain"
)

type BlobStore struct {
	client *storage.Client
	bucket string
}

func NewBlobStore(ctx context.Context, bucket string) (*BlobStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required for GCS blob store")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &BlobStore{client: client, bucket: bucket}, nil
}

func (b *BlobStore) Close() error { return b.client.Close() }

// Put uploads data and returns a gs:// reference.
func (b *BlobStore) Put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = mimeType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close %s: %w", key, err)
	}
	return "gs://" + b.bucket + "/" + key, nil
}

func (b *BlobStore) Get(ctx context.Context, ref string) ([]byte, error) {
	bucket, key, err := parseRef(ref)
	if err != nil {
		return nil, err
	}
	r, err := b.client.Bucket(bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("blob %s: %w", ref, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", ref, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b *BlobStore) Delete(ctx context.Context, ref string) error {
	bucket, key, err := parseRef(ref)
	if err != nil {
		return err
	}
	err = b.client.Bucket(bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete %s: %w", ref, err)
	}
	return nil
}

func parseRef(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// reference: %q", ref)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed gs:// reference: %q", ref)
	}
	return bucket, key, nil
}
