package media

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSUploader stores files in a Cloud Storage bucket.
type GCSUploader struct {
	client  *storage.Client
	bucket  string
	baseURL string
	prefix  string
	timeout time.Duration
}

// NewGCSUploader opens a storage client. When baseURL is empty objects are
// addressed through storage.googleapis.com.
func NewGCSUploader(ctx context.Context, bucket, baseURL, prefix string, opts ...option.ClientOption) (*GCSUploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("media: gcs bucket is required")
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("media: create storage client: %w", err)
	}
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSUploader{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
		prefix:  prefix,
		timeout: 2 * time.Minute,
	}, nil
}

// Upload streams f into the bucket.
func (u *GCSUploader) Upload(ctx context.Context, f File) (Ref, error) {
	src, err := f.Open()
	if err != nil {
		return Ref{}, fmt.Errorf("media: open %s: %w", f.Name, err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	key := objectKey(u.prefix, f.Name)
	w := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	w.ContentType = f.ContentType
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return Ref{}, fmt.Errorf("media: write gs://%s/%s: %w", u.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return Ref{}, fmt.Errorf("media: close gs://%s/%s: %w", u.bucket, key, err)
	}
	return Ref{URL: joinURL(u.baseURL, key), MediaType: f.ContentType}, nil
}

// Close releases the storage client.
func (u *GCSUploader) Close() error {
	return u.client.Close()
}
