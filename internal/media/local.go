package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalUploader writes files below a directory that is served at BaseURL.
// Intended for development setups without object storage.
type LocalUploader struct {
	dir     string
	baseURL string
	prefix  string
}

// NewLocalUploader creates the target directory if needed.
func NewLocalUploader(dir, baseURL, prefix string) (*LocalUploader, error) {
	if err := os.MkdirAll(filepath.Join(dir, prefix), 0o755); err != nil {
		return nil, fmt.Errorf("media: create upload dir: %w", err)
	}
	return &LocalUploader{dir: dir, baseURL: baseURL, prefix: prefix}, nil
}

// Upload copies f into the upload directory.
func (u *LocalUploader) Upload(ctx context.Context, f File) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return Ref{}, err
	}
	src, err := f.Open()
	if err != nil {
		return Ref{}, fmt.Errorf("media: open %s: %w", f.Name, err)
	}
	defer src.Close()

	key := objectKey(u.prefix, f.Name)
	dst, err := os.Create(filepath.Join(u.dir, filepath.FromSlash(key)))
	if err != nil {
		return Ref{}, fmt.Errorf("media: create %s: %w", key, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return Ref{}, fmt.Errorf("media: write %s: %w", key, err)
	}
	if err := dst.Close(); err != nil {
		return Ref{}, fmt.Errorf("media: close %s: %w", key, err)
	}
	return Ref{URL: joinURL(u.baseURL, key), MediaType: f.ContentType}, nil
}
