package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Predefined upload errors.
var (
	ErrFileTooLarge    = errors.New("media: file exceeds the upload size limit")
	ErrUnsupportedType = errors.New("media: unsupported media type")
)

// File is one file handed to an uploader. Open may be called once per upload
// attempt.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Uploader stores a file and returns where it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, f File) (Ref, error)
}

// UploadFailure reports one file of a batch that did not make it.
type UploadFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Limits bound a batch upload.
type Limits struct {
	MaxBytes    int64
	Concurrency int
}

// UploadBatch uploads files concurrently. Successful references are returned in
// the order of files; a failing file never affects the others.
func UploadBatch(ctx context.Context, up Uploader, files []File, limits Limits, logger *zap.Logger) ([]Ref, []UploadFailure) {
	if logger == nil {
		logger = zap.NewNop()
	}
	refs := make([]*Ref, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	if limits.Concurrency > 0 {
		g.SetLimit(limits.Concurrency)
	}
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := checkFile(f, limits); err != nil {
				errs[i] = err
				return nil
			}
			ref, err := up.Upload(ctx, f)
			if err != nil {
				errs[i] = err
				return nil
			}
			refs[i] = &ref
			return nil
		})
	}
	_ = g.Wait()

	var (
		out      []Ref
		failures []UploadFailure
	)
	for i, f := range files {
		if errs[i] != nil {
			logger.Warn("media upload failed", zap.String("file", f.Name), zap.Error(errs[i]))
			failures = append(failures, UploadFailure{File: f.Name, Error: errs[i].Error()})
			continue
		}
		out = append(out, *refs[i])
	}
	return out, failures
}

func checkFile(f File, limits Limits) error {
	if limits.MaxBytes > 0 && f.Size > limits.MaxBytes {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, f.Size)
	}
	if !strings.HasPrefix(f.ContentType, "image/") && !strings.HasPrefix(f.ContentType, "video/") {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, f.ContentType)
	}
	if f.Open == nil {
		return fmt.Errorf("media: %s has no content", f.Name)
	}
	return nil
}

// objectKey names a stored object: a ULID keeps keys unique and roughly
// time-ordered; the original extension is kept for content sniffing.
func objectKey(prefix, filename string) string {
	key := strings.ToLower(ulid.Make().String()) + strings.ToLower(path.Ext(filename))
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		return prefix + "/" + key
	}
	return key
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
