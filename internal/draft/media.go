package draft

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"product-variant-service/internal/domain"
	"product-variant-service/internal/media"
)

// MediaTarget addresses a media collection: a product's own collection when
// Sku is empty, otherwise the collection of that SKU.
type MediaTarget struct {
	Product domain.IdentityKey
	Sku     domain.IdentityKey
}

func (t MediaTarget) collection(tree *domain.Tree) (*[]domain.MediaItem, error) {
	i := tree.ProductIndex(t.Product)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, t.Product.Short())
	}
	p := &tree.Products[i]
	if t.Sku == "" {
		return &p.Media, nil
	}
	j := p.SkuIndex(t.Sku)
	if j < 0 {
		return nil, fmt.Errorf("%w: %s", ErrSkuNotFound, t.Sku.Short())
	}
	return &p.Skus[j].Media, nil
}

// UploadMedia uploads files and appends the stored ones to the target
// collection. Uploads run without holding the draft so other edits are not
// blocked; failed files are reported and get no sequence number.
func (s *Session) UploadMedia(ctx context.Context, target MediaTarget, files []media.File) (State, []media.UploadFailure, error) {
	snapshot := s.Snapshot()
	if _, err := target.collection(&snapshot.Tree); err != nil {
		return snapshot, nil, err
	}
	if s.deps.Uploader == nil {
		return snapshot, nil, ErrNoUploader
	}

	refs, failures := media.UploadBatch(ctx, s.deps.Uploader, files, s.deps.UploadLimits, s.logger)
	s.deps.Metrics.ObserveUploads(len(refs), len(failures))
	if len(refs) == 0 {
		return snapshot, failures, nil
	}

	st, err := s.modifyMedia(ctx, target, func(items []domain.MediaItem) ([]domain.MediaItem, error) {
		return media.Append(items, refs), nil
	})
	if err != nil {
		// The target disappeared while uploading; the stored files are orphaned.
		s.logger.Warn("uploaded media discarded", zap.Int("files", len(refs)), zap.Error(err))
		return st, failures, err
	}
	return st, failures, nil
}

// SetPrimaryMedia makes id the primary item of the target collection.
func (s *Session) SetPrimaryMedia(ctx context.Context, target MediaTarget, id string) (State, error) {
	return s.modifyMedia(ctx, target, func(items []domain.MediaItem) ([]domain.MediaItem, error) {
		return media.SetPrimary(items, id)
	})
}

// RemoveMedia removes a non-primary item from the target collection.
func (s *Session) RemoveMedia(ctx context.Context, target MediaTarget, id string) (State, error) {
	return s.modifyMedia(ctx, target, func(items []domain.MediaItem) ([]domain.MediaItem, error) {
		return media.Remove(items, id)
	})
}

func (s *Session) modifyMedia(ctx context.Context, target MediaTarget, fn func([]domain.MediaItem) ([]domain.MediaItem, error)) (State, error) {
	if err := s.acquire(ctx); err != nil {
		return State{}, err
	}
	defer s.release()

	cur := s.Snapshot()
	next := cur
	next.Tree = cur.Tree.Clone()
	items, err := target.collection(&next.Tree)
	if err != nil {
		return cur, err
	}
	updated, err := fn(*items)
	if err != nil {
		return cur, err
	}
	*items = updated
	return s.commit(next), nil
}
