package store

import (
	"context"

	"product-variant-service/internal/domain"
)

// VocabularyStorer defines the database operations for facet-name dictionaries.
type VocabularyStorer interface {
	ListVocabulary(ctx context.Context, kind domain.VocabularyKind) ([]domain.VocabularyEntry, error)
	CreateVocabulary(ctx context.Context, kind domain.VocabularyKind, name string) (*domain.VocabularyEntry, error)
}

// ProductStorer defines the persistence of submitted products.
type ProductStorer interface {
	// SubmitProducts stores all products in one transaction and returns their ids
	// in input order.
	SubmitProducts(ctx context.Context, products []domain.ProductPayload) ([]int64, error)
	// UpdateProduct replaces a stored product, including all of its SKUs.
	UpdateProduct(ctx context.Context, id int64, product domain.ProductPayload) error
	GetProduct(ctx context.Context, id int64) (*domain.ProductPayload, error)
}
