package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"product-variant-service/internal/domain"
	"product-variant-service/internal/store"
)

// Registry holds the open drafts of this process.
type Registry struct {
	deps      Deps
	maxDrafts int

	mu     sync.RWMutex
	drafts map[string]*Session
}

// NewRegistry returns an empty registry. maxDrafts <= 0 means unbounded.
func NewRegistry(deps Deps, maxDrafts int) (*Registry, error) {
	if deps.Policy == nil {
		return nil, errors.New("draft: policy is required")
	}
	deps.defaults()
	return &Registry{deps: deps, maxDrafts: maxDrafts, drafts: make(map[string]*Session)}, nil
}

// Create opens an empty draft for a new product.
func (r *Registry) Create() (*Session, error) {
	st := State{
		ID:         uuid.NewString(),
		Properties: domain.FacetSet{},
		Options:    domain.FacetSet{},
		UpdatedAt:  r.deps.Clock(),
	}
	return r.add(newSession(r.deps, st, domain.ProductVariant{}))
}

// Open loads a saved product into an update draft. Its options are rebuilt from
// the SKU assignments in first-seen order; its properties are fixed.
func (r *Registry) Open(ctx context.Context, productID int64) (*Session, error) {
	if r.deps.Products == nil {
		return nil, errors.New("draft: no product store configured")
	}
	payload, err := r.deps.Products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, productID)
		}
		return nil, fmt.Errorf("draft: load product %d: %w", productID, err)
	}

	product := domain.ProductFromPayload(*payload)
	st := State{
		ID:         uuid.NewString(),
		ProductID:  productID,
		BaseName:   product.Name,
		Properties: propertiesOf(product),
		Options:    optionsOf(product),
		Tree:       domain.Tree{Products: []domain.ProductVariant{product}},
		UpdatedAt:  r.deps.Clock(),
	}
	anchor := domain.ProductVariant{
		Identity:    product.Identity,
		Name:        product.Name,
		DisplayName: product.DisplayName,
		Properties:  product.Properties,
	}
	return r.add(newSession(r.deps, st, anchor))
}

func (r *Registry) add(s *Session) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxDrafts > 0 && len(r.drafts) >= r.maxDrafts {
		return nil, ErrTooManyDrafts
	}
	r.drafts[s.ID()] = s
	r.deps.Metrics.SetActiveDrafts(len(r.drafts))
	r.deps.Logger.Info("draft opened", zap.String("draft_id", s.ID()), zap.Int64("product_id", s.Snapshot().ProductID))
	return s, nil
}

// Get returns an open draft.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.drafts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	return s, nil
}

// Delete discards a draft.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drafts[id]; !ok {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	delete(r.drafts, id)
	r.deps.Metrics.SetActiveDrafts(len(r.drafts))
	return nil
}

// Len returns the number of open drafts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drafts)
}

func propertiesOf(p domain.ProductVariant) domain.FacetSet {
	out := domain.FacetSet{}
	for _, a := range p.Properties {
		out = append(out, domain.Facet{Name: a.Name, Values: []string{a.Value}})
	}
	return out
}

func optionsOf(p domain.ProductVariant) domain.FacetSet {
	out := domain.FacetSet{}
	index := make(map[string]int)
	for _, s := range p.Skus {
		for _, a := range s.Options {
			key := strings.ToLower(strings.TrimSpace(a.Name))
			i, ok := index[key]
			if !ok {
				i = len(out)
				index[key] = i
				out = append(out, domain.Facet{Name: a.Name})
			}
			if !contains(out[i].Values, a.Value) {
				out[i].Values = append(out[i].Values, a.Value)
			}
		}
	}
	return out
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
