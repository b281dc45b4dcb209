package draft

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"product-variant-service/internal/domain"
	"product-variant-service/internal/media"
	"product-variant-service/internal/metrics"
	"product-variant-service/internal/pricing"
	"product-variant-service/internal/store"
	"product-variant-service/internal/variant"
)

// FacetKind selects which facet set of a draft an edit applies to.
type FacetKind string

const (
	FacetProperties FacetKind = "properties"
	FacetOptions    FacetKind = "options"
)

// Deps are the collaborators shared by all drafts.
type Deps struct {
	Policy         *variant.Policy
	Uploader       media.Uploader
	Products       store.ProductStorer
	UploadLimits   media.Limits
	ConfirmTimeout time.Duration
	Clock          func() time.Time
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

func (d *Deps) defaults() {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
}

// State is an immutable snapshot of a draft. A new State replaces the old one
// on every change; slices inside a published State are never modified.
type State struct {
	ID         string          `json:"id"`
	ProductID  int64           `json:"product_id,omitempty"`
	BaseName   string          `json:"base_name"`
	Properties domain.FacetSet `json:"properties"`
	Options    domain.FacetSet `json:"options"`
	Tree       domain.Tree     `json:"tree"`
	Version    int             `json:"version"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Session is one product being edited. All changes go through it one at a
// time: a change waits for the previous one, including any confirmation it is
// waiting on, before it reads the state.
type Session struct {
	deps   Deps
	logger *zap.Logger
	sem    chan struct{}

	// anchor is the saved product an update draft edits; zero for create drafts.
	anchor domain.ProductVariant

	mu    sync.RWMutex
	state State
}

func newSession(deps Deps, initial State, anchor domain.ProductVariant) *Session {
	return &Session{
		deps:   deps,
		logger: deps.Logger.With(zap.String("draft_id", initial.ID)),
		sem:    make(chan struct{}, 1),
		anchor: anchor,
		state:  initial,
	}
}

// ID returns the draft id.
func (s *Session) ID() string {
	return s.Snapshot().ID
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) release() {
	<-s.sem
}

func (s *Session) commit(next State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	next.Version = s.state.Version + 1
	next.UpdatedAt = s.deps.Clock()
	s.state = next
	return next
}

// --- Facet edits ---

// SetBaseName changes the base name and regenerates. A blank name removes every
// product, which is gated by confirm like any other destructive edit.
func (s *Session) SetBaseName(ctx context.Context, name string, confirm variant.Confirmer) (State, error) {
	if err := s.acquire(ctx); err != nil {
		return State{}, err
	}
	defer s.release()

	cur := s.Snapshot()
	next := cur
	next.BaseName = strings.TrimSpace(name)
	return s.regenerate(ctx, cur, next, false, confirm)
}

// EditFacets applies edit to one facet set and regenerates. When the
// regeneration is declined the facet set keeps its previous value.
func (s *Session) EditFacets(ctx context.Context, kind FacetKind, edit func(domain.FacetSet) (domain.FacetSet, error), confirm variant.Confirmer) (State, error) {
	if err := s.acquire(ctx); err != nil {
		return State{}, err
	}
	defer s.release()

	cur := s.Snapshot()
	next := cur

	var before domain.FacetSet
	switch kind {
	case FacetProperties:
		if cur.ProductID != 0 {
			return cur, ErrPropertiesLocked
		}
		before = cur.Properties
	case FacetOptions:
		before = cur.Options
	default:
		return cur, fmt.Errorf("%w: %q", ErrUnknownFacetKind, kind)
	}

	after, err := edit(before.Clone())
	if err != nil {
		return cur, err
	}
	if kind == FacetProperties {
		next.Properties = after
	} else {
		next.Options = after
	}

	cleared := before.HasValid() && !after.HasValid()
	return s.regenerate(ctx, cur, next, cleared, confirm)
}

func (s *Session) regenerate(ctx context.Context, cur, next State, cleared bool, confirm variant.Confirmer) (State, error) {
	if confirm != nil && s.deps.ConfirmTimeout > 0 {
		confirm = timedConfirmer{inner: confirm, timeout: s.deps.ConfirmTimeout}
	}

	properties := next.Properties
	if next.ProductID != 0 {
		properties = nil
	}
	if err := s.deps.Policy.Engine().CheckSize(properties, next.Options); err != nil {
		return cur, err
	}

	out, err := s.deps.Policy.Apply(ctx, variant.Edit{
		Candidates: s.candidates(next),
		Current:    cur.Tree,
		Options:    next.Options,
		Cleared:    cleared,
	}, confirm)
	if err != nil {
		return cur, err
	}
	if !out.Applied {
		return cur, &DeclinedError{Prompt: out.Prompt, Delta: out.Delta}
	}

	next.Tree = out.Tree
	committed := s.commit(next)
	s.logger.Debug("draft regenerated",
		zap.Int("version", committed.Version),
		zap.Int("products", len(committed.Tree.Products)),
		zap.Int("skus", committed.Tree.SkuCount()),
	)
	return committed, nil
}

func (s *Session) candidates(st State) []domain.ProductVariant {
	if st.ProductID != 0 {
		name := st.BaseName
		if name == "" {
			return nil
		}
		anchor := domain.ProductVariant{
			Identity:    s.anchor.Identity,
			Name:        name,
			DisplayName: s.anchor.DisplayName,
			Properties:  s.anchor.Properties,
		}
		if anchor.DisplayName == s.anchor.Name {
			anchor.DisplayName = name
		}
		return []domain.ProductVariant{anchor}
	}
	if !st.Properties.HasValid() {
		return variant.BaseProduct(st.BaseName)
	}
	return variant.GenerateProducts(st.BaseName, st.Properties)
}

type timedConfirmer struct {
	inner   variant.Confirmer
	timeout time.Duration
}

func (t timedConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Confirm(ctx, prompt)
}

// --- SKU edits ---

// SkuDetails holds the operator-editable SKU fields; nil fields are unchanged.
type SkuDetails struct {
	SkuCode           *string
	DisplayName       *string
	UOM               *string
	ThresholdQuantity *int
	Status            *domain.SkuStatus
}

// UpdateSku applies fn to one SKU.
func (s *Session) UpdateSku(ctx context.Context, productKey, skuKey domain.IdentityKey, fn func(domain.SkuVariant) (domain.SkuVariant, error)) (State, error) {
	return s.updateProduct(ctx, productKey, func(p *domain.ProductVariant) error {
		i := p.SkuIndex(skuKey)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrSkuNotFound, skuKey.Short())
		}
		updated, err := fn(p.Skus[i])
		if err != nil {
			return err
		}
		p.Skus[i] = updated
		return nil
	})
}

// SetSkuDetails updates the free-form fields of a SKU.
func (s *Session) SetSkuDetails(ctx context.Context, productKey, skuKey domain.IdentityKey, d SkuDetails) (State, error) {
	return s.UpdateSku(ctx, productKey, skuKey, func(sku domain.SkuVariant) (domain.SkuVariant, error) {
		if d.Status != nil && !d.Status.Valid() {
			return sku, fmt.Errorf("draft: unknown sku status %q", *d.Status)
		}
		if d.SkuCode != nil {
			sku.SkuCode = strings.TrimSpace(*d.SkuCode)
		}
		if d.DisplayName != nil {
			sku.DisplayName = strings.TrimSpace(*d.DisplayName)
		}
		if d.UOM != nil {
			sku.UOM = strings.TrimSpace(*d.UOM)
		}
		if d.ThresholdQuantity != nil {
			sku.ThresholdQuantity = *d.ThresholdQuantity
		}
		if d.Status != nil {
			sku.Status = *d.Status
		}
		return sku, nil
	})
}

// SetPricingMode switches one SKU to mode, clearing its prices when the mode changes.
func (s *Session) SetPricingMode(ctx context.Context, productKey, skuKey domain.IdentityKey, mode domain.PricingMode, factor decimal.Decimal) (State, error) {
	return s.UpdateSku(ctx, productKey, skuKey, func(sku domain.SkuVariant) (domain.SkuVariant, error) {
		return pricing.SetMode(sku, mode, factor)
	})
}

// SetProductPricingMode switches every SKU of a product to mode.
func (s *Session) SetProductPricingMode(ctx context.Context, productKey domain.IdentityKey, mode domain.PricingMode, factor decimal.Decimal) (State, error) {
	return s.updateProduct(ctx, productKey, func(p *domain.ProductVariant) error {
		for i := range p.Skus {
			updated, err := pricing.SetMode(p.Skus[i], mode, factor)
			if err != nil {
				return err
			}
			p.Skus[i] = updated
		}
		return nil
	})
}

// SetMRP enters the mrp of a conversion-mode SKU.
func (s *Session) SetMRP(ctx context.Context, productKey, skuKey domain.IdentityKey, mrp decimal.Decimal) (State, error) {
	return s.UpdateSku(ctx, productKey, skuKey, func(sku domain.SkuVariant) (domain.SkuVariant, error) {
		return pricing.SetMRP(sku, mrp)
	})
}

// SetUnitPrice enters the unit_price of a multiplication-mode SKU.
func (s *Session) SetUnitPrice(ctx context.Context, productKey, skuKey domain.IdentityKey, unit decimal.Decimal) (State, error) {
	return s.UpdateSku(ctx, productKey, skuKey, func(sku domain.SkuVariant) (domain.SkuVariant, error) {
		return pricing.SetUnitPrice(sku, unit)
	})
}

// SetFactor changes the factor of a SKU's active pricing mode.
func (s *Session) SetFactor(ctx context.Context, productKey, skuKey domain.IdentityKey, factor decimal.Decimal) (State, error) {
	return s.UpdateSku(ctx, productKey, skuKey, func(sku domain.SkuVariant) (domain.SkuVariant, error) {
		return pricing.SetFactor(sku, factor)
	})
}

// SetMaster makes one SKU the master of its product.
func (s *Session) SetMaster(ctx context.Context, productKey, skuKey domain.IdentityKey) (State, error) {
	return s.updateProduct(ctx, productKey, func(p *domain.ProductVariant) error {
		i := p.SkuIndex(skuKey)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrSkuNotFound, skuKey.Short())
		}
		for j := range p.Skus {
			p.Skus[j].Master = j == i
		}
		return nil
	})
}

// updateProduct runs fn on a private copy of one product and publishes the
// result if fn succeeds.
func (s *Session) updateProduct(ctx context.Context, productKey domain.IdentityKey, fn func(*domain.ProductVariant) error) (State, error) {
	if err := s.acquire(ctx); err != nil {
		return State{}, err
	}
	defer s.release()

	cur := s.Snapshot()
	i := cur.Tree.ProductIndex(productKey)
	if i < 0 {
		return cur, fmt.Errorf("%w: %s", ErrProductNotFound, productKey.Short())
	}

	next := cur
	next.Tree = cur.Tree.Clone()
	if err := fn(&next.Tree.Products[i]); err != nil {
		return cur, err
	}
	return s.commit(next), nil
}

// --- Submission ---

// Validate reports every problem that would block submission.
func (s *Session) Validate() error {
	return validateTree(s.Snapshot().Tree)
}

// Payloads returns the wire form of every product in the draft.
func (s *Session) Payloads() []domain.ProductPayload {
	return buildPayloads(s.Snapshot().Tree)
}

func buildPayloads(t domain.Tree) []domain.ProductPayload {
	out := make([]domain.ProductPayload, 0, len(t.Products))
	for _, p := range t.Products {
		out = append(out, domain.BuildPayload(p))
	}
	return out
}

// SubmitResult reports the stored product ids.
type SubmitResult struct {
	ProductIDs []int64 `json:"product_ids"`
}

// Submit validates the draft and hands it to the product store. Nothing is
// written when validation fails.
func (s *Session) Submit(ctx context.Context) (*SubmitResult, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	cur := s.Snapshot()
	if err := validateTree(cur.Tree); err != nil {
		s.deps.Metrics.ObserveSubmission("invalid")
		return nil, err
	}
	payloads := buildPayloads(cur.Tree)

	var (
		ids []int64
		err error
	)
	if cur.ProductID != 0 {
		err = s.deps.Products.UpdateProduct(ctx, cur.ProductID, payloads[0])
		ids = []int64{cur.ProductID}
	} else {
		ids, err = s.deps.Products.SubmitProducts(ctx, payloads)
	}
	if err != nil {
		s.deps.Metrics.ObserveSubmission("failed")
		s.logger.Error("draft submission failed", zap.Error(err))
		return nil, fmt.Errorf("draft: submit: %w", err)
	}

	s.deps.Metrics.ObserveSubmission("ok")
	s.logger.Info("draft submitted", zap.Int64s("product_ids", ids))
	return &SubmitResult{ProductIDs: ids}, nil
}
