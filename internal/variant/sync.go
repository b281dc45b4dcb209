package variant

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"product-variant-service/internal/domain"
	"product-variant-service/internal/pricing"
)

// Engine reconciles freshly generated candidates with the current tree.
type Engine struct {
	defaults        pricing.Defaults
	logger          *zap.Logger
	maxCombinations int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger used for merge diagnostics.
func WithEngineLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxCombinations bounds the number of SKUs a single tree may expand to.
// Zero or less disables the bound.
func WithMaxCombinations(n int) EngineOption {
	return func(e *Engine) { e.maxCombinations = n }
}

// NewEngine returns an engine that seeds new SKUs from defaults.
func NewEngine(defaults pricing.Defaults, opts ...EngineOption) *Engine {
	e := &Engine{defaults: defaults, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Defaults returns the pricing configuration new SKUs start from.
func (e *Engine) Defaults() pricing.Defaults {
	return e.defaults
}

// CheckSize reports ErrTooManyCombinations when generating from properties
// and options would exceed the engine's bound. Pass nil properties when the
// product set is fixed.
func (e *Engine) CheckSize(properties, options domain.FacetSet) error {
	return checkCombinations(properties, options, e.maxCombinations)
}

// Merge builds the next tree: one product per candidate, in candidate order,
// each carrying the SKUs generated from options. Existing products and SKUs
// whose identity matches a candidate are kept with their data; everything else
// in current is dropped. The result shares no slices with current.
func (e *Engine) Merge(candidates []domain.ProductVariant, current domain.Tree, options domain.FacetSet) domain.Tree {
	existing := make(map[domain.IdentityKey]int, len(current.Products))
	for i, p := range current.Products {
		if _, dup := existing[p.Identity]; !dup {
			existing[p.Identity] = i
		}
	}

	out := domain.Tree{Products: make([]domain.ProductVariant, 0, len(candidates))}
	kept := 0
	for _, c := range candidates {
		var product domain.ProductVariant
		if i, ok := existing[c.Identity]; ok {
			product = current.Products[i].Clone()
			kept++
		} else {
			product = domain.ProductVariant{Identity: c.Identity, DisplayName: c.DisplayName}
		}
		refreshProduct(&product, c)
		product.Skus = e.mergeSkus(product.Name, product.Skus, options)
		out.Products = append(out.Products, product)
	}

	e.logger.Debug("variants merged",
		zap.Int("candidates", len(candidates)),
		zap.Int("kept_products", kept),
		zap.Int("dropped_products", len(current.Products)-kept),
		zap.Int("skus", out.SkuCount()),
	)
	return out
}

func (e *Engine) mergeSkus(productName string, existing []domain.SkuVariant, options domain.FacetSet) []domain.SkuVariant {
	candidates := GenerateSkus(productName, options)

	byIdentity := make(map[domain.IdentityKey]int, len(existing))
	byName := make(map[string]int)
	for i, s := range existing {
		if s.Identity == "" {
			// Records without an assignment set can only be matched by name.
			if _, dup := byName[nameKey(s.SkuName)]; !dup {
				byName[nameKey(s.SkuName)] = i
			}
			continue
		}
		if _, dup := byIdentity[s.Identity]; !dup {
			byIdentity[s.Identity] = i
		}
	}

	merged := make([]domain.SkuVariant, 0, len(candidates))
	used := make(map[int]bool, len(existing))
	for _, c := range candidates {
		i, ok := byIdentity[c.Identity]
		if !ok {
			i, ok = byName[nameKey(c.SkuName)]
		}
		if ok && !used[i] {
			used[i] = true
			s := existing[i].Clone()
			refreshSku(&s, c)
			merged = append(merged, s)
			continue
		}
		merged = append(merged, e.newSku(c))
	}
	normalizeMaster(merged)
	return merged
}

func (e *Engine) newSku(c domain.SkuVariant) domain.SkuVariant {
	return domain.SkuVariant{
		Identity:          c.Identity,
		SkuName:           c.SkuName,
		DisplayName:       c.DisplayName,
		MRP:               decimal.NullDecimal{},
		UnitPrice:         decimal.NullDecimal{},
		SellingPrice:      decimal.NullDecimal{},
		PricingMode:       e.defaults.Mode,
		Factor:            e.defaults.Factor(),
		UOM:               domain.DefaultUOM,
		ThresholdQuantity: domain.DefaultThresholdQuantity,
		Status:            domain.SkuStatusActive,
		Options:           append([]domain.Assignment(nil), c.Options...),
	}
}

// refreshProduct copies the generated text of candidate c onto p. A display
// name the operator changed is left alone.
func refreshProduct(p *domain.ProductVariant, c domain.ProductVariant) {
	if p.DisplayName == "" || p.DisplayName == p.Name {
		p.DisplayName = c.DisplayName
	}
	p.Name = c.Name
	p.Properties = append([]domain.Assignment(nil), c.Properties...)
}

func refreshSku(s *domain.SkuVariant, c domain.SkuVariant) {
	if s.DisplayName == "" || s.DisplayName == s.SkuName {
		s.DisplayName = c.DisplayName
	}
	s.SkuName = c.SkuName
	s.Identity = c.Identity
	s.Options = append([]domain.Assignment(nil), c.Options...)
}

// normalizeMaster leaves exactly one master in a non-empty SKU list: the first
// one already flagged, or the first SKU when none is.
func normalizeMaster(skus []domain.SkuVariant) {
	first := -1
	for i := range skus {
		if !skus[i].Master {
			continue
		}
		if first < 0 {
			first = i
			continue
		}
		skus[i].Master = false
	}
	if first < 0 && len(skus) > 0 {
		skus[0].Master = true
	}
}

func nameKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
