package domain

import (
	"github.com/shopspring/decimal"
)

// PricingMode selects which price the operator enters and which ones are derived.
type PricingMode string

const (
	// PricingConversion: operator enters mrp, unit_price = mrp / conversion_factor.
	PricingConversion PricingMode = "conversion"
	// PricingMultiplication: operator enters unit_price, mrp = unit_price * multiplication_factor.
	PricingMultiplication PricingMode = "multiplication"
)

// Valid reports whether m is a known pricing mode.
func (m PricingMode) Valid() bool {
	return m == PricingConversion || m == PricingMultiplication
}

// SkuStatus is the lifecycle status sent with each SKU.
type SkuStatus string

const (
	SkuStatusActive   SkuStatus = "active"
	SkuStatusInactive SkuStatus = "inactive"
	SkuStatusDeleted  SkuStatus = "deleted"
)

// Valid reports whether s is a known status.
func (s SkuStatus) Valid() bool {
	switch s {
	case SkuStatusActive, SkuStatusInactive, SkuStatusDeleted:
		return true
	}
	return false
}

// Default values for freshly generated SKUs.
const (
	DefaultUOM               = "piece"
	DefaultThresholdQuantity = 1
)

// MediaItem is one image (or other media) attached to a product or SKU.
// Sequence 1 marks the primary item.
type MediaItem struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	MediaType string `json:"media_type"`
	Sequence  int    `json:"sequence"`
	Active    bool   `json:"active"`
}

// SkuVariant is a sellable unit of a product, produced by one combination of
// option values.
type SkuVariant struct {
	Identity          IdentityKey         `json:"identity"`
	SkuName           string              `json:"sku_name"`
	DisplayName       string              `json:"display_name"`
	SkuCode           string              `json:"sku_code"`
	MRP               decimal.NullDecimal `json:"mrp"`
	UnitPrice         decimal.NullDecimal `json:"unit_price"`
	SellingPrice      decimal.NullDecimal `json:"selling_price"`
	PricingMode       PricingMode         `json:"pricing_mode"`
	Factor            decimal.Decimal     `json:"factor"`
	UOM               string              `json:"uom"`
	ThresholdQuantity int                 `json:"threshold_quantity"`
	Status            SkuStatus           `json:"status"`
	Master            bool                `json:"master"`
	Options           []Assignment        `json:"option_assignments"`
	Media             []MediaItem         `json:"media"`
}

// HasUserData reports whether the operator entered anything that would be lost
// if the SKU were dropped.
func (s SkuVariant) HasUserData() bool {
	return s.SkuCode != "" || s.MRP.Valid || s.UnitPrice.Valid || s.SellingPrice.Valid || len(s.Media) > 0
}

// Clone returns a copy that shares no slices with s.
func (s SkuVariant) Clone() SkuVariant {
	s.Options = append([]Assignment(nil), s.Options...)
	s.Media = append([]MediaItem(nil), s.Media...)
	return s
}

// ProductVariant is one product produced by a combination of property values,
// together with its SKUs.
type ProductVariant struct {
	Identity    IdentityKey  `json:"identity"`
	Name        string       `json:"name"`
	DisplayName string       `json:"display_name"`
	Properties  []Assignment `json:"property_assignments"`
	Skus        []SkuVariant `json:"skus"`
	Media       []MediaItem  `json:"media"`
}

// HasUserData reports whether product-level data would be lost by dropping p.
// SKU data is accounted for separately.
func (p ProductVariant) HasUserData() bool {
	return len(p.Media) > 0
}

// Clone returns a deep copy of p.
func (p ProductVariant) Clone() ProductVariant {
	p.Properties = append([]Assignment(nil), p.Properties...)
	p.Media = append([]MediaItem(nil), p.Media...)
	if p.Skus != nil {
		skus := make([]SkuVariant, len(p.Skus))
		for i, s := range p.Skus {
			skus[i] = s.Clone()
		}
		p.Skus = skus
	}
	return p
}

// SkuIndex returns the position of the SKU with the given identity, or -1.
func (p ProductVariant) SkuIndex(k IdentityKey) int {
	for i, s := range p.Skus {
		if s.Identity == k {
			return i
		}
	}
	return -1
}

// Tree is the authoritative product/SKU store of a draft.
type Tree struct {
	Products []ProductVariant `json:"products"`
}

// Clone returns a deep copy of t.
func (t Tree) Clone() Tree {
	if t.Products == nil {
		return Tree{}
	}
	out := Tree{Products: make([]ProductVariant, len(t.Products))}
	for i, p := range t.Products {
		out.Products[i] = p.Clone()
	}
	return out
}

// Empty reports whether the tree holds no products.
func (t Tree) Empty() bool {
	return len(t.Products) == 0
}

// ProductIndex returns the position of the product with the given identity, or -1.
func (t Tree) ProductIndex(k IdentityKey) int {
	for i, p := range t.Products {
		if p.Identity == k {
			return i
		}
	}
	return -1
}

// SkuCount returns the number of SKUs across all products.
func (t Tree) SkuCount() int {
	n := 0
	for _, p := range t.Products {
		n += len(p.Skus)
	}
	return n
}
