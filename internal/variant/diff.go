package variant

import (
	"fmt"
	"strings"

	"product-variant-service/internal/domain"
)

const promptListLimit = 10

// DroppedSku is a SKU removed from a product that itself survives.
type DroppedSku struct {
	Product string            `json:"product"`
	Sku     domain.SkuVariant `json:"sku"`
}

// Delta lists what a tree transition removes.
type Delta struct {
	Products []domain.ProductVariant `json:"products"`
	Skus     []DroppedSku            `json:"skus"`
}

// Diff returns the products and SKUs of old that have no counterpart (by
// identity) in next.
func Diff(old, next domain.Tree) Delta {
	nextProducts := make(map[domain.IdentityKey]domain.ProductVariant, len(next.Products))
	for _, p := range next.Products {
		nextProducts[p.Identity] = p
	}

	var d Delta
	for _, p := range old.Products {
		survivor, ok := nextProducts[p.Identity]
		if !ok {
			d.Products = append(d.Products, p)
			continue
		}
		nextSkus := make(map[domain.IdentityKey]struct{}, len(survivor.Skus))
		for _, s := range survivor.Skus {
			nextSkus[s.Identity] = struct{}{}
		}
		for _, s := range p.Skus {
			if _, ok := nextSkus[s.Identity]; !ok {
				d.Skus = append(d.Skus, DroppedSku{Product: p.Name, Sku: s})
			}
		}
	}
	return d
}

// Empty reports whether nothing is removed.
func (d Delta) Empty() bool {
	return len(d.Products) == 0 && len(d.Skus) == 0
}

// HasUserData reports whether anything removed carries operator-entered data.
func (d Delta) HasUserData() bool {
	for _, p := range d.Products {
		if p.HasUserData() {
			return true
		}
		for _, s := range p.Skus {
			if s.HasUserData() {
				return true
			}
		}
	}
	for _, ds := range d.Skus {
		if ds.Sku.HasUserData() {
			return true
		}
	}
	return false
}

// DroppedSkuCount counts removed SKUs, including those of removed products.
func (d Delta) DroppedSkuCount() int {
	n := len(d.Skus)
	for _, p := range d.Products {
		n += len(p.Skus)
	}
	return n
}

// Prompt phrases a confirmation question naming what will be removed.
func (d Delta) Prompt() string {
	if d.Empty() {
		return "No products or SKUs will be removed. Continue?"
	}

	var items []string
	for _, p := range d.Products {
		switch len(p.Skus) {
		case 0:
			items = append(items, fmt.Sprintf("product %q", p.Name))
		case 1:
			items = append(items, fmt.Sprintf("product %q with 1 SKU", p.Name))
		default:
			items = append(items, fmt.Sprintf("product %q with %d SKUs", p.Name, len(p.Skus)))
		}
	}
	for _, ds := range d.Skus {
		items = append(items, fmt.Sprintf("SKU %q", ds.Sku.SkuName))
	}

	if extra := len(items) - promptListLimit; extra > 0 {
		items = append(items[:promptListLimit], fmt.Sprintf("%d more", extra))
	}
	return "The following will be removed along with any data entered for them: " +
		strings.Join(items, ", ") + ". Continue?"
}
