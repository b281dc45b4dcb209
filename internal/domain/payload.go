package domain

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The payload types below are the wire contract with the persistence backend.
// Field names must not change.

// ProductPropertyPayload is one property assignment of a product.
type ProductPropertyPayload struct {
	PropertyName  string `json:"property_name" db:"property_name"`
	PropertyValue string `json:"property_value" db:"property_value"`
}

// OptionTypeValuePayload is one option assignment of a SKU.
type OptionTypeValuePayload struct {
	OptionType  string `json:"option_type" db:"option_type"`
	OptionValue string `json:"option_value" db:"option_value"`
}

// MediaPayload is one media item of a SKU (or product).
type MediaPayload struct {
	MediaURL  string `json:"media_url" db:"media_url"`
	MediaType string `json:"media_type" db:"media_type"`
	Active    bool   `json:"active" db:"active"`
	Sequence  int    `json:"sequence" db:"sequence"`
}

// SkuPayload is a SKU as submitted. Exactly one of ConversionFactor and
// MultiplicationFactor is set, matching the SKU's pricing mode.
type SkuPayload struct {
	SkuName              string                   `json:"sku_name"`
	DisplayName          string                   `json:"display_name"`
	SkuCode              string                   `json:"sku_code"`
	MRP                  float64                  `json:"mrp"`
	UnitPrice            float64                  `json:"unit_price"`
	SellingPrice         float64                  `json:"selling_price"`
	UOM                  string                   `json:"uom"`
	ThresholdQuantity    int                      `json:"threshold_quantity"`
	Status               SkuStatus                `json:"status"`
	Master               bool                     `json:"master"`
	ConversionFactor     *float64                 `json:"conversion_factor,omitempty"`
	MultiplicationFactor *float64                 `json:"multiplication_factor,omitempty"`
	OptionTypeValues     []OptionTypeValuePayload `json:"option_type_values"`
	SkuMedia             []MediaPayload           `json:"sku_media"`
}

// ProductPayload is a product as submitted.
type ProductPayload struct {
	Name              string                   `json:"name"`
	DisplayName       string                   `json:"display_name"`
	ProductProperties []ProductPropertyPayload `json:"product_properties"`
	ProductSkus       []SkuPayload             `json:"product_skus"`
	ProductMedia      []MediaPayload           `json:"product_media,omitempty"`
}

// BuildPayload converts a reconciled product into its wire form.
func BuildPayload(p ProductVariant) ProductPayload {
	out := ProductPayload{
		Name:              p.Name,
		DisplayName:       p.DisplayName,
		ProductProperties: make([]ProductPropertyPayload, 0, len(p.Properties)),
		ProductSkus:       make([]SkuPayload, 0, len(p.Skus)),
		ProductMedia:      mediaPayload(p.Media),
	}
	for _, a := range p.Properties {
		out.ProductProperties = append(out.ProductProperties, ProductPropertyPayload{
			PropertyName:  a.Name,
			PropertyValue: a.Value,
		})
	}
	for _, s := range p.Skus {
		out.ProductSkus = append(out.ProductSkus, buildSkuPayload(s))
	}
	if len(out.ProductMedia) == 0 {
		out.ProductMedia = nil
	}
	return out
}

func buildSkuPayload(s SkuVariant) SkuPayload {
	sp := SkuPayload{
		SkuName:           s.SkuName,
		DisplayName:       s.DisplayName,
		SkuCode:           s.SkuCode,
		MRP:               s.MRP.Decimal.InexactFloat64(),
		UnitPrice:         s.UnitPrice.Decimal.InexactFloat64(),
		SellingPrice:      s.SellingPrice.Decimal.InexactFloat64(),
		UOM:               s.UOM,
		ThresholdQuantity: s.ThresholdQuantity,
		Status:            s.Status,
		Master:            s.Master,
		OptionTypeValues:  make([]OptionTypeValuePayload, 0, len(s.Options)),
		SkuMedia:          mediaPayload(s.Media),
	}
	factor := s.Factor.InexactFloat64()
	if s.PricingMode == PricingMultiplication {
		sp.MultiplicationFactor = &factor
	} else {
		sp.ConversionFactor = &factor
	}
	for _, a := range s.Options {
		sp.OptionTypeValues = append(sp.OptionTypeValues, OptionTypeValuePayload{
			OptionType:  a.Name,
			OptionValue: a.Value,
		})
	}
	return sp
}

func mediaPayload(items []MediaItem) []MediaPayload {
	sorted := append([]MediaItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })

	out := make([]MediaPayload, 0, len(sorted))
	for _, m := range sorted {
		out = append(out, MediaPayload{
			MediaURL:  m.URL,
			MediaType: m.MediaType,
			Active:    m.Active,
			Sequence:  m.Sequence,
		})
	}
	return out
}

// ProductFromPayload rebuilds a product variant from a stored payload, deriving
// identities from the assignment sets. Used when a saved product is reopened
// for editing.
func ProductFromPayload(p ProductPayload) ProductVariant {
	pv := ProductVariant{
		Name:        p.Name,
		DisplayName: p.DisplayName,
		Media:       mediaFromPayload(p.ProductMedia),
	}
	for _, pp := range p.ProductProperties {
		pv.Properties = append(pv.Properties, Assignment{Name: pp.PropertyName, Value: pp.PropertyValue})
	}
	pv.Identity = NewIdentityKey(pv.Properties)

	for _, sp := range p.ProductSkus {
		s := SkuVariant{
			SkuName:           sp.SkuName,
			DisplayName:       sp.DisplayName,
			SkuCode:           sp.SkuCode,
			MRP:               nullPrice(sp.MRP),
			UnitPrice:         nullPrice(sp.UnitPrice),
			SellingPrice:      nullPrice(sp.SellingPrice),
			UOM:               sp.UOM,
			ThresholdQuantity: sp.ThresholdQuantity,
			Status:            sp.Status,
			Master:            sp.Master,
			Options:           []Assignment{},
			Media:             mediaFromPayload(sp.SkuMedia),
		}
		switch {
		case sp.MultiplicationFactor != nil:
			s.PricingMode = PricingMultiplication
			s.Factor = decimal.NewFromFloat(*sp.MultiplicationFactor)
		case sp.ConversionFactor != nil:
			s.PricingMode = PricingConversion
			s.Factor = decimal.NewFromFloat(*sp.ConversionFactor)
		}
		for _, ov := range sp.OptionTypeValues {
			s.Options = append(s.Options, Assignment{Name: ov.OptionType, Value: ov.OptionValue})
		}
		s.Identity = NewIdentityKey(s.Options)
		pv.Skus = append(pv.Skus, s)
	}
	return pv
}

func nullPrice(v float64) decimal.NullDecimal {
	if v == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(v))
}

func mediaFromPayload(items []MediaPayload) []MediaItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]MediaItem, 0, len(items))
	for _, m := range items {
		out = append(out, MediaItem{
			ID:        uuid.NewString(),
			URL:       m.MediaURL,
			MediaType: m.MediaType,
			Sequence:  m.Sequence,
			Active:    m.Active,
		})
	}
	return out
}
