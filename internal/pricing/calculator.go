package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"product-variant-service/internal/domain"
)

// Predefined errors for pricing edits and validation.
var (
	ErrUnknownMode     = errors.New("pricing: unknown pricing mode")
	ErrWrongMode       = errors.New("pricing: price is derived in the active pricing mode")
	ErrInvalidFactor   = errors.New("pricing: factor must be greater than zero")
	ErrInvalidPrice    = errors.New("pricing: price must be greater than zero")
	ErrMissingPrice    = errors.New("pricing: price is required")
	ErrSellingAboveMRP = errors.New("pricing: selling_price exceeds mrp")
	ErrMismatch        = errors.New("pricing: mismatch")
)

// Tolerance is the largest difference accepted between a stored price and the
// value its factor implies.
var Tolerance = decimal.New(1, -2)

const places = 2

// Defaults is the global pricing configuration new SKUs start from.
type Defaults struct {
	Mode                 domain.PricingMode
	ConversionFactor     decimal.Decimal
	MultiplicationFactor decimal.Decimal
}

// Factor returns the default factor of the default mode.
func (d Defaults) Factor() decimal.Decimal {
	if d.Mode == domain.PricingMultiplication {
		return d.MultiplicationFactor
	}
	return d.ConversionFactor
}

// Validate checks that the defaults can seed a SKU.
func (d Defaults) Validate() error {
	if !d.Mode.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMode, d.Mode)
	}
	if !d.ConversionFactor.IsPositive() || !d.MultiplicationFactor.IsPositive() {
		return ErrInvalidFactor
	}
	return nil
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(places)
}

func clearPrices(s *domain.SkuVariant) {
	s.MRP = decimal.NullDecimal{}
	s.UnitPrice = decimal.NullDecimal{}
	s.SellingPrice = decimal.NullDecimal{}
}

// SetMode switches the SKU to mode with the given factor. Switching to a
// different mode clears all prices; re-selecting the active mode only updates
// the factor.
func SetMode(s domain.SkuVariant, mode domain.PricingMode, factor decimal.Decimal) (domain.SkuVariant, error) {
	if !mode.Valid() {
		return s, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if !factor.IsPositive() {
		return s, ErrInvalidFactor
	}
	if mode == s.PricingMode {
		return SetFactor(s, factor)
	}
	s.PricingMode = mode
	s.Factor = factor
	clearPrices(&s)
	return s, nil
}

// SetMRP records the operator-entered mrp of a conversion-mode SKU, rounded to
// cents, and derives unit_price and selling_price from it.
func SetMRP(s domain.SkuVariant, mrp decimal.Decimal) (domain.SkuVariant, error) {
	if s.PricingMode != domain.PricingConversion {
		return s, fmt.Errorf("%w: mrp in %s mode", ErrWrongMode, s.PricingMode)
	}
	mrp = round(mrp)
	if !mrp.IsPositive() {
		return s, fmt.Errorf("%w: mrp", ErrInvalidPrice)
	}
	s.MRP = decimal.NewNullDecimal(mrp)
	derive(&s)
	return s, nil
}

// SetUnitPrice records the operator-entered unit_price of a
// multiplication-mode SKU, rounded to cents, and derives mrp and selling_price
// from it.
func SetUnitPrice(s domain.SkuVariant, unit decimal.Decimal) (domain.SkuVariant, error) {
	if s.PricingMode != domain.PricingMultiplication {
		return s, fmt.Errorf("%w: unit_price in %s mode", ErrWrongMode, s.PricingMode)
	}
	unit = round(unit)
	if !unit.IsPositive() {
		return s, fmt.Errorf("%w: unit_price", ErrInvalidPrice)
	}
	s.UnitPrice = decimal.NewNullDecimal(unit)
	derive(&s)
	return s, nil
}

// SetFactor changes the factor of the active mode and recomputes the derived
// prices when the entered price is populated.
func SetFactor(s domain.SkuVariant, factor decimal.Decimal) (domain.SkuVariant, error) {
	if !factor.IsPositive() {
		return s, ErrInvalidFactor
	}
	s.Factor = factor
	derive(&s)
	return s, nil
}

func derive(s *domain.SkuVariant) {
	switch s.PricingMode {
	case domain.PricingConversion:
		if !s.MRP.Valid {
			return
		}
		s.UnitPrice = decimal.NewNullDecimal(round(s.MRP.Decimal.Div(s.Factor)))
		s.SellingPrice = s.MRP
	case domain.PricingMultiplication:
		if !s.UnitPrice.Valid {
			return
		}
		total := round(s.UnitPrice.Decimal.Mul(s.Factor))
		s.MRP = decimal.NewNullDecimal(total)
		s.SellingPrice = decimal.NewNullDecimal(total)
	}
}
