package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"product-variant-service/internal/domain"
)

// Validate runs the submit-time price checks on one SKU and returns every
// problem found, combined with multierr.
func Validate(s domain.SkuVariant) error {
	var err error

	if !s.PricingMode.Valid() {
		err = multierr.Append(err, fmt.Errorf("%w: %q", ErrUnknownMode, s.PricingMode))
	}
	if !s.Factor.IsPositive() {
		err = multierr.Append(err, fmt.Errorf("%w: got %s", ErrInvalidFactor, s.Factor))
	}

	prices := []struct {
		field string
		value decimal.NullDecimal
	}{
		{"mrp", s.MRP},
		{"unit_price", s.UnitPrice},
		{"selling_price", s.SellingPrice},
	}
	complete := true
	for _, p := range prices {
		switch {
		case !p.value.Valid:
			err = multierr.Append(err, fmt.Errorf("%w: %s", ErrMissingPrice, p.field))
			complete = false
		case !p.value.Decimal.IsPositive():
			err = multierr.Append(err, fmt.Errorf("%w: %s", ErrInvalidPrice, p.field))
			complete = false
		}
	}
	if !complete || err != nil {
		return err
	}

	if s.SellingPrice.Decimal.GreaterThan(s.MRP.Decimal) {
		err = multierr.Append(err, fmt.Errorf("%w: %s > %s", ErrSellingAboveMRP,
			s.SellingPrice.Decimal.StringFixed(places), s.MRP.Decimal.StringFixed(places)))
	}

	switch s.PricingMode {
	case domain.PricingConversion:
		expected := round(s.MRP.Decimal.Div(s.Factor))
		if s.UnitPrice.Decimal.Sub(expected).Abs().GreaterThan(Tolerance) {
			err = multierr.Append(err, fmt.Errorf(
				"%w between unit_price and mrp: unit_price %s, expected %s for conversion_factor %s",
				ErrMismatch, s.UnitPrice.Decimal.StringFixed(places), expected.StringFixed(places), s.Factor))
		}
	case domain.PricingMultiplication:
		expected := round(s.UnitPrice.Decimal.Mul(s.Factor))
		if s.MRP.Decimal.Sub(expected).Abs().GreaterThan(Tolerance) {
			err = multierr.Append(err, fmt.Errorf(
				"%w between mrp and unit_price: mrp %s, expected %s for multiplication_factor %s",
				ErrMismatch, s.MRP.Decimal.StringFixed(places), expected.StringFixed(places), s.Factor))
		}
	}
	return err
}
