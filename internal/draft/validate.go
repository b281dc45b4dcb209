package draft

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"product-variant-service/internal/domain"
	"product-variant-service/internal/media"
	"product-variant-service/internal/pricing"
)

var errNothingToSubmit = errors.New("nothing to submit: the draft has no products")

// validateTree collects every submission problem of t into a ValidationError.
func validateTree(t domain.Tree) error {
	var err error
	if t.Empty() {
		err = multierr.Append(err, errNothingToSubmit)
	}

	for _, p := range t.Products {
		label := p.Name
		if strings.TrimSpace(p.Name) == "" {
			err = multierr.Append(err, errors.New("product name is required"))
			label = "(unnamed)"
		}
		if len(p.Skus) == 0 {
			err = multierr.Append(err, fmt.Errorf("product %q has no SKUs", label))
		} else if n := countMasters(p.Skus); n != 1 {
			err = multierr.Append(err, fmt.Errorf("product %q must have exactly one master SKU, has %d", label, n))
		}
		if mErr := media.Check(p.Media); mErr != nil {
			err = multierr.Append(err, fmt.Errorf("product %q: %w", label, mErr))
		}

		for _, s := range p.Skus {
			err = multierr.Append(err, validateSku(s))
		}
	}

	if err == nil {
		return nil
	}
	problems := make([]string, 0, len(multierr.Errors(err)))
	for _, e := range multierr.Errors(err) {
		problems = append(problems, e.Error())
	}
	return &ValidationError{Problems: problems}
}

func validateSku(s domain.SkuVariant) error {
	label := s.SkuName
	var err error
	if strings.TrimSpace(s.SkuName) == "" {
		err = multierr.Append(err, errors.New("sku name is required"))
		label = "(unnamed)"
	}
	if strings.TrimSpace(s.UOM) == "" {
		err = multierr.Append(err, fmt.Errorf("sku %q: uom is required", label))
	}
	if s.ThresholdQuantity < 1 {
		err = multierr.Append(err, fmt.Errorf("sku %q: threshold_quantity must be at least 1", label))
	}
	if !s.Status.Valid() {
		err = multierr.Append(err, fmt.Errorf("sku %q: unknown status %q", label, s.Status))
	}
	for _, pErr := range multierr.Errors(pricing.Validate(s)) {
		err = multierr.Append(err, fmt.Errorf("sku %q: %w", label, pErr))
	}
	if mErr := media.Check(s.Media); mErr != nil {
		err = multierr.Append(err, fmt.Errorf("sku %q: %w", label, mErr))
	}
	return err
}

func countMasters(skus []domain.SkuVariant) int {
	n := 0
	for _, s := range skus {
		if s.Master {
			n++
		}
	}
	return n
}
