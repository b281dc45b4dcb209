package variant

import (
	"errors"
	"fmt"
	"strings"

	"product-variant-service/internal/domain"
)

// ErrTooManyCombinations is returned when facets would expand past the
// configured number of products or SKUs.
var ErrTooManyCombinations = errors.New("variant: too many combinations")

// CombinationCount returns how many combinations the valid facets of set
// expand to, stopping once the count exceeds limit (limit <= 0 means no limit).
func CombinationCount(set domain.FacetSet, limit int) int {
	n := 1
	for _, f := range set.Valid() {
		n *= len(f.Values)
		if limit > 0 && n > limit {
			return n
		}
	}
	return n
}

// checkCombinations fails when properties x options exceed limit.
func checkCombinations(properties, options domain.FacetSet, limit int) error {
	if limit <= 0 {
		return nil
	}
	products := CombinationCount(properties, limit)
	if products > limit {
		return fmt.Errorf("%w: more than %d products", ErrTooManyCombinations, limit)
	}
	skus := CombinationCount(options, limit)
	if skus > limit || products*skus > limit {
		return fmt.Errorf("%w: %d products with %d SKUs each exceed %d", ErrTooManyCombinations, products, skus, limit)
	}
	return nil
}

// Cartesian expands value lists into every combination, first list major: the
// last list varies fastest. No lists yield exactly one empty combination.
func Cartesian(lists [][]string) [][]string {
	out := [][]string{{}}
	for _, values := range lists {
		next := make([][]string, 0, len(out)*len(values))
		for _, prefix := range out {
			for _, v := range values {
				combo := make([]string, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, v))
			}
		}
		out = next
	}
	return out
}

func valueLists(facets domain.FacetSet) [][]string {
	lists := make([][]string, len(facets))
	for i, f := range facets {
		lists[i] = f.Values
	}
	return lists
}

func joinName(base string, values []string) string {
	return strings.TrimSpace(base + " " + strings.Join(values, " "))
}

// GenerateProducts builds one candidate product per combination of the valid
// property facets. A blank base name or no valid facets produce nothing.
func GenerateProducts(baseName string, properties domain.FacetSet) []domain.ProductVariant {
	if strings.TrimSpace(baseName) == "" {
		return nil
	}
	valid := properties.Valid()
	if len(valid) == 0 {
		return nil
	}

	combos := Cartesian(valueLists(valid))
	out := make([]domain.ProductVariant, 0, len(combos))
	for _, combo := range combos {
		assignments := make([]domain.Assignment, len(combo))
		for i, v := range combo {
			assignments[i] = domain.Assignment{Name: strings.TrimSpace(valid[i].Name), Value: v}
		}
		name := joinName(baseName, combo)
		out = append(out, domain.ProductVariant{
			Identity:    domain.NewIdentityKey(assignments),
			Name:        name,
			DisplayName: name,
			Properties:  assignments,
		})
	}
	return out
}

// BaseProduct is the single property-less candidate used while no property
// facet is valid.
func BaseProduct(baseName string) []domain.ProductVariant {
	name := strings.TrimSpace(baseName)
	if name == "" {
		return nil
	}
	return []domain.ProductVariant{{
		Identity:    domain.NewIdentityKey(nil),
		Name:        name,
		DisplayName: name,
		Properties:  []domain.Assignment{},
	}}
}

// GenerateSkus builds one candidate SKU per combination of the valid option
// facets, or a single default SKU named after the product when there are none.
// Option type names are lowercased in the assignments.
func GenerateSkus(productName string, options domain.FacetSet) []domain.SkuVariant {
	valid := options.Valid()
	combos := Cartesian(valueLists(valid))

	out := make([]domain.SkuVariant, 0, len(combos))
	for _, combo := range combos {
		assignments := make([]domain.Assignment, len(combo))
		for i, v := range combo {
			assignments[i] = domain.Assignment{
				Name:  strings.ToLower(strings.TrimSpace(valid[i].Name)),
				Value: v,
			}
		}
		name := joinName(productName, combo)
		out = append(out, domain.SkuVariant{
			Identity:    domain.NewIdentityKey(assignments),
			SkuName:     name,
			DisplayName: name,
			Options:     assignments,
		})
	}
	return out
}
