package variant

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-variant-service/internal/domain"
	"product-variant-service/internal/pricing"
)

func testDefaults() pricing.Defaults {
	return pricing.Defaults{
		Mode:                 domain.PricingConversion,
		ConversionFactor:     decimal.NewFromInt(1),
		MultiplicationFactor: decimal.NewFromInt(1),
	}
}

func colorSet(values ...string) domain.FacetSet {
	return domain.FacetSet{{Name: "Color", Values: values}}
}

func sizeSet(values ...string) domain.FacetSet {
	return domain.FacetSet{{Name: "Size", Values: values}}
}

func skuNames(p domain.ProductVariant) []string {
	names := make([]string, len(p.Skus))
	for i, s := range p.Skus {
		names[i] = s.SkuName
	}
	return names
}

func masterCount(p domain.ProductVariant) int {
	n := 0
	for _, s := range p.Skus {
		if s.Master {
			n++
		}
	}
	return n
}

func TestMerge_ChairScenario(t *testing.T) {
	e := NewEngine(testDefaults())

	tree := e.Merge(GenerateProducts("Chair", colorSet("Red", "Blue")), domain.Tree{}, sizeSet("S", "M"))

	require.Len(t, tree.Products, 2)
	assert.Equal(t, "Chair Red", tree.Products[0].Name)
	assert.Equal(t, "Chair Blue", tree.Products[1].Name)
	assert.Equal(t, []string{"Chair Red S", "Chair Red M"}, skuNames(tree.Products[0]))
	assert.Equal(t, []string{"Chair Blue S", "Chair Blue M"}, skuNames(tree.Products[1]))
	assert.Equal(t, 4, tree.SkuCount())
	for _, p := range tree.Products {
		assert.Equal(t, 1, masterCount(p))
		assert.True(t, p.Skus[0].Master)
	}
}

func TestMerge_NewSkuDefaults(t *testing.T) {
	d := pricing.Defaults{
		Mode:                 domain.PricingMultiplication,
		ConversionFactor:     decimal.NewFromInt(2),
		MultiplicationFactor: decimal.NewFromInt(3),
	}
	tree := NewEngine(d).Merge(GenerateProducts("Chair", colorSet("Red")), domain.Tree{}, nil)

	require.Len(t, tree.Products, 1)
	require.Len(t, tree.Products[0].Skus, 1)
	s := tree.Products[0].Skus[0]
	assert.Equal(t, "Chair Red", s.SkuName)
	assert.Empty(t, s.SkuCode)
	assert.False(t, s.MRP.Valid)
	assert.False(t, s.UnitPrice.Valid)
	assert.False(t, s.SellingPrice.Valid)
	assert.Equal(t, domain.DefaultUOM, s.UOM)
	assert.Equal(t, 1, s.ThresholdQuantity)
	assert.Equal(t, domain.SkuStatusActive, s.Status)
	assert.Equal(t, domain.PricingMultiplication, s.PricingMode)
	assert.True(t, s.Factor.Equal(decimal.NewFromInt(3)))
	assert.True(t, s.Master)
}

func TestMerge_Idempotent(t *testing.T) {
	e := NewEngine(testDefaults())
	candidates := GenerateProducts("Chair", colorSet("Red", "Blue"))
	options := sizeSet("S", "M")

	first := e.Merge(candidates, domain.Tree{}, options)
	first.Products[0].Skus[1].SkuCode = "RED-M"
	first.Products[0].Media = []domain.MediaItem{{ID: "m1", URL: "u", Sequence: 1, Active: true}}

	second := e.Merge(candidates, first, options)
	third := e.Merge(candidates, second, options)

	assert.Equal(t, first, second)
	assert.Equal(t, second, third)
}

func TestMerge_PreservesMatchedSku(t *testing.T) {
	e := NewEngine(testDefaults())
	candidates := GenerateProducts("Chair", colorSet("Red"))

	tree := e.Merge(candidates, domain.Tree{}, sizeSet("S", "M"))
	tree.Products[0].Skus[1].SkuCode = "X"
	tree.Products[0].Skus[1].MRP = decimal.NewNullDecimal(decimal.NewFromInt(10))
	tree.Products[0].Skus[1].Status = domain.SkuStatusInactive

	// Options grow and get reordered; M keeps its record.
	next := e.Merge(candidates, tree, sizeSet("L", "M", "S"))
	require.Equal(t, []string{"Chair Red L", "Chair Red M", "Chair Red S"}, skuNames(next.Products[0]))
	m := next.Products[0].Skus[1]
	assert.Equal(t, "X", m.SkuCode)
	assert.True(t, m.MRP.Decimal.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, domain.SkuStatusInactive, m.Status)

	// The existing master (S) keeps the flag even though it is no longer first.
	assert.False(t, next.Products[0].Skus[0].Master)
	assert.True(t, next.Products[0].Skus[2].Master)
	assert.Equal(t, 1, masterCount(next.Products[0]))
}

func TestMerge_MasterReassignedWhenMasterDropped(t *testing.T) {
	e := NewEngine(testDefaults())
	candidates := GenerateProducts("Chair", colorSet("Red"))

	tree := e.Merge(candidates, domain.Tree{}, sizeSet("S", "M", "L"))
	require.True(t, tree.Products[0].Skus[0].Master)

	next := e.Merge(candidates, tree, sizeSet("M", "L"))
	assert.Equal(t, []string{"Chair Red M", "Chair Red L"}, skuNames(next.Products[0]))
	assert.True(t, next.Products[0].Skus[0].Master)
	assert.Equal(t, 1, masterCount(next.Products[0]))
}

func TestMerge_DuplicateMastersCollapse(t *testing.T) {
	e := NewEngine(testDefaults())
	candidates := GenerateProducts("Chair", colorSet("Red"))
	tree := e.Merge(candidates, domain.Tree{}, sizeSet("S", "M"))
	tree.Products[0].Skus[1].Master = true

	next := e.Merge(candidates, tree, sizeSet("S", "M"))
	assert.True(t, next.Products[0].Skus[0].Master)
	assert.False(t, next.Products[0].Skus[1].Master)
}

func TestMerge_DropsUnmatchedAndFollowsCandidateOrder(t *testing.T) {
	e := NewEngine(testDefaults())
	tree := e.Merge(GenerateProducts("Chair", colorSet("Red", "Blue")), domain.Tree{}, sizeSet("S", "M"))
	tree.Products[0].Skus[0].SkuCode = "RED-S"

	next := e.Merge(GenerateProducts("Chair", colorSet("Green", "Red")), tree, sizeSet("S", "M"))
	require.Len(t, next.Products, 2)
	assert.Equal(t, "Chair Green", next.Products[0].Name)
	assert.Equal(t, "Chair Red", next.Products[1].Name)
	assert.Equal(t, "RED-S", next.Products[1].Skus[0].SkuCode)
	assert.Equal(t, -1, next.ProductIndex(tree.Products[1].Identity), "Chair Blue is gone")
}

func TestMerge_EmptyCandidatesDropEverything(t *testing.T) {
	e := NewEngine(testDefaults())
	tree := e.Merge(GenerateProducts("Chair", colorSet("Red")), domain.Tree{}, nil)
	next := e.Merge(GenerateProducts("", colorSet("Red")), tree, nil)
	assert.True(t, next.Empty())
}

func TestMerge_BaseNameChangeRefreshesGeneratedText(t *testing.T) {
	e := NewEngine(testDefaults())
	tree := e.Merge(GenerateProducts("Chair", colorSet("Red")), domain.Tree{}, sizeSet("S", "M"))
	tree.Products[0].Skus[0].SkuCode = "RED-S"
	tree.Products[0].Skus[1].DisplayName = "Red chair, medium"

	next := e.Merge(GenerateProducts("Stool", colorSet("Red")), tree, sizeSet("S", "M"))
	p := next.Products[0]
	assert.Equal(t, "Stool Red", p.Name)
	assert.Equal(t, "Stool Red", p.DisplayName)
	assert.Equal(t, "Stool Red S", p.Skus[0].SkuName)
	assert.Equal(t, "RED-S", p.Skus[0].SkuCode)
	assert.Equal(t, "Stool Red S", p.Skus[0].DisplayName)
	assert.Equal(t, "Red chair, medium", p.Skus[1].DisplayName, "operator display names are kept")
}

func TestMerge_FacetNameCaseChangeKeepsIdentity(t *testing.T) {
	e := NewEngine(testDefaults())
	tree := e.Merge(GenerateProducts("Chair", colorSet("Red")), domain.Tree{}, sizeSet("S"))
	tree.Products[0].Skus[0].SkuCode = "RED-S"

	next := e.Merge(
		GenerateProducts("Chair", domain.FacetSet{{Name: "COLOR", Values: []string{"Red"}}}),
		tree,
		domain.FacetSet{{Name: "size", Values: []string{"S"}}},
	)
	assert.Equal(t, "RED-S", next.Products[0].Skus[0].SkuCode)
}

func TestMerge_NameFallbackForIdentitylessSkus(t *testing.T) {
	e := NewEngine(testDefaults())
	candidates := GenerateProducts("Chair", colorSet("Red"))
	tree := domain.Tree{Products: []domain.ProductVariant{{
		Identity: candidates[0].Identity,
		Name:     "Chair Red",
		Skus: []domain.SkuVariant{
			{SkuName: "chair red  m", SkuCode: "LEGACY-M", Master: true},
		},
	}}}

	next := e.Merge(candidates, tree, sizeSet("S", "M"))
	require.Len(t, next.Products[0].Skus, 2)
	m := next.Products[0].Skus[1]
	assert.Equal(t, "LEGACY-M", m.SkuCode)
	assert.Equal(t, "Chair Red M", m.SkuName)
	assert.NotEmpty(t, m.Identity, "identity is adopted from the candidate")
	assert.True(t, m.Master)
	assert.False(t, next.Products[0].Skus[0].Master)
}

func TestMerge_DoesNotAliasInput(t *testing.T) {
	e := NewEngine(testDefaults())
	candidates := GenerateProducts("Chair", colorSet("Red"))
	tree := e.Merge(candidates, domain.Tree{}, sizeSet("S"))
	tree.Products[0].Skus[0].Media = []domain.MediaItem{{ID: "a", Sequence: 1}}

	next := e.Merge(candidates, tree, sizeSet("S"))
	next.Products[0].Skus[0].Media[0].URL = "changed"
	next.Products[0].Skus[0].SkuCode = "changed"

	assert.Empty(t, tree.Products[0].Skus[0].Media[0].URL)
	assert.Empty(t, tree.Products[0].Skus[0].SkuCode)
}
