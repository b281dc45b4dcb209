package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"product-variant-service/internal/domain"
	"product-variant-service/internal/draft"
	"product-variant-service/internal/pricing"
	"product-variant-service/internal/variant"
)

// --- Draft lifecycle ---

func (h *HTTPHandler) session(w http.ResponseWriter, r *http.Request) (*draft.Session, bool) {
	s, err := h.drafts.Get(chi.URLParam(r, "draftId"))
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to load draft")
		return nil, false
	}
	return s, true
}

func (h *HTTPHandler) respondWithState(w http.ResponseWriter, r *http.Request, st draft.State, err error, fallback string) {
	if err != nil {
		h.respondWithDomainError(w, r, err, fallback)
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

func (h *HTTPHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	s, err := h.drafts.Create()
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to create draft")
		return
	}
	respondWithJSON(w, http.StatusCreated, s.Snapshot())
}

func (h *HTTPHandler) OpenProductDraft(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || productID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	s, err := h.drafts.Open(r.Context(), productID)
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to open product for editing")
		return
	}
	respondWithJSON(w, http.StatusCreated, s.Snapshot())
}

func (h *HTTPHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, s.Snapshot())
}

func (h *HTTPHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.drafts.Delete(chi.URLParam(r, "draftId")); err != nil {
		h.respondWithDomainError(w, r, err, "Failed to delete draft")
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// --- Facet edits ---
//
// Every regenerating edit carries "confirm". When the edit would drop data and
// confirm is false, the draft is left unchanged and the response is 409 with
// the prompt; the client asks the operator and repeats the call with
// confirm=true.

// BaseNameInput sets the base product name.
type BaseNameInput struct {
	Name    string `json:"name" validate:"max=255"`
	Confirm bool   `json:"confirm"`
}

func (h *HTTPHandler) SetBaseName(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var input BaseNameInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	st, err := s.SetBaseName(r.Context(), input.Name, variant.AutoConfirm(input.Confirm))
	h.respondWithState(w, r, st, err, "Failed to update base name")
}

// FacetNameInput adds or renames a facet. A blank name is allowed while the
// operator has not chosen one.
type FacetNameInput struct {
	Name    string `json:"name" validate:"max=255"`
	Confirm bool   `json:"confirm"`
}

// FacetValueInput adds a value to a facet.
type FacetValueInput struct {
	Value   string `json:"value" validate:"required,max=255"`
	Confirm bool   `json:"confirm"`
}

func (h *HTTPHandler) editFacets(w http.ResponseWriter, r *http.Request, confirm bool, edit func(domain.FacetSet) (domain.FacetSet, error)) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	kind := draft.FacetKind(chi.URLParam(r, "facetKind"))
	st, err := s.EditFacets(r.Context(), kind, edit, variant.AutoConfirm(confirm))
	h.respondWithState(w, r, st, err, "Failed to edit facets")
}

func (h *HTTPHandler) AddFacet(w http.ResponseWriter, r *http.Request) {
	var input FacetNameInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	h.editFacets(w, r, input.Confirm, func(set domain.FacetSet) (domain.FacetSet, error) {
		return set.AddFacet(input.Name)
	})
}

func (h *HTTPHandler) RenameFacet(w http.ResponseWriter, r *http.Request) {
	index, ok := pathInt(r, "index")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid facet index")
		return
	}
	var input FacetNameInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	h.editFacets(w, r, input.Confirm, func(set domain.FacetSet) (domain.FacetSet, error) {
		return set.RenameFacet(index, input.Name)
	})
}

// RemoveFacet handles DELETE .../facets/{index}?confirm=true.
func (h *HTTPHandler) RemoveFacet(w http.ResponseWriter, r *http.Request) {
	index, ok := pathInt(r, "index")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid facet index")
		return
	}
	h.editFacets(w, r, queryBool(r, "confirm"), func(set domain.FacetSet) (domain.FacetSet, error) {
		return set.RemoveFacet(index)
	})
}

func (h *HTTPHandler) AddFacetValue(w http.ResponseWriter, r *http.Request) {
	index, ok := pathInt(r, "index")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid facet index")
		return
	}
	var input FacetValueInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	h.editFacets(w, r, input.Confirm, func(set domain.FacetSet) (domain.FacetSet, error) {
		return set.AddValue(index, input.Value)
	})
}

// RemoveFacetValue handles DELETE .../facets/{index}/values?value=Blue&confirm=true.
func (h *HTTPHandler) RemoveFacetValue(w http.ResponseWriter, r *http.Request) {
	index, ok := pathInt(r, "index")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid facet index")
		return
	}
	value := r.URL.Query().Get("value")
	if value == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter value is required")
		return
	}
	h.editFacets(w, r, queryBool(r, "confirm"), func(set domain.FacetSet) (domain.FacetSet, error) {
		return set.RemoveValue(index, value)
	})
}

// --- SKU edits ---

func skuTarget(r *http.Request) (domain.IdentityKey, domain.IdentityKey) {
	return domain.IdentityKey(chi.URLParam(r, "productKey")), domain.IdentityKey(chi.URLParam(r, "skuKey"))
}

// SkuUpdateInput holds the free-form SKU fields; omitted fields are unchanged.
type SkuUpdateInput struct {
	SkuCode           *string `json:"sku_code" validate:"omitempty,max=100"`
	DisplayName       *string `json:"display_name" validate:"omitempty,max=255"`
	UOM               *string `json:"uom" validate:"omitempty,min=1,max=50"`
	ThresholdQuantity *int    `json:"threshold_quantity" validate:"omitempty,gte=1"`
	Status            *string `json:"status" validate:"omitempty,oneof=active inactive deleted"`
}

func (h *HTTPHandler) UpdateSku(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var input SkuUpdateInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	details := draft.SkuDetails{
		SkuCode:           input.SkuCode,
		DisplayName:       input.DisplayName,
		UOM:               input.UOM,
		ThresholdQuantity: input.ThresholdQuantity,
	}
	if input.Status != nil {
		status := domain.SkuStatus(*input.Status)
		details.Status = &status
	}

	productKey, skuKey := skuTarget(r)
	st, err := s.SetSkuDetails(r.Context(), productKey, skuKey, details)
	h.respondWithState(w, r, st, err, "Failed to update SKU")
}

// PricingModeInput selects the pricing mode and its factor.
type PricingModeInput struct {
	Mode   string          `json:"mode" validate:"required,oneof=conversion multiplication"`
	Factor decimal.Decimal `json:"factor"`
}

func (h *HTTPHandler) SetSkuPricingMode(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var input PricingModeInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	productKey, skuKey := skuTarget(r)
	st, err := s.SetPricingMode(r.Context(), productKey, skuKey, domain.PricingMode(input.Mode), input.Factor)
	h.respondWithState(w, r, st, err, "Failed to set pricing mode")
}

func (h *HTTPHandler) SetProductPricingMode(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var input PricingModeInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	productKey, _ := skuTarget(r)
	st, err := s.SetProductPricingMode(r.Context(), productKey, domain.PricingMode(input.Mode), input.Factor)
	h.respondWithState(w, r, st, err, "Failed to set pricing mode")
}

// PricesInput enters the operator-side price of a SKU. Only the price the
// active mode takes as input may be sent: mrp in conversion mode, unit_price
// in multiplication mode. A factor, when present, is applied first.
type PricesInput struct {
	Factor    *decimal.Decimal `json:"factor"`
	MRP       *decimal.Decimal `json:"mrp"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

func (h *HTTPHandler) SetSkuPrices(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var input PricesInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	if input.Factor == nil && input.MRP == nil && input.UnitPrice == nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: one of factor, mrp or unit_price is required")
		return
	}

	productKey, skuKey := skuTarget(r)
	st, err := s.UpdateSku(r.Context(), productKey, skuKey, func(sku domain.SkuVariant) (domain.SkuVariant, error) {
		return applyPrices(sku, input)
	})
	h.respondWithState(w, r, st, err, "Failed to set prices")
}

func applyPrices(sku domain.SkuVariant, in PricesInput) (domain.SkuVariant, error) {
	var err error
	if in.Factor != nil {
		if sku, err = pricing.SetFactor(sku, *in.Factor); err != nil {
			return sku, err
		}
	}
	if in.MRP != nil {
		if sku, err = pricing.SetMRP(sku, *in.MRP); err != nil {
			return sku, err
		}
	}
	if in.UnitPrice != nil {
		if sku, err = pricing.SetUnitPrice(sku, *in.UnitPrice); err != nil {
			return sku, err
		}
	}
	return sku, nil
}

func (h *HTTPHandler) SetMaster(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	productKey, skuKey := skuTarget(r)
	st, err := s.SetMaster(r.Context(), productKey, skuKey)
	h.respondWithState(w, r, st, err, "Failed to set master SKU")
}

// --- Submission ---

func (h *HTTPHandler) ValidateDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Validate(); err != nil {
		h.respondWithDomainError(w, r, err, "Failed to validate draft")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (h *HTTPHandler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := s.Submit(r.Context())
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to submit draft")
		return
	}
	respondWithJSON(w, http.StatusCreated, res)
}

func (h *HTTPHandler) GetPayload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, s.Payloads())
}
