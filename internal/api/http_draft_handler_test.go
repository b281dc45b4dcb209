package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"product-variant-service/internal/domain"
	"product-variant-service/internal/draft"
	"product-variant-service/internal/store"
	"product-variant-service/internal/variant"
)

// chairDraft drives a new draft to Chair {Red, Blue} x {S, M} over HTTP.
func chairDraft(t *testing.T, baseURL string) (string, draft.State) {
	t.Helper()
	res := doJSON(t, http.MethodPost, baseURL+"/api/v1/drafts", nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var st draft.State
	decodeBody(t, res, &st)
	draftURL := baseURL + "/api/v1/drafts/" + st.ID

	steps := []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodPut, "/base-name", BaseNameInput{Name: "Chair"}},
		{http.MethodPost, "/properties/facets", FacetNameInput{Name: "Color"}},
		{http.MethodPost, "/properties/facets/0/values", FacetValueInput{Value: "Red"}},
		{http.MethodPost, "/properties/facets/0/values", FacetValueInput{Value: "Blue"}},
		{http.MethodPost, "/options/facets", FacetNameInput{Name: "Size"}},
		{http.MethodPost, "/options/facets/0/values", FacetValueInput{Value: "S"}},
		{http.MethodPost, "/options/facets/0/values", FacetValueInput{Value: "M"}},
	}
	for _, step := range steps {
		res := doJSON(t, step.method, draftURL+step.path, step.body)
		require.Equal(t, http.StatusOK, res.StatusCode, "%s %s", step.method, step.path)
	}

	res = doJSON(t, http.MethodGet, draftURL, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	decodeBody(t, res, &st)
	require.Len(t, st.Tree.Products, 2)
	require.Equal(t, 4, st.Tree.SkuCount())
	return draftURL, st
}

func skuURL(draftURL string, p domain.ProductVariant, i int) string {
	return draftURL + "/products/" + string(p.Identity) + "/skus/" + string(p.Skus[i].Identity)
}

func TestHTTPHandler_DraftConfirmationRoundTrip(t *testing.T) {
	server := setupTestChiServer(t, newTestRegistry(t, nil, 0), nil)
	draftURL, st := chairDraft(t, server.URL)
	blue := st.Tree.Products[1]

	res := doJSON(t, http.MethodPut, skuURL(draftURL, blue, 0), SkuUpdateInput{SkuCode: PtrTo("BLUE-S")})
	require.Equal(t, http.StatusOK, res.StatusCode)

	// Without confirm the edit is refused and the prompt is returned.
	res = doJSON(t, http.MethodDelete, draftURL+"/properties/facets/0/values?value=Blue", nil)
	require.Equal(t, http.StatusConflict, res.StatusCode)
	var errResp ErrorResponse
	decodeBody(t, res, &errResp)
	assert.Contains(t, errResp.Prompt, `product "Chair Blue" with 2 SKUs`)

	res = doJSON(t, http.MethodGet, draftURL, nil)
	decodeBody(t, res, &st)
	assert.Len(t, st.Tree.Products, 2)

	res = doJSON(t, http.MethodDelete, draftURL+"/properties/facets/0/values?value=Blue&confirm=true", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	decodeBody(t, res, &st)
	require.Len(t, st.Tree.Products, 1)
	assert.Equal(t, "Chair Red", st.Tree.Products[0].Name)
}

func TestHTTPHandler_SkuEdits(t *testing.T) {
	server := setupTestChiServer(t, newTestRegistry(t, nil, 0), nil)
	draftURL, st := chairDraft(t, server.URL)
	red := st.Tree.Products[0]

	res := doJSON(t, http.MethodPut, skuURL(draftURL, red, 0)+"/prices", map[string]string{"mrp": "120.50"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	decodeBody(t, res, &st)
	sku := st.Tree.Products[0].Skus[0]
	assert.Equal(t, "120.5", sku.MRP.Decimal.String())
	assert.Equal(t, "120.5", sku.UnitPrice.Decimal.String())

	// unit_price is derived in conversion mode.
	res = doJSON(t, http.MethodPut, skuURL(draftURL, red, 0)+"/prices", map[string]string{"unit_price": "3"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = doJSON(t, http.MethodPut, skuURL(draftURL, red, 0)+"/prices", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = doJSON(t, http.MethodPut, skuURL(draftURL, red, 1)+"/pricing-mode", PricingModeInput{Mode: "barter"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = doJSON(t, http.MethodPut, skuURL(draftURL, red, 1)+"/pricing-mode", map[string]string{"mode": "multiplication", "factor": "12"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	decodeBody(t, res, &st)
	assert.Equal(t, domain.PricingMultiplication, st.Tree.Products[0].Skus[1].PricingMode)

	res = doJSON(t, http.MethodPut, skuURL(draftURL, red, 1)+"/master", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	decodeBody(t, res, &st)
	assert.True(t, st.Tree.Products[0].Skus[1].Master)
	assert.False(t, st.Tree.Products[0].Skus[0].Master)

	res = doJSON(t, http.MethodPut, skuURL(draftURL, red, 1), SkuUpdateInput{Status: PtrTo("archived")})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = doJSON(t, http.MethodPut, draftURL+"/products/unknown/skus/unknown/master", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestHTTPHandler_FacetErrors(t *testing.T) {
	server := setupTestChiServer(t, newTestRegistry(t, nil, 0), nil)
	draftURL, _ := chairDraft(t, server.URL)

	res := doJSON(t, http.MethodPost, draftURL+"/properties/facets", FacetNameInput{Name: "color"})
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res = doJSON(t, http.MethodPost, draftURL+"/options/facets/7/values", FacetValueInput{Value: "L"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = doJSON(t, http.MethodPost, draftURL+"/tags/facets", FacetNameInput{Name: "x"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = doJSON(t, http.MethodDelete, draftURL+"/options/facets/abc", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHTTPHandler_SubmitValidation(t *testing.T) {
	products := new(MockProductStorer)
	server := setupTestChiServer(t, newTestRegistry(t, products, 0), nil)
	draftURL, st := chairDraft(t, server.URL)

	res := doJSON(t, http.MethodPost, draftURL+"/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	var errResp ErrorResponse
	decodeBody(t, res, &errResp)
	assert.NotEmpty(t, errResp.Details)
	products.AssertNotCalled(t, "SubmitProducts", mock.Anything, mock.Anything)

	for _, p := range st.Tree.Products {
		for i := range p.Skus {
			res := doJSON(t, http.MethodPut, skuURL(draftURL, p, i)+"/prices", map[string]string{"mrp": "50"})
			require.Equal(t, http.StatusOK, res.StatusCode)
		}
	}

	res = doJSON(t, http.MethodPost, draftURL+"/validate", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = doJSON(t, http.MethodGet, draftURL+"/payload", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var payloads []domain.ProductPayload
	decodeBody(t, res, &payloads)
	require.Len(t, payloads, 2)
	assert.Equal(t, 50.0, payloads[0].ProductSkus[0].MRP)

	products.On("SubmitProducts", mock.Anything, mock.AnythingOfType("[]domain.ProductPayload")).Return([]int64{11, 12}, nil).Once()
	res = doJSON(t, http.MethodPost, draftURL+"/submit", nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var result draft.SubmitResult
	decodeBody(t, res, &result)
	assert.Equal(t, []int64{11, 12}, result.ProductIDs)
	products.AssertExpectations(t)
}

func TestHTTPHandler_DraftLifecycle(t *testing.T) {
	products := new(MockProductStorer)
	products.On("GetProduct", mock.Anything, int64(5)).Return(nil, store.ErrProductNotFound).Once()
	server := setupTestChiServer(t, newTestRegistry(t, products, 1), nil)

	res := doJSON(t, http.MethodPost, server.URL+"/api/v1/drafts", nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var st draft.State
	decodeBody(t, res, &st)

	res = doJSON(t, http.MethodPost, server.URL+"/api/v1/drafts", nil)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)

	res = doJSON(t, http.MethodPost, server.URL+"/api/v1/drafts/from-product/abc", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = doJSON(t, http.MethodDelete, server.URL+"/api/v1/drafts/"+st.ID, nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res = doJSON(t, http.MethodGet, server.URL+"/api/v1/drafts/"+st.ID, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = doJSON(t, http.MethodPost, server.URL+"/api/v1/drafts/from-product/5", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	products.AssertExpectations(t)
}

func TestHTTPHandler_UploadMedia(t *testing.T) {
	server := setupTestChiServer(t, newTestRegistry(t, nil, 0), nil)
	draftURL, st := chairDraft(t, server.URL)
	red := st.Tree.Products[0]

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for _, f := range []struct{ name, contentType string }{
		{"front.jpg", "image/jpeg"},
		{"notes.txt", "text/plain"},
		{"side.png", "image/png"},
	} {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="files"; filename="`+f.name+`"`)
		header.Set("Content-Type", f.contentType)
		part, err := form.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("data"))
		require.NoError(t, err)
	}
	require.NoError(t, form.Close())

	res, err := http.Post(skuURL(draftURL, red, 0)+"/media", form.FormDataContentType(), &body)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var upload UploadResponse
	decodeBody(t, res, &upload)
	require.Len(t, upload.Failures, 1)
	assert.Equal(t, "notes.txt", upload.Failures[0].File)
	items := upload.Draft.Tree.Products[0].Skus[0].Media
	require.Len(t, items, 2)
	assert.Equal(t, "https://cdn.example.com/front.jpg", items[0].URL)
	assert.Equal(t, 1, items[0].Sequence)

	mediaURL := skuURL(draftURL, red, 0) + "/media/"
	res2 := doJSON(t, http.MethodDelete, mediaURL+items[0].ID, nil)
	assert.Equal(t, http.StatusConflict, res2.StatusCode)

	res2 = doJSON(t, http.MethodPut, mediaURL+items[1].ID+"/primary", nil)
	require.Equal(t, http.StatusOK, res2.StatusCode)
	var after draft.State
	decodeBody(t, res2, &after)
	for _, m := range after.Tree.Products[0].Skus[0].Media {
		if m.ID == items[1].ID {
			assert.Equal(t, 1, m.Sequence)
		}
	}

	res2 = doJSON(t, http.MethodDelete, mediaURL+"nope", nil)
	assert.Equal(t, http.StatusNotFound, res2.StatusCode)
}

func TestHTTPHandler_TooManyCombinations(t *testing.T) {
	reg := newRegistryWith(t, nil, 0, stubUploader{}, variant.WithMaxCombinations(4))
	server := setupTestChiServer(t, reg, nil)
	draftURL, _ := chairDraft(t, server.URL)

	res := doJSON(t, http.MethodPost, draftURL+"/options/facets/0/values", FacetValueInput{Value: "L", Confirm: true})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	var errResp ErrorResponse
	decodeBody(t, res, &errResp)
	assert.Contains(t, errResp.Error, "too many combinations")

	res = doJSON(t, http.MethodGet, draftURL, nil)
	var st draft.State
	decodeBody(t, res, &st)
	assert.Equal(t, 4, st.Tree.SkuCount())
}

func TestHTTPHandler_UploadWithoutStorage(t *testing.T) {
	server := setupTestChiServer(t, newRegistryWith(t, nil, 0, nil), nil)
	draftURL, st := chairDraft(t, server.URL)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("files", "front.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	productURL := draftURL + "/products/" + string(st.Tree.Products[0].Identity)
	res, err := http.Post(productURL+"/media", form.FormDataContentType(), &body)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}
