package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"product-variant-service/internal/domain"
	"product-variant-service/internal/draft"
	"product-variant-service/internal/media"
	"product-variant-service/internal/metrics"
	"product-variant-service/internal/pricing"
	"product-variant-service/internal/store"
	"product-variant-service/internal/variant"
)

// MockVocabularyStorer is a mock implementation of store.VocabularyStorer
type MockVocabularyStorer struct {
	mock.Mock
}

func (m *MockVocabularyStorer) ListVocabulary(ctx context.Context, kind domain.VocabularyKind) ([]domain.VocabularyEntry, error) {
	args := m.Called(ctx, kind)
	var entries []domain.VocabularyEntry
	if arg0 := args.Get(0); arg0 != nil {
		entries = arg0.([]domain.VocabularyEntry)
	}
	return entries, args.Error(1)
}

func (m *MockVocabularyStorer) CreateVocabulary(ctx context.Context, kind domain.VocabularyKind, name string) (*domain.VocabularyEntry, error) {
	args := m.Called(ctx, kind, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VocabularyEntry), args.Error(1)
}

// MockProductStorer is a mock implementation of store.ProductStorer
type MockProductStorer struct {
	mock.Mock
}

func (m *MockProductStorer) SubmitProducts(ctx context.Context, products []domain.ProductPayload) ([]int64, error) {
	args := m.Called(ctx, products)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockProductStorer) UpdateProduct(ctx context.Context, id int64, product domain.ProductPayload) error {
	args := m.Called(ctx, id, product)
	return args.Error(0)
}

func (m *MockProductStorer) GetProduct(ctx context.Context, id int64) (*domain.ProductPayload, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProductPayload), args.Error(1)
}

type stubUploader struct{}

func (stubUploader) Upload(_ context.Context, f media.File) (media.Ref, error) {
	return media.Ref{URL: "https://cdn.example.com/" + f.Name, MediaType: f.ContentType}, nil
}

func newTestRegistry(t *testing.T, ps store.ProductStorer, maxDrafts int) *draft.Registry {
	t.Helper()
	return newRegistryWith(t, ps, maxDrafts, stubUploader{})
}

func newRegistryWith(t *testing.T, ps store.ProductStorer, maxDrafts int, up media.Uploader, opts ...variant.EngineOption) *draft.Registry {
	t.Helper()
	defaults := pricing.Defaults{
		Mode:                 domain.PricingConversion,
		ConversionFactor:     decimal.NewFromInt(1),
		MultiplicationFactor: decimal.NewFromInt(1),
	}
	m := metrics.New(prometheus.NewRegistry())
	reg, err := draft.NewRegistry(draft.Deps{
		Policy:         variant.NewPolicy(variant.NewEngine(defaults, opts...), nil, m),
		Uploader:       up,
		Products:       ps,
		UploadLimits:   media.Limits{MaxBytes: 1 << 20, Concurrency: 2},
		ConfirmTimeout: time.Second,
		Metrics:        m,
	}, maxDrafts)
	require.NoError(t, err)
	return reg
}

// Helper for setting up tests with a chi router and handler
func setupTestChiServer(t *testing.T, reg *draft.Registry, vs store.VocabularyStorer, opts ...HandlerOption) *httptest.Server {
	t.Helper()
	handler := NewHTTPHandler(reg, vs, nil, opts...)
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

// doJSON sends body (if any) as JSON and returns the response.
func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decodeBody(t *testing.T, res *http.Response, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(res.Body).Decode(dst))
}

// Helper function to get a pointer (useful for optional fields in input structs)
func PtrTo[T any](v T) *T {
	return &v
}

func TestHTTPHandler_CreateVocabulary_Success(t *testing.T) {
	vocab := new(MockVocabularyStorer)
	server := setupTestChiServer(t, newTestRegistry(t, nil, 0), vocab)

	now := time.Now().Truncate(time.Millisecond)
	expected := &domain.VocabularyEntry{ID: 3, Kind: domain.VocabularyProperty, Name: "Material", CreatedAt: now}
	vocab.On("CreateVocabulary", mock.Anything, domain.VocabularyProperty, "Material").Return(expected, nil).Once()

	res := doJSON(t, http.MethodPost, server.URL+"/api/v1/vocabularies/property", VocabularyCreateInput{Name: "  Material "})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var got domain.VocabularyEntry
	decodeBody(t, res, &got)
	assert.Equal(t, expected.ID, got.ID)
	assert.Equal(t, "Material", got.Name)
	vocab.AssertExpectations(t)
}

func TestHTTPHandler_CreateVocabulary_Errors(t *testing.T) {
	vocab := new(MockVocabularyStorer)
	server := setupTestChiServer(t, newTestRegistry(t, nil, 0), vocab)

	vocab.On("CreateVocabulary", mock.Anything, domain.VocabularyOptionType, "Size").
		Return(nil, store.ErrVocabularyExists).Once()

	res := doJSON(t, http.MethodPost, server.URL+"/api/v1/vocabularies/option_type", VocabularyCreateInput{Name: "Size"})
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	var errResp ErrorResponse
	decodeBody(t, res, &errResp)
	assert.Contains(t, errResp.Error, store.ErrVocabularyExists.Error())

	res = doJSON(t, http.MethodPost, server.URL+"/api/v1/vocabularies/colour", VocabularyCreateInput{Name: "Size"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = doJSON(t, http.MethodPost, server.URL+"/api/v1/vocabularies/property", VocabularyCreateInput{Name: ""})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	decodeBody(t, res, &errResp)
	assert.Contains(t, errResp.Error, "Validation failed")

	vocab.AssertExpectations(t)
}

func TestHTTPHandler_ListVocabulary(t *testing.T) {
	vocab := new(MockVocabularyStorer)
	server := setupTestChiServer(t, newTestRegistry(t, nil, 0), vocab)

	vocab.On("ListVocabulary", mock.Anything, domain.VocabularyProperty).Return([]domain.VocabularyEntry{
		{ID: 1, Kind: domain.VocabularyProperty, Name: "Color"},
		{ID: 2, Kind: domain.VocabularyProperty, Name: "Material"},
	}, nil).Once()
	vocab.On("ListVocabulary", mock.Anything, domain.VocabularyOptionType).Return(nil, nil).Once()
	vocab.On("ListVocabulary", mock.Anything, domain.VocabularyOptionType).Return(nil, errors.New("db down")).Once()

	res := doJSON(t, http.MethodGet, server.URL+"/api/v1/vocabularies/property", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var entries []domain.VocabularyEntry
	decodeBody(t, res, &entries)
	assert.Len(t, entries, 2)

	res = doJSON(t, http.MethodGet, server.URL+"/api/v1/vocabularies/option_type", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(body)))

	res = doJSON(t, http.MethodGet, server.URL+"/api/v1/vocabularies/option_type", nil)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	vocab.AssertExpectations(t)
}

func TestHTTPHandler_Healthz(t *testing.T) {
	healthy := setupTestChiServer(t, newTestRegistry(t, nil, 0), nil)
	res := doJSON(t, http.MethodGet, healthy.URL+"/api/v1/healthz", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	failing := setupTestChiServer(t, newTestRegistry(t, nil, 0), nil,
		WithHealthCheck(func(context.Context) error { return errors.New("connection refused") }))
	res = doJSON(t, http.MethodGet, failing.URL+"/api/v1/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}
