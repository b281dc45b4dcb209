package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"product-variant-service/internal/domain"
	"product-variant-service/internal/draft"
	"product-variant-service/internal/media"
	"product-variant-service/internal/pricing"
	"product-variant-service/internal/store"
	"product-variant-service/internal/variant"
)

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	drafts     *draft.Registry
	vocabulary store.VocabularyStorer
	validate   *validator.Validate
	logger     *zap.Logger
	health     func(ctx context.Context) error
	maxMemory  int64
}

// HandlerOption configures an HTTPHandler.
type HandlerOption func(*HTTPHandler)

// WithHealthCheck sets the check run by the healthz endpoint, typically a
// database ping.
func WithHealthCheck(fn func(ctx context.Context) error) HandlerOption {
	return func(h *HTTPHandler) { h.health = fn }
}

// WithMultipartMemory bounds the part of a multipart upload kept in memory.
func WithMultipartMemory(n int64) HandlerOption {
	return func(h *HTTPHandler) { h.maxMemory = n }
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(drafts *draft.Registry, vs store.VocabularyStorer, logger *zap.Logger, opts ...HandlerOption) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &HTTPHandler{
		drafts:     drafts,
		vocabulary: vs,
		validate:   validator.New(),
		logger:     logger,
		maxMemory:  32 << 20,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
	// Prompt is the confirmation question of a declined destructive edit.
	Prompt string `json:"prompt,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil { // Avoid writing empty body for 204 No Content
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			zap.L().Error("failed to encode JSON response", zap.Error(err))
		}
	}
}

// decodeAndValidate reads a JSON body into dst and runs the validator on it.
// It writes the 400 response itself and reports false on failure.
func (h *HTTPHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

// respondWithDomainError maps errors of the draft, store and pricing packages
// to status codes. Anything unrecognized is logged and reported as fallback.
func (h *HTTPHandler) respondWithDomainError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var declined *draft.DeclinedError
	if errors.As(err, &declined) {
		respondWithJSON(w, http.StatusConflict, ErrorResponse{
			Error:  draft.ErrEditDeclined.Error(),
			Prompt: declined.Prompt,
		})
		return
	}
	var invalid *draft.ValidationError
	if errors.As(err, &invalid) {
		respondWithJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   draft.ErrInvalidDraft.Error(),
			Details: invalid.Problems,
		})
		return
	}

	switch {
	case errors.Is(err, draft.ErrDraftNotFound),
		errors.Is(err, draft.ErrProductNotFound),
		errors.Is(err, draft.ErrSkuNotFound),
		errors.Is(err, draft.ErrUnknownFacetKind),
		errors.Is(err, domain.ErrFacetNotFound),
		errors.Is(err, media.ErrMediaNotFound),
		errors.Is(err, store.ErrProductNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, draft.ErrPropertiesLocked),
		errors.Is(err, domain.ErrDuplicateFacet),
		errors.Is(err, domain.ErrDuplicateValue),
		errors.Is(err, media.ErrRemovePrimary),
		errors.Is(err, store.ErrVocabularyExists),
		errors.Is(err, store.ErrSkuNameExists):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, variant.ErrConfirmationRequired):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, draft.ErrTooManyDrafts):
		respondWithError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrEmptyValue),
		errors.Is(err, store.ErrInvalidVocabularyKind),
		errors.Is(err, pricing.ErrUnknownMode),
		errors.Is(err, pricing.ErrWrongMode),
		errors.Is(err, pricing.ErrInvalidFactor),
		errors.Is(err, pricing.ErrInvalidPrice),
		errors.Is(err, variant.ErrTooManyCombinations):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, draft.ErrNoUploader):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respondWithError(w, http.StatusRequestTimeout, "Request timed out waiting for the draft")
	default:
		h.logger.Error(fallback,
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondWithError(w, http.StatusInternalServerError, fallback)
	}
}

func pathInt(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// --- Health ---

func (h *HTTPHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Vocabulary Handlers ---

// VocabularyCreateInput defines the expected input for adding a facet name to a
// dictionary.
type VocabularyCreateInput struct {
	Name string `json:"name" validate:"required,max=255"` // Max length from DB schema
}

func vocabularyKind(r *http.Request) (domain.VocabularyKind, bool) {
	kind := domain.VocabularyKind(strings.ToLower(chi.URLParam(r, "kind")))
	return kind, kind.Valid()
}

func (h *HTTPHandler) ListVocabulary(w http.ResponseWriter, r *http.Request) {
	kind, ok := vocabularyKind(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, store.ErrInvalidVocabularyKind.Error())
		return
	}

	entries, err := h.vocabulary.ListVocabulary(r.Context(), kind)
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to retrieve vocabulary")
		return
	}
	if entries == nil { // Ensure empty list instead of null if store returns nil slice
		entries = []domain.VocabularyEntry{}
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func (h *HTTPHandler) CreateVocabulary(w http.ResponseWriter, r *http.Request) {
	kind, ok := vocabularyKind(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, store.ErrInvalidVocabularyKind.Error())
		return
	}

	var input VocabularyCreateInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Validation failed: name is blank")
		return
	}

	entry, err := h.vocabulary.CreateVocabulary(r.Context(), kind, name)
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to create vocabulary entry")
		return
	}
	respondWithJSON(w, http.StatusCreated, entry)
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/healthz", h.Healthz)

	r.Route("/api/v1/vocabularies/{kind}", func(r chi.Router) {
		r.Get("/", h.ListVocabulary)    // GET /api/v1/vocabularies/{kind}
		r.Post("/", h.CreateVocabulary) // POST /api/v1/vocabularies/{kind}
	})

	r.Route("/api/v1/drafts", func(r chi.Router) {
		r.Post("/", h.CreateDraft)                              // POST /api/v1/drafts
		r.Post("/from-product/{productId}", h.OpenProductDraft) // POST /api/v1/drafts/from-product/{productId}

		r.Route("/{draftId}", func(r chi.Router) {
			r.Get("/", h.GetDraft)
			r.Delete("/", h.DeleteDraft)
			r.Put("/base-name", h.SetBaseName)

			r.Route("/{facetKind}/facets", func(r chi.Router) {
				r.Post("/", h.AddFacet)
				r.Put("/{index}", h.RenameFacet)
				r.Delete("/{index}", h.RemoveFacet)
				r.Post("/{index}/values", h.AddFacetValue)
				r.Delete("/{index}/values", h.RemoveFacetValue)
			})

			r.Route("/products/{productKey}", func(r chi.Router) {
				r.Put("/pricing-mode", h.SetProductPricingMode)
				r.Post("/media", h.UploadMedia)
				r.Put("/media/{mediaId}/primary", h.SetPrimaryMedia)
				r.Delete("/media/{mediaId}", h.RemoveMedia)

				r.Route("/skus/{skuKey}", func(r chi.Router) {
					r.Put("/", h.UpdateSku)
					r.Put("/pricing-mode", h.SetSkuPricingMode)
					r.Put("/prices", h.SetSkuPrices)
					r.Put("/master", h.SetMaster)
					r.Post("/media", h.UploadMedia)
					r.Put("/media/{mediaId}/primary", h.SetPrimaryMedia)
					r.Delete("/media/{mediaId}", h.RemoveMedia)
				})
			})

			r.Post("/validate", h.ValidateDraft)
			r.Post("/submit", h.SubmitDraft)
			r.Get("/payload", h.GetPayload)
		})
	})
}
