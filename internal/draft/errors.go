package draft

import (
	"errors"
	"strings"

	"product-variant-service/internal/variant"
)

// Predefined errors for draft operations.
var (
	ErrDraftNotFound    = errors.New("draft: not found")
	ErrTooManyDrafts    = errors.New("draft: too many open drafts")
	ErrEditDeclined     = errors.New("draft: destructive edit declined")
	ErrPropertiesLocked = errors.New("draft: properties of a saved product cannot change")
	ErrProductNotFound  = errors.New("draft: product not found")
	ErrSkuNotFound      = errors.New("draft: sku not found")
	ErrUnknownFacetKind = errors.New("draft: unknown facet kind")
	ErrInvalidDraft     = errors.New("draft: validation failed")
	ErrNoUploader       = errors.New("draft: media storage is not configured")
)

// DeclinedError is returned when the operator did not confirm a destructive
// edit. The draft is unchanged.
type DeclinedError struct {
	Prompt string
	Delta  variant.Delta
}

func (e *DeclinedError) Error() string {
	return ErrEditDeclined.Error() + ": " + e.Prompt
}

func (e *DeclinedError) Unwrap() error {
	return ErrEditDeclined
}

// ValidationError aggregates every problem found before submission.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return ErrInvalidDraft.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidDraft
}
