package domain

import "time"

// VocabularyKind names a dictionary of facet names.
type VocabularyKind string

const (
	VocabularyProperty   VocabularyKind = "property"
	VocabularyOptionType VocabularyKind = "option_type"
)

// Valid reports whether k is a known vocabulary kind.
func (k VocabularyKind) Valid() bool {
	return k == VocabularyProperty || k == VocabularyOptionType
}

// VocabularyEntry is a facet name the operator can pick from.
type VocabularyEntry struct {
	ID        int64          `json:"id" db:"id"`
	Kind      VocabularyKind `json:"kind" db:"kind"`
	Name      string         `json:"name" db:"name"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
