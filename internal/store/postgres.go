package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"product-variant-service/internal/domain"
)

// Predefined errors for store operations
var (
	ErrInvalidVocabularyKind = errors.New("store: unknown vocabulary kind")
	ErrVocabularyExists      = errors.New("store: vocabulary entry already exists")
	ErrProductNotFound       = errors.New("store: product not found")
	ErrSkuNameExists         = errors.New("store: sku name already exists for product")
)

const uniqueViolation = "23505"

// PostgresStore implements VocabularyStorer and ProductStorer on PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks the connection, used by the health endpoint.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// --- VocabularyStorer Implementation ---

func (s *PostgresStore) ListVocabulary(ctx context.Context, kind domain.VocabularyKind) ([]domain.VocabularyEntry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVocabularyKind, kind)
	}
	query := `
		SELECT id, kind, name, created_at
		FROM products.vocabulary
		WHERE kind = $1
		ORDER BY name ASC;
	`
	entries := []domain.VocabularyEntry{}
	if err := s.db.SelectContext(ctx, &entries, query, kind); err != nil {
		return nil, fmt.Errorf("store: ListVocabulary failed: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) CreateVocabulary(ctx context.Context, kind domain.VocabularyKind, name string) (*domain.VocabularyEntry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVocabularyKind, kind)
	}
	query := `
		INSERT INTO products.vocabulary (kind, name)
		VALUES ($1, $2)
		RETURNING id, kind, name, created_at;
	`
	var entry domain.VocabularyEntry
	err := s.db.QueryRowxContext(ctx, query, kind, strings.TrimSpace(name)).StructScan(&entry)
	if err != nil {
		if isUniqueViolation(err, "vocabulary_kind_name_key") {
			return nil, ErrVocabularyExists
		}
		return nil, fmt.Errorf("store: CreateVocabulary failed to scan row: %w", err)
	}
	return &entry, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || strings.Contains(pqErr.Constraint, constraint)
}
