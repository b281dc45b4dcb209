package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"product-variant-service/internal/domain"
)

// Rows for the child tables written with named statements.
type optionValueRow struct {
	SkuID       int64  `db:"sku_id"`
	OptionType  string `db:"option_type"`
	OptionValue string `db:"option_value"`
	Position    int    `db:"position"`
}

type mediaRow struct {
	OwnerID   int64  `db:"owner_id"`
	MediaURL  string `db:"media_url"`
	MediaType string `db:"media_type"`
	Active    bool   `db:"active"`
	Sequence  int    `db:"sequence"`
}

type skuRow struct {
	ID                   int64            `db:"id"`
	SkuName              string           `db:"sku_name"`
	DisplayName          string           `db:"display_name"`
	SkuCode              string           `db:"sku_code"`
	MRP                  float64          `db:"mrp"`
	UnitPrice            float64          `db:"unit_price"`
	SellingPrice         float64          `db:"selling_price"`
	UOM                  string           `db:"uom"`
	ThresholdQuantity    int              `db:"threshold_quantity"`
	Status               domain.SkuStatus `db:"status"`
	Master               bool             `db:"master"`
	ConversionFactor     sql.NullFloat64  `db:"conversion_factor"`
	MultiplicationFactor sql.NullFloat64  `db:"multiplication_factor"`
}

const (
	insertProductQuery = `
		INSERT INTO products.products (name, display_name)
		VALUES ($1, $2)
		RETURNING id;
	`
	insertPropertyQuery = `
		INSERT INTO products.product_properties (product_id, property_name, property_value, position)
		VALUES ($1, $2, $3, $4);
	`
	insertSkuQuery = `
		INSERT INTO products.product_skus (
			product_id, sku_name, display_name, sku_code, mrp, unit_price, selling_price,
			uom, threshold_quantity, status, master, conversion_factor, multiplication_factor, position
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id;
	`
	insertOptionValueQuery = `
		INSERT INTO products.sku_option_values (sku_id, option_type, option_value, position)
		VALUES (:sku_id, :option_type, :option_value, :position);
	`
	insertSkuMediaQuery = `
		INSERT INTO products.sku_media (sku_id, media_url, media_type, active, sequence)
		VALUES (:owner_id, :media_url, :media_type, :active, :sequence);
	`
	insertProductMediaQuery = `
		INSERT INTO products.product_media (product_id, media_url, media_type, active, sequence)
		VALUES (:owner_id, :media_url, :media_type, :active, :sequence);
	`
)

// --- ProductStorer Implementation ---

func (s *PostgresStore) SubmitProducts(ctx context.Context, products []domain.ProductPayload) (ids []int64, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: SubmitProducts failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ids = make([]int64, 0, len(products))
	for _, p := range products {
		var id int64
		if err = tx.QueryRowxContext(ctx, insertProductQuery, p.Name, p.DisplayName).Scan(&id); err != nil {
			return nil, fmt.Errorf("store: SubmitProducts failed to insert product %q: %w", p.Name, err)
		}
		if err = insertProductChildren(ctx, tx, id, p); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: SubmitProducts failed to commit: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, id int64, p domain.ProductPayload) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: UpdateProduct failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		UPDATE products.products
		SET name = $1, display_name = $2, updated_at = NOW()
		WHERE id = $3;
	`
	res, err := tx.ExecContext(ctx, query, p.Name, p.DisplayName, id)
	if err != nil {
		return fmt.Errorf("store: UpdateProduct failed to update product %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: UpdateProduct failed to read rows affected: %w", err)
	}
	if affected == 0 {
		err = ErrProductNotFound
		return err
	}

	// SKU options and SKU media go with their SKU through ON DELETE CASCADE.
	for _, q := range []string{
		`DELETE FROM products.product_properties WHERE product_id = $1;`,
		`DELETE FROM products.product_media WHERE product_id = $1;`,
		`DELETE FROM products.product_skus WHERE product_id = $1;`,
	} {
		if _, err = tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("store: UpdateProduct failed to clear children of %d: %w", id, err)
		}
	}
	if err = insertProductChildren(ctx, tx, id, p); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: UpdateProduct failed to commit: %w", err)
	}
	return nil
}

func insertProductChildren(ctx context.Context, tx *sqlx.Tx, productID int64, p domain.ProductPayload) error {
	for i, pp := range p.ProductProperties {
		if _, err := tx.ExecContext(ctx, insertPropertyQuery, productID, pp.PropertyName, pp.PropertyValue, i); err != nil {
			return fmt.Errorf("store: failed to insert property %q: %w", pp.PropertyName, err)
		}
	}
	if err := insertMedia(ctx, tx, insertProductMediaQuery, productID, p.ProductMedia); err != nil {
		return err
	}

	for i, sku := range p.ProductSkus {
		var skuID int64
		err := tx.QueryRowxContext(ctx, insertSkuQuery,
			productID, sku.SkuName, sku.DisplayName, sku.SkuCode, sku.MRP, sku.UnitPrice, sku.SellingPrice,
			sku.UOM, sku.ThresholdQuantity, sku.Status, sku.Master, sku.ConversionFactor, sku.MultiplicationFactor, i,
		).Scan(&skuID)
		if err != nil {
			if isUniqueViolation(err, "product_skus_product_id_sku_name_key") {
				return fmt.Errorf("%w: %q", ErrSkuNameExists, sku.SkuName)
			}
			return fmt.Errorf("store: failed to insert sku %q: %w", sku.SkuName, err)
		}

		for j, ov := range sku.OptionTypeValues {
			row := optionValueRow{SkuID: skuID, OptionType: ov.OptionType, OptionValue: ov.OptionValue, Position: j}
			if _, err := tx.NamedExecContext(ctx, insertOptionValueQuery, row); err != nil {
				return fmt.Errorf("store: failed to insert option value %s=%s: %w", ov.OptionType, ov.OptionValue, err)
			}
		}
		if err := insertMedia(ctx, tx, insertSkuMediaQuery, skuID, sku.SkuMedia); err != nil {
			return err
		}
	}
	return nil
}

func insertMedia(ctx context.Context, tx *sqlx.Tx, query string, ownerID int64, items []domain.MediaPayload) error {
	for _, m := range items {
		row := mediaRow{OwnerID: ownerID, MediaURL: m.MediaURL, MediaType: m.MediaType, Active: m.Active, Sequence: m.Sequence}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("store: failed to insert media %s: %w", m.MediaURL, err)
		}
	}
	return nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*domain.ProductPayload, error) {
	var p domain.ProductPayload
	query := `
		SELECT name, display_name
		FROM products.products
		WHERE id = $1;
	`
	if err := s.db.QueryRowxContext(ctx, query, id).Scan(&p.Name, &p.DisplayName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: GetProduct failed to scan product %d: %w", id, err)
	}

	p.ProductProperties = []domain.ProductPropertyPayload{}
	query = `
		SELECT property_name, property_value
		FROM products.product_properties
		WHERE product_id = $1
		ORDER BY position ASC;
	`
	if err := s.db.SelectContext(ctx, &p.ProductProperties, query, id); err != nil {
		return nil, fmt.Errorf("store: GetProduct failed to load properties of %d: %w", id, err)
	}

	query = `
		SELECT media_url, media_type, active, sequence
		FROM products.product_media
		WHERE product_id = $1
		ORDER BY sequence ASC;
	`
	if err := s.db.SelectContext(ctx, &p.ProductMedia, query, id); err != nil {
		return nil, fmt.Errorf("store: GetProduct failed to load media of %d: %w", id, err)
	}

	var skus []skuRow
	query = `
		SELECT id, sku_name, display_name, sku_code, mrp, unit_price, selling_price,
			uom, threshold_quantity, status, master, conversion_factor, multiplication_factor
		FROM products.product_skus
		WHERE product_id = $1
		ORDER BY position ASC;
	`
	if err := s.db.SelectContext(ctx, &skus, query, id); err != nil {
		return nil, fmt.Errorf("store: GetProduct failed to load skus of %d: %w", id, err)
	}

	p.ProductSkus = make([]domain.SkuPayload, 0, len(skus))
	for _, row := range skus {
		row := row
		sku := domain.SkuPayload{
			SkuName:           row.SkuName,
			DisplayName:       row.DisplayName,
			SkuCode:           row.SkuCode,
			MRP:               row.MRP,
			UnitPrice:         row.UnitPrice,
			SellingPrice:      row.SellingPrice,
			UOM:               row.UOM,
			ThresholdQuantity: row.ThresholdQuantity,
			Status:            row.Status,
			Master:            row.Master,
			OptionTypeValues:  []domain.OptionTypeValuePayload{},
			SkuMedia:          []domain.MediaPayload{},
		}
		if row.ConversionFactor.Valid {
			sku.ConversionFactor = &row.ConversionFactor.Float64
		}
		if row.MultiplicationFactor.Valid {
			sku.MultiplicationFactor = &row.MultiplicationFactor.Float64
		}

		query = `
			SELECT option_type, option_value
			FROM products.sku_option_values
			WHERE sku_id = $1
			ORDER BY position ASC;
		`
		if err := s.db.SelectContext(ctx, &sku.OptionTypeValues, query, row.ID); err != nil {
			return nil, fmt.Errorf("store: GetProduct failed to load options of sku %d: %w", row.ID, err)
		}
		query = `
			SELECT media_url, media_type, active, sequence
			FROM products.sku_media
			WHERE sku_id = $1
			ORDER BY sequence ASC;
		`
		if err := s.db.SelectContext(ctx, &sku.SkuMedia, query, row.ID); err != nil {
			return nil, fmt.Errorf("store: GetProduct failed to load media of sku %d: %w", row.ID, err)
		}
		p.ProductSkus = append(p.ProductSkus, sku)
	}
	return &p, nil
}
