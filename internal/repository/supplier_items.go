package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SupplierItemRepo is the supplier_items data access layer, satisfying
// review.SupplierItems plus the broader CRUD the matcher/ETL orchestrator
// need.
type SupplierItemRepo struct {
	pool *pgxpool.Pool
}

// NewSupplierItemRepo constructs a SupplierItemRepo.
func NewSupplierItemRepo(pool *pgxpool.Pool) *SupplierItemRepo {
	return &SupplierItemRepo{pool: pool}
}

const linkProductQuery = `
UPDATE supplier_items
SET product_id = $2, match_status = $3, updated_at = now()
WHERE id = $1
RETURNING (SELECT product_id FROM supplier_items WHERE id = $1)`

// LinkProduct sets a supplier item's product link and match status,
// returning its previous product id (nil if it had none).
func (r *SupplierItemRepo) LinkProduct(ctx context.Context, supplierItemID, productID uuid.UUID, status catalog.MatchStatus) (*uuid.UUID, error) {
	var prev *uuid.UUID
	row := r.pool.QueryRow(ctx, `SELECT product_id FROM supplier_items WHERE id = $1`, supplierItemID)
	if err := row.Scan(&prev); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("repository: supplier item %s not found", supplierItemID)
		}
		return nil, fmt.Errorf("repository: read current product for %s: %w", supplierItemID, err)
	}

	tag, err := r.pool.Exec(ctx, `UPDATE supplier_items SET product_id = $2, match_status = $3, updated_at = now() WHERE id = $1`, supplierItemID, productID, status)
	if err != nil {
		return nil, fmt.Errorf("repository: link supplier item %s to product %s: %w", supplierItemID, productID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("repository: supplier item %s not found", supplierItemID)
	}
	return prev, nil
}

// Unlink clears a supplier item's product link and resets it to unmatched.
func (r *SupplierItemRepo) Unlink(ctx context.Context, supplierItemID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE supplier_items SET product_id = NULL, match_status = 'unmatched', updated_at = now() WHERE id = $1`, supplierItemID)
	if err != nil {
		return fmt.Errorf("repository: unlink supplier item %s: %w", supplierItemID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repository: supplier item %s not found", supplierItemID)
	}
	return nil
}

const createDraftProductQuery = `
WITH item AS (
    SELECT name FROM supplier_items WHERE id = $1
), new_product AS (
    INSERT INTO products (internal_sku, name, status)
    SELECT 'draft-' || $1::text, item.name, 'draft'
    FROM item
    RETURNING id
)
UPDATE supplier_items
SET product_id = (SELECT id FROM new_product), match_status = 'verified_match', updated_at = now()
WHERE id = $1
RETURNING product_id`

// CreateDraftProduct creates a new draft Product named after the supplier
// item and links the supplier item to it, for the reject-as-new-product
// path.
func (r *SupplierItemRepo) CreateDraftProduct(ctx context.Context, supplierItemID uuid.UUID) (uuid.UUID, error) {
	var productID uuid.UUID
	row := r.pool.QueryRow(ctx, createDraftProductQuery, supplierItemID)
	if err := row.Scan(&productID); err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, fmt.Errorf("repository: supplier item %s not found", supplierItemID)
		}
		return uuid.Nil, fmt.Errorf("repository: create draft product for %s: %w", supplierItemID, err)
	}
	return productID, nil
}

// RequeueMatching resets a supplier item to unmatched so the next matching
// sweep picks it back up, used after its review expires.
func (r *SupplierItemRepo) RequeueMatching(ctx context.Context, supplierItemID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE supplier_items SET match_status = 'unmatched', match_score = NULL, match_candidates = NULL, updated_at = now() WHERE id = $1`, supplierItemID)
	if err != nil {
		return fmt.Errorf("repository: requeue matching for %s: %w", supplierItemID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repository: supplier item %s not found", supplierItemID)
	}
	return nil
}

const upsertSupplierItemQuery = `
WITH previous AS (
    SELECT current_price FROM supplier_items WHERE supplier_id = $1 AND supplier_sku = $2
)
INSERT INTO supplier_items (supplier_id, supplier_sku, name, current_price, characteristics, last_ingested_at, updated_at)
VALUES ($1, $2, $3, $4::numeric, $5, now(), now())
ON CONFLICT (supplier_id, supplier_sku) DO UPDATE
SET name = $3,
    current_price = $4::numeric,
    characteristics = $5,
    last_ingested_at = now(),
    updated_at = now()
RETURNING id,
    NOT EXISTS (SELECT 1 FROM previous) AS inserted,
    EXISTS (SELECT 1 FROM previous WHERE previous.current_price <> $4::numeric) AS price_changed`

// UpsertResult reports what happened to an upserted supplier item, so the
// caller can decide whether to append PriceHistory.
type UpsertResult struct {
	ID           uuid.UUID
	Inserted     bool
	PriceChanged bool
}

// Upsert inserts or updates a supplier item keyed on (supplier_id,
// supplier_sku), reporting whether the row is new or its price changed so
// the caller can append price history in the same transaction. db may be
// the pool or an open tx; use UpsertWithHistory to do both atomically.
func (r *SupplierItemRepo) Upsert(ctx context.Context, db execer, supplierID uuid.UUID, sku, name string, price catalog.Money, characteristics catalog.JSONMap) (UpsertResult, error) {
	charJSON, err := json.Marshal(characteristics)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("repository: marshal characteristics for %s: %w", sku, err)
	}

	var result UpsertResult
	row := db.QueryRow(ctx, upsertSupplierItemQuery, supplierID, sku, name, price.String(), charJSON)
	if err := row.Scan(&result.ID, &result.Inserted, &result.PriceChanged); err != nil {
		return UpsertResult{}, fmt.Errorf("repository: upsert supplier item %s/%s: %w", supplierID, sku, err)
	}
	return result, nil
}

const getSupplierItemQuery = `
SELECT id, supplier_id, product_id, supplier_sku, name, current_price, characteristics,
       match_status, match_score, match_candidates, created_at, updated_at
FROM supplier_items WHERE id = $1`

// Get retrieves a supplier item by id.
func (r *SupplierItemRepo) Get(ctx context.Context, id uuid.UUID) (catalog.SupplierItem, error) {
	row := r.pool.QueryRow(ctx, getSupplierItemQuery, id)
	return scanSupplierItem(row)
}

const listUnmatchedQuery = `
SELECT id, supplier_id, product_id, supplier_sku, name, current_price, characteristics,
       match_status, match_score, match_candidates, created_at, updated_at
FROM supplier_items
WHERE product_id IS NULL AND match_status = 'unmatched'
ORDER BY created_at
LIMIT $1`

// ListUnmatched returns up to limit supplier items awaiting a matching
// attempt, the feed for the matcher's bounded batches (e.g. 500 items per
// queue job).
func (r *SupplierItemRepo) ListUnmatched(ctx context.Context, limit int) ([]catalog.SupplierItem, error) {
	rows, err := r.pool.Query(ctx, listUnmatchedQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: list unmatched supplier items: %w", err)
	}
	defer rows.Close()

	var out []catalog.SupplierItem
	for rows.Next() {
		item, err := scanSupplierItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

const setMatchResultQuery = `
UPDATE supplier_items
SET match_status = $2, match_score = $3, match_candidates = $4, product_id = COALESCE($5, product_id), updated_at = now()
WHERE id = $1`

// SetMatchResult records the matcher's verdict for a supplier item: status,
// score, and candidate list, optionally linking a product id for an
// auto-matched result.
func (r *SupplierItemRepo) SetMatchResult(ctx context.Context, id uuid.UUID, status catalog.MatchStatus, score *float64, candidates catalog.JSONMap, productID *uuid.UUID) error {
	candidateJSON, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("repository: marshal match candidates for %s: %w", id, err)
	}
	tag, err := r.pool.Exec(ctx, setMatchResultQuery, id, status, score, candidateJSON, productID)
	if err != nil {
		return fmt.Errorf("repository: set match result for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repository: supplier item %s not found", id)
	}
	return nil
}

func scanSupplierItem(row rowScanner) (catalog.SupplierItem, error) {
	var item catalog.SupplierItem
	var priceStr string
	var charJSON, candidateJSON []byte
	if err := row.Scan(&item.ID, &item.SupplierID, &item.ProductID, &item.SupplierSKU, &item.Name,
		&priceStr, &charJSON, &item.MatchStatus, &item.MatchScore, &candidateJSON,
		&item.CreatedAt, &item.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return catalog.SupplierItem{}, fmt.Errorf("repository: supplier item not found: %w", err)
		}
		return catalog.SupplierItem{}, fmt.Errorf("repository: scan supplier item: %w", err)
	}
	if err := item.CurrentPrice.Scan(priceStr); err != nil {
		return catalog.SupplierItem{}, fmt.Errorf("repository: parse current_price: %w", err)
	}
	if len(charJSON) > 0 {
		if err := json.Unmarshal(charJSON, &item.Characteristics); err != nil {
			return catalog.SupplierItem{}, fmt.Errorf("repository: unmarshal characteristics: %w", err)
		}
	}
	if len(candidateJSON) > 0 {
		if err := json.Unmarshal(candidateJSON, &item.MatchCandidates); err != nil {
			return catalog.SupplierItem{}, fmt.Errorf("repository: unmarshal match_candidates: %w", err)
		}
	}
	return item, nil
}
