// Package aggregation recomputes a product's
// min_price/availability from its linked, matched supplier items in one
// UPDATE per product using correlated subqueries. Grounded verbatim on
// original_source/services/python-ingestion/src/services/aggregation/service.py's
// subquery shape (MIN(current_price) over auto_matched/verified_match items,
// OR(in_stock) via a tolerant bool_or aggregate), transliterated from SQLAlchemy to
// pgx.
package aggregation

import (
	"context"
	"fmt"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Trigger names what caused a recompute, for logging/diagnostics.
type Trigger string

const (
	TriggerAutoMatch   Trigger = "auto_match"
	TriggerManualLink  Trigger = "manual_link"
	TriggerPriceChange Trigger = "price_change"
	TriggerScheduled   Trigger = "scheduled"
)

// DBExecutor is the minimal pgx surface the aggregator needs, satisfied by
// both *pgxpool.Pool and pgx.Tx so a caller can run recompute inside its own
// transaction.
type DBExecutor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Result is the per-product outcome of one recompute call.
type Result struct {
	ProductID        uuid.UUID
	MinPrice         *catalog.Money
	Availability     bool
	LinkedItemsCount int
	Trigger          Trigger
	Found            bool
}

const recomputeQuery = `
WITH linked AS (
    SELECT current_price, characteristics
    FROM supplier_items
    WHERE product_id = $1
      AND match_status IN ('auto_matched', 'verified_match')
)
UPDATE products
SET min_price = (SELECT MIN(current_price) FROM linked),
    availability = COALESCE(
        (SELECT bool_or(
            lower(coalesce(characteristics->>'in_stock', '')) IN ('true', 'yes', '1')
        ) FROM linked),
        false
    )
WHERE id = $1
RETURNING min_price, availability`

const linkedCountQuery = `
SELECT count(*) FROM supplier_items
WHERE product_id = $1 AND match_status IN ('auto_matched', 'verified_match')`

// Recompute recalculates min_price/availability for one product inside the
// caller's transaction (or pool), returning the updated values.
func Recompute(ctx context.Context, db DBExecutor, productID uuid.UUID, trigger Trigger) (Result, error) {
	log := logging.Get(logging.CategoryAggregation)

	var linkedCount int
	if err := db.QueryRow(ctx, linkedCountQuery, productID).Scan(&linkedCount); err != nil {
		return Result{}, fmt.Errorf("aggregation: count linked items for %s: %w", productID, err)
	}

	row := db.QueryRow(ctx, recomputeQuery, productID)
	var minPriceRaw *string
	var minPrice catalog.Money
	var availability bool
	if err := row.Scan(&minPriceRaw, &availability); err != nil {
		if err == pgx.ErrNoRows {
			log.Warn("aggregation: product %s not found for aggregate update", productID)
			return Result{ProductID: productID, Trigger: trigger, Found: false}, nil
		}
		return Result{}, fmt.Errorf("aggregation: recompute %s: %w", productID, err)
	}

	var minPricePtr *catalog.Money
	if minPriceRaw != nil {
		if err := minPrice.Scan(*minPriceRaw); err != nil {
			return Result{}, fmt.Errorf("aggregation: parse min_price for %s: %w", productID, err)
		}
		minPricePtr = &minPrice
	}

	log.Info("aggregation: product %s recomputed trigger=%s linked=%d availability=%v",
		productID, trigger, linkedCount, availability)

	return Result{
		ProductID:        productID,
		MinPrice:         minPricePtr,
		Availability:     availability,
		LinkedItemsCount: linkedCount,
		Trigger:          trigger,
		Found:            true,
	}, nil
}

// RecomputeBatch runs Recompute for every product id, collecting per-product
// results; one product's failure doesn't stop the others, mirroring the
// original batch helper's best-effort semantics.
func RecomputeBatch(ctx context.Context, db DBExecutor, productIDs []uuid.UUID, trigger Trigger) []Result {
	log := logging.Get(logging.CategoryAggregation)

	results := make([]Result, 0, len(productIDs))
	failures := 0
	for _, id := range productIDs {
		r, err := Recompute(ctx, db, id, trigger)
		if err != nil {
			log.Error("aggregation: recompute failed for product %s: %v", id, err)
			failures++
			continue
		}
		results = append(results, r)
	}

	log.Info("aggregation: batch recompute trigger=%s total=%d succeeded=%d failed=%d",
		trigger, len(productIDs), len(results), failures)
	return results
}
