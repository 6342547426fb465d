package repository

import (
	"context"
	"fmt"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PriceHistoryRepo is the append-only price_history data access layer.
// Entries are written alongside SupplierItemRepo.Upsert, in the same
// transaction, whenever Upsert reports Inserted or PriceChanged.
type PriceHistoryRepo struct {
	pool *pgxpool.Pool
}

// NewPriceHistoryRepo constructs a PriceHistoryRepo.
func NewPriceHistoryRepo(pool *pgxpool.Pool) *PriceHistoryRepo {
	return &PriceHistoryRepo{pool: pool}
}

const insertPriceHistoryQuery = `
INSERT INTO price_history (supplier_item_id, price)
VALUES ($1, $2::numeric)
RETURNING id, recorded_at`

// Append records a new observed price for a supplier item. db may be the
// pool or an open tx.
func (r *PriceHistoryRepo) Append(ctx context.Context, db execer, supplierItemID uuid.UUID, price catalog.Money) (catalog.PriceHistory, error) {
	h := catalog.PriceHistory{SupplierItemID: supplierItemID, Price: price}
	row := db.QueryRow(ctx, insertPriceHistoryQuery, supplierItemID, price.String())
	if err := row.Scan(&h.ID, &h.Timestamp); err != nil {
		return catalog.PriceHistory{}, fmt.Errorf("repository: append price history for %s: %w", supplierItemID, err)
	}
	return h, nil
}

const listPriceHistoryQuery = `
SELECT id, supplier_item_id, price, recorded_at
FROM price_history
WHERE supplier_item_id = $1
ORDER BY recorded_at DESC
LIMIT $2`

// List returns the most recent price observations for a supplier item,
// newest first.
func (r *PriceHistoryRepo) List(ctx context.Context, supplierItemID uuid.UUID, limit int) ([]catalog.PriceHistory, error) {
	rows, err := r.pool.Query(ctx, listPriceHistoryQuery, supplierItemID, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: list price history for %s: %w", supplierItemID, err)
	}
	defer rows.Close()

	var out []catalog.PriceHistory
	for rows.Next() {
		h, err := scanPriceHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanPriceHistory(row rowScanner) (catalog.PriceHistory, error) {
	var h catalog.PriceHistory
	var priceStr string
	if err := row.Scan(&h.ID, &h.SupplierItemID, &priceStr, &h.Timestamp); err != nil {
		if err == pgx.ErrNoRows {
			return catalog.PriceHistory{}, fmt.Errorf("repository: price history row not found: %w", err)
		}
		return catalog.PriceHistory{}, fmt.Errorf("repository: scan price history: %w", err)
	}
	if err := h.Price.Scan(priceStr); err != nil {
		return catalog.PriceHistory{}, fmt.Errorf("repository: parse price: %w", err)
	}
	return h, nil
}
