package repository

import (
	"context"
	"fmt"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UpsertWithHistory upserts a supplier item and, when the item is new or its
// price changed, appends a price_history row in the same transaction. Any
// LLM/HTTP work must happen before this call; this function only ever
// writes.
func UpsertWithHistory(ctx context.Context, pool *pgxpool.Pool, items *SupplierItemRepo, history *PriceHistoryRepo,
	supplierID uuid.UUID, sku, name string, price catalog.Money, characteristics catalog.JSONMap) (UpsertResult, error) {

	var result UpsertResult
	err := WithTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		result, err = items.Upsert(ctx, tx, supplierID, sku, name, price, characteristics)
		if err != nil {
			return err
		}
		if !result.Inserted && !result.PriceChanged {
			return nil
		}
		if _, err := history.Append(ctx, tx, result.ID, price); err != nil {
			return fmt.Errorf("repository: append price history after upsert for %s/%s: %w", supplierID, sku, err)
		}
		return nil
	})
	return result, err
}
