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

// SupplierRepo is the suppliers data access layer. Onboarding creates
// suppliers; ingestion only reads them.
type SupplierRepo struct {
	pool *pgxpool.Pool
}

// NewSupplierRepo constructs a SupplierRepo.
func NewSupplierRepo(pool *pgxpool.Pool) *SupplierRepo {
	return &SupplierRepo{pool: pool}
}

const getSupplierQuery = `
SELECT id, name, source_type, metadata FROM suppliers WHERE id = $1`

// Get retrieves a supplier by id.
func (r *SupplierRepo) Get(ctx context.Context, id uuid.UUID) (catalog.Supplier, error) {
	row := r.pool.QueryRow(ctx, getSupplierQuery, id)
	var s catalog.Supplier
	var metaJSON []byte
	if err := row.Scan(&s.ID, &s.Name, &s.SourceKind, &metaJSON); err != nil {
		if err == pgx.ErrNoRows {
			return catalog.Supplier{}, fmt.Errorf("repository: supplier %s not found: %w", id, err)
		}
		return catalog.Supplier{}, fmt.Errorf("repository: get supplier %s: %w", id, err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &s.Metadata); err != nil {
			return catalog.Supplier{}, fmt.Errorf("repository: unmarshal supplier metadata: %w", err)
		}
	}
	return s, nil
}
