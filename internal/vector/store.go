package vector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SearchResult is one nearest-neighbor hit: the supplier item, its cosine
// distance (ascending => similarity descending) to the query vector.
type SearchResult struct {
	SupplierItemID uuid.UUID
	Distance       float64
}

// Store is the embedding persistence/search boundary: upsert one item's
// vector keyed by (supplier_item_id, model_name), delete it, and run a
// top-k nearest-neighbor search with an optional exclusion.
type Store interface {
	Upsert(ctx context.Context, supplierItemID uuid.UUID, modelName string, embedding Vector) error
	Delete(ctx context.Context, supplierItemID uuid.UUID, modelName string) error
	SearchTopK(ctx context.Context, modelName string, query Vector, topK int, excludeItemID *uuid.UUID) ([]SearchResult, error)
}

// PostgresStore implements Store against a pgvector-enabled
// product_embeddings table, ordering by the pgvector cosine-distance
// operator (<=>) so the search scales to the hundreds-of-thousands-of-rows
// requirement via an IVF/HNSW index on the column.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool; internal/repository owns the
// pool's lifecycle.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Upsert(ctx context.Context, supplierItemID uuid.UUID, modelName string, embedding Vector) error {
	const q = `
INSERT INTO product_embeddings (id, supplier_item_id, model_name, embedding, created_at, updated_at)
VALUES (gen_random_uuid(), $1, $2, $3, now(), now())
ON CONFLICT (supplier_item_id, model_name)
DO UPDATE SET embedding = EXCLUDED.embedding, updated_at = now()`

	_, err := s.pool.Exec(ctx, q, supplierItemID, modelName, embedding)
	if err != nil {
		return fmt.Errorf("vector: upsert %s/%s: %w", supplierItemID, modelName, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, supplierItemID uuid.UUID, modelName string) error {
	const q = `DELETE FROM product_embeddings WHERE supplier_item_id = $1 AND model_name = $2`
	_, err := s.pool.Exec(ctx, q, supplierItemID, modelName)
	if err != nil {
		return fmt.Errorf("vector: delete %s/%s: %w", supplierItemID, modelName, err)
	}
	return nil
}

func (s *PostgresStore) SearchTopK(ctx context.Context, modelName string, query Vector, topK int, excludeItemID *uuid.UUID) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}

	const q = `
SELECT supplier_item_id, embedding <=> $1 AS distance
FROM product_embeddings
WHERE model_name = $2
  AND ($3::uuid IS NULL OR supplier_item_id != $3)
ORDER BY embedding <=> $1
LIMIT $4`

	var excludeArg any
	if excludeItemID != nil {
		excludeArg = *excludeItemID
	}

	rows, err := s.pool.Query(ctx, q, query, modelName, excludeArg, topK)
	if err != nil {
		return nil, fmt.Errorf("vector: search top-%d: %w", topK, err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.SupplierItemID, &r.Distance); err != nil {
			return nil, fmt.Errorf("vector: scan search row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector: search rows: %w", err)
	}
	return out, nil
}
