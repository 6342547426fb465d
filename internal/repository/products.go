package repository

import (
	"context"
	"fmt"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProductRepo is the products data access layer.
type ProductRepo struct {
	pool *pgxpool.Pool
}

// NewProductRepo constructs a ProductRepo.
func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

const getProductQuery = `
SELECT id, internal_sku, name, category_id, status, min_price, availability
FROM products WHERE id = $1`

// Get retrieves a product by id.
func (r *ProductRepo) Get(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	row := r.pool.QueryRow(ctx, getProductQuery, id)
	return scanProduct(row)
}

const createProductQuery = `
INSERT INTO products (internal_sku, name, category_id, status)
VALUES ($1, $2, $3, $4)
RETURNING id`

// Create inserts a new product, returning its assigned id.
func (r *ProductRepo) Create(ctx context.Context, sku, name string, categoryID *uuid.UUID, status catalog.ProductStatus) (uuid.UUID, error) {
	var id uuid.UUID
	row := r.pool.QueryRow(ctx, createProductQuery, sku, name, categoryID, status)
	if err := row.Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, fmt.Errorf("repository: product sku %q already exists: %w", sku, err)
		}
		return uuid.Nil, fmt.Errorf("repository: create product %q: %w", sku, err)
	}
	return id, nil
}

// ListActive returns candidate products for fuzzy/LLM matching, optionally
// scoped to a category.
func (r *ProductRepo) ListActive(ctx context.Context, categoryID *uuid.UUID) ([]catalog.Product, error) {
	var rows pgx.Rows
	var err error
	if categoryID != nil {
		rows, err = r.pool.Query(ctx, `SELECT id, internal_sku, name, category_id, status, min_price, availability FROM products WHERE status != 'archived' AND category_id = $1`, *categoryID)
	} else {
		rows, err = r.pool.Query(ctx, `SELECT id, internal_sku, name, category_id, status, min_price, availability FROM products WHERE status != 'archived'`)
	}
	if err != nil {
		return nil, fmt.Errorf("repository: list active products: %w", err)
	}
	defer rows.Close()

	var out []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProduct(row rowScanner) (catalog.Product, error) {
	var p catalog.Product
	var minPriceRaw *string
	if err := row.Scan(&p.ID, &p.SKU, &p.DisplayName, &p.CategoryID, &p.Status, &minPriceRaw, &p.Availability); err != nil {
		if err == pgx.ErrNoRows {
			return catalog.Product{}, fmt.Errorf("repository: product not found: %w", err)
		}
		return catalog.Product{}, fmt.Errorf("repository: scan product: %w", err)
	}
	if minPriceRaw != nil {
		var m catalog.Money
		if err := m.Scan(*minPriceRaw); err != nil {
			return catalog.Product{}, fmt.Errorf("repository: parse min_price: %w", err)
		}
		p.MinPrice = &m
	}
	return p, nil
}
