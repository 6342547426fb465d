package repository

import (
	"context"
	"fmt"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CategoryRepo implements category.Store against Postgres.
type CategoryRepo struct {
	pool *pgxpool.Pool
}

// NewCategoryRepo constructs a CategoryRepo.
func NewCategoryRepo(pool *pgxpool.Pool) *CategoryRepo {
	return &CategoryRepo{pool: pool}
}

const loadAllCategoriesQuery = `
SELECT id, name, parent_id, needs_review, introducing_supplier, active
FROM categories`

// LoadAllCategories loads the entire category forest in one query, the
// shape internal/category.Normalizer's in-memory cache needs.
func (r *CategoryRepo) LoadAllCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.pool.Query(ctx, loadAllCategoriesQuery)
	if err != nil {
		return nil, fmt.Errorf("repository: load categories: %w", err)
	}
	defer rows.Close()

	var out []catalog.Category
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID, &c.NeedsReview, &c.IntroducingSupplier, &c.Active); err != nil {
			return nil, fmt.Errorf("repository: scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: iterate categories: %w", err)
	}
	return out, nil
}

const createCategoryQuery = `
INSERT INTO categories (name, parent_id, needs_review, introducing_supplier, active)
VALUES ($1, $2, $3, $4, true)
RETURNING id`

// CreateCategory inserts a new category node, defaulting active to true
// (a needs_review node is still active/usable, just flagged).
func (r *CategoryRepo) CreateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	row := r.pool.QueryRow(ctx, createCategoryQuery, cat.Name, cat.ParentID, cat.NeedsReview, cat.IntroducingSupplier)
	if err := row.Scan(&cat.ID); err != nil {
		if isUniqueViolation(err) {
			return catalog.Category{}, fmt.Errorf("repository: category %q already exists under parent %v: %w", cat.Name, cat.ParentID, err)
		}
		return catalog.Category{}, fmt.Errorf("repository: create category %q: %w", cat.Name, err)
	}
	cat.Active = true
	return cat, nil
}

