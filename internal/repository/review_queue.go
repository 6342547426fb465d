package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReviewQueueRepo implements review.Store against Postgres's
// match_review_queue table, whose only conflict target is
// (supplier_item_id).
type ReviewQueueRepo struct {
	pool *pgxpool.Pool
}

// NewReviewQueueRepo constructs a ReviewQueueRepo.
func NewReviewQueueRepo(pool *pgxpool.Pool) *ReviewQueueRepo {
	return &ReviewQueueRepo{pool: pool}
}

const upsertReviewQuery = `
INSERT INTO match_review_queue (supplier_item_id, candidate_products, status, expires_at)
VALUES ($1, $2, 'pending', $3)
ON CONFLICT (supplier_item_id) DO UPDATE
SET candidate_products = $2,
    status = 'pending',
    reviewer_id = NULL,
    reviewed_at = NULL,
    expires_at = $3
RETURNING id, supplier_item_id, candidate_products, status, reviewer_id, reviewed_at, created_at, expires_at`

// Upsert creates a pending review entry or replaces the existing one for
// this supplier item.
func (r *ReviewQueueRepo) Upsert(ctx context.Context, supplierItemID uuid.UUID, candidates catalog.JSONMap, ttl time.Duration) (catalog.MatchReviewQueue, error) {
	candidateJSON, err := json.Marshal(candidates)
	if err != nil {
		return catalog.MatchReviewQueue{}, fmt.Errorf("repository: marshal candidates for %s: %w", supplierItemID, err)
	}

	row := r.pool.QueryRow(ctx, upsertReviewQuery, supplierItemID, candidateJSON, time.Now().UTC().Add(ttl))
	return scanReview(row)
}

const getReviewQuery = `
SELECT id, supplier_item_id, candidate_products, status, reviewer_id, reviewed_at, created_at, expires_at
FROM match_review_queue WHERE id = $1`

// Get retrieves a review entry by id.
func (r *ReviewQueueRepo) Get(ctx context.Context, reviewID uuid.UUID) (catalog.MatchReviewQueue, error) {
	row := r.pool.QueryRow(ctx, getReviewQuery, reviewID)
	return scanReview(row)
}

const setReviewStatusQuery = `
UPDATE match_review_queue
SET status = $2,
    reviewer_id = $3,
    reviewed_at = CASE WHEN $3 IS NOT NULL THEN now() ELSE reviewed_at END
WHERE id = $1`

// SetStatus transitions a review entry's status, stamping reviewed_at
// whenever a reviewer id is supplied.
func (r *ReviewQueueRepo) SetStatus(ctx context.Context, reviewID uuid.UUID, status catalog.ReviewStatus, reviewerID *string) error {
	tag, err := r.pool.Exec(ctx, setReviewStatusQuery, reviewID, status, reviewerID)
	if err != nil {
		return fmt.Errorf("repository: set review %s status to %s: %w", reviewID, status, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repository: review %s not found", reviewID)
	}
	return nil
}

const expireDueQuery = `
UPDATE match_review_queue
SET status = 'expired'
WHERE status = 'pending' AND expires_at < $1
RETURNING id, supplier_item_id, candidate_products, status, reviewer_id, reviewed_at, created_at, expires_at`

// ExpireDue transitions every overdue pending entry to expired, returning
// the affected rows.
func (r *ReviewQueueRepo) ExpireDue(ctx context.Context, now time.Time) ([]catalog.MatchReviewQueue, error) {
	rows, err := r.pool.Query(ctx, expireDueQuery, now)
	if err != nil {
		return nil, fmt.Errorf("repository: expire due reviews: %w", err)
	}
	defer rows.Close()

	var out []catalog.MatchReviewQueue
	for rows.Next() {
		entry, err := scanReviewRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

const countPendingReviewsQuery = `SELECT count(*) FROM match_review_queue WHERE status = 'pending'`

// CountPending reports how many reviews are currently awaiting a decision,
// fed to the platform's ReviewQueueSize gauge.
func (r *ReviewQueueRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countPendingReviewsQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("repository: count pending reviews: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row pgx.Row) (catalog.MatchReviewQueue, error) {
	return scanReviewRow(row)
}

func scanReviewRow(row rowScanner) (catalog.MatchReviewQueue, error) {
	var e catalog.MatchReviewQueue
	var candidateJSON []byte
	if err := row.Scan(&e.ID, &e.SupplierItemID, &candidateJSON, &e.Status, &e.ReviewerID, &e.ReviewedAt, &e.CreatedAt, &e.ExpiresAt); err != nil {
		if err == pgx.ErrNoRows {
			return catalog.MatchReviewQueue{}, fmt.Errorf("repository: review entry not found: %w", err)
		}
		return catalog.MatchReviewQueue{}, fmt.Errorf("repository: scan review entry: %w", err)
	}
	if len(candidateJSON) > 0 {
		if err := json.Unmarshal(candidateJSON, &e.CandidateProducts); err != nil {
			return catalog.MatchReviewQueue{}, fmt.Errorf("repository: unmarshal candidate_products: %w", err)
		}
	}
	return e, nil
}
