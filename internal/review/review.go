// Package review implements the match_review_queue lifecycle:
// pending -> approved/rejected/needs_category/expired. The unique
// conflict target is (supplier_item_id) alone: a supplier item has at
// most one active review row.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/Valecer/market-sub001/internal/aggregation"
	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/google/uuid"
)

// DefaultTTL is the review window before an entry expires unreviewed.
const DefaultTTL = 14 * 24 * time.Hour

// Store is the match_review_queue persistence boundary.
type Store interface {
	// Upsert creates a pending row or replaces the existing one for this
	// supplier item (ON CONFLICT (supplier_item_id) DO UPDATE).
	Upsert(ctx context.Context, supplierItemID uuid.UUID, candidates catalog.JSONMap, ttl time.Duration) (catalog.MatchReviewQueue, error)
	Get(ctx context.Context, reviewID uuid.UUID) (catalog.MatchReviewQueue, error)
	SetStatus(ctx context.Context, reviewID uuid.UUID, status catalog.ReviewStatus, reviewerID *string) error
	// ExpireDue transitions every pending row past its expiry to expired and
	// returns the affected rows for re-enqueueing.
	ExpireDue(ctx context.Context, now time.Time) ([]catalog.MatchReviewQueue, error)
}

// SupplierItems is the supplier_items mutation boundary a review decision
// needs: linking/unlinking a product and spinning up a draft product.
type SupplierItems interface {
	// LinkProduct sets supplier_item.product_id and match_status, returning
	// the item's previous product id (nil if it had none) so the caller can
	// recompute aggregates for both products.
	LinkProduct(ctx context.Context, supplierItemID, productID uuid.UUID, status catalog.MatchStatus) (previousProductID *uuid.UUID, err error)
	Unlink(ctx context.Context, supplierItemID uuid.UUID) error
	// CreateDraftProduct creates a new draft Product and links the supplier
	// item to it, used on reject-as-new-product.
	CreateDraftProduct(ctx context.Context, supplierItemID uuid.UUID) (productID uuid.UUID, err error)
	// RequeueMatching re-enters a supplier item into the matching pipeline,
	// used after an expired review is cleared.
	RequeueMatching(ctx context.Context, supplierItemID uuid.UUID) error
}

// Aggregator recomputes product aggregates; satisfied by a thin adapter
// over aggregation.Recompute/RecomputeBatch plus the caller's DBExecutor.
type Aggregator interface {
	Recompute(ctx context.Context, productIDs []uuid.UUID, trigger aggregation.Trigger)
}

// Service drives the review lifecycle.
type Service struct {
	reviews Store
	items   SupplierItems
	agg     Aggregator
}

// New constructs a Service.
func New(reviews Store, items SupplierItems, agg Aggregator) *Service {
	return &Service{reviews: reviews, items: items, agg: agg}
}

// CreatePending enqueues (or replaces) a pending review for a
// medium-confidence match.
func (s *Service) CreatePending(ctx context.Context, supplierItemID uuid.UUID, candidates catalog.JSONMap, ttl time.Duration) (catalog.MatchReviewQueue, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	entry, err := s.reviews.Upsert(ctx, supplierItemID, candidates, ttl)
	if err != nil {
		return catalog.MatchReviewQueue{}, fmt.Errorf("review: create pending for %s: %w", supplierItemID, err)
	}
	logging.Get(logging.CategoryReview).Info("review: pending entry created for supplier item %s, expires %s", supplierItemID, entry.ExpiresAt)
	return entry, nil
}

// Approve links the supplier item to productID as a verified match and
// recomputes aggregates for both the new and any previously-linked product.
func (s *Service) Approve(ctx context.Context, reviewID uuid.UUID, reviewerID string, productID uuid.UUID) error {
	log := logging.Get(logging.CategoryReview)

	entry, err := s.reviews.Get(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("review: get %s: %w", reviewID, err)
	}

	prevProductID, err := s.items.LinkProduct(ctx, entry.SupplierItemID, productID, catalog.MatchVerified)
	if err != nil {
		return fmt.Errorf("review: link supplier item %s to product %s: %w", entry.SupplierItemID, productID, err)
	}

	if err := s.reviews.SetStatus(ctx, reviewID, catalog.ReviewApproved, &reviewerID); err != nil {
		return fmt.Errorf("review: approve %s: %w", reviewID, err)
	}

	affected := []uuid.UUID{productID}
	if prevProductID != nil {
		affected = append(affected, *prevProductID)
	}
	s.agg.Recompute(ctx, affected, aggregation.TriggerManualLink)

	log.Info("review: %s approved by %s, supplier item %s linked to product %s", reviewID, reviewerID, entry.SupplierItemID, productID)
	return nil
}

// Reject marks the review rejected. If makeDraft is true the supplier item
// becomes a fresh draft product; otherwise it stays unmatched.
func (s *Service) Reject(ctx context.Context, reviewID uuid.UUID, reviewerID string, makeDraft bool) error {
	log := logging.Get(logging.CategoryReview)

	entry, err := s.reviews.Get(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("review: get %s: %w", reviewID, err)
	}

	if makeDraft {
		productID, err := s.items.CreateDraftProduct(ctx, entry.SupplierItemID)
		if err != nil {
			return fmt.Errorf("review: create draft product for %s: %w", entry.SupplierItemID, err)
		}
		log.Info("review: %s rejected by %s, supplier item %s became draft product %s", reviewID, reviewerID, entry.SupplierItemID, productID)
	} else {
		if err := s.items.Unlink(ctx, entry.SupplierItemID); err != nil {
			return fmt.Errorf("review: unlink supplier item %s: %w", entry.SupplierItemID, err)
		}
		log.Info("review: %s rejected by %s, supplier item %s stays unmatched", reviewID, reviewerID, entry.SupplierItemID)
	}

	if err := s.reviews.SetStatus(ctx, reviewID, catalog.ReviewRejected, &reviewerID); err != nil {
		return fmt.Errorf("review: reject %s: %w", reviewID, err)
	}
	return nil
}

// Categorize marks the review needs_category, pausing it until an admin
// assigns a category; ReturnToPending flows it back to pending once done.
func (s *Service) Categorize(ctx context.Context, reviewID uuid.UUID, reviewerID string) error {
	if err := s.reviews.SetStatus(ctx, reviewID, catalog.ReviewNeedsCategory, &reviewerID); err != nil {
		return fmt.Errorf("review: categorize %s: %w", reviewID, err)
	}
	return nil
}

// ReturnToPending flows a needs_category review back to pending once its
// category has been assigned.
func (s *Service) ReturnToPending(ctx context.Context, reviewID uuid.UUID) error {
	if err := s.reviews.SetStatus(ctx, reviewID, catalog.ReviewPending, nil); err != nil {
		return fmt.Errorf("review: return %s to pending: %w", reviewID, err)
	}
	return nil
}

// ExpireDue runs the daily expiry task: every pending review past its TTL
// becomes expired, and its supplier item is re-queued for a fresh matching
// attempt.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	log := logging.Get(logging.CategoryReview)

	expired, err := s.reviews.ExpireDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("review: expire due: %w", err)
	}

	for _, entry := range expired {
		if err := s.items.RequeueMatching(ctx, entry.SupplierItemID); err != nil {
			log.Error("review: failed to requeue matching for expired supplier item %s: %v", entry.SupplierItemID, err)
		}
	}

	log.Info("review: expired %d pending entries", len(expired))
	return len(expired), nil
}
