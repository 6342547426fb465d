package etl

import (
	"context"
	"fmt"

	"github.com/Valecer/market-sub001/internal/aggregation"
	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/Valecer/market-sub001/internal/matcher"
	"github.com/Valecer/market-sub001/internal/rerank"
	"github.com/Valecer/market-sub001/internal/review"
	"github.com/google/uuid"
)

// SupplierItemSource is the read/write boundary over supplier_items the
// matching stage needs.
type SupplierItemSource interface {
	ListUnmatched(ctx context.Context, limit int) ([]catalog.SupplierItem, error)
	Get(ctx context.Context, id uuid.UUID) (catalog.SupplierItem, error)
	SetMatchResult(ctx context.Context, id uuid.UUID, status catalog.MatchStatus, score *float64, candidates catalog.JSONMap, productID *uuid.UUID) error
}

// CandidateSource supplies the products a supplier item can be matched
// against, scoped to the item's own category.
type CandidateSource interface {
	ListActive(ctx context.Context, categoryID *uuid.UUID) ([]catalog.Product, error)
}

// Aggregator recomputes a product's aggregates after a new link changes its
// linked-item set.
type Aggregator interface {
	Recompute(ctx context.Context, productIDs []uuid.UUID, trigger aggregation.Trigger)
}

// MatchingDeps bundles the matching stage's collaborators, narrow enough
// that a test can fake each one independently of a real database.
type MatchingDeps struct {
	Items         SupplierItemSource
	Products      CandidateSource
	Reviews       *review.Service
	Aggregates    Aggregator
	Reranker      *rerank.Reranker
	MatcherCfg    matcher.Config
	CandidateTopK int
}

// Matcher drives components I/J/K/L: fuzzy-score (and optionally
// LLM-rerank) a supplier item against its category's active products,
// classify per the two-threshold rule, persist the outcome, enqueue a
// review on an ambiguous match, and recompute aggregates on a firm link.
type Matcher struct {
	deps MatchingDeps
}

// NewMatcher constructs a Matcher. CandidateTopK defaults to
// matcher.DefaultMaxCandidates and MatcherCfg to matcher.DefaultConfig when
// left zero.
func NewMatcher(deps MatchingDeps) *Matcher {
	if deps.CandidateTopK <= 0 {
		deps.CandidateTopK = matcher.DefaultMaxCandidates
	}
	if deps.MatcherCfg == (matcher.Config{}) {
		deps.MatcherCfg = matcher.DefaultConfig()
	}
	return &Matcher{deps: deps}
}

// BatchResult tallies how many supplier items landed in each outcome
// bucket of one MatchBatch call.
type BatchResult struct {
	AutoMatched  int
	ReviewQueued int
	Unmatched    int
	Failed       int
}

// MatchBatch runs the matching stage over an explicit id list, or every
// unmatched supplier item (capped at limit) when itemIDs is empty.
func (m *Matcher) MatchBatch(ctx context.Context, itemIDs []uuid.UUID, limit int) (BatchResult, error) {
	log := logging.Get(logging.CategoryMatcher)

	items, err := m.loadItems(ctx, itemIDs, limit)
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for _, item := range items {
		status, err := m.matchOne(ctx, item)
		if err != nil {
			log.Warn("matcher: item %s failed: %v", item.ID, err)
			result.Failed++
			continue
		}
		switch status {
		case catalog.MatchAutoMatched, catalog.MatchVerified:
			result.AutoMatched++
		case catalog.MatchPotential:
			result.ReviewQueued++
		default:
			result.Unmatched++
		}
	}
	return result, nil
}

func (m *Matcher) loadItems(ctx context.Context, itemIDs []uuid.UUID, limit int) ([]catalog.SupplierItem, error) {
	if len(itemIDs) == 0 {
		return m.deps.Items.ListUnmatched(ctx, limit)
	}
	items := make([]catalog.SupplierItem, 0, len(itemIDs))
	for _, id := range itemIDs {
		item, err := m.deps.Items.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("etl: load supplier item %s: %w", id, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (m *Matcher) matchOne(ctx context.Context, item catalog.SupplierItem) (catalog.MatchStatus, error) {
	log := logging.Get(logging.CategoryMatcher)

	candidates, err := m.candidatesFor(ctx, item)
	if err != nil {
		return "", err
	}

	var outcome catalog.MatchResult
	if m.deps.Reranker != nil {
		outcome = m.deps.Reranker.Rerank(ctx, item.ID.String(), item.Name, candidates)
	} else {
		outcome = matcher.Match(item.ID.String(), item.Name, candidates, m.deps.MatcherCfg)
	}

	candidateJSON := candidatesToJSON(outcome.Candidates)

	switch outcome.MatchStatus {
	case catalog.MatchAutoMatched:
		productID, err := uuid.Parse(outcome.BestMatch.ProductID)
		if err != nil {
			return "", fmt.Errorf("etl: auto-match product id %q: %w", outcome.BestMatch.ProductID, err)
		}
		if err := m.deps.Items.SetMatchResult(ctx, item.ID, catalog.MatchAutoMatched, outcome.MatchScore, candidateJSON, &productID); err != nil {
			return "", fmt.Errorf("etl: persist auto-match for %s: %w", item.ID, err)
		}
		if m.deps.Aggregates != nil {
			m.deps.Aggregates.Recompute(ctx, []uuid.UUID{productID}, aggregation.TriggerAutoMatch)
		}
		log.Info("matcher: item %s auto-matched to product %s", item.ID, productID)

	case catalog.MatchPotential:
		if err := m.deps.Items.SetMatchResult(ctx, item.ID, catalog.MatchPotential, outcome.MatchScore, candidateJSON, nil); err != nil {
			return "", fmt.Errorf("etl: persist potential match for %s: %w", item.ID, err)
		}
		if m.deps.Reviews != nil {
			if _, err := m.deps.Reviews.CreatePending(ctx, item.ID, candidateJSON, 0); err != nil {
				return "", fmt.Errorf("etl: enqueue review for %s: %w", item.ID, err)
			}
		}
		log.Info("matcher: item %s queued for review (%d candidates)", item.ID, len(outcome.Candidates))

	default:
		if err := m.deps.Items.SetMatchResult(ctx, item.ID, catalog.MatchUnmatched, nil, candidateJSON, nil); err != nil {
			return "", fmt.Errorf("etl: persist unmatched state for %s: %w", item.ID, err)
		}
	}

	return outcome.MatchStatus, nil
}

// candidatesFor builds the candidate set: active products scoped to the
// supplier item's own category when it has one, or the full active catalog
// otherwise.
func (m *Matcher) candidatesFor(ctx context.Context, item catalog.SupplierItem) ([]matcher.CandidateProduct, error) {
	var categoryID *uuid.UUID
	if raw, ok := item.Characteristics["category_id"].(string); ok && raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			categoryID = &id
		}
	}

	products, err := m.deps.Products.ListActive(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("etl: list active products: %w", err)
	}

	candidates := make([]matcher.CandidateProduct, 0, len(products))
	for _, p := range products {
		candidates = append(candidates, matcher.CandidateProduct{
			ID:   p.ID.String(),
			Name: p.DisplayName,
		})
	}
	if len(candidates) > m.deps.CandidateTopK {
		candidates = candidates[:m.deps.CandidateTopK]
	}
	return candidates, nil
}

func candidatesToJSON(candidates []catalog.MatchCandidate) catalog.JSONMap {
	list := make([]catalog.JSONMap, 0, len(candidates))
	for _, c := range candidates {
		list = append(list, catalog.JSONMap{
			"product_id": c.ProductID,
			"name":       c.Name,
			"score":      c.Score,
			"reasoning":  c.Reasoning,
		})
	}
	return catalog.JSONMap{"candidates": list}
}
