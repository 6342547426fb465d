// Package category implements the parent-first category-path normalizer:
// walk a leaf-ordered path, fuzzy-match each level against the
// existing children of the previous level, and create a needs_review node on
// a miss. Grounded on this repo's cache-then-reconcile shape; the
// similarity scoring itself reuses internal/matcher's token-set score.
package category

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/Valecer/market-sub001/internal/matcher"
	"github.com/google/uuid"
)

// DefaultSimilarityThreshold is the minimum TokenSetScore for a level to be
// treated as a match rather than a new needs_review category.
const DefaultSimilarityThreshold = 85.0

// Store is the persistence boundary the normalizer needs: load the full
// category forest once, and persist newly created nodes.
type Store interface {
	LoadAllCategories(ctx context.Context) ([]catalog.Category, error)
	CreateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error)
}

type cacheEntry struct {
	id       uuid.UUID
	name     string
	parentID *uuid.UUID
}

func cacheKey(parentID *uuid.UUID, normalizedName string) string {
	if parentID == nil {
		return "root|" + normalizedName
	}
	return parentID.String() + "|" + normalizedName
}

func normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Stats summarizes one normalization run.
type Stats struct {
	Matched      int
	Created      int
	Skipped      int
	ReviewQueue  int
	meanAccum    float64
	meanCount    int
}

// MeanSimilarity returns the mean similarity score across matched levels, or
// 0 if no level was scored.
func (s Stats) MeanSimilarity() float64 {
	if s.meanCount == 0 {
		return 0
	}
	return s.meanAccum / float64(s.meanCount)
}

// Normalizer caches the full category forest in memory and resolves leaf-
// ordered category paths against it, creating needs_review nodes on a miss.
type Normalizer struct {
	store     Store
	threshold float64

	mu    sync.Mutex
	byKey map[string]cacheEntry
	stats Stats
}

// New constructs a Normalizer. Call LoadCache once before normalizing.
func New(store Store, threshold float64) *Normalizer {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Normalizer{
		store:     store,
		threshold: threshold,
		byKey:     make(map[string]cacheEntry),
	}
}

// LoadCache performs the single load-all-categories call and populates the
// in-memory {(parent_id, normalized_name) -> (id, name, parent_id)} map.
func (n *Normalizer) LoadCache(ctx context.Context) error {
	cats, err := n.store.LoadAllCategories(ctx)
	if err != nil {
		return fmt.Errorf("category: load all: %w", err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range cats {
		key := cacheKey(c.ParentID, normalize(c.Name))
		n.byKey[key] = cacheEntry{id: c.ID, name: c.Name, parentID: c.ParentID}
	}
	return nil
}

// childrenOf returns cached children of parentID, read while holding the lock.
func (n *Normalizer) childrenOf(parentID *uuid.UUID) []cacheEntry {
	var out []cacheEntry
	prefix := "root|"
	if parentID != nil {
		prefix = parentID.String() + "|"
	}
	for key, e := range n.byKey {
		if strings.HasPrefix(key, prefix) {
			out = append(out, e)
		}
	}
	return out
}

// Normalize walks path parent-first, fuzzy-matching each level against the
// existing children of the previous level's resolved id. Empty path returns
// an empty result with a nil leaf id.
func (n *Normalizer) Normalize(ctx context.Context, path []string, introducingSupplier *uuid.UUID) ([]catalog.CategoryMatchResult, *string, error) {
	log := logging.Get(logging.CategoryCategory)

	if len(path) == 0 {
		n.mu.Lock()
		n.stats.Skipped++
		n.mu.Unlock()
		return nil, nil, nil
	}

	results := make([]catalog.CategoryMatchResult, 0, len(path))
	var parentID *uuid.UUID

	for level, rawName := range path {
		name := strings.TrimSpace(rawName)
		if name == "" {
			continue
		}
		norm := normalize(name)

		n.mu.Lock()
		candidates := n.childrenOf(parentID)
		n.mu.Unlock()

		var bestScore float64
		var best *cacheEntry
		for i := range candidates {
			score := matcher.TokenSetScore(norm, normalize(candidates[i].name))
			if score > bestScore {
				bestScore = score
				best = &candidates[i]
			}
		}

		var result catalog.CategoryMatchResult
		result.Level = level
		result.Name = name
		if parentID != nil {
			pid := parentID.String()
			result.ParentID = &pid
		}

		if best != nil && bestScore >= n.threshold {
			result.CategoryID = best.id.String()
			result.Action = catalog.CategoryMatched
			result.Similarity = bestScore
			parentID = &best.id

			n.mu.Lock()
			n.stats.Matched++
			n.stats.meanAccum += bestScore
			n.stats.meanCount++
			n.mu.Unlock()

			log.Debug("category: level %d %q matched existing %s (score=%.1f)", level, name, result.CategoryID, bestScore)
		} else {
			created, err := n.store.CreateCategory(ctx, catalog.Category{
				Name:                name,
				ParentID:            parentID,
				NeedsReview:         true,
				IntroducingSupplier: introducingSupplier,
				Active:              true,
			})
			if err != nil {
				return results, nil, fmt.Errorf("category: create %q: %w", name, err)
			}

			n.mu.Lock()
			n.byKey[cacheKey(parentID, norm)] = cacheEntry{id: created.ID, name: created.Name, parentID: created.ParentID}
			n.stats.Created++
			n.stats.ReviewQueue++
			n.mu.Unlock()

			result.CategoryID = created.ID.String()
			result.Action = catalog.CategoryCreated
			result.Similarity = bestScore
			parentID = &created.ID

			log.Info("category: level %d %q created, needs_review (best existing score=%.1f)", level, name, bestScore)
		}

		results = append(results, result)
	}

	var leaf *string
	if parentID != nil {
		id := parentID.String()
		leaf = &id
	}
	return results, leaf, nil
}

// Stats returns a snapshot of the run-so-far counters.
func (n *Normalizer) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stats
}
