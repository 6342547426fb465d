package matcher

import (
	"sort"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/Valecer/market-sub001/internal/metrics"
)

// DefaultMaxCandidates is the cap on the stored candidate list per item.
const DefaultMaxCandidates = 10

// DefaultPotentialThreshold / DefaultAutoThreshold are the score boundaries
// of the matching rule.
const (
	DefaultPotentialThreshold = 70
	DefaultAutoThreshold      = 95
)

// CandidateProduct is a product eligible to be matched against, carrying
// the extra fields the score can be augmented with.
type CandidateProduct struct {
	ID       string
	Name     string
	Brand    string
	Category string
}

// Config tunes the matcher's thresholds and candidate cap.
type Config struct {
	AutoThreshold      float64
	PotentialThreshold float64
	MaxCandidates      int
}

// DefaultConfig returns the matcher's default thresholds.
func DefaultConfig() Config {
	return Config{
		AutoThreshold:      DefaultAutoThreshold,
		PotentialThreshold: DefaultPotentialThreshold,
		MaxCandidates:      DefaultMaxCandidates,
	}
}

// Match scores itemName against every candidate and classifies the result
// score >= auto -> auto_matched; potential <= score < auto ->
// potential_match (enqueue review); score < potential -> unmatched.
func Match(supplierItemID, itemName string, candidates []CandidateProduct, cfg Config) catalog.MatchResult {
	log := logging.Get(logging.CategoryMatcher)

	if len(candidates) == 0 {
		log.Debug("matcher: no candidates for item %s, unmatched", supplierItemID)
		metrics.MatchClassifications.WithLabelValues(string(catalog.MatchUnmatched)).Inc()
		return catalog.MatchResult{
			SupplierItemID: supplierItemID,
			MatchStatus:    catalog.MatchUnmatched,
		}
	}

	scored := make([]catalog.MatchCandidate, 0, len(candidates))
	for _, c := range candidates {
		score := TokenSetScore(itemName, c.Name)
		scored = append(scored, catalog.MatchCandidate{
			ProductID: c.ID,
			Name:      c.Name,
			Score:     score,
		})
	}

	// Stable sort descending by score; ties keep candidate insertion order.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if len(scored) > cfg.MaxCandidates {
		scored = scored[:cfg.MaxCandidates]
	}

	best := scored[0]
	result := catalog.MatchResult{
		SupplierItemID: supplierItemID,
		Candidates:     scored,
	}

	switch {
	case best.Score >= cfg.AutoThreshold:
		result.MatchStatus = catalog.MatchAutoMatched
		result.BestMatch = &best
		score := best.Score
		result.MatchScore = &score
		log.Info("matcher: item %s auto-matched to %s (score=%.1f)", supplierItemID, best.ProductID, best.Score)
	case best.Score >= cfg.PotentialThreshold:
		result.MatchStatus = catalog.MatchPotential
		score := best.Score
		result.MatchScore = &score
		log.Info("matcher: item %s potential match, queued for review (score=%.1f)", supplierItemID, best.Score)
	default:
		result.MatchStatus = catalog.MatchUnmatched
		log.Debug("matcher: item %s unmatched (best score=%.1f)", supplierItemID, best.Score)
	}
	metrics.MatchClassifications.WithLabelValues(string(result.MatchStatus)).Inc()

	return result
}
