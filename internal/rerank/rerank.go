// Package rerank implements the optional LLM match reranker:
// given a candidate set (the matcher passes category-scoped products), ask the model to pick matches with
// confidences and reasoning, classified against the same two-threshold rule
// as the fuzzy matcher. A failed or unparseable LLM call falls back to pure
// fuzzy scoring (internal/matcher) so the pipeline always terminates.
package rerank

import (
	"context"
	"fmt"
	"strings"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/llmclient"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/Valecer/market-sub001/internal/matcher"
)

// DefaultAutoThreshold / DefaultReviewThreshold are the confidence
// boundaries, expressed on the same [0,1] scale the LLM
// returns (unlike the fuzzy matcher's [0,100] score scale).
const (
	DefaultAutoThreshold   = 0.9
	DefaultReviewThreshold = 0.7
)

// Config tunes the reranker's thresholds and LLM call semantics.
type Config struct {
	AutoThreshold   float64
	ReviewThreshold float64
	Temperature     float64
	MaxRetries      int
}

// DefaultConfig returns the reranker's default thresholds and a low-temperature
// call profile suited to structured output.
func DefaultConfig() Config {
	return Config{
		AutoThreshold:   DefaultAutoThreshold,
		ReviewThreshold: DefaultReviewThreshold,
		Temperature:     0.2,
		MaxRetries:      2,
	}
}

// Judgment is one candidate's LLM-assigned confidence and reasoning.
type Judgment struct {
	ProductID  string
	Confidence float64
	Reasoning  string
}

type rawJudgment struct {
	ProductID  string  `json:"product_id"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type rawResponse struct {
	Judgments []rawJudgment `json:"judgments"`
}

// Reranker drives a StructuredClient to score candidates, falling back to
// matcher.Match on any failure.
type Reranker struct {
	client llmclient.StructuredClient
	cfg    Config
}

// New constructs a Reranker.
func New(client llmclient.StructuredClient, cfg Config) *Reranker {
	return &Reranker{client: client, cfg: cfg}
}

// Rerank asks the LLM to judge itemName against candidates and classifies
// the best judgment using the same partition as the fuzzy matcher
// (auto_matched / potential_match / unmatched). On any LLM or parsing
// failure it falls back to matcher.Match over the same candidate set.
func (r *Reranker) Rerank(ctx context.Context, supplierItemID, itemName string, candidates []matcher.CandidateProduct) catalog.MatchResult {
	log := logging.Get(logging.CategoryRerank)

	judgments, err := r.judge(ctx, itemName, candidates)
	if err != nil {
		log.Warn("rerank: item %s LLM judging failed, falling back to fuzzy match: %v", supplierItemID, err)
		return matcher.Match(supplierItemID, itemName, candidates, matcher.DefaultConfig())
	}

	byID := make(map[string]matcher.CandidateProduct, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	scored := make([]catalog.MatchCandidate, 0, len(judgments))
	for _, j := range judgments {
		cand, ok := byID[j.ProductID]
		if !ok {
			continue
		}
		scored = append(scored, catalog.MatchCandidate{
			ProductID: j.ProductID,
			Name:      cand.Name,
			Score:     j.Confidence * 100,
			Reasoning: j.Reasoning,
		})
	}

	if len(scored) == 0 {
		log.Warn("rerank: item %s LLM returned no recognizable candidates, falling back to fuzzy match", supplierItemID)
		return matcher.Match(supplierItemID, itemName, candidates, matcher.DefaultConfig())
	}

	best := scored[0]
	for _, s := range scored[1:] {
		if s.Score > best.Score {
			best = s
		}
	}

	confidence := best.Score / 100
	result := catalog.MatchResult{
		SupplierItemID: supplierItemID,
		Candidates:     scored,
	}

	switch {
	case confidence >= r.cfg.AutoThreshold:
		result.MatchStatus = catalog.MatchAutoMatched
		b := best
		result.BestMatch = &b
		score := best.Score
		result.MatchScore = &score
	case confidence >= r.cfg.ReviewThreshold:
		result.MatchStatus = catalog.MatchPotential
		score := best.Score
		result.MatchScore = &score
	default:
		result.MatchStatus = catalog.MatchUnmatched
	}

	return result
}

func (r *Reranker) judge(ctx context.Context, itemName string, candidates []matcher.CandidateProduct) ([]Judgment, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("rerank: empty candidate set")
	}

	result, err := r.client.Complete(ctx, llmclient.CompletionRequest{
		SystemPrompt: rerankSystemPrompt,
		UserPrompt:   buildPrompt(itemName, candidates),
		Temperature:  r.cfg.Temperature,
		MaxRetries:   r.cfg.MaxRetries,
		Kind:         "rerank",
	})
	if err != nil {
		return nil, fmt.Errorf("rerank: LLM call failed: %w", err)
	}

	var parsed rawResponse
	if err := llmclient.ExtractJSON(result.Text, &parsed); err != nil {
		return nil, fmt.Errorf("rerank: unparseable LLM response: %w", err)
	}

	out := make([]Judgment, 0, len(parsed.Judgments))
	for _, j := range parsed.Judgments {
		if j.Confidence < 0 || j.Confidence > 1 {
			continue
		}
		out = append(out, Judgment{ProductID: j.ProductID, Confidence: j.Confidence, Reasoning: j.Reasoning})
	}
	return out, nil
}

const rerankSystemPrompt = `You are a product-matching judge. Given a supplier item name and a list of candidate products, return ONLY a JSON object {"judgments": [{"product_id": string, "confidence": number between 0 and 1, "reasoning": string}]} ranking how likely each candidate is the same product as the supplier item. Do not include any text outside the JSON object.`

func buildPrompt(itemName string, candidates []matcher.CandidateProduct) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Supplier item: %s\n\nCandidates:\n", itemName)
	for _, c := range candidates {
		fmt.Fprintf(&b, "- id=%s name=%q brand=%q category=%q\n", c.ID, c.Name, c.Brand, c.Category)
	}
	return b.String()
}
