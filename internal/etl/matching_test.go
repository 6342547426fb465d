package etl

import (
	"context"
	"testing"

	"github.com/Valecer/market-sub001/internal/aggregation"
	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/matcher"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeItemSource struct {
	items       map[uuid.UUID]catalog.SupplierItem
	setResults  map[uuid.UUID]catalog.MatchStatus
}

func newFakeItemSource(items ...catalog.SupplierItem) *fakeItemSource {
	m := make(map[uuid.UUID]catalog.SupplierItem, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return &fakeItemSource{items: m, setResults: make(map[uuid.UUID]catalog.MatchStatus)}
}

func (f *fakeItemSource) ListUnmatched(ctx context.Context, limit int) ([]catalog.SupplierItem, error) {
	out := make([]catalog.SupplierItem, 0, len(f.items))
	for _, it := range f.items {
		out = append(out, it)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeItemSource) Get(ctx context.Context, id uuid.UUID) (catalog.SupplierItem, error) {
	it, ok := f.items[id]
	if !ok {
		return catalog.SupplierItem{}, assert.AnError
	}
	return it, nil
}

func (f *fakeItemSource) SetMatchResult(ctx context.Context, id uuid.UUID, status catalog.MatchStatus, score *float64, candidates catalog.JSONMap, productID *uuid.UUID) error {
	f.setResults[id] = status
	return nil
}

type fakeCandidateSource struct {
	products []catalog.Product
}

func (f *fakeCandidateSource) ListActive(ctx context.Context, categoryID *uuid.UUID) ([]catalog.Product, error) {
	return f.products, nil
}

type fakeAggregator struct {
	recomputed []uuid.UUID
}

func (f *fakeAggregator) Recompute(ctx context.Context, productIDs []uuid.UUID, trigger aggregation.Trigger) {
	f.recomputed = append(f.recomputed, productIDs...)
}

func TestMatchBatch_HighScoreAutoMatchesAndRecomputes(t *testing.T) {
	productID := uuid.New()
	itemID := uuid.New()
	items := newFakeItemSource(catalog.SupplierItem{ID: itemID, Name: "Acme Widget Pro"})
	agg := &fakeAggregator{}

	m := NewMatcher(MatchingDeps{
		Items:      items,
		Products:   &fakeCandidateSource{products: []catalog.Product{{ID: productID, DisplayName: "Acme Widget Pro"}}},
		Aggregates: agg,
	})

	result, err := m.MatchBatch(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AutoMatched)
	assert.Equal(t, catalog.MatchAutoMatched, items.setResults[itemID])
	require.Len(t, agg.recomputed, 1)
	assert.Equal(t, productID, agg.recomputed[0])
}

func TestMatchBatch_NoCandidatesLeavesUnmatched(t *testing.T) {
	itemID := uuid.New()
	items := newFakeItemSource(catalog.SupplierItem{ID: itemID, Name: "Mystery Item"})

	m := NewMatcher(MatchingDeps{
		Items:    items,
		Products: &fakeCandidateSource{},
	})

	result, err := m.MatchBatch(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unmatched)
	assert.Equal(t, catalog.MatchUnmatched, items.setResults[itemID])
}

func TestMatchBatch_LowSimilarityStaysUnmatchedNotQueued(t *testing.T) {
	itemID := uuid.New()
	items := newFakeItemSource(catalog.SupplierItem{ID: itemID, Name: "Totally Unrelated Thing"})

	m := NewMatcher(MatchingDeps{
		Items:    items,
		Products: &fakeCandidateSource{products: []catalog.Product{{ID: uuid.New(), DisplayName: "Industrial Lathe Model 9000"}}},
	})

	result, err := m.MatchBatch(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unmatched)
	assert.Equal(t, 0, result.ReviewQueued)
}

func TestMatchBatch_ExplicitIDsOnlyMatchesThoseItems(t *testing.T) {
	idA, idB := uuid.New(), uuid.New()
	items := newFakeItemSource(
		catalog.SupplierItem{ID: idA, Name: "Widget A"},
		catalog.SupplierItem{ID: idB, Name: "Widget B"},
	)

	m := NewMatcher(MatchingDeps{Items: items, Products: &fakeCandidateSource{}})

	result, err := m.MatchBatch(context.Background(), []uuid.UUID{idA}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unmatched)
	_, sawB := items.setResults[idB]
	assert.False(t, sawB)
}

func TestMatchBatch_UnknownExplicitIDFails(t *testing.T) {
	items := newFakeItemSource()
	m := NewMatcher(MatchingDeps{Items: items, Products: &fakeCandidateSource{}})

	_, err := m.MatchBatch(context.Background(), []uuid.UUID{uuid.New()}, 0)
	assert.Error(t, err)
}

func TestCandidatesFor_CapsAtCandidateTopK(t *testing.T) {
	items := newFakeItemSource()
	products := make([]catalog.Product, 0, 5)
	for i := 0; i < 5; i++ {
		products = append(products, catalog.Product{ID: uuid.New(), DisplayName: "Product"})
	}
	m := NewMatcher(MatchingDeps{
		Items:         items,
		Products:      &fakeCandidateSource{products: products},
		CandidateTopK: 2,
	})

	candidates, err := m.candidatesFor(context.Background(), catalog.SupplierItem{ID: uuid.New(), Name: "Product"})
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestNewMatcher_DefaultsConfigAndTopK(t *testing.T) {
	m := NewMatcher(MatchingDeps{Items: newFakeItemSource(), Products: &fakeCandidateSource{}})
	assert.Equal(t, matcher.DefaultMaxCandidates, m.deps.CandidateTopK)
	assert.Equal(t, matcher.DefaultConfig(), m.deps.MatcherCfg)
}
