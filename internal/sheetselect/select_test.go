package sheetselect

import (
	"context"
	"testing"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/stretchr/testify/assert"
)

func TestSelect_PriorityWins(t *testing.T) {
	sheets := []catalog.SheetInfo{
		{Name: "Instructions", RowCount: 5},
		{Name: "Products", RowCount: 20},
		{Name: "Pricing", RowCount: 15},
		{Name: "Config", RowCount: 3},
		{Name: "Upload to site", RowCount: 30},
	}
	res := Select(context.Background(), sheets, nil, false)
	assert.True(t, res.PrioritySheetFound)
	assert.Equal(t, []string{"Upload to site"}, res.Selected)
	assert.Len(t, res.Skipped, 4)
	assert.False(t, res.UsedLLM)
}

func TestSelect_HeuristicDropsBlacklistAndEmpty(t *testing.T) {
	sheets := []catalog.SheetInfo{
		{Name: "README", RowCount: 100},
		{Name: "Settings", RowCount: 50},
		{Name: "Sheet1", RowCount: 0, IsEmpty: true},
		{Name: "Sheet2", RowCount: 1},
		{Name: "Inventory", RowCount: 40},
	}
	res := Select(context.Background(), sheets, nil, false)
	assert.False(t, res.PrioritySheetFound)
	assert.Equal(t, []string{"Inventory"}, res.Selected)
}

func TestSelect_KeywordOverridesLowRowCount(t *testing.T) {
	sheets := []catalog.SheetInfo{
		{Name: "Price List Extra", RowCount: 3},
	}
	res := Select(context.Background(), sheets, nil, false)
	assert.Equal(t, []string{"Price List Extra"}, res.Selected)
}

type stubLLM struct {
	selected, skipped []string
	reasoning         string
	err               error
}

func (s stubLLM) Choose(ctx context.Context, candidates []catalog.SheetInfo) ([]string, []string, string, error) {
	return s.selected, s.skipped, s.reasoning, s.err
}

func TestSelect_LLMTiebreakerUsedWhenMultipleCandidates(t *testing.T) {
	sheets := []catalog.SheetInfo{
		{Name: "Retail Prices", RowCount: 50},
		{Name: "Wholesale Prices", RowCount: 60},
	}
	llm := stubLLM{selected: []string{"Retail Prices"}, skipped: []string{"Wholesale Prices"}, reasoning: "retail is primary"}
	res := Select(context.Background(), sheets, llm, true)
	assert.True(t, res.UsedLLM)
	assert.Equal(t, []string{"Retail Prices"}, res.Selected)
}

func TestSelect_LLMFailureFallsBackToHeuristic(t *testing.T) {
	sheets := []catalog.SheetInfo{
		{Name: "Retail Prices", RowCount: 50},
		{Name: "Wholesale Prices", RowCount: 60},
	}
	llm := stubLLM{err: assertErr{}}
	res := Select(context.Background(), sheets, llm, true)
	assert.False(t, res.UsedLLM)
	assert.ElementsMatch(t, []string{"Retail Prices", "Wholesale Prices"}, res.Selected)
}

type assertErr struct{}

func (assertErr) Error() string { return "llm unavailable" }
