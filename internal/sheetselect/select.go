// Package sheetselect picks which sheet(s) of a multi-sheet file to process,
// grounded on the original Python sheet_selector's priority list, blacklist,
// and data-density heuristic.
package sheetselect

import (
	"context"
	"strings"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/logging"
)

// MinDataRows is the row count below which the heuristic pass drops a sheet.
// A sheet whose name has no product keyword needs more rows than this to be
// kept (see Select).
const MinDataRows = 2

// priorityNames is checked in order; the first exact (normalized) match
// wins exclusively. Earlier entries win over later ones.
var priorityNames = []string{
	"upload to site",
	"загрузить на сайт",
	"products",
	"товары",
	"catalog",
	"каталог",
	"price list",
	"прайс-лист",
	"прайс",
}

// blacklistNames are dropped outright on an exact normalized match.
var blacklistNames = map[string]bool{
	"readme": true, "instructions": true, "инструкция": true,
	"config": true, "settings": true, "настройки": true,
}

// blacklistPartials are dropped when contained anywhere in the normalized
// name.
var blacklistPartials = []string{"readme", "info", "help", "note", "config", "setting"}

// productKeywords mark a sheet as likely to hold product data even if it
// fails the row-count heuristic.
var productKeywords = []string{"product", "товар", "price", "цена", "inventory", "каталог"}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Result is the outcome of selection: a partition of the input sheet names
// into selected and skipped, plus provenance flags.
type Result struct {
	Selected           []string
	Skipped            []string
	Reasoning          string
	UsedLLM            bool
	PrioritySheetFound bool
}

// LLMTiebreaker asks a model to choose among surviving candidates. Returns
// selected/skipped names (a partition of candidates) and reasoning.
type LLMTiebreaker interface {
	Choose(ctx context.Context, candidates []catalog.SheetInfo) (selected, skipped []string, reasoning string, err error)
}

// Select implements the three-pass algorithm: priority match,
// then heuristic filtering, then an optional LLM tiebreaker among survivors.
func Select(ctx context.Context, sheets []catalog.SheetInfo, llm LLMTiebreaker, useLLM bool) Result {
	log := logging.Get(logging.CategoryETL)

	// Pass 1: priority.
	for _, want := range priorityNames {
		for _, s := range sheets {
			if normalize(s.Name) == want {
				var skipped []string
				for _, other := range sheets {
					if other.Name != s.Name {
						skipped = append(skipped, other.Name)
					}
				}
				log.Debug("sheet selector: priority match %q", s.Name)
				return Result{
					Selected:           []string{s.Name},
					Skipped:            skipped,
					Reasoning:          "priority sheet name match: " + want,
					PrioritySheetFound: true,
				}
			}
		}
	}

	// Pass 2: heuristic.
	var candidates []catalog.SheetInfo
	var skipped []string
	for _, s := range sheets {
		norm := normalize(s.Name)
		if s.IsEmpty || s.RowCount < MinDataRows {
			skipped = append(skipped, s.Name)
			continue
		}
		if blacklistNames[norm] {
			skipped = append(skipped, s.Name)
			continue
		}
		blacklisted := false
		for _, p := range blacklistPartials {
			if strings.Contains(norm, p) {
				blacklisted = true
				break
			}
		}
		if blacklisted {
			skipped = append(skipped, s.Name)
			continue
		}

		hasKeyword := false
		for _, kw := range productKeywords {
			if strings.Contains(norm, kw) {
				hasKeyword = true
				break
			}
		}
		if hasKeyword || s.RowCount >= 10 {
			candidates = append(candidates, s)
		} else {
			skipped = append(skipped, s.Name)
		}
	}

	if len(candidates) <= 1 || llm == nil || !useLLM {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Name
		}
		return Result{
			Selected:  names,
			Skipped:   skipped,
			Reasoning: "heuristic pass (row density / product keyword)",
		}
	}

	// Pass 3: LLM tiebreaker among multiple survivors.
	selected, llmSkipped, reasoning, err := llm.Choose(ctx, candidates)
	if err != nil {
		log.Warn("sheet selector: LLM tiebreaker failed, falling back to heuristic result: %v", err)
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Name
		}
		return Result{
			Selected:  names,
			Skipped:   skipped,
			Reasoning: "heuristic pass (LLM fallback after error)",
		}
	}
	return Result{
		Selected:  selected,
		Skipped:   append(skipped, llmSkipped...),
		Reasoning: reasoning,
		UsedLLM:   true,
	}
}
