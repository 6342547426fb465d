// Package dedup implements within-file deduplication on normalized name +
// price within tolerance, grounded on the original Python
// deduplication_service's price_tolerance/_prices_match/variant-key rules.
package dedup

import (
	"fmt"
	"strings"

	"github.com/Valecer/market-sub001/internal/catalog"
)

// DefaultPriceTolerance is the fraction of max(price1,price2) within which
// two prices are considered equal.
const DefaultPriceTolerance = 0.01

// DuplicateGroup records one set of rows collapsed into a single kept entry.
type DuplicateGroup struct {
	Key   string
	Count int
}

// Stats summarizes one dedup run.
type Stats struct {
	InputCount   int
	OutputCount  int
	Removed      int
	Groups       []DuplicateGroup
}

func normalizeName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	return strings.Join(fields, " ")
}

// variantKey labels a duplicate group by normalized name and the kept
// entry's price.
func variantKey(name string, price catalog.Money) string {
	return fmt.Sprintf("%s|%s", normalizeName(name), price.String())
}

// Dedup returns the unique list of products (first occurrence wins) and
// stats about what was collapsed. Running it twice on its own output is a
// no-op since every surviving key is already unique.
func Dedup(products []catalog.ExtractedProduct, tolerance float64) ([]catalog.ExtractedProduct, Stats) {
	if tolerance <= 0 {
		tolerance = DefaultPriceTolerance
	}

	type bucket struct {
		kept  catalog.ExtractedProduct
		count int
	}
	// keyed by normalized name; within a name-bucket we track the distinct
	// price-variants kept so far.
	byName := make(map[string][]*bucket)
	var order []string // insertion order of (name) buckets for stable output
	var out []catalog.ExtractedProduct
	var groups []DuplicateGroup
	removed := 0

	for _, p := range products {
		name := normalizeName(p.Name)
		var price catalog.Money
		if p.PriceRRC != nil {
			price = *p.PriceRRC
		}

		variants := byName[name]
		matched := false
		for _, v := range variants {
			var vp catalog.Money
			if v.kept.PriceRRC != nil {
				vp = *v.kept.PriceRRC
			}
			if catalog.WithinTolerance(price, vp, tolerance) {
				v.count++
				removed++
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		b := &bucket{kept: p, count: 1}
		if len(variants) == 0 {
			order = append(order, name)
		}
		byName[name] = append(variants, b)
		out = append(out, p)
	}

	for _, name := range order {
		for _, b := range byName[name] {
			if b.count > 1 {
				var price catalog.Money
				if b.kept.PriceRRC != nil {
					price = *b.kept.PriceRRC
				}
				groups = append(groups, DuplicateGroup{
					Key:   variantKey(b.kept.Name, price),
					Count: b.count,
				})
			}
		}
	}

	return out, Stats{
		InputCount:  len(products),
		OutputCount: len(out),
		Removed:     removed,
		Groups:      groups,
	}
}
