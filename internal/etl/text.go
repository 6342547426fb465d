package etl

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/google/uuid"
)

// MaxEmbeddingTextLength is the default truncation length for the text
// representation handed to the embedding engine.
const MaxEmbeddingTextLength = 8192

// buildEmbeddingText concatenates the fields the embedder indexes on:
// name | description | brand | category | "SKU: "+sku |
// "characteristics: k1: v1, k2: v2, ...",
// truncated on a word boundary with a trailing "..." once over maxLen.
func buildEmbeddingText(name, description, brand, category, sku string, characteristics catalog.JSONMap, maxLen int) string {
	if maxLen <= 0 {
		maxLen = MaxEmbeddingTextLength
	}

	parts := make([]string, 0, 6)
	for _, p := range []string{name, description, brand, category} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if sku != "" {
		parts = append(parts, "SKU: "+sku)
	}
	if len(characteristics) > 0 {
		parts = append(parts, "characteristics: "+formatCharacteristics(characteristics))
	}

	text := strings.Join(parts, " | ")
	if len(text) <= maxLen {
		return text
	}

	truncated := text[:maxLen]
	if idx := strings.LastIndexAny(truncated, " \t\n"); idx > 0 {
		truncated = truncated[:idx]
	}
	return truncated + "..."
}

func formatCharacteristics(m catalog.JSONMap) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if strings.HasPrefix(k, "_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s: %v", k, m[k]))
	}
	return strings.Join(pairs, ", ")
}

// generateSupplierSKU produces a stable supplier_sku for a product that
// didn't carry one: "ML-" + supplier_id + "-" + idx + "-" + hash(name),
// where hash is a short hex digest of the name. The same (supplier, idx,
// name) always yields the same sku; identically-named rows at different
// indices get distinct skus.
func generateSupplierSKU(supplierID uuid.UUID, idx int, name string) string {
	sum := sha1.Sum([]byte(name))
	return fmt.Sprintf("ML-%s-%d-%s", supplierID, idx, hex.EncodeToString(sum[:])[:8])
}
