package vector

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// Candidate is one in-memory vector eligible for a brute-force search.
type Candidate struct {
	SupplierItemID uuid.UUID
	Embedding      Vector
}

// BruteForceSearch is a pure-Go top-k cosine-distance search over an
// in-memory candidate set, adapted from internal/embedding/engine.go's
// CosineSimilarity/FindTopK for callers that don't have Postgres+pgvector
// available (unit tests, small offline batches).
func BruteForceSearch(query Vector, candidates []Candidate, topK int, excludeItemID *uuid.UUID) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}

	out := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		if excludeItemID != nil && c.SupplierItemID == *excludeItemID {
			continue
		}
		sim, err := cosineSimilarity(query, c.Embedding)
		if err != nil {
			continue
		}
		out = append(out, SearchResult{SupplierItemID: c.SupplierItemID, Distance: 1 - sim})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })

	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func cosineSimilarity(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: dimension mismatch %d != %d", len(a), len(b))
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}
