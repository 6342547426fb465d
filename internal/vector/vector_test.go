package vector

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_ValueAndScanRoundTrip(t *testing.T) {
	v := Vector{1, 2.5, -3}
	val, err := v.Value()
	require.NoError(t, err)

	var out Vector
	require.NoError(t, out.Scan(val))
	require.Len(t, out, 3)
	assert.InDelta(t, 1, out[0], 1e-6)
	assert.InDelta(t, 2.5, out[1], 1e-6)
	assert.InDelta(t, -3, out[2], 1e-6)
}

func TestVector_ScanNil(t *testing.T) {
	var out Vector
	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out)
}

func TestVector_ScanFromBytes(t *testing.T) {
	var out Vector
	require.NoError(t, out.Scan([]byte("[1,2,3]")))
	assert.Equal(t, Vector{1, 2, 3}, out)
}

func TestVector_ScanInvalidComponent(t *testing.T) {
	var out Vector
	err := out.Scan("[1,x,3]")
	assert.Error(t, err)
}

func TestBruteForceSearch_OrdersByDistanceAscending(t *testing.T) {
	idA, idB, idC := uuid.New(), uuid.New(), uuid.New()
	query := Vector{1, 0}
	candidates := []Candidate{
		{SupplierItemID: idA, Embedding: Vector{0, 1}}, // orthogonal
		{SupplierItemID: idB, Embedding: Vector{1, 0}}, // identical
		{SupplierItemID: idC, Embedding: Vector{1, 1}}, // similarity ~0.707
	}
	results, err := BruteForceSearch(query, candidates, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, idB, results[0].SupplierItemID)
	assert.InDelta(t, 0, results[0].Distance, 1e-9)
}

func TestBruteForceSearch_ExcludesItemID(t *testing.T) {
	idA, idB := uuid.New(), uuid.New()
	query := Vector{1, 0}
	candidates := []Candidate{
		{SupplierItemID: idA, Embedding: Vector{1, 0}},
		{SupplierItemID: idB, Embedding: Vector{0, 1}},
	}
	results, err := BruteForceSearch(query, candidates, 10, &idA)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, idB, results[0].SupplierItemID)
}

func TestBruteForceSearch_CapsAtTopK(t *testing.T) {
	candidates := make([]Candidate, 5)
	for i := range candidates {
		candidates[i] = Candidate{SupplierItemID: uuid.New(), Embedding: Vector{1, 0}}
	}
	results, err := BruteForceSearch(Vector{1, 0}, candidates, 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
