package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity_Identical(t *testing.T) {
	v := []float32{1, 2, 3}
	sim, err := CosineSimilarity(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	sim, err := CosineSimilarity(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.Error(t, err)
}

func TestCosineSimilarity_ZeroMagnitude(t *testing.T) {
	sim, err := CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestFindTopK_OrdersBySimilarityDescending(t *testing.T) {
	query := []float32{1, 0}
	corpus := [][]float32{
		{0, 1},  // orthogonal, similarity 0
		{1, 0},  // identical, similarity 1
		{1, 1},  // similarity ~0.707
	}
	results, err := FindTopK(query, corpus, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, 2, results[1].Index)
}

func TestFindTopK_DefaultsKWhenNonPositive(t *testing.T) {
	query := []float32{1, 0}
	corpus := [][]float32{{1, 0}}
	results, err := FindTopK(query, corpus, 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestNewOllamaEngine_Defaults(t *testing.T) {
	eng, err := NewOllamaEngine("", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 768, eng.Dimensions())
	assert.Equal(t, "ollama:embeddinggemma", eng.Name())
}

func TestNewOllamaEngine_ConfiguredDimensions(t *testing.T) {
	eng, err := NewOllamaEngine("", "", 1024)
	require.NoError(t, err)
	assert.Equal(t, 1024, eng.Dimensions())
}
