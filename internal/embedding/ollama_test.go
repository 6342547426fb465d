package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Valecer/market-sub001/internal/domainerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbed_AcceptsMatchingDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: make([]float32, 4)})
	}))
	defer srv.Close()

	eng, err := NewOllamaEngine(srv.URL, "embeddinggemma", 4)
	require.NoError(t, err)

	vec, err := eng.Embed(context.Background(), "widget")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestOllamaEmbed_RejectsDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: make([]float32, 768)})
	}))
	defer srv.Close()

	eng, err := NewOllamaEngine(srv.URL, "embeddinggemma", 1024)
	require.NoError(t, err)

	_, err = eng.Embed(context.Background(), "widget")
	require.Error(t, err)
	kind, ok := domainerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domainerr.KindEmbedding, kind)
}
