package extract

import (
	"context"
	"testing"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/llmclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	responses []string
	calls     int
	err       error
}

func (s *stubClient) Complete(ctx context.Context, req llmclient.CompletionRequest) (llmclient.CompletionResult, error) {
	if s.err != nil {
		return llmclient.CompletionResult{}, s.err
	}
	resp := s.responses[s.calls%len(s.responses)]
	s.calls++
	return llmclient.CompletionResult{Text: resp}, nil
}

func chunk(id int, markdown string, total int) catalog.ChunkData {
	return catalog.ChunkData{ChunkID: id, StartRow: 0, EndRow: 1, Markdown: markdown, TotalRows: total}
}

func TestExtractChunk_ValidProducts(t *testing.T) {
	client := &stubClient{responses: []string{
		`{"products":[{"name":"Widget Pro","price_rrc":19.99,"category_path":"Tools/Hand Tools"}]}`,
	}}
	e := New(client, DefaultConfig())
	products, errs := e.ExtractChunk(context.Background(), chunk(0, "| name | price |", 1), "Sheet1")
	require.Empty(t, errs)
	require.Len(t, products, 1)
	assert.Equal(t, "Widget Pro", products[0].Name)
	assert.Equal(t, []string{"Tools", "Hand Tools"}, products[0].CategoryPath)
}

func TestExtractChunk_EmptyNameRejected(t *testing.T) {
	client := &stubClient{responses: []string{`{"products":[{"name":"   ","price_rrc":5}]}`}}
	e := New(client, DefaultConfig())
	products, errs := e.ExtractChunk(context.Background(), chunk(0, "x", 1), "Sheet1")
	assert.Empty(t, products)
	require.Len(t, errs, 1)
	assert.Equal(t, "validation", errs[0].Type)
}

func TestExtractChunk_InvalidPriceRejected(t *testing.T) {
	client := &stubClient{responses: []string{`{"products":[{"name":"Widget","price_rrc":"not a price"}]}`}}
	e := New(client, DefaultConfig())
	products, errs := e.ExtractChunk(context.Background(), chunk(0, "x", 1), "Sheet1")
	assert.Empty(t, products)
	require.Len(t, errs, 1)
}

func TestExtractChunk_FencedResponseFallsBack(t *testing.T) {
	client := &stubClient{responses: []string{"```json\n{\"products\":[{\"name\":\"Widget\",\"price_rrc\":5}]}\n```"}}
	e := New(client, DefaultConfig())
	products, errs := e.ExtractChunk(context.Background(), chunk(0, "x", 1), "Sheet1")
	require.Empty(t, errs)
	require.Len(t, products, 1)
}

func TestExtractChunk_BareArrayResponse(t *testing.T) {
	client := &stubClient{responses: []string{`[{"name":"Widget","price_rrc":5}]`}}
	e := New(client, DefaultConfig())
	products, errs := e.ExtractChunk(context.Background(), chunk(0, "x", 1), "Sheet1")
	require.Empty(t, errs)
	require.Len(t, products, 1)
}

func TestExtract_CrossChunkDedupAndStatus(t *testing.T) {
	client := &stubClient{responses: []string{
		`{"products":[{"name":"Widget","price_rrc":10},{"name":"Gadget","price_rrc":20}]}`,
		`{"products":[{"name":"Widget","price_rrc":10},{"name":"Thing","price_rrc":30}]}`,
	}}
	e := New(client, DefaultConfig())
	chunks := []catalog.ChunkData{chunk(0, "a", 3), chunk(1, "b", 3)}
	result := e.Extract(context.Background(), chunks, "Sheet1", 3)
	assert.Equal(t, 1, result.DuplicatesRemoved)
	assert.Len(t, result.Products, 3)
	assert.Equal(t, catalog.ExtractionSuccess, result.Status)
}

func TestExtract_LLMFailureContributesErrorNotAbort(t *testing.T) {
	client := &stubClient{err: assertErr("transport down")}
	e := New(client, DefaultConfig())
	result := e.Extract(context.Background(), []catalog.ChunkData{chunk(0, "a", 5)}, "Sheet1", 5)
	assert.Equal(t, catalog.ExtractionFailed, result.Status)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "llm_error", result.Errors[0].Type)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
