package etl

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/courier"
	"github.com/Valecer/market-sub001/internal/extract"
	"github.com/Valecer/market-sub001/internal/llmclient"
	"github.com/Valecer/market-sub001/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobUpdater struct {
	mu        sync.Mutex
	phases    []catalog.JobPhase
	metrics   catalog.JSONMap
	completed bool
	failed    string
}

func (f *fakeJobUpdater) UpdateStatus(ctx context.Context, id uuid.UUID, status catalog.JobStatus, phase catalog.JobPhase, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phases = append(f.phases, phase)
	return nil
}

func (f *fakeJobUpdater) UpdateProgress(ctx context.Context, id uuid.UUID, itemsProcessed int, itemsTotal *int, newErrors []string) error {
	return nil
}

func (f *fakeJobUpdater) UpdateMetrics(ctx context.Context, id uuid.UUID, metrics catalog.JSONMap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = metrics
	return nil
}

func (f *fakeJobUpdater) MarkCompleted(ctx context.Context, id uuid.UUID, itemsProcessed int, metrics catalog.JSONMap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = true
	f.metrics = metrics
	return nil
}

func (f *fakeJobUpdater) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = errMsg
	return nil
}

type fakeCategoryStore struct {
	categories []catalog.Category
	created    []catalog.Category
}

func (f *fakeCategoryStore) LoadAllCategories(ctx context.Context) ([]catalog.Category, error) {
	return f.categories, nil
}

func (f *fakeCategoryStore) CreateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	cat.ID = uuid.New()
	f.created = append(f.created, cat)
	return cat, nil
}

type fakeItemStoreUpsert struct {
	upserts []string
}

func (f *fakeItemStoreUpsert) UpsertWithHistory(ctx context.Context, supplierID uuid.UUID, sku, name string, price catalog.Money, characteristics catalog.JSONMap) (repository.UpsertResult, error) {
	f.upserts = append(f.upserts, sku)
	return repository.UpsertResult{ID: uuid.New(), Inserted: true}, nil
}

type fakeParsingLogSink struct {
	logs []catalog.ParsingLog
}

func (f *fakeParsingLogSink) InsertBatch(ctx context.Context, logs []catalog.ParsingLog) error {
	f.logs = append(f.logs, logs...)
	return nil
}

type fakeEmbeddingEngine struct {
	calls int
}

func (f *fakeEmbeddingEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbeddingEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeEmbeddingEngine) Dimensions() int { return 3 }
func (f *fakeEmbeddingEngine) Name() string    { return "fake" }

type fakeStructuredClient struct {
	response string
}

func (f *fakeStructuredClient) Complete(ctx context.Context, req llmclient.CompletionRequest) (llmclient.CompletionResult, error) {
	return llmclient.CompletionResult{Text: f.response}, nil
}

func newTestOrchestrator(t *testing.T, llmResponse string) (*Orchestrator, *fakeJobUpdater, *fakeItemStoreUpsert) {
	t.Helper()
	jobs := &fakeJobUpdater{}
	items := &fakeItemStoreUpsert{}
	cats := &fakeCategoryStore{}
	logs := &fakeParsingLogSink{}
	engine := &fakeEmbeddingEngine{}
	extractor := extract.New(&fakeStructuredClient{response: llmResponse}, extract.DefaultConfig())

	o := New(DefaultConfig(), Deps{
		Jobs:        jobs,
		Categories:  cats,
		Items:       items,
		ParsingLogs: logs,
		Engine:      engine,
		Extractor:   extractor,
	})
	return o, jobs, items
}

func writeCSV(t *testing.T, rows string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte(rows), 0o644))
	return path
}

const oneProductResponse = `{"products":[{"name":"Widget Pro","description":"A fine widget","brand":"Acme","price_rrc":19.99,"sku":"","characteristics":{"color":"red"}}]}`

func TestParseFile_HappyPathCompletesJob(t *testing.T) {
	o, jobs, items := newTestOrchestrator(t, oneProductResponse)
	path := writeCSV(t, "name,price\nWidget Pro,19.99\n")

	err := o.ParseFile(context.Background(), path, courier.FileCSV, uuid.New(), uuid.New(), "")
	require.NoError(t, err)

	assert.True(t, jobs.completed)
	assert.Empty(t, jobs.failed)
	assert.Contains(t, jobs.phases, catalog.PhaseAnalyzing)
	assert.Contains(t, jobs.phases, catalog.PhaseExtracting)
	assert.Contains(t, jobs.phases, catalog.PhaseNormalizing)
	require.Len(t, items.upserts, 1)
}

func TestParseFile_UnsupportedFileKindFails(t *testing.T) {
	o, jobs, _ := newTestOrchestrator(t, oneProductResponse)
	path := writeCSV(t, "name,price\nWidget,1\n")

	err := o.ParseFile(context.Background(), path, courier.FileKind("weird"), uuid.New(), uuid.New(), "")
	require.Error(t, err)
	assert.NotEmpty(t, jobs.failed)
}

func TestParseFile_MissingFileFails(t *testing.T) {
	o, jobs, _ := newTestOrchestrator(t, oneProductResponse)

	err := o.ParseFile(context.Background(), "/nonexistent/path.csv", courier.FileCSV, uuid.New(), uuid.New(), "")
	require.Error(t, err)
	assert.NotEmpty(t, jobs.failed)
}

func TestParseFile_EmptyFileCompletesWithZeroRows(t *testing.T) {
	o, jobs, items := newTestOrchestrator(t, oneProductResponse)
	path := writeCSV(t, "")

	err := o.ParseFile(context.Background(), path, courier.FileCSV, uuid.New(), uuid.New(), "")
	require.NoError(t, err)

	assert.True(t, jobs.completed)
	assert.Empty(t, jobs.failed)
	assert.Equal(t, 0, jobs.metrics["total_rows"])
	assert.Empty(t, items.upserts)
}

func TestLoadSheets_DispatchesOnFileKind(t *testing.T) {
	path := writeCSV(t, "a,b\n1,2\n")
	sheets, err := loadSheets(path, courier.FileCSV)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, "Sheet1", sheets[0].Name)
}

func TestLoadSheets_RejectsUnknownKind(t *testing.T) {
	_, err := loadSheets("/irrelevant", courier.FileKind("bogus"))
	assert.Error(t, err)
}
