// Package etl is the semantic ETL orchestrator: it drives a submitted file
// through sheet introspection, LLM extraction, deduplication, category
// normalization, persistence, and embedding, writing phase/progress
// updates to the job registry after every step. Grounded on
// original_source/services/ml-analyze/src/services/etl_orchestrator.py's
// pending->analyzing->extracting->normalizing->complete state machine,
// composed here from this module's already-built per-stage packages
// (internal/sheetselect, internal/extract, internal/dedup,
// internal/category, internal/embedding) rather than reimplementing any of
// their logic.
package etl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/category"
	"github.com/Valecer/market-sub001/internal/courier"
	"github.com/Valecer/market-sub001/internal/dedup"
	"github.com/Valecer/market-sub001/internal/domainerr"
	"github.com/Valecer/market-sub001/internal/embedding"
	"github.com/Valecer/market-sub001/internal/extract"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/Valecer/market-sub001/internal/markdown"
	"github.com/Valecer/market-sub001/internal/repository"
	"github.com/Valecer/market-sub001/internal/sheetload"
	"github.com/Valecer/market-sub001/internal/sheetselect"
	"github.com/Valecer/market-sub001/internal/vector"
	"github.com/google/uuid"
)

// Config tunes chunking, dedup tolerance, and embedding text length. Its
// zero value is invalid; use DefaultConfig.
type Config struct {
	ChunkSize         int
	ChunkOverlap      int
	MaxCellLength     int
	DedupTolerance    float64
	EmbeddingModel    string
	EmbeddingTextMax  int
	CategoryThreshold float64
	UseLLMSheetSelect bool
	ReviewTTL         time.Duration
}

// DefaultConfig mirrors the source's documented defaults: 50-row chunks
// with 5-row overlap, 50-char cell truncation, 2% price-equality tolerance
// for dedup, 8192-char embedding text, and an 85-point category match
// threshold.
func DefaultConfig() Config {
	return Config{
		ChunkSize:         50,
		ChunkOverlap:      5,
		MaxCellLength:     markdown.MaxCellLength,
		DedupTolerance:    0.02,
		EmbeddingModel:    "embeddinggemma",
		EmbeddingTextMax:  MaxEmbeddingTextLength,
		CategoryThreshold: category.DefaultSimilarityThreshold,
		UseLLMSheetSelect: false,
		ReviewTTL:         14 * 24 * time.Hour,
	}
}

// JobUpdater is the subset of internal/jobs.Registry the orchestrator
// needs, so tests can substitute an in-memory fake.
type JobUpdater interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status catalog.JobStatus, phase catalog.JobPhase, errMsg string) error
	UpdateProgress(ctx context.Context, id uuid.UUID, itemsProcessed int, itemsTotal *int, newErrors []string) error
	UpdateMetrics(ctx context.Context, id uuid.UUID, metrics catalog.JSONMap) error
	MarkCompleted(ctx context.Context, id uuid.UUID, itemsProcessed int, metrics catalog.JSONMap) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// ItemStore persists a normalized row, appending price history atomically
// when the row is new or repriced. Satisfied by a thin adapter over
// internal/repository's pool-backed UpsertWithHistory.
type ItemStore interface {
	UpsertWithHistory(ctx context.Context, supplierID uuid.UUID, sku, name string, price catalog.Money, characteristics catalog.JSONMap) (repository.UpsertResult, error)
}

// ParsingLogSink records diagnostic rows for a failed chunk/row.
type ParsingLogSink interface {
	InsertBatch(ctx context.Context, logs []catalog.ParsingLog) error
}

// Orchestrator wires one file-analysis run end to end.
type Orchestrator struct {
	cfg         Config
	jobs        JobUpdater
	categories  category.Store
	items       ItemStore
	parsingLogs ParsingLogSink
	embeddings  vector.Store
	engine      embedding.EmbeddingEngine
	extractor   *extract.Extractor
	tiebreaker  sheetselect.LLMTiebreaker
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Jobs        JobUpdater
	Categories  category.Store
	Items       ItemStore
	ParsingLogs ParsingLogSink
	Embeddings  vector.Store
	Engine      embedding.EmbeddingEngine
	Extractor   *extract.Extractor
	Tiebreaker  sheetselect.LLMTiebreaker
}

// New constructs an Orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		jobs:        deps.Jobs,
		categories:  deps.Categories,
		items:       deps.Items,
		parsingLogs: deps.ParsingLogs,
		embeddings:  deps.Embeddings,
		engine:      deps.Engine,
		extractor:   deps.Extractor,
		tiebreaker:  deps.Tiebreaker,
	}
}

// outcome accumulates the counters the final job.metrics object reports.
type outcome struct {
	totalRows             int
	parsedRows            int
	duplicatesRemoved     int
	categoriesMatched     int
	categoriesCreated     int
	reviewQueueCount      int
	similaritySum         float64
	similarityCount       int
	successfulExtractions int
	failedExtractions     int
	errors                []string
}

func (o *outcome) metrics() catalog.JSONMap {
	successRate := 0.0
	if o.totalRows > 0 {
		successRate = float64(o.parsedRows) / float64(o.totalRows)
	}
	avgSimilarity := 0.0
	if o.similarityCount > 0 {
		avgSimilarity = o.similaritySum / float64(o.similarityCount)
	}
	return catalog.JSONMap{
		"total_rows":         o.totalRows,
		"parsed_rows":        o.parsedRows,
		"success_rate":       successRate,
		"duplicates_removed": o.duplicatesRemoved,
		"categories_matched": o.categoriesMatched,
		"categories_created": o.categoriesCreated,
		"review_queue_count": o.reviewQueueCount,
		"average_similarity": avgSimilarity,
	}
}

// ParseFile drives job jobID through analyzing -> extracting -> normalizing
// -> complete (or completed_with_errors/failed), loading filePath according
// to fileKind. prioritySheet, if non-empty, is processed exclusively;
// otherwise every sheet internal/sheetselect selects is processed.
func (o *Orchestrator) ParseFile(ctx context.Context, filePath string, fileKind courier.FileKind, supplierID, jobID uuid.UUID, prioritySheet string) (err error) {
	log := logging.Get(logging.CategoryETL)
	timer := logging.StartTimer(logging.CategoryETL, fmt.Sprintf("ParseFile(%s)", jobID))
	defer timer.Stop()

	defer func() {
		if err != nil {
			log.Error("etl: job %s failed: %v", jobID, err)
			if markErr := o.jobs.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
				log.Error("etl: job %s failed to record failure: %v", jobID, markErr)
			}
		}
	}()

	if err = o.jobs.UpdateStatus(ctx, jobID, catalog.JobProcessing, catalog.PhaseAnalyzing, ""); err != nil {
		return err
	}

	sheets, err := loadSheets(filePath, fileKind)
	if err != nil {
		return err
	}

	selected, err := o.selectSheets(ctx, sheets, prioritySheet)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		log.Warn("etl: job %s: %q is readable but has no usable sheets; completing with zero rows", jobID, filePath)
		empty := &outcome{}
		if metricsErr := o.jobs.UpdateMetrics(ctx, jobID, empty.metrics()); metricsErr != nil {
			log.Warn("etl: job %s failed to attach interim metrics: %v", jobID, metricsErr)
		}
		return o.jobs.MarkCompleted(ctx, jobID, 0, empty.metrics())
	}

	if err = o.jobs.UpdateStatus(ctx, jobID, catalog.JobProcessing, catalog.PhaseExtracting, ""); err != nil {
		return err
	}

	out := &outcome{}
	var mu sync.Mutex
	var products []catalog.ExtractedProduct
	g, gctx := errgroup.WithContext(ctx)
	for _, sheet := range selected {
		sheet := sheet
		g.Go(func() error {
			chunks, chunkErr := markdown.Chunk(sheet, o.cfg.ChunkSize, o.cfg.ChunkOverlap, o.cfg.MaxCellLength)
			if chunkErr != nil {
				mu.Lock()
				out.errors = append(out.errors, chunkErr.Error())
				mu.Unlock()
				return nil
			}

			result := o.extractor.Extract(gctx, chunks, sheet.Name, len(sheet.Rows)-1)
			mu.Lock()
			defer mu.Unlock()
			products = append(products, result.Products...)
			out.totalRows += result.TotalRows
			out.successfulExtractions += result.Successful
			out.failedExtractions += result.Failed
			out.duplicatesRemoved += result.DuplicatesRemoved
			o.recordExtractionErrors(gctx, jobID, supplierID, result.Errors)
			for _, e := range result.Errors {
				out.errors = append(out.errors, fmt.Sprintf("%s: %s", e.Type, e.Message))
			}
			return nil
		})
	}
	_ = g.Wait()

	deduped, dedupStats := dedup.Dedup(products, o.cfg.DedupTolerance)
	out.duplicatesRemoved += dedupStats.Removed
	out.parsedRows = len(deduped)

	if err = o.jobs.UpdateStatus(ctx, jobID, catalog.JobProcessing, catalog.PhaseNormalizing, ""); err != nil {
		return err
	}

	normalizer := category.New(o.categories, o.cfg.CategoryThreshold)
	if loadErr := normalizer.LoadCache(ctx); loadErr != nil {
		return domainerr.Wrap(domainerr.KindDatabase, loadErr, "etl: load category cache")
	}

	itemsProcessed := 0
	for idx, product := range deduped {
		o.normalizeAndStore(ctx, normalizer, supplierID, idx, fileKind, product, out)
		itemsProcessed++
		if itemsProcessed%25 == 0 {
			total := len(deduped)
			_ = o.jobs.UpdateProgress(ctx, jobID, itemsProcessed, &total, nil)
		}
	}

	stats := normalizer.Stats()
	out.categoriesMatched = stats.Matched
	out.categoriesCreated = stats.Created
	out.reviewQueueCount = stats.ReviewQueue
	out.similaritySum = stats.MeanSimilarity() * float64(stats.Matched)
	out.similarityCount = stats.Matched

	if err := o.jobs.UpdateMetrics(ctx, jobID, out.metrics()); err != nil {
		log.Warn("etl: job %s failed to attach interim metrics: %v", jobID, err)
	}

	return o.jobs.MarkCompleted(ctx, jobID, itemsProcessed, out.metrics())
}

func loadSheets(filePath string, fileKind courier.FileKind) ([]markdown.Sheet, error) {
	switch fileKind {
	case courier.FileExcel:
		return sheetload.LoadWorkbook(filePath)
	case courier.FileCSV:
		sheet, err := sheetload.LoadCSV(filePath)
		if err != nil {
			return nil, err
		}
		return []markdown.Sheet{sheet}, nil
	case courier.FilePDF:
		return sheetload.LoadPDF(filePath)
	default:
		return nil, domainerr.Validation("etl: unsupported file kind %q", fileKind)
	}
}

func (o *Orchestrator) selectSheets(ctx context.Context, sheets []markdown.Sheet, prioritySheet string) ([]markdown.Sheet, error) {
	byName := make(map[string]markdown.Sheet, len(sheets))
	infos := make([]catalog.SheetInfo, 0, len(sheets))
	for _, s := range sheets {
		byName[s.Name] = s
		infos = append(infos, s.Info())
	}

	if prioritySheet != "" {
		sheet, ok := byName[prioritySheet]
		if !ok {
			return nil, domainerr.Validation("etl: priority sheet %q not found", prioritySheet)
		}
		return []markdown.Sheet{sheet}, nil
	}

	result := sheetselect.Select(ctx, infos, o.tiebreaker, o.cfg.UseLLMSheetSelect && o.tiebreaker != nil)
	out := make([]markdown.Sheet, 0, len(result.Selected))
	for _, name := range result.Selected {
		if sheet, ok := byName[name]; ok && !sheet.Info().IsEmpty {
			out = append(out, sheet)
		}
	}
	return out, nil
}

func (o *Orchestrator) recordExtractionErrors(ctx context.Context, jobID, supplierID uuid.UUID, errs []catalog.ExtractionError) {
	if len(errs) == 0 || o.parsingLogs == nil {
		return
	}
	logs := make([]catalog.ParsingLog, 0, len(errs))
	for _, e := range errs {
		rowNum := e.RowNumber
		logs = append(logs, catalog.ParsingLog{
			TaskID:     jobID.String(),
			SupplierID: &supplierID,
			ErrorType:  e.Type,
			Message:    e.Message,
			RowNumber:  &rowNum,
			RowData:    e.RawData,
		})
	}
	if err := o.parsingLogs.InsertBatch(ctx, logs); err != nil {
		logging.Get(logging.CategoryETL).Warn("etl: job %s failed to persist %d parsing logs: %v", jobID, len(logs), err)
	}
}

func (o *Orchestrator) normalizeAndStore(ctx context.Context, normalizer *category.Normalizer, supplierID uuid.UUID, idx int, fileKind courier.FileKind, product catalog.ExtractedProduct, out *outcome) {
	log := logging.Get(logging.CategoryETL)

	var categoryID *string
	var categoryName string
	if len(product.CategoryPath) > 0 {
		_, leafID, err := normalizer.Normalize(ctx, product.CategoryPath, &supplierID)
		if err != nil {
			log.Warn("etl: category normalize failed for %q: %v", product.Name, err)
			out.errors = append(out.errors, fmt.Sprintf("category_error: %v", err))
		} else {
			categoryID = leafID
			categoryName = product.CategoryPath[len(product.CategoryPath)-1]
		}
	}

	sku := product.SKU
	if sku == "" {
		sku = generateSupplierSKU(supplierID, idx, product.Name)
	}

	price := catalog.Money{}
	if product.PriceRRC != nil {
		price = *product.PriceRRC
	}

	characteristics := cloneCharacteristics(product.Characteristics)
	characteristics.Set("description", product.Description)
	characteristics.Set("brand", product.Brand)
	if categoryID != nil {
		characteristics.Set("category_id", *categoryID)
	}
	characteristics.Set("_source_type", string(fileKind))

	result, err := o.items.UpsertWithHistory(ctx, supplierID, sku, product.Name, price, characteristics)
	if err != nil {
		log.Error("etl: upsert failed for sku %s: %v", sku, err)
		out.errors = append(out.errors, fmt.Sprintf("upsert_error: %v", err))
		return
	}

	if o.engine == nil {
		return
	}
	text := buildEmbeddingText(product.Name, product.Description, product.Brand, categoryName, sku, product.Characteristics, o.cfg.EmbeddingTextMax)
	if text == "" {
		return
	}
	vec, embedErr := o.engine.Embed(ctx, text)
	if embedErr != nil {
		log.Warn("etl: embedding failed for supplier_item %s: %v", result.ID, embedErr)
		out.errors = append(out.errors, fmt.Sprintf("embedding_error: %v", embedErr))
		return
	}
	if o.embeddings != nil {
		if err := o.embeddings.Upsert(ctx, result.ID, o.cfg.EmbeddingModel, vector.Vector(vec)); err != nil {
			log.Warn("etl: embedding upsert failed for supplier_item %s: %v", result.ID, err)
		}
	}
}

func cloneCharacteristics(m catalog.JSONMap) catalog.JSONMap {
	out := make(catalog.JSONMap, len(m)+4)
	for k, v := range m {
		out[k] = v
	}
	return out
}
