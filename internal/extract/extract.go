// Package extract implements the LLM extractor: turn a
// rendered Markdown chunk into structured ExtractedProducts via a
// StructuredClient, with per-row validation, price/category cleaning, and
// cross-chunk deduplication.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/llmclient"
	"github.com/Valecer/market-sub001/internal/logging"
)

// MaxNameLength is the cap on a product name after whitespace collapsing.
const MaxNameLength = 500

// Config tunes the extractor's LLM call semantics.
type Config struct {
	Temperature  float64
	MaxRetries   int
	ChunkTimeout time.Duration
}

// DefaultConfig returns the extractor's defaults: low temperature, up to 2
// retries per chunk, a generous per-chunk timeout.
func DefaultConfig() Config {
	return Config{
		Temperature:  0.2,
		MaxRetries:   2,
		ChunkTimeout: 90 * time.Second,
	}
}

// Extractor drives one StructuredClient through the per-chunk protocol.
type Extractor struct {
	client llmclient.StructuredClient
	cfg    Config
}

// New constructs an Extractor.
func New(client llmclient.StructuredClient, cfg Config) *Extractor {
	return &Extractor{client: client, cfg: cfg}
}

type rawResponse struct {
	Products     []rawProduct `json:"products"`
	ParsingNotes string       `json:"parsing_notes"`
}

type rawProduct struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Brand           string         `json:"brand"`
	PriceRRC        any            `json:"price_rrc"`
	PriceOpt        any            `json:"price_opt"`
	CategoryPath    any            `json:"category_path"`
	SKU             string         `json:"sku"`
	Characteristics map[string]any `json:"characteristics"`
}

// ExtractChunk runs the per-chunk extraction protocol against
// one already-rendered Markdown chunk, returning the validated products and
// any row-level errors. It never returns an error itself: a failed LLM call
// (after retries) is reported as a single llm_error ExtractionError so the
// caller can keep aggregating the remaining chunks.
func (e *Extractor) ExtractChunk(ctx context.Context, chunk catalog.ChunkData, sheetName string) ([]catalog.ExtractedProduct, []catalog.ExtractionError) {
	log := logging.Get(logging.CategoryETL)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.ChunkTimeout)
	defer cancel()

	result, err := e.client.Complete(ctx, llmclient.CompletionRequest{
		SystemPrompt: extractionSystemPrompt,
		UserPrompt:   buildUserPrompt(sheetName, chunk),
		Temperature:  e.cfg.Temperature,
		MaxRetries:   e.cfg.MaxRetries,
		Kind:         "extraction",
	})
	if err != nil {
		log.Warn("extract: chunk %d LLM call failed after retries: %v", chunk.ChunkID, err)
		return nil, []catalog.ExtractionError{{
			ChunkID: chunk.ChunkID,
			Type:    "llm_error",
			Message: err.Error(),
		}}
	}

	var parsed rawResponse
	if jsonErr := llmclient.ExtractJSON(result.Text, &parsed); jsonErr != nil {
		// Tolerate a bare array response.
		var bare []rawProduct
		if bareErr := llmclient.ExtractJSON(result.Text, &bare); bareErr == nil {
			parsed.Products = bare
		} else {
			log.Warn("extract: chunk %d produced unparseable response: %v", chunk.ChunkID, jsonErr)
			return nil, []catalog.ExtractionError{{
				ChunkID: chunk.ChunkID,
				Type:    "parsing",
				Message: jsonErr.Error(),
				RawData: catalog.JSONMap{"response": result.Text},
			}}
		}
	}

	products := make([]catalog.ExtractedProduct, 0, len(parsed.Products))
	var errs []catalog.ExtractionError

	for i, rp := range parsed.Products {
		product, rowErr := validateAndClean(rp, chunk.ChunkID, chunk.StartRow+i)
		if rowErr != nil {
			errs = append(errs, *rowErr)
			continue
		}
		products = append(products, product)
	}

	return products, errs
}

func validateAndClean(rp rawProduct, chunkID, rowNumber int) (catalog.ExtractedProduct, *catalog.ExtractionError) {
	rawData := catalog.JSONMap{
		"name":          rp.Name,
		"price_rrc":     rp.PriceRRC,
		"price_opt":     rp.PriceOpt,
		"category_path": rp.CategoryPath,
	}

	name := strings.Join(strings.Fields(rp.Name), " ")
	if name == "" {
		return catalog.ExtractedProduct{}, &catalog.ExtractionError{
			ChunkID: chunkID, RowNumber: rowNumber, Type: "validation",
			Message: "product name is empty", RawData: rawData,
		}
	}
	if len(name) > MaxNameLength {
		return catalog.ExtractedProduct{}, &catalog.ExtractionError{
			ChunkID: chunkID, RowNumber: rowNumber, Type: "validation",
			Message: fmt.Sprintf("product name exceeds %d characters", MaxNameLength), RawData: rawData,
		}
	}

	priceRRC, err := CleanPrice(rp.PriceRRC)
	if err != nil {
		return catalog.ExtractedProduct{}, &catalog.ExtractionError{
			ChunkID: chunkID, RowNumber: rowNumber, Type: "validation",
			Message: fmt.Sprintf("price_rrc: %v", err), RawData: rawData,
		}
	}

	var priceOpt *catalog.Money
	if rp.PriceOpt != nil {
		if v, err := CleanPrice(rp.PriceOpt); err == nil {
			m := catalog.NewMoney(v)
			priceOpt = &m
		}
	}

	rrc := catalog.NewMoney(priceRRC)
	product := catalog.ExtractedProduct{
		Name:            name,
		Description:     strings.TrimSpace(rp.Description),
		Brand:           strings.TrimSpace(rp.Brand),
		PriceRRC:        &rrc,
		PriceOpt:        priceOpt,
		CategoryPath:    ParseCategoryPath(rp.CategoryPath),
		SKU:             strings.TrimSpace(rp.SKU),
		Characteristics: catalog.JSONMap(rp.Characteristics),
		RawData:         rawData,
		ChunkID:         chunkID,
		RowNumber:       rowNumber,
	}
	return product, nil
}

// Extract runs ExtractChunk over every chunk, aggregates the products with a
// cross-chunk dedup pass, and classifies the overall
// ExtractionResult.Status by success rate.
func (e *Extractor) Extract(ctx context.Context, chunks []catalog.ChunkData, sheetName string, totalRows int) catalog.ExtractionResult {
	log := logging.Get(logging.CategoryETL)

	var allProducts []catalog.ExtractedProduct
	var allErrors []catalog.ExtractionError

	for _, chunk := range chunks {
		products, errs := e.ExtractChunk(ctx, chunk, sheetName)
		allProducts = append(allProducts, products...)
		allErrors = append(allErrors, errs...)
	}

	deduped, duplicatesRemoved := crossChunkDedup(allProducts)

	successful := len(deduped)
	failed := len(allErrors)

	var status catalog.ExtractionStatus
	switch {
	case totalRows == 0:
		status = catalog.ExtractionFailed
	default:
		rate := float64(successful) / float64(totalRows)
		switch {
		case rate >= 1.0:
			status = catalog.ExtractionSuccess
		case rate >= 0.8:
			status = catalog.ExtractionCompletedWithErrors
		default:
			status = catalog.ExtractionFailed
		}
	}

	log.Info("extract: sheet %q finished status=%s successful=%d failed=%d duplicates_removed=%d",
		sheetName, status, successful, failed, duplicatesRemoved)

	return catalog.ExtractionResult{
		Products:          deduped,
		SheetName:         sheetName,
		TotalRows:         totalRows,
		Successful:        successful,
		Failed:            failed,
		DuplicatesRemoved: duplicatesRemoved,
		Errors:            allErrors,
		Status:            status,
	}
}

// crossChunkDedup removes products whose (normalized name, price_rrc) key
// already appeared in an earlier chunk, covering overlap between adjacent
// chunks.
func crossChunkDedup(products []catalog.ExtractedProduct) ([]catalog.ExtractedProduct, int) {
	seen := make(map[string]bool, len(products))
	out := make([]catalog.ExtractedProduct, 0, len(products))
	removed := 0

	for _, p := range products {
		key := dedupKey(p)
		if seen[key] {
			removed++
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out, removed
}

func dedupKey(p catalog.ExtractedProduct) string {
	name := strings.Join(strings.Fields(strings.ToLower(p.Name)), " ")
	price := ""
	if p.PriceRRC != nil {
		price = p.PriceRRC.String()
	}
	return name + "|" + price
}

const extractionSystemPrompt = `You are a product catalog extraction engine. Given a Markdown table of supplier catalog rows, return ONLY a JSON object of the form {"products": [{"name": string, "description": string, "brand": string, "price_rrc": number, "price_opt": number, "category_path": string, "sku": string, "characteristics": object}], "parsing_notes": string}. Do not include any text outside the JSON object.`

func buildUserPrompt(sheetName string, chunk catalog.ChunkData) string {
	return fmt.Sprintf("Sheet: %s\nRows %d-%d of %d\n\n%s", sheetName, chunk.StartRow, chunk.EndRow, chunk.TotalRows, chunk.Markdown)
}
