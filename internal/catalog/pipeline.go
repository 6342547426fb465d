package catalog

// ExtractedProduct is a single product record produced by the LLM extractor,
// before dedup, category normalization, or persistence.
type ExtractedProduct struct {
	Name         string
	Description  string
	Brand        string
	PriceRRC     *Money
	PriceOpt     *Money
	CategoryPath []string
	SKU          string
	Characteristics JSONMap
	RawData      JSONMap
	ChunkID      int
	RowNumber    int
}

// NormalizedRow is an ExtractedProduct after category normalization and
// supplier-sku generation, ready to be upserted as a SupplierItem.
type NormalizedRow struct {
	Product    ExtractedProduct
	CategoryID *string // UUID string; nil if category path was empty
	SupplierSKU string
}

// ChunkData is one overlapping row-block of a rendered Markdown table.
type ChunkData struct {
	ChunkID   int
	StartRow  int
	EndRow    int
	Markdown  string
	TotalRows int
}

// SheetInfo describes one worksheet for the sheet selector.
type SheetInfo struct {
	Name     string
	RowCount int
	ColCount int
	IsEmpty  bool
}

// ExtractionStatus is the aggregate outcome of the LLM extractor.
type ExtractionStatus string

const (
	ExtractionSuccess             ExtractionStatus = "success"
	ExtractionCompletedWithErrors ExtractionStatus = "completed_with_errors"
	ExtractionFailed              ExtractionStatus = "failed"
)

// ExtractionError records a single row/chunk-level failure.
type ExtractionError struct {
	ChunkID   int
	RowNumber int
	Type      string
	Message   string
	RawData   JSONMap
}

// ExtractionResult is the output of the LLM extractor for one sheet (or the
// whole file, once sheets are aggregated).
type ExtractionResult struct {
	Products          []ExtractedProduct
	SheetName         string
	TotalRows         int
	Successful        int
	Failed            int
	DuplicatesRemoved int
	Errors            []ExtractionError
	Status            ExtractionStatus
}

// MatchCandidate is one scored candidate product for a supplier item.
type MatchCandidate struct {
	ProductID  string
	Name       string
	Score      float64
	Reasoning  string
}

// MatchResult is the outcome of scoring a supplier item against a candidate
// set, produced by the fuzzy matcher or the LLM reranker.
type MatchResult struct {
	SupplierItemID string
	MatchStatus    MatchStatus
	BestMatch      *MatchCandidate
	Candidates     []MatchCandidate
	MatchScore     *float64
}

// CategoryAction is the per-level outcome of category normalization.
type CategoryAction string

const (
	CategoryMatched CategoryAction = "matched"
	CategoryCreated CategoryAction = "created"
)

// CategoryMatchResult is the per-level outcome of normalizing one category
// path.
type CategoryMatchResult struct {
	Level       int
	Name        string
	CategoryID  string
	Action      CategoryAction
	Similarity  float64
	ParentID    *string
}
