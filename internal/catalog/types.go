package catalog

import (
	"time"

	"github.com/google/uuid"
)

// SourceKind is the supplier's catalog format.
type SourceKind string

const (
	SourceGoogleSheets SourceKind = "google_sheets"
	SourceCSV          SourceKind = "csv"
	SourceExcel        SourceKind = "excel"
)

// Supplier is the external entity submitting catalogs.
type Supplier struct {
	ID         uuid.UUID
	Name       string
	SourceKind SourceKind
	Metadata   JSONMap
}

// ProductStatus is the lifecycle state of a canonical product.
type ProductStatus string

const (
	ProductDraft    ProductStatus = "draft"
	ProductActive   ProductStatus = "active"
	ProductArchived ProductStatus = "archived"
)

// Category is a node in the forest of product categories.
type Category struct {
	ID                 uuid.UUID
	Name               string
	ParentID           *uuid.UUID
	NeedsReview        bool
	IntroducingSupplier *uuid.UUID
	Active             bool
}

// Product is the canonical, internal catalog item. MinPrice/Availability are
// derived aggregates maintained exclusively by the aggregation engine.
type Product struct {
	ID           uuid.UUID
	SKU          string
	DisplayName  string
	CategoryID   *uuid.UUID
	Status       ProductStatus
	MinPrice     *Money
	Availability bool
}

// MatchStatus classifies a supplier item's link state.
type MatchStatus string

const (
	MatchUnmatched     MatchStatus = "unmatched"
	MatchAutoMatched   MatchStatus = "auto_matched"
	MatchPotential     MatchStatus = "potential_match"
	MatchVerified      MatchStatus = "verified_match"
)

// SupplierItem is one product row from a supplier's catalog.
type SupplierItem struct {
	ID              uuid.UUID
	SupplierID      uuid.UUID
	ProductID       *uuid.UUID
	SupplierSKU     string
	Name            string
	CurrentPrice    Money
	Characteristics JSONMap
	MatchStatus     MatchStatus
	MatchScore      *float64
	MatchCandidates JSONMap
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PriceHistory is an append-only log of observed prices.
type PriceHistory struct {
	ID             uuid.UUID
	SupplierItemID uuid.UUID
	Price          Money
	Timestamp      time.Time
}

// ProductEmbedding is one fixed-dimension vector per (supplier_item, model).
type ProductEmbedding struct {
	ID             uuid.UUID
	SupplierItemID uuid.UUID
	ModelName      string
	Vector         []float32
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ReviewStatus is the state of a pending human decision.
type ReviewStatus string

const (
	ReviewPending       ReviewStatus = "pending"
	ReviewApproved      ReviewStatus = "approved"
	ReviewRejected      ReviewStatus = "rejected"
	ReviewExpired       ReviewStatus = "expired"
	ReviewNeedsCategory ReviewStatus = "needs_category"
)

// MatchReviewQueue is a pending human decision for a medium-confidence match.
type MatchReviewQueue struct {
	ID                uuid.UUID
	SupplierItemID    uuid.UUID
	CandidateProducts JSONMap
	Status            ReviewStatus
	ReviewerID        *string
	ReviewedAt        *time.Time
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// ParsingLog is a structured diagnostic row, append-only.
type ParsingLog struct {
	ID         uuid.UUID
	TaskID     string
	SupplierID *uuid.UUID
	ErrorType  string
	Message    string
	RowNumber  *int
	RowData    JSONMap
	CreatedAt  time.Time
}

// JobKind is the kind of async work a Job tracks.
type JobKind string

const (
	JobFileAnalysis JobKind = "file_analysis"
	JobBatchMatch   JobKind = "batch_match"
	JobVision       JobKind = "vision"
)

// JobStatus is the terminal coarse state of a Job.
type JobStatus string

const (
	JobPending               JobStatus = "pending"
	JobProcessing            JobStatus = "processing"
	JobCompleted             JobStatus = "completed"
	JobFailed                JobStatus = "failed"
	JobCompletedWithErrors   JobStatus = "completed_with_errors"
)

// JobPhase is the sub-step of processing within a Job.
type JobPhase string

const (
	PhasePending             JobPhase = "pending"
	PhaseDownloading         JobPhase = "downloading"
	PhaseAnalyzing           JobPhase = "analyzing"
	PhaseExtracting          JobPhase = "extracting"
	PhaseNormalizing         JobPhase = "normalizing"
	PhaseComplete            JobPhase = "complete"
	PhaseFailed              JobPhase = "failed"
	PhaseCompletedWithErrors JobPhase = "completed_with_errors"
)

// Job is the durable status record for an async request.
type Job struct {
	ID                  uuid.UUID
	Kind                JobKind
	Status              JobStatus
	Phase               JobPhase
	ProgressPercentage  int
	ItemsProcessed      int
	ItemsTotal          int
	SuccessfulExtractions int
	FailedExtractions   int
	DuplicatesRemoved   int
	Errors              []string
	SupplierID          *uuid.UUID
	FileURL             string
	Metadata            JSONMap
	Metrics             JSONMap
	CreatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
}

// MaxJobErrors is the cap on the bounded job.errors list; oldest entries are
// truncated first.
const MaxJobErrors = 10

// AppendError appends an error message, truncating the oldest entry once the
// bounded list is full.
func (j *Job) AppendError(msg string) {
	j.Errors = append(j.Errors, msg)
	if len(j.Errors) > MaxJobErrors {
		j.Errors = j.Errors[len(j.Errors)-MaxJobErrors:]
	}
}
