// Package httpapi is the ETL service's chi-routed HTTP surface: the five
// routes spec §6 names (POST /analyze/file, GET/DELETE
// /analyze/status/{job_id}, POST /analyze/merge, GET /health), plus
// GET /metrics. Grounded on
// original_source/services/ml-analyze/src/api/routes/analyze.py (request
// validation, 202-Accepted-plus-background-task shape, the local-file-path
// 400 check) and src/api/main.py's /health handler (the
// status/version/service/checks body, and the rule that any failed
// dependency check downgrades the overall status to degraded).
package httpapi

import (
	"time"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/google/uuid"
)

// AnalyzeFileRequest is POST /analyze/file's body.
type AnalyzeFileRequest struct {
	FileURL        string    `json:"file_url" validate:"required"`
	SupplierID     uuid.UUID `json:"supplier_id" validate:"required"`
	FileType       string    `json:"file_type" validate:"required,oneof=pdf excel csv"`
	UseSemanticETL *bool     `json:"use_semantic_etl,omitempty"`
	PrioritySheet  *string   `json:"priority_sheet,omitempty"`
}

// AnalyzeFileResponse is POST /analyze/file's 202 body.
type AnalyzeFileResponse struct {
	JobID   uuid.UUID         `json:"job_id"`
	Status  catalog.JobStatus `json:"status"`
	Message string            `json:"message,omitempty"`
}

// StatusResponse is GET /analyze/status/{job_id}'s 200 body.
type StatusResponse struct {
	JobID                 uuid.UUID         `json:"job_id"`
	Status                catalog.JobStatus `json:"status"`
	Phase                 catalog.JobPhase  `json:"phase"`
	ProgressPercentage    int               `json:"progress_percentage"`
	ItemsProcessed        int               `json:"items_processed"`
	ItemsTotal            int               `json:"items_total"`
	SuccessfulExtractions int               `json:"successful_extractions"`
	FailedExtractions     int               `json:"failed_extractions"`
	DuplicatesRemoved     int               `json:"duplicates_removed"`
	Errors                []string          `json:"errors"`
	CreatedAt             time.Time         `json:"created_at"`
	StartedAt             *time.Time        `json:"started_at,omitempty"`
	CompletedAt           *time.Time        `json:"completed_at,omitempty"`
	Metrics               catalog.JSONMap   `json:"metrics,omitempty"`
}

func statusResponseFromJob(job catalog.Job) StatusResponse {
	return StatusResponse{
		JobID:                 job.ID,
		Status:                job.Status,
		Phase:                 job.Phase,
		ProgressPercentage:    job.ProgressPercentage,
		ItemsProcessed:        job.ItemsProcessed,
		ItemsTotal:            job.ItemsTotal,
		SuccessfulExtractions: job.SuccessfulExtractions,
		FailedExtractions:     job.FailedExtractions,
		DuplicatesRemoved:     job.DuplicatesRemoved,
		Errors:                job.Errors,
		CreatedAt:             job.CreatedAt,
		StartedAt:             job.StartedAt,
		CompletedAt:           job.CompletedAt,
		Metrics:               job.Metrics,
	}
}

// MergeRequest is POST /analyze/merge's body.
type MergeRequest struct {
	SupplierItemIDs []uuid.UUID `json:"supplier_item_ids,omitempty"`
	SupplierID      *uuid.UUID  `json:"supplier_id,omitempty"`
	Limit           int         `json:"limit" validate:"required,min=1"`
}

// MergeResponse is POST /analyze/merge's 202 body.
type MergeResponse struct {
	JobID       uuid.UUID         `json:"job_id"`
	Status      catalog.JobStatus `json:"status"`
	ItemsQueued int               `json:"items_queued"`
}

// HealthStatus is GET /health's overall status field.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is GET /health's body.
type HealthResponse struct {
	Status  HealthStatus           `json:"status"`
	Version string                 `json:"version"`
	Service string                 `json:"service"`
	Checks  map[string]CheckResult `json:"checks"`
}

// CheckResult is one dependency's entry in HealthResponse.Checks.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
