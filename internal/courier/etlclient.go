// Package courier is the ingestion-side glue: it moves files onto shared
// storage, hands them to the ETL service over HTTP, polls for completion,
// and triggers matching on the resulting supplier items. It never parses a
// file itself. Grounded on
// original_source/services/python-ingestion/src/services/ml_client.py
// (httpx + tenacity retry client talking to the ml-analyze service) and
// download_tasks.py's role as described in worker.py's module docstring
// ("python-ingestion acts as courier only").
package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/domainerr"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// FileKind is the ETL service's file_type enum, distinct from
// catalog.SourceKind (the supplier's overall catalog format) because a
// single supplier sourced from, say, google_sheets may still submit
// individual files of any of these three kinds.
type FileKind string

const (
	FilePDF   FileKind = "pdf"
	FileExcel FileKind = "excel"
	FileCSV   FileKind = "csv"
)

// HealthStatus mirrors GET /health's status field.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is GET /health's body.
type HealthResponse struct {
	Status  HealthStatus    `json:"status"`
	Version string          `json:"version"`
	Service string          `json:"service"`
	Checks  map[string]bool `json:"checks,omitempty"`
}

// TriggerResponse is POST /analyze/file's 202 body.
type TriggerResponse struct {
	JobID   uuid.UUID         `json:"job_id"`
	Status  catalog.JobStatus `json:"status"`
	Message string            `json:"message,omitempty"`
}

// StatusResponse is GET /analyze/status/{job_id}'s 200 body.
type StatusResponse struct {
	JobID                 uuid.UUID        `json:"job_id"`
	Status                catalog.JobStatus `json:"status"`
	Phase                 catalog.JobPhase  `json:"phase"`
	ProgressPercentage    int              `json:"progress_percentage"`
	ItemsProcessed        int              `json:"items_processed"`
	ItemsTotal            int              `json:"items_total"`
	SuccessfulExtractions int              `json:"successful_extractions"`
	FailedExtractions     int              `json:"failed_extractions"`
	DuplicatesRemoved     int              `json:"duplicates_removed"`
	Errors                []string         `json:"errors"`
	CreatedAt             time.Time        `json:"created_at"`
	StartedAt             *time.Time       `json:"started_at,omitempty"`
	CompletedAt           *time.Time       `json:"completed_at,omitempty"`
	Metrics               catalog.JSONMap  `json:"metrics,omitempty"`
}

// IsTerminal reports whether the job has stopped making further progress.
func (s StatusResponse) IsTerminal() bool {
	switch s.Status {
	case catalog.JobCompleted, catalog.JobCompletedWithErrors, catalog.JobFailed:
		return true
	default:
		return false
	}
}

// ETLClient is an HTTP client for the ETL service's analyze routes, wrapped
// in a circuit breaker the same way internal/llmclient.OllamaClient wraps
// its Ollama calls: a flapping downstream fails fast instead of every
// caller independently stacking up its own retries.
type ETLClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewETLClient constructs a client for the ETL service at baseURL.
func NewETLClient(baseURL string) *ETLClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "courier.etl",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &ETLClient{
		baseURL: baseURL,
		client:  &http.Client{},
		breaker: cb,
	}
}

// CheckHealth calls GET /health with a 5-second timeout (spec's ETL health
// budget), returning false on any transport error rather than propagating
// it — a failed health check is itself the signal.
func (c *ETLClient) CheckHealth(ctx context.Context) (bool, HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := c.breaker.Execute(func() (any, error) {
		return c.doJSON(ctx, http.MethodGet, "/health", nil)
	})
	if err != nil {
		return false, HealthResponse{}, nil
	}
	var resp HealthResponse
	if err := json.Unmarshal(result.([]byte), &resp); err != nil {
		return false, HealthResponse{}, domainerr.Wrap(domainerr.KindNetwork, err, "courier: decode health response")
	}
	return resp.Status == HealthHealthy, resp, nil
}

type triggerRequest struct {
	FileURL        string    `json:"file_url"`
	SupplierID     uuid.UUID `json:"supplier_id"`
	FileType       FileKind  `json:"file_type"`
	UseSemanticETL *bool     `json:"use_semantic_etl,omitempty"`
	PrioritySheet  *string   `json:"priority_sheet,omitempty"`
}

// TriggerAnalysis calls POST /analyze/file with a 30-second timeout (spec's
// ETL trigger budget).
func (c *ETLClient) TriggerAnalysis(ctx context.Context, fileURL string, supplierID uuid.UUID, fileType FileKind, prioritySheet string) (TriggerResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req := triggerRequest{FileURL: fileURL, SupplierID: supplierID, FileType: fileType}
	if prioritySheet != "" {
		req.PrioritySheet = &prioritySheet
	}
	body, err := json.Marshal(req)
	if err != nil {
		return TriggerResponse{}, domainerr.Wrap(domainerr.KindValidation, err, "courier: marshal trigger request")
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.doJSON(ctx, http.MethodPost, "/analyze/file", body)
	})
	if err != nil {
		return TriggerResponse{}, domainerr.Wrap(domainerr.KindNetwork, err, "courier: trigger analysis for %s", fileURL)
	}
	var resp TriggerResponse
	if err := json.Unmarshal(result.([]byte), &resp); err != nil {
		return TriggerResponse{}, domainerr.Wrap(domainerr.KindNetwork, err, "courier: decode trigger response")
	}
	return resp, nil
}

// GetStatus calls GET /analyze/status/{job_id} with a 5-second timeout
// (spec's ETL poll budget).
func (c *ETLClient) GetStatus(ctx context.Context, jobID uuid.UUID) (StatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := c.breaker.Execute(func() (any, error) {
		return c.doJSON(ctx, http.MethodGet, "/analyze/status/"+jobID.String(), nil)
	})
	if err != nil {
		return StatusResponse{}, domainerr.Wrap(domainerr.KindNetwork, err, "courier: get status for %s", jobID)
	}
	var resp StatusResponse
	if err := json.Unmarshal(result.([]byte), &resp); err != nil {
		return StatusResponse{}, domainerr.Wrap(domainerr.KindNetwork, err, "courier: decode status response")
	}
	return resp, nil
}

// DeleteJob calls DELETE /analyze/status/{job_id}.
func (c *ETLClient) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.breaker.Execute(func() (any, error) {
		return c.doJSON(ctx, http.MethodDelete, "/analyze/status/"+jobID.String(), nil)
	})
	if err != nil {
		return domainerr.Wrap(domainerr.KindNetwork, err, "courier: delete job %s", jobID)
	}
	return nil
}

func (c *ETLClient) doJSON(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		logging.Get(logging.CategoryCourier).Warn("courier: %s %s returned %d: %s", method, path, resp.StatusCode, string(data))
		return nil, fmt.Errorf("etl service returned %d for %s %s", resp.StatusCode, method, path)
	}
	if resp.StatusCode == http.StatusNoContent {
		return []byte("{}"), nil
	}
	return data, nil
}
