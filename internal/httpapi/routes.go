package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/jobs"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// handleAnalyzeFile implements POST /analyze/file: validate the request,
// resolve a local file_url and 400 if it doesn't exist (matching
// analyze.py's Path(clean_path).exists() check), create a job, and hand
// the rest off to the Dispatcher without blocking the response.
func (s *Server) handleAnalyzeFile(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	localPath := req.FileURL
	if strings.HasPrefix(localPath, "/") || strings.HasPrefix(localPath, "file://") {
		localPath = strings.TrimPrefix(localPath, "file://")
		if !s.fileExists(localPath) {
			writeError(w, http.StatusBadRequest, "file not found: "+localPath)
			return
		}
	}

	job, err := s.jobs.Create(r.Context(), catalog.JobFileAnalysis, &req.SupplierID, localPath, 0, catalog.JSONMap{
		"source":       "api",
		"file_type":    req.FileType,
		"semantic_etl": true,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create analysis job: "+err.Error())
		return
	}

	s.dispatcher.DispatchFileAnalysis(job, req)

	writeJSON(w, http.StatusAccepted, AnalyzeFileResponse{
		JobID:   job.ID,
		Status:  catalog.JobPending,
		Message: "file analysis job enqueued for semantic ETL processing",
	})
}

func (s *Server) jobIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "job_id"))
	return id, err == nil
}

// handleGetStatus implements GET /analyze/status/{job_id}.
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobIDParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "malformed job id")
		return
	}

	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statusResponseFromJob(job))
}

// handleDeleteStatus implements DELETE /analyze/status/{job_id}.
func (s *Server) handleDeleteStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobIDParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "malformed job id")
		return
	}

	deleted, err := s.jobs.Delete(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMerge implements POST /analyze/merge.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	itemsQueued := req.Limit
	if len(req.SupplierItemIDs) > 0 {
		itemsQueued = len(req.SupplierItemIDs)
	}

	job, err := s.jobs.Create(r.Context(), catalog.JobBatchMatch, req.SupplierID, "", itemsQueued, catalog.JSONMap{
		"source": "api",
		"limit":  req.Limit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create batch match job: "+err.Error())
		return
	}

	s.dispatcher.DispatchMerge(job, req)

	writeJSON(w, http.StatusAccepted, MergeResponse{
		JobID:       job.ID,
		Status:      catalog.JobPending,
		ItemsQueued: itemsQueued,
	})
}

// handleHealth implements GET /health: run every registered DependencyCheck
// and downgrade the overall status when any fails, matching main.py's
// health_check — all-pass is healthy, any failure moves the reported
// status to degraded; unhealthy is reserved for every check failing at
// once, an extension main.py's code never actually reaches (its checks
// individually set "degraded" and never escalate further).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]CheckResult, len(s.checks))
	failures := 0
	for _, dc := range s.checks {
		if err := dc.Check(r.Context()); err != nil {
			checks[dc.Name] = CheckResult{Status: "unhealthy", Error: err.Error()}
			failures++
		} else {
			checks[dc.Name] = CheckResult{Status: "healthy"}
		}
	}

	status := HealthHealthy
	switch {
	case len(s.checks) > 0 && failures == len(s.checks):
		status = HealthUnhealthy
	case failures > 0:
		status = HealthDegraded
	}

	logging.Get(logging.CategoryHTTP).Debug("httpapi: health check status=%s failures=%d/%d", status, failures, len(s.checks))

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  status,
		Version: s.version,
		Service: "ingestion-etl",
		Checks:  checks,
	})
}
