// Package jobs is a Redis-backed registry for async job status, grounded on
// original_source/services/ml-analyze/src/services/job_service.py: one JSON
// blob per job under a prefixed key with a refreshing TTL, progress tracked
// as items_processed/items_total with a derived percentage.
// items_processed/items_total plus status/phase are the canonical progress
// signal; the metrics sub-object is optional enrichment that never gates a
// status transition.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/domainerr"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/Valecer/market-sub001/internal/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces job keys in the shared Redis keyspace.
const KeyPrefix = "ml-analyze:job:"

// TTL is how long a job record survives without being touched again.
const TTL = 7 * 24 * time.Hour

// ErrNotFound is returned when a job id has no corresponding Redis entry
// (expired or never created).
var ErrNotFound = errors.New("jobs: not found")

func key(id uuid.UUID) string {
	return KeyPrefix + id.String()
}

// Registry manages Job records in Redis.
type Registry struct {
	rdb redis.UniversalClient
}

// New constructs a Registry over an existing Redis client (standalone or
// cluster; redis.UniversalClient covers both).
func New(rdb redis.UniversalClient) *Registry {
	return &Registry{rdb: rdb}
}

func (r *Registry) save(ctx context.Context, job catalog.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("jobs: marshal %s: %w", job.ID, err)
	}
	if err := r.rdb.Set(ctx, key(job.ID), data, TTL).Err(); err != nil {
		return domainerr.Wrap(domainerr.KindJob, err, "store job %s", job.ID)
	}
	return nil
}

// Create starts a new job in the pending phase.
func (r *Registry) Create(ctx context.Context, kind catalog.JobKind, supplierID *uuid.UUID, fileURL string, itemsTotal int, metadata catalog.JSONMap) (catalog.Job, error) {
	job := catalog.Job{
		ID:         uuid.New(),
		Kind:       kind,
		Status:     catalog.JobPending,
		Phase:      catalog.PhasePending,
		ItemsTotal: itemsTotal,
		SupplierID: supplierID,
		FileURL:    fileURL,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.save(ctx, job); err != nil {
		return catalog.Job{}, err
	}
	logging.Get(logging.CategoryJobs).Info("jobs: created %s kind=%s supplier=%v", job.ID, kind, supplierID)
	return job, nil
}

// Get retrieves a job by id, returning ErrNotFound if it has expired or
// never existed.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (catalog.Job, error) {
	data, err := r.rdb.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return catalog.Job{}, ErrNotFound
		}
		return catalog.Job{}, domainerr.Wrap(domainerr.KindJob, err, "get job %s", id)
	}
	var job catalog.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return catalog.Job{}, fmt.Errorf("jobs: unmarshal %s: %w", id, err)
	}
	return job, nil
}

// UpdateStatus transitions a job's coarse status and phase, stamping
// started_at/completed_at as appropriate; an error string, if given, is
// appended to the bounded error log.
func (r *Registry) UpdateStatus(ctx context.Context, id uuid.UUID, status catalog.JobStatus, phase catalog.JobPhase, errMsg string) error {
	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	job.Status = status
	job.Phase = phase

	now := time.Now().UTC()
	switch status {
	case catalog.JobProcessing:
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
	case catalog.JobCompleted, catalog.JobCompletedWithErrors, catalog.JobFailed:
		job.CompletedAt = &now
		if status == catalog.JobCompleted {
			job.ProgressPercentage = 100
		}
		recordJobTerminal(job.Kind, status, job.StartedAt, &now)
	}

	if errMsg != "" {
		job.AppendError(errMsg)
	}

	if err := r.save(ctx, job); err != nil {
		return err
	}
	logging.Get(logging.CategoryJobs).Info("jobs: %s status=%s phase=%s", id, status, phase)
	return nil
}

// recordJobTerminal updates the platform's job-throughput collectors; a job
// with no StartedAt (never transitioned through processing) records zero
// duration rather than skipping the counter.
func recordJobTerminal(kind catalog.JobKind, status catalog.JobStatus, startedAt, completedAt *time.Time) {
	metrics.JobsTotal.WithLabelValues(string(kind), string(status)).Inc()
	elapsed := 0.0
	if startedAt != nil {
		elapsed = completedAt.Sub(*startedAt).Seconds()
	}
	metrics.JobDuration.WithLabelValues(string(kind)).Observe(elapsed)
}

// UpdateProgress records items_processed (and optionally a revised
// items_total), deriving progress_percentage from the two counts.
func (r *Registry) UpdateProgress(ctx context.Context, id uuid.UUID, itemsProcessed int, itemsTotal *int, newErrors []string) error {
	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	if itemsTotal != nil {
		job.ItemsTotal = *itemsTotal
	}

	// items_processed and the percentage derived from it are monotonic
	// non-decreasing; an out-of-order update carrying a lower count (or a
	// percentage it would not increase) is dropped rather than applied.
	if itemsProcessed > job.ItemsProcessed {
		job.ItemsProcessed = itemsProcessed
		if job.ItemsTotal > 0 {
			pct := int((float64(itemsProcessed) / float64(job.ItemsTotal)) * 100)
			if pct > 100 {
				pct = 100
			}
			if pct > job.ProgressPercentage {
				job.ProgressPercentage = pct
			}
		}
	}
	for _, e := range newErrors {
		job.AppendError(e)
	}

	if err := r.save(ctx, job); err != nil {
		return err
	}
	logging.Get(logging.CategoryJobs).Debug("jobs: %s progress=%d%% processed=%d/%d", id, job.ProgressPercentage, job.ItemsProcessed, job.ItemsTotal)
	return nil
}

// UpdateMetrics attaches optional parsing-quality enrichment to a job
// without touching status/phase/progress.
func (r *Registry) UpdateMetrics(ctx context.Context, id uuid.UUID, metrics catalog.JSONMap) error {
	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	job.Metrics = metrics
	return r.save(ctx, job)
}

// MarkStarted transitions a job to processing/analyzing.
func (r *Registry) MarkStarted(ctx context.Context, id uuid.UUID) error {
	return r.UpdateStatus(ctx, id, catalog.JobProcessing, catalog.PhaseAnalyzing, "")
}

// MarkCompleted finalizes a job, classifying it completed vs
// completed_with_errors based on whether any errors were recorded.
func (r *Registry) MarkCompleted(ctx context.Context, id uuid.UUID, itemsProcessed int, metrics catalog.JSONMap) error {
	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	job.ItemsProcessed = itemsProcessed
	if metrics != nil {
		job.Metrics = metrics
	}

	status := catalog.JobCompleted
	phase := catalog.PhaseComplete
	if len(job.Errors) > 0 {
		status = catalog.JobCompletedWithErrors
		phase = catalog.PhaseCompletedWithErrors
	}

	job.Status = status
	job.Phase = phase
	job.ProgressPercentage = 100
	now := time.Now().UTC()
	job.CompletedAt = &now
	recordJobTerminal(job.Kind, status, job.StartedAt, &now)

	if err := r.save(ctx, job); err != nil {
		return err
	}
	logging.Get(logging.CategoryJobs).Info("jobs: %s completed status=%s processed=%d/%d", id, status, itemsProcessed, job.ItemsTotal)
	return nil
}

// MarkFailed terminates a job with a fatal error message.
func (r *Registry) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.UpdateStatus(ctx, id, catalog.JobFailed, catalog.PhaseFailed, errMsg)
}

// Delete removes a job's record immediately rather than waiting for TTL
// expiry.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := r.rdb.Del(ctx, key(id)).Result()
	if err != nil {
		return false, domainerr.Wrap(domainerr.KindJob, err, "delete job %s", id)
	}
	return n > 0, nil
}
