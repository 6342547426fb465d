package courier

import (
	"context"
	"time"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/domainerr"
	"github.com/Valecer/market-sub001/internal/jobs"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/Valecer/market-sub001/internal/queue"
	"github.com/google/uuid"
)

// MatchItemsKind is the queue job kind a successful ETL run enqueues to
// trigger matching on a supplier's newly-ingested items.
const MatchItemsKind = "match_items"

// Config holds the courier's tunables, sourced from internal/config.Config.
type Config struct {
	UploadsDir     string
	PollInterval   time.Duration
	PollTimeout    time.Duration
	FileCleanupTTL time.Duration
}

// DefaultConfig matches spec 4.N's stated defaults: poll every 10s, give up
// after 30 minutes, clean up files older than 24h.
func DefaultConfig() Config {
	return Config{
		UploadsDir:     "/shared/uploads",
		PollInterval:   10 * time.Second,
		PollTimeout:    30 * time.Minute,
		FileCleanupTTL: 24 * time.Hour,
	}
}

// Courier is the ingestion-side glue between a local job and the ETL
// service: it never parses a file itself (spec 4.N).
type Courier struct {
	cfg   Config
	etl   *ETLClient
	jobs  *jobs.Registry
	queue *queue.Queue
}

// New constructs a Courier.
func New(cfg Config, etl *ETLClient, registry *jobs.Registry, q *queue.Queue) *Courier {
	return &Courier{cfg: cfg, etl: etl, jobs: registry, queue: q}
}

// ProcessFile runs one full per-file-analysis job: resolve the file,
// create the local job record, health-check and trigger the ETL service,
// then poll to terminal state, mirroring the ETL job's progress into the
// local registry and enqueueing matching once items have landed.
func (c *Courier) ProcessFile(ctx context.Context, supplierID uuid.UUID, fileURL string, prioritySheet string) (uuid.UUID, error) {
	log := logging.Get(logging.CategoryCourier)

	localPath, err := ResolveFileURL(ctx, fileURL, c.cfg.UploadsDir)
	if err != nil {
		return uuid.Nil, err
	}
	fileKind, err := DetectFileKind(localPath)
	if err != nil {
		return uuid.Nil, err
	}

	job, err := c.jobs.Create(ctx, catalog.JobFileAnalysis, &supplierID, localPath, 0, catalog.JSONMap{"file_kind": string(fileKind)})
	if err != nil {
		return uuid.Nil, err
	}

	healthy, _, err := c.etl.CheckHealth(ctx)
	if err != nil {
		_ = c.jobs.MarkFailed(ctx, job.ID, err.Error())
		return job.ID, err
	}
	if !healthy {
		failErr := domainerr.Network("courier: etl service unhealthy, failing job %s fast", job.ID)
		_ = c.jobs.MarkFailed(ctx, job.ID, failErr.Error())
		return job.ID, failErr
	}

	trigger, err := c.etl.TriggerAnalysis(ctx, localPath, supplierID, fileKind, prioritySheet)
	if err != nil {
		_ = c.jobs.MarkFailed(ctx, job.ID, err.Error())
		return job.ID, err
	}

	if err := c.jobs.UpdateMetrics(ctx, job.ID, catalog.JSONMap{"etl_job_id": trigger.JobID.String()}); err != nil {
		log.Error("courier: failed to stamp etl job id on %s: %v", job.ID, err)
	}
	if err := c.jobs.MarkStarted(ctx, job.ID); err != nil {
		log.Error("courier: failed to mark %s started: %v", job.ID, err)
	}

	final, err := c.pollUntilTerminal(ctx, job.ID, trigger.JobID)
	if err != nil {
		_ = c.jobs.MarkFailed(ctx, job.ID, err.Error())
		return job.ID, err
	}

	if final.Status == catalog.JobCompleted || final.Status == catalog.JobCompletedWithErrors {
		if err := c.TriggerMatching(ctx, supplierID); err != nil {
			log.Error("courier: failed to trigger matching for supplier %s: %v", supplierID, err)
		}
	}
	return job.ID, nil
}

// pollUntilTerminal drives a deadline-bound polling state machine: a ticker
// fires every PollInterval, each tick fetches the ETL job's status and
// mirrors it into the local registry, and the loop exits as soon as the
// remote status is terminal or the deadline elapses — an explicit
// event-driven loop rather than a recursive await chain, so a stuck ETL job
// can never grow an unbounded call stack.
func (c *Courier) pollUntilTerminal(ctx context.Context, localJobID, etlJobID uuid.UUID) (StatusResponse, error) {
	log := logging.Get(logging.CategoryCourier)

	deadline := time.Now().Add(c.cfg.PollTimeout)
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		status, err := c.etl.GetStatus(ctx, etlJobID)
		if err != nil {
			log.Warn("courier: poll for %s failed, will retry: %v", etlJobID, err)
		} else {
			if err := c.mirrorStatus(ctx, localJobID, status); err != nil {
				log.Error("courier: failed to mirror status for %s: %v", localJobID, err)
			}
			if status.IsTerminal() {
				return status, nil
			}
		}

		if time.Now().After(deadline) {
			return StatusResponse{}, domainerr.Network("courier: etl job %s did not complete within %v", etlJobID, c.cfg.PollTimeout)
		}

		select {
		case <-ctx.Done():
			return StatusResponse{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Courier) mirrorStatus(ctx context.Context, localJobID uuid.UUID, status StatusResponse) error {
	itemsTotal := status.ItemsTotal
	if err := c.jobs.UpdateProgress(ctx, localJobID, status.ItemsProcessed, &itemsTotal, status.Errors); err != nil {
		return err
	}
	if status.Metrics != nil {
		if err := c.jobs.UpdateMetrics(ctx, localJobID, status.Metrics); err != nil {
			return err
		}
	}
	switch status.Status {
	case catalog.JobCompleted, catalog.JobCompletedWithErrors:
		return c.jobs.MarkCompleted(ctx, localJobID, status.ItemsProcessed, status.Metrics)
	case catalog.JobFailed:
		msg := "etl job failed"
		if len(status.Errors) > 0 {
			msg = status.Errors[len(status.Errors)-1]
		}
		return c.jobs.MarkFailed(ctx, localJobID, msg)
	default:
		return c.jobs.UpdateStatus(ctx, localJobID, status.Status, status.Phase, "")
	}
}

// TriggerMatching enqueues a match_items job whose payload carries
// supplierID. The courier never holds a list of the specific supplier_item
// ids the ETL run created (it never reads the database directly), so the
// job names no items; the queue handler resolves the item set from the
// repository. The match_items handlers do not filter on supplier_id: each
// run matches up to matchItemsBatchLimit unmatched items of any supplier.
func (c *Courier) TriggerMatching(ctx context.Context, supplierID uuid.UUID) error {
	_, err := c.queue.Push(ctx, MatchItemsKind, map[string]string{"supplier_id": supplierID.String()})
	return err
}
