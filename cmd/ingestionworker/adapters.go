package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Valecer/market-sub001/internal/aggregation"
	"github.com/Valecer/market-sub001/internal/courier"
	"github.com/Valecer/market-sub001/internal/embedding"
	"github.com/Valecer/market-sub001/internal/etl"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/Valecer/market-sub001/internal/metrics"
	"github.com/Valecer/market-sub001/internal/queue"
	"github.com/Valecer/market-sub001/internal/repository"
	"github.com/Valecer/market-sub001/internal/review"
	syncsvc "github.com/Valecer/market-sub001/internal/sync"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// aggregateAdapter satisfies both etl.Aggregator and review.Aggregator over
// the package-level aggregation.RecomputeBatch function — the same
// adapter cmd/etlservice defines, duplicated rather than shared because
// cmd/etlservice and cmd/ingestionworker are separate main packages.
type aggregateAdapter struct {
	pool *pgxpool.Pool
}

func (a *aggregateAdapter) Recompute(ctx context.Context, productIDs []uuid.UUID, trigger aggregation.Trigger) {
	if len(productIDs) == 0 {
		return
	}
	aggregation.RecomputeBatch(ctx, a.pool, productIDs, trigger)
}

// newHealthMux builds the thin health-only HTTP surface this process
// exposes (spec §1: ingestionworker has no externally-facing HTTP surface
// beyond a health handler).
func newHealthMux(pool *pgxpool.Pool, rdb redis.UniversalClient, engine embedding.EmbeddingEngine) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		failures := 0
		if err := pool.Ping(ctx); err != nil {
			failures++
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			failures++
		}
		if hc, ok := engine.(embedding.HealthChecker); ok {
			if err := hc.HealthCheck(ctx); err != nil {
				failures++
			}
		}
		if failures > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	return mux
}

// processFileKind is the queue job kind a file-submission request arrives
// as; the courier never parses a file itself, so the handler below is
// nothing more than an adapter onto courier.Courier.ProcessFile.
const processFileKind = "process_file"

type processFilePayload struct {
	SupplierID    uuid.UUID `json:"supplier_id"`
	FileURL       string    `json:"file_url"`
	PrioritySheet string    `json:"priority_sheet,omitempty"`
}

// handleProcessFile adapts one queued file-submission request onto
// courier.Courier.ProcessFile.
func handleProcessFile(c *courier.Courier) queue.Handler {
	return func(ctx context.Context, job queue.Job) error {
		var payload processFilePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("ingestionworker: decode process_file payload: %w", err)
		}
		_, err := c.ProcessFile(ctx, payload.SupplierID, payload.FileURL, payload.PrioritySheet)
		return err
	}
}

// handleMatchItems adapts the match_items job courier.Courier.TriggerMatching
// enqueues after a file finishes analysis onto etl.Matcher.MatchBatch.
func handleMatchItems(m *etl.Matcher) queue.Handler {
	return func(ctx context.Context, job queue.Job) error {
		var payload struct {
			SupplierID string `json:"supplier_id"`
		}
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("ingestionworker: decode match_items payload: %w", err)
		}
		logging.Get(logging.CategoryMatcher).Info("ingestionworker: running match_items for supplier %s", payload.SupplierID)
		_, err := m.MatchBatch(ctx, nil, matchItemsBatchLimit)
		return err
	}
}

// matchItemsBatchLimit bounds one queue-triggered match run the same way
// cmd/etlservice's own match_items handler does.
const matchItemsBatchLimit = 500

// reviewExpiryTask wraps review.Service.ExpireDue as a queue.ScheduledTask,
// requeueing matching for every review that expired unreviewed.
func reviewExpiryTask(reviews *review.Service) queue.ScheduledTask {
	return queue.ScheduledTask{
		Name: "review_expiry",
		Run: func(ctx context.Context) error {
			n, err := reviews.ExpireDue(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			if n > 0 {
				logging.Get(logging.CategorySync).Info("ingestionworker: expired %d pending reviews", n)
			}
			return nil
		},
	}
}

// fileCleanupTask wraps courier.CleanupSharedFiles as a queue.ScheduledTask.
func fileCleanupTask(uploadsDir string, ttl time.Duration) queue.ScheduledTask {
	return queue.ScheduledTask{
		Name: "file_cleanup",
		Run: func(ctx context.Context) error {
			removed, err := courier.CleanupSharedFiles(uploadsDir, ttl)
			if err != nil {
				return err
			}
			if removed > 0 {
				logging.Get(logging.CategoryCourier).Info("ingestionworker: cleaned up %d stale uploaded files", removed)
			}
			return nil
		},
	}
}

// queueDepthMonitorTask samples the queue's current depth, DLQ size, and the
// count of reviews awaiting a decision into the platform's gauges, the Go
// equivalent of the original's periodic queue-depth metric emission.
func queueDepthMonitorTask(q *queue.Queue, queueName string, reviews *repository.ReviewQueueRepo) queue.ScheduledTask {
	return queue.ScheduledTask{
		Name: "queue_depth_monitor",
		Run: func(ctx context.Context) error {
			depth, err := q.Depth(ctx)
			if err != nil {
				return err
			}
			dlqDepth, err := q.DLQDepth(ctx)
			if err != nil {
				return err
			}
			pending, err := reviews.CountPending(ctx)
			if err != nil {
				return err
			}
			metrics.QueueDepth.WithLabelValues(queueName).Set(float64(depth))
			metrics.DLQDepth.WithLabelValues(queueName).Set(float64(dlqDepth))
			metrics.ReviewQueueSize.Set(float64(pending))
			logging.Get(logging.CategoryQueue).Info("ingestionworker: queue depth=%d dlq_depth=%d review_pending=%d", depth, dlqDepth, pending)
			return nil
		},
	}
}

// masterSyncTask runs runMasterSync on the regular SYNC_INTERVAL_HOURS
// schedule.
func masterSyncTask(coord *syncsvc.Coordinator) queue.ScheduledTask {
	return queue.ScheduledTask{
		Name: "master_sync",
		Run: func(ctx context.Context) error {
			return runMasterSync(ctx, coord, "scheduled")
		},
	}
}

// manualSyncTriggerTask polls for an operator-requested manual sync
// (internal/sync.Coordinator.RequestManualSync) and runs it immediately,
// ahead of the regular SYNC_INTERVAL_HOURS schedule.
func manualSyncTriggerTask(coord *syncsvc.Coordinator) queue.ScheduledTask {
	return queue.ScheduledTask{
		Name: "manual_sync_trigger",
		Run: func(ctx context.Context) error {
			pending, err := coord.ConsumeManualSyncTrigger(ctx)
			if err != nil {
				return err
			}
			if !pending {
				return nil
			}
			return runMasterSync(ctx, coord, "manual")
		},
	}
}

// runMasterSync drives the global sync lock's idle -> syncing_master -> idle
// lifecycle once. internal/repository exposes no way to enumerate suppliers
// (SupplierRepo only supports Get-by-id) and no external supplier-master
// client exists in this module, so fetching and diffing an external
// catalogue isn't wired here; this does the part that is in scope:
// serializing concurrent worker instances against the shared Redis lock and
// leaving a truthful idle/last-run status for whatever polls it.
func runMasterSync(ctx context.Context, coord *syncsvc.Coordinator, trigger string) error {
	taskID := uuid.NewString()
	acquired, holder, err := coord.AcquireLock(ctx, taskID, syncsvc.DefaultLockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		logging.Get(logging.CategorySync).Info("ingestionworker: master sync (%s) already running (held by %s), skipping", trigger, holder)
		return nil
	}
	defer func() {
		if _, err := coord.ReleaseLock(ctx, taskID); err != nil {
			logging.Get(logging.CategorySync).Error("ingestionworker: release sync lock: %v", err)
		}
	}()

	if err := coord.MarkStarted(ctx, taskID); err != nil {
		return err
	}
	if err := coord.MarkIdle(ctx); err != nil {
		return err
	}
	return coord.RecordCompletion(ctx)
}

// The original's separate "ETL job status poller" cron entry has no
// counterpart task here: courier.Courier.ProcessFile already blocks on
// pollUntilTerminal for the job it owns, so there is no detached set of
// rows left to reconcile on a separate tick in this implementation.
//
// Likewise there is no separate "retry-trigger poller": internal/queue.Worker
// schedules a failed job's requeue inline via time.AfterFunc once its
// backoff elapses (see Worker.onFailure), so there is no pending-retry set
// left for a periodic task to sweep.
