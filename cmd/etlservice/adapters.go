package main

import (
	"context"
	"encoding/json"

	"github.com/Valecer/market-sub001/internal/aggregation"
	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/Valecer/market-sub001/internal/courier"
	"github.com/Valecer/market-sub001/internal/etl"
	"github.com/Valecer/market-sub001/internal/httpapi"
	"github.com/Valecer/market-sub001/internal/jobs"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/Valecer/market-sub001/internal/queue"
	"github.com/Valecer/market-sub001/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// itemUpsertAdapter binds repository.UpsertWithHistory's free-function shape
// to etl.ItemStore's narrow per-call interface, so the orchestrator never
// needs to know about the pool or the price-history repo it writes through.
type itemUpsertAdapter struct {
	pool    *pgxpool.Pool
	items   *repository.SupplierItemRepo
	history *repository.PriceHistoryRepo
}

func (a *itemUpsertAdapter) UpsertWithHistory(ctx context.Context, supplierID uuid.UUID, sku, name string, price catalog.Money, characteristics catalog.JSONMap) (repository.UpsertResult, error) {
	return repository.UpsertWithHistory(ctx, a.pool, a.items, a.history, supplierID, sku, name, price, characteristics)
}

// aggregateAdapter satisfies both etl.Aggregator and review.Aggregator over
// the package-level aggregation.RecomputeBatch function.
type aggregateAdapter struct {
	pool *pgxpool.Pool
}

func (a *aggregateAdapter) Recompute(ctx context.Context, productIDs []uuid.UUID, trigger aggregation.Trigger) {
	if len(productIDs) == 0 {
		return
	}
	aggregation.RecomputeBatch(ctx, a.pool, productIDs, trigger)
}

// jobDispatcher implements httpapi.Dispatcher by launching the accepted
// work in a background goroutine, matching analyze.py's
// background_tasks.add_task pattern: the HTTP handler has already written
// its 202 response by the time either method below runs.
type jobDispatcher struct {
	orchestrator *etl.Orchestrator
	matcher      *etl.Matcher
	jobs         *jobs.Registry
}

func (d *jobDispatcher) DispatchFileAnalysis(job catalog.Job, req httpapi.AnalyzeFileRequest) {
	prioritySheet := ""
	if req.PrioritySheet != nil {
		prioritySheet = *req.PrioritySheet
	}
	go func() {
		ctx := context.Background()
		if err := d.orchestrator.ParseFile(ctx, job.FileURL, courier.FileKind(req.FileType), req.SupplierID, job.ID, prioritySheet); err != nil {
			logging.ETLError("etlservice: parse file job %s failed: %v", job.ID, err)
		}
	}()
}

func (d *jobDispatcher) DispatchMerge(job catalog.Job, req httpapi.MergeRequest) {
	go func() {
		ctx := context.Background()
		result, err := d.matcher.MatchBatch(ctx, req.SupplierItemIDs, req.Limit)
		if err != nil {
			if markErr := d.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
				logging.ETLError("etlservice: mark merge job %s failed: %v", job.ID, markErr)
			}
			return
		}
		total := result.AutoMatched + result.ReviewQueued + result.Unmatched + result.Failed
		metrics := catalog.JSONMap{
			"auto_matched":  result.AutoMatched,
			"review_queued": result.ReviewQueued,
			"unmatched":     result.Unmatched,
			"failed":        result.Failed,
		}
		if markErr := d.jobs.MarkCompleted(ctx, job.ID, total, metrics); markErr != nil {
			logging.ETLError("etlservice: complete merge job %s failed: %v", job.ID, markErr)
		}
	}()
}

// matchItemsPayload is the body courier.Courier.TriggerMatching pushes onto
// the match_items queue.
type matchItemsPayload struct {
	SupplierID string `json:"supplier_id"`
}

// matchItemsBatchLimit caps one queue-triggered match run; a supplier with
// more unmatched items than this drains over several fired jobs rather than
// in a single unbounded query.
const matchItemsBatchLimit = 500

// handleMatchItems is the queue.Handler for courier.MatchItemsKind: the
// courier only knows which supplier just finished an ETL run, not which
// specific supplier_item rows it produced, so this handler re-derives the
// unmatched set from the repository itself via etl.Matcher.MatchBatch's nil
// itemIDs (match everything currently unmatched) path.
func (d *jobDispatcher) handleMatchItems(ctx context.Context, job queue.Job) error {
	var payload matchItemsPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return err
	}
	logging.ETL("etlservice: running match_items for supplier %s (job %s)", payload.SupplierID, job.ID)
	_, err := d.matcher.MatchBatch(ctx, nil, matchItemsBatchLimit)
	return err
}
