// Command ingestionworker is the ingestion-side process: it never parses a
// file itself, instead driving internal/courier.Courier against the
// etlservice over HTTP, consuming the match_items and process_file queues,
// running the periodic maintenance tasks of spec §4.O on
// internal/queue.Scheduler, and serializing periodic master-sync runs
// through internal/sync.Coordinator. Grounded on
// original_source/services/python-ingestion/src/worker.py's WorkerSettings
// (queue consumption plus its cron_jobs list) and main.py's thin FastAPI
// app (a health endpoint only — the service exposes no other HTTP surface).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Valecer/market-sub001/internal/config"
	"github.com/Valecer/market-sub001/internal/courier"
	"github.com/Valecer/market-sub001/internal/embedding"
	"github.com/Valecer/market-sub001/internal/etl"
	"github.com/Valecer/market-sub001/internal/jobs"
	"github.com/Valecer/market-sub001/internal/llmclient"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/Valecer/market-sub001/internal/matcher"
	"github.com/Valecer/market-sub001/internal/queue"
	"github.com/Valecer/market-sub001/internal/repository"
	"github.com/Valecer/market-sub001/internal/rerank"
	"github.com/Valecer/market-sub001/internal/review"
	syncsvc "github.com/Valecer/market-sub001/internal/sync"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingestionworker: config: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "ingestionworker: logging: %v\n", err)
		os.Exit(1)
	}
	logging.Boot("ingestionworker: starting, queue=%q etl_url=%q", cfg.QueueName, cfg.MLAnalyzeURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, repository.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		logging.BootError("ingestionworker: connect to database: %v", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb, err := newRedisClient(cfg)
	if err != nil {
		logging.BootError("ingestionworker: configure redis: %v", err)
		os.Exit(1)
	}
	defer rdb.Close()

	supplierItems := repository.NewSupplierItemRepo(pool)
	products := repository.NewProductRepo(pool)
	reviewQueueRepo := repository.NewReviewQueueRepo(pool)

	registry := jobs.New(rdb)
	q := queue.New(rdb, cfg.QueueName)

	etlClient := courier.NewETLClient(cfg.MLAnalyzeURL)
	courierCfg := courier.DefaultConfig()
	courierCfg.PollInterval = time.Duration(cfg.MLPollIntervalSeconds) * time.Second
	courierCfg.FileCleanupTTL = time.Duration(cfg.FileCleanupTTLHours) * time.Hour
	courierSvc := courier.New(courierCfg, etlClient, registry, q)

	// The matcher is reconstructed here the same way cmd/etlservice builds
	// its own: both binaries read/write the same Postgres-backed matching
	// state, and the match_items queue may be drained by whichever process
	// has a free worker slot.
	agg := &aggregateAdapter{pool: pool}
	reviewSvc := review.New(reviewQueueRepo, supplierItems, agg)

	llm := llmclient.NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaLLMModel)
	reranker := rerank.New(llm, rerank.DefaultConfig())

	matchCfg := matcher.DefaultConfig()
	matchCfg.AutoThreshold = cfg.MatchConfidenceAutoThreshold * 100
	matchCfg.PotentialThreshold = cfg.MatchConfidenceReviewThreshold * 100
	matcherSvc := etl.NewMatcher(etl.MatchingDeps{
		Items:      supplierItems,
		Products:   products,
		Reviews:    reviewSvc,
		Aggregates: agg,
		Reranker:   reranker,
		MatcherCfg: matchCfg,
	})

	worker := queue.NewWorker(q, cfg.MaxWorkers, cfg.JobTimeout)
	worker.Register(processFileKind, handleProcessFile(courierSvc))
	worker.Register(courier.MatchItemsKind, handleMatchItems(matcherSvc))

	syncCoord := syncsvc.New(rdb)
	scheduler := queue.NewScheduler().
		Every(queue.FileCleanupInterval, fileCleanupTask(courierCfg.UploadsDir, courierCfg.FileCleanupTTL)).
		Every(queue.ReviewQueueExpiryInterval, reviewExpiryTask(reviewSvc)).
		Every(queue.QueueDepthMonitorInterval, queueDepthMonitorTask(q, cfg.QueueName, reviewQueueRepo)).
		Every(queue.MasterSyncInterval(cfg.SyncIntervalHours), masterSyncTask(syncCoord)).
		Every(queue.ManualSyncTriggerInterval, manualSyncTriggerTask(syncCoord))

	// embeddingEngine is wired only to expose its health check on the
	// worker's own liveness endpoint below, matching the teacher's pattern
	// of surfacing every external dependency's reachability uniformly.
	embeddingEngine, err := embedding.NewEngine(embedding.Config{
		OllamaEndpoint: cfg.OllamaBaseURL,
		OllamaModel:    cfg.OllamaEmbeddingModel,
		Dimensions:     cfg.EmbeddingDimensions,
	})
	if err != nil {
		logging.BootError("ingestionworker: construct embedding engine: %v", err)
		os.Exit(1)
	}

	healthServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: newHealthMux(pool, rdb, embeddingEngine),
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		logging.Boot("ingestionworker: health endpoint listening on %s", cfg.HTTPAddr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.BootError("ingestionworker: health server: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		logging.Boot("ingestionworker: queue worker running on %q with %d slots", cfg.QueueName, cfg.MaxWorkers)
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.BootError("ingestionworker: queue worker: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	<-ctx.Done()
	logging.Boot("ingestionworker: shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logging.BootError("ingestionworker: health server shutdown: %v", err)
	}
	wg.Wait()
	logging.Boot("ingestionworker: stopped")
}

func newRedisClient(cfg *config.Config) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.RedisHost != "" {
		opts.Addr = cfg.RedisHost + ":" + cfg.RedisPort
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	return redis.NewClient(opts), nil
}
