// Command etlservice is the semantic ETL microservice: it exposes the HTTP
// surface in internal/httpapi (file analysis, status, batch match, health)
// and consumes the match_items queue a courier enqueues after each ETL run
// completes. Grounded on
// original_source/services/ml-analyze/src/api/main.py's FastAPI app
// assembly and lifespan-managed dependency wiring.
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
	"github.com/Valecer/market-sub001/internal/extract"
	"github.com/Valecer/market-sub001/internal/httpapi"
	"github.com/Valecer/market-sub001/internal/jobs"
	"github.com/Valecer/market-sub001/internal/llmclient"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/Valecer/market-sub001/internal/matcher"
	"github.com/Valecer/market-sub001/internal/queue"
	"github.com/Valecer/market-sub001/internal/repository"
	"github.com/Valecer/market-sub001/internal/rerank"
	"github.com/Valecer/market-sub001/internal/review"
	"github.com/Valecer/market-sub001/internal/vector"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "etlservice: config: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "etlservice: logging: %v\n", err)
		os.Exit(1)
	}
	logging.Boot("etlservice: starting, queue=%q http_addr=%q", cfg.QueueName, cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, repository.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		logging.BootError("etlservice: connect to database: %v", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb, err := newRedisClient(cfg)
	if err != nil {
		logging.BootError("etlservice: configure redis: %v", err)
		os.Exit(1)
	}
	defer rdb.Close()

	categories := repository.NewCategoryRepo(pool)
	parsingLogs := repository.NewParsingLogRepo(pool)
	priceHistory := repository.NewPriceHistoryRepo(pool)
	products := repository.NewProductRepo(pool)
	reviewQueueRepo := repository.NewReviewQueueRepo(pool)
	supplierItems := repository.NewSupplierItemRepo(pool)

	vectorStore := vector.NewPostgresStore(pool)
	embeddingEngine, err := embedding.NewEngine(embedding.Config{
		OllamaEndpoint: cfg.OllamaBaseURL,
		OllamaModel:    cfg.OllamaEmbeddingModel,
		Dimensions:     cfg.EmbeddingDimensions,
	})
	if err != nil {
		logging.BootError("etlservice: construct embedding engine: %v", err)
		os.Exit(1)
	}

	llm := llmclient.NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaLLMModel)
	extractor := extract.New(llm, extract.DefaultConfig())
	reranker := rerank.New(llm, rerank.DefaultConfig())

	items := &itemUpsertAdapter{pool: pool, items: supplierItems, history: priceHistory}
	registry := jobs.New(rdb)

	// DedupTolerance, CategoryThreshold, and EmbeddingModel are sourced from
	// the loaded config rather than etl.DefaultConfig's hardcoded defaults,
	// so DEDUP_PRICE_TOLERANCE, CATEGORY_SIMILARITY_THRESHOLD, and
	// OLLAMA_EMBEDDING_MODEL actually drive pipeline behavior.
	etlCfg := etl.DefaultConfig()
	etlCfg.DedupTolerance = cfg.DedupPriceTolerance
	etlCfg.CategoryThreshold = cfg.CategorySimilarityThreshold
	etlCfg.EmbeddingModel = cfg.OllamaEmbeddingModel
	orchestrator := etl.New(etlCfg, etl.Deps{
		Jobs:        registry,
		Categories:  categories,
		Items:       items,
		ParsingLogs: parsingLogs,
		Embeddings:  vectorStore,
		Engine:      embeddingEngine,
		Extractor:   extractor,
	})

	agg := &aggregateAdapter{pool: pool}
	reviewSvc := review.New(reviewQueueRepo, supplierItems, agg)

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

	dispatcher := &jobDispatcher{orchestrator: orchestrator, matcher: matcherSvc, jobs: registry}

	q := queue.New(rdb, cfg.QueueName)
	worker := queue.NewWorker(q, cfg.MaxWorkers, cfg.JobTimeout)
	worker.Register(courier.MatchItemsKind, dispatcher.handleMatchItems)

	server := httpapi.New(registry, dispatcher, httpapi.WithHealthChecks(
		httpapi.DependencyCheck{Name: "database", Check: func(ctx context.Context) error {
			return pingPool(ctx, pool)
		}},
		httpapi.DependencyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}},
		httpapi.DependencyCheck{Name: "ollama", Check: func(ctx context.Context) error {
			return checkEmbeddingEngine(ctx, embeddingEngine)
		}},
	))

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		logging.Boot("etlservice: http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.BootError("etlservice: http server: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		logging.Boot("etlservice: queue worker running on %q with %d slots", cfg.QueueName, cfg.MaxWorkers)
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.BootError("etlservice: queue worker: %v", err)
		}
	}()

	<-ctx.Done()
	logging.Boot("etlservice: shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.BootError("etlservice: http shutdown: %v", err)
	}
	wg.Wait()
	logging.Boot("etlservice: stopped")
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

func pingPool(ctx context.Context, pool interface{ Ping(context.Context) error }) error {
	return pool.Ping(ctx)
}

func checkEmbeddingEngine(ctx context.Context, engine embedding.EmbeddingEngine) error {
	if hc, ok := engine.(embedding.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
