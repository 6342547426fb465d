// Package logging provides categorized, structured logging for the
// ingestion platform. Every pipeline stage logs through a named category
// (etl, matcher, embedding, queue, sync, courier, httpapi, jobs, ...) so
// log volume can be tuned per subsystem without touching call sites. Backed
// by go.uber.org/zap; LOG_LEVEL selects the zap level at process startup.
package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a logging subsystem.
type Category string

const (
	CategoryETL         Category = "etl"
	CategoryMatcher     Category = "matcher"
	CategoryRerank      Category = "rerank"
	CategoryEmbedding   Category = "embedding"
	CategoryQueue       Category = "queue"
	CategorySync        Category = "sync"
	CategoryCourier     Category = "courier"
	CategoryHTTP        Category = "httpapi"
	CategoryJobs        Category = "jobs"
	CategoryDedup       Category = "dedup"
	CategoryCategory    Category = "category"
	CategoryAggregation Category = "aggregation"
	CategoryReview      Category = "review"
	CategoryRepository  Category = "repository"
	CategoryBoot        Category = "boot"
)

var (
	base     *zap.Logger
	baseOnce sync.Once

	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
)

// Init configures the process-wide zap base logger at the given level
// ("debug", "info", "warn", "error"). Must be called once at startup before
// any Get call; subsequent calls are no-ops. Safe to skip in tests — Get
// lazily falls back to an info-level logger.
func Init(level string) error {
	var initErr error
	baseOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			lvl = zapcore.InfoLevel
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		l, err := cfg.Build()
		if err != nil {
			initErr = err
			return
		}
		base = l
	})
	return initErr
}

func ensureBase() *zap.Logger {
	if base == nil {
		baseOnce.Do(func() {
			base, _ = zap.NewProduction()
		})
	}
	return base
}

// Logger is a category-scoped structured logger.
type Logger struct {
	category Category
	zap      *zap.SugaredLogger
}

// Get returns (or creates) the logger for the given category.
func Get(category Category) *Logger {
	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := &Logger{
		category: category,
		zap:      ensureBase().Sugar().With("category", string(category)),
	}
	loggers[category] = l
	return l
}

// Sync flushes all buffered log entries; call at shutdown.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}

func (l *Logger) Debug(format string, args ...any) { l.zap.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.zap.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.zap.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...any) { l.zap.Errorf(format, args...) }

// WithFields returns a logger that attaches the given key-value pairs to
// every subsequent message.
func (l *Logger) WithFields(kv ...any) *Logger {
	return &Logger{category: l.category, zap: l.zap.With(kv...)}
}

// Timer measures and logs the duration of an operation.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation in the given category.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold, debug
// otherwise.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}

// convenience top-level helpers, matching this repo's existing per-category
// shortcut functions for the hottest categories.

func ETL(format string, args ...any)       { Get(CategoryETL).Info(format, args...) }
func ETLDebug(format string, args ...any)  { Get(CategoryETL).Debug(format, args...) }
func ETLError(format string, args ...any)  { Get(CategoryETL).Error(format, args...) }

func Matcher(format string, args ...any)      { Get(CategoryMatcher).Info(format, args...) }
func MatcherDebug(format string, args ...any) { Get(CategoryMatcher).Debug(format, args...) }

func Embedding(format string, args ...any)      { Get(CategoryEmbedding).Info(format, args...) }
func EmbeddingDebug(format string, args ...any) { Get(CategoryEmbedding).Debug(format, args...) }
func EmbeddingError(format string, args ...any) { Get(CategoryEmbedding).Error(format, args...) }

func Queue(format string, args ...any)      { Get(CategoryQueue).Info(format, args...) }
func QueueDebug(format string, args ...any) { Get(CategoryQueue).Debug(format, args...) }
func QueueError(format string, args ...any) { Get(CategoryQueue).Error(format, args...) }

func Sync_(format string, args ...any) { Get(CategorySync).Info(format, args...) }

func Courier(format string, args ...any)      { Get(CategoryCourier).Info(format, args...) }
func CourierError(format string, args ...any) { Get(CategoryCourier).Error(format, args...) }

func Boot(format string, args ...any)      { Get(CategoryBoot).Info(format, args...) }
func BootError(format string, args ...any) { Get(CategoryBoot).Error(format, args...) }
