package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// JobStore is the subset of internal/jobs.Registry the HTTP layer needs.
// Handlers depend on this interface rather than the concrete Registry so
// tests can substitute an in-memory fake without a Redis dependency.
type JobStore interface {
	Create(ctx context.Context, kind catalog.JobKind, supplierID *uuid.UUID, fileURL string, itemsTotal int, metadata catalog.JSONMap) (catalog.Job, error)
	Get(ctx context.Context, id uuid.UUID) (catalog.Job, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// Dispatcher hands accepted work off to the ETL orchestrator. Dispatch
// methods must not block the HTTP response — they mirror
// analyze.py's background_tasks.add_task by running the actual pipeline
// after the handler has already returned 202.
type Dispatcher interface {
	DispatchFileAnalysis(job catalog.Job, req AnalyzeFileRequest)
	DispatchMerge(job catalog.Job, req MergeRequest)
}

// DependencyCheck is one named health probe (ollama, database, redis).
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server wires the ETL service's HTTP surface.
type Server struct {
	jobs       JobStore
	dispatcher Dispatcher
	validate   *validator.Validate
	checks     []DependencyCheck
	version    string
	fileExists func(path string) bool
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithHealthChecks registers the dependency probes surfaced under
// GET /health's checks object.
func WithHealthChecks(checks ...DependencyCheck) Option {
	return func(s *Server) { s.checks = checks }
}

// WithVersion overrides the version string reported by GET /health.
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

// WithFileExistsCheck overrides the local-file-existence predicate used to
// validate POST /analyze/file's file_url, matching analyze.py's
// Path(clean_path).exists() check. Defaults to os.Stat.
func WithFileExistsCheck(fn func(path string) bool) Option {
	return func(s *Server) { s.fileExists = fn }
}

// New constructs a Server.
func New(jobs JobStore, dispatcher Dispatcher, opts ...Option) *Server {
	s := &Server{
		jobs:       jobs,
		dispatcher: dispatcher,
		validate:   validator.New(),
		version:    "1.0.0",
		fileExists: defaultFileExists,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router for the ETL service.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
	}))

	r.Post("/analyze/file", s.handleAnalyzeFile)
	r.Get("/analyze/status/{job_id}", s.handleGetStatus)
	r.Delete("/analyze/status/{job_id}", s.handleDeleteStatus)
	r.Post("/analyze/merge", s.handleMerge)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func defaultFileExists(path string) bool {
	return pathExists(path)
}
