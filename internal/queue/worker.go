package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/Valecer/market-sub001/internal/logging"
	"golang.org/x/sync/semaphore"
)

// Handler processes one job. A returned error triggers the retry/backoff
// policy; a nil return marks the job done.
type Handler func(ctx context.Context, job Job) error

// RetryPolicy controls how many times a job is retried and how long the
// worker waits between attempts, grounded on worker.py's WorkerSettings
// (max_tries=3) and on_job_end's job_try > max_tries DLQ cutoff.
type RetryPolicy struct {
	MaxTries       int
	InitialBackoff time.Duration
	Multiplier     float64
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy matches the original arq configuration: MaxTries 3,
// so a failing job is retried three times after its first attempt (four
// attempts in all) before it moves to the DLQ, with exponential backoff
// starting at one second.
var DefaultRetryPolicy = RetryPolicy{
	MaxTries:       3,
	InitialBackoff: 1 * time.Second,
	Multiplier:     2,
	MaxBackoff:     30 * time.Second,
}

func (p RetryPolicy) backoff(try int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < try; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return d
}

// Worker pulls jobs off a Queue and dispatches them to registered handlers
// through a bounded pool of concurrent goroutines.
type Worker struct {
	queue      *Queue
	handlers   map[string]Handler
	retry      RetryPolicy
	jobTimeout time.Duration
	sem        *semaphore.Weighted
	popTimeout time.Duration
}

// NewWorker constructs a Worker over queue, running up to maxWorkers jobs
// concurrently and applying jobTimeout as the per-job context deadline
// (worker.py's job_timeout).
func NewWorker(q *Queue, maxWorkers int, jobTimeout time.Duration) *Worker {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Worker{
		queue:      q,
		handlers:   make(map[string]Handler),
		retry:      DefaultRetryPolicy,
		jobTimeout: jobTimeout,
		sem:        semaphore.NewWeighted(int64(maxWorkers)),
		popTimeout: 5 * time.Second,
	}
}

// WithRetryPolicy overrides the default retry policy and returns w for
// chaining.
func (w *Worker) WithRetryPolicy(p RetryPolicy) *Worker {
	w.retry = p
	return w
}

// Register binds a Handler to a job kind. Registering the same kind twice
// overwrites the earlier handler.
func (w *Worker) Register(kind string, h Handler) {
	w.handlers[kind] = h
}

// Run pops and dispatches jobs until ctx is cancelled, blocking the caller.
// Each dispatched job runs in its own goroutine bounded by the worker's
// semaphore, so Run itself never blocks on job execution beyond acquiring a
// slot.
func (w *Worker) Run(ctx context.Context) error {
	log := logging.Get(logging.CategoryQueue)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := w.queue.Pop(ctx, w.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("queue: pop failed: %v", err)
			continue
		}
		if job == nil {
			continue
		}

		if err := w.sem.Acquire(ctx, 1); err != nil {
			return ctx.Err()
		}
		go func(job Job) {
			defer w.sem.Release(1)
			w.dispatch(ctx, job)
		}(*job)
	}
}

func (w *Worker) dispatch(ctx context.Context, job Job) {
	log := logging.Get(logging.CategoryQueue)
	handler, ok := w.handlers[job.Kind]
	if !ok {
		log.Error("queue: no handler registered for kind %s (job %s)", job.Kind, job.ID)
		w.onFailure(ctx, job, fmt.Errorf("no handler for kind %q", job.Kind))
		return
	}

	jobCtx := ctx
	var cancel context.CancelFunc
	if w.jobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	timer := logging.StartTimer(logging.CategoryQueue, "job:"+job.Kind)
	err := handler(jobCtx, job)
	timer.Stop()

	if err != nil {
		w.onFailure(ctx, job, err)
		return
	}
	log.Debug("queue: job %s (%s) completed on try %d", job.ID, job.Kind, job.Tries+1)
}

// onFailure implements worker.py's on_job_end: increment the try count and
// either requeue or move to the DLQ once MaxTries is exceeded.
func (w *Worker) onFailure(ctx context.Context, job Job, cause error) {
	log := logging.Get(logging.CategoryQueue)
	job.Tries++

	if job.Tries > w.retry.MaxTries {
		if err := w.queue.MoveToDLQ(ctx, job, cause.Error()); err != nil {
			log.Error("queue: failed to move job %s to dlq: %v", job.ID, err)
		}
		return
	}

	log.Warn("queue: job %s (%s) failed try %d/%d: %v", job.ID, job.Kind, job.Tries, w.retry.MaxTries, cause)
	backoff := w.retry.backoff(job.Tries)
	time.AfterFunc(backoff, func() {
		if err := w.queue.Requeue(context.Background(), job); err != nil {
			log.Error("queue: failed to requeue job %s: %v", job.ID, err)
		}
	})
}
