// Package queue implements the at-least-once Redis work queue and dead
// letter queue, grounded on
// original_source/services/python-ingestion/src/worker.py's arq
// configuration: `arq:queue:{name}` as a list (LPUSH/BRPOP), `arq:dlq:{name}`
// as a set of failed job ids with a 7-day TTL on the whole set, refreshed on
// each insert (worker.py's on_job_end hook).
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Valecer/market-sub001/internal/domainerr"
	"github.com/Valecer/market-sub001/internal/logging"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DLQRetention matches worker.py's `86400 * 7` (7 days).
const DLQRetention = 7 * 24 * time.Hour

// Job is one unit of queued work: a kind string dispatched to a registered
// Handler, a JSON payload, and a try counter the Worker increments on
// failure.
type Job struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	Tries   int             `json:"tries"`
}

// Queue is a single named Redis list queue plus its paired DLQ.
type Queue struct {
	rdb  redis.UniversalClient
	name string
}

// New constructs a Queue bound to name (e.g. "ingestion"), matching
// QUEUE_NAME's role in the original configuration.
func New(rdb redis.UniversalClient, name string) *Queue {
	return &Queue{rdb: rdb, name: name}
}

func (q *Queue) listKey() string { return "arq:queue:" + q.name }
func (q *Queue) dlqKey() string  { return "arq:dlq:" + q.name }

// Push enqueues a new job of the given kind, returning its generated id.
func (q *Queue) Push(ctx context.Context, kind string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", domainerr.Validation("queue: marshal payload for %s: %v", kind, err)
	}
	job := Job{ID: uuid.NewString(), Kind: kind, Payload: raw}
	return job.ID, q.pushJob(ctx, job)
}

func (q *Queue) pushJob(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return domainerr.Validation("queue: marshal job %s: %v", job.ID, err)
	}
	if err := q.rdb.LPush(ctx, q.listKey(), raw).Err(); err != nil {
		return domainerr.Wrap(domainerr.KindNetwork, err, "queue: push job %s", job.ID)
	}
	return nil
}

// Pop blocks up to timeout for the next job, returning (nil, nil) on
// timeout with no job available.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.rdb.BRPop(ctx, timeout, q.listKey()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, domainerr.Wrap(domainerr.KindNetwork, err, "queue: pop from %s", q.name)
	}
	// BRPop returns [key, value]; value is the job payload.
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, domainerr.Wrap(domainerr.KindValidation, err, "queue: unmarshal job from %s", q.name)
	}
	return &job, nil
}

// Requeue re-pushes a job (typically after incrementing Tries) for another
// attempt.
func (q *Queue) Requeue(ctx context.Context, job Job) error {
	return q.pushJob(ctx, job)
}

// MoveToDLQ records a job id in the dead letter set and refreshes its
// retention TTL, matching worker.py's on_job_end SADD+EXPIRE pair.
func (q *Queue) MoveToDLQ(ctx context.Context, job Job, reason string) error {
	if err := q.rdb.SAdd(ctx, q.dlqKey(), job.ID).Err(); err != nil {
		return domainerr.Wrap(domainerr.KindNetwork, err, "queue: move %s to dlq", job.ID)
	}
	if err := q.rdb.Expire(ctx, q.dlqKey(), DLQRetention).Err(); err != nil {
		return domainerr.Wrap(domainerr.KindNetwork, err, "queue: refresh dlq ttl for %s", q.name)
	}
	logging.Get(logging.CategoryQueue).Warn("queue: job %s (%s) moved to dlq after %d tries: %s", job.ID, job.Kind, job.Tries, reason)
	return nil
}

// Depth returns the number of jobs waiting in the queue.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.listKey()).Result()
	if err != nil {
		return 0, domainerr.Wrap(domainerr.KindNetwork, err, "queue: depth of %s", q.name)
	}
	return n, nil
}

// DLQDepth returns the number of job ids currently recorded in the DLQ.
func (q *Queue) DLQDepth(ctx context.Context) (int64, error) {
	n, err := q.rdb.SCard(ctx, q.dlqKey()).Result()
	if err != nil {
		return 0, domainerr.Wrap(domainerr.KindNetwork, err, "queue: dlq depth of %s", q.name)
	}
	return n, nil
}
