package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, "ingestion"), mr
}

func TestPushAndPop_RoundTrips(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Push(ctx, "parse_file", map[string]string{"file_url": "s3://bucket/a.xlsx"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	job, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, "parse_file", job.Kind)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, "s3://bucket/a.xlsx", payload["file_url"])
}

func TestPop_TimesOutWithNoJob(t *testing.T) {
	q, _ := newTestQueue(t)
	job, err := q.Pop(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestDepth_ReflectsQueuedJobs(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)

	_, err = q.Push(ctx, "parse_file", map[string]string{})
	require.NoError(t, err)
	_, err = q.Push(ctx, "parse_file", map[string]string{})
	require.NoError(t, err)

	depth, err = q.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, depth)
}

func TestMoveToDLQ_RecordsJobAndSetsTTL(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	job := Job{ID: "job-1", Kind: "parse_file", Tries: 4}
	require.NoError(t, q.MoveToDLQ(ctx, job, "exceeded max tries"))

	depth, err := q.DLQDepth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)

	ttl := mr.TTL(q.dlqKey())
	assert.InDelta(t, DLQRetention.Seconds(), ttl.Seconds(), 5)
}

func TestMoveToDLQ_RefreshesTTLOnSecondInsert(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.MoveToDLQ(ctx, Job{ID: "job-1"}, "first"))
	mr.FastForward(1 * time.Hour)
	require.NoError(t, q.MoveToDLQ(ctx, Job{ID: "job-2"}, "second"))

	ttl := mr.TTL(q.dlqKey())
	assert.InDelta(t, DLQRetention.Seconds(), ttl.Seconds(), 5)

	depth, err := q.DLQDepth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, depth)
}
