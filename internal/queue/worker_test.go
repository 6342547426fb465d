package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestWorkerQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, "ingestion")
}

func TestWorker_DispatchesToRegisteredHandler(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := newTestWorkerQueue(t)
	w := NewWorker(q, 2, time.Second)

	var processed int32
	done := make(chan struct{})
	w.Register("parse_file", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		close(done)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go w.Run(ctx)

	_, err := q.Push(context.Background(), "parse_file", map[string]string{})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
	cancel()
	assert.EqualValues(t, 1, atomic.LoadInt32(&processed))
}

func TestWorker_RetriesThenMovesToDLQAfterMaxTries(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := newTestWorkerQueue(t)
	w := NewWorker(q, 1, time.Second).WithRetryPolicy(RetryPolicy{
		MaxTries:       2,
		InitialBackoff: 5 * time.Millisecond,
		Multiplier:     1,
		MaxBackoff:     5 * time.Millisecond,
	})

	var attempts int32
	w.Register("parse_file", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go w.Run(ctx)

	_, err := q.Push(context.Background(), "parse_file", map[string]string{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		depth, err := q.DLQDepth(context.Background())
		return err == nil && depth == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&attempts)), 3)
}

func TestWorker_UnknownKindGoesStraightToRetryFlow(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := newTestWorkerQueue(t)
	w := NewWorker(q, 1, time.Second).WithRetryPolicy(RetryPolicy{
		MaxTries:       1,
		InitialBackoff: 5 * time.Millisecond,
		Multiplier:     1,
		MaxBackoff:     5 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go w.Run(ctx)

	_, err := q.Push(context.Background(), "no_such_handler", map[string]string{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		depth, err := q.DLQDepth(context.Background())
		return err == nil && depth == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
}
