package sync

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb)
}

func TestAcquireLock_FirstCallerWins(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	acquired, holder, err := c.AcquireLock(ctx, "task-a", time.Hour)
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Empty(t, holder)
}

func TestAcquireLock_SecondCallerDenied(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	_, _, err := c.AcquireLock(ctx, "task-a", time.Hour)
	require.NoError(t, err)

	acquired, holder, err := c.AcquireLock(ctx, "task-b", time.Hour)
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Equal(t, "task-a", holder)
}

func TestReleaseLock_OnlyOwnerCanRelease(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	_, _, err := c.AcquireLock(ctx, "task-a", time.Hour)
	require.NoError(t, err)

	released, err := c.ReleaseLock(ctx, "task-b")
	require.NoError(t, err)
	assert.False(t, released)

	released, err = c.ReleaseLock(ctx, "task-a")
	require.NoError(t, err)
	assert.True(t, released)

	acquired, _, err := c.AcquireLock(ctx, "task-c", time.Hour)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestCheckLock_ReportsCurrentHolder(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	locked, _, err := c.CheckLock(ctx)
	require.NoError(t, err)
	assert.False(t, locked)

	_, _, err = c.AcquireLock(ctx, "task-a", time.Hour)
	require.NoError(t, err)

	locked, holder, err := c.CheckLock(ctx)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Equal(t, "task-a", holder)
}

func TestStatusLifecycle(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, status.State)

	require.NoError(t, c.MarkStarted(ctx, "task-a"))
	status, err = c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateSyncingMaster, status.State)
	require.NotNil(t, status.StartedAt)

	require.NoError(t, c.MarkProcessingSuppliers(ctx, "task-a", 10))
	status, err = c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateProcessingSuppliers, status.State)
	assert.Equal(t, 10, status.ProgressTotal)
	require.NotNil(t, status.StartedAt)

	require.NoError(t, c.UpdateProgress(ctx, 5, 10))
	status, err = c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, status.ProgressCurrent)
	assert.Equal(t, 50, status.ProgressPercentage())

	require.NoError(t, c.MarkIdle(ctx))
	status, err = c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, status.State)
}

func TestRecordCompletionAndLastRunAt(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	lastRun, err := c.LastRunAt(ctx)
	require.NoError(t, err)
	assert.Empty(t, lastRun)

	require.NoError(t, c.RecordCompletion(ctx))
	lastRun, err = c.LastRunAt(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, lastRun)
}
