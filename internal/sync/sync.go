// Package sync implements the master-sync coordinator: a global Redis lock
// plus a status record polled by the UI, grounded verbatim on
// original_source/services/python-ingestion/src/services/sync_state.py's
// acquire_sync_lock/release_sync_lock/get_sync_status functions.
package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Valecer/market-sub001/internal/domainerr"
	"github.com/redis/go-redis/v9"
)

const (
	lockKey          = "sync:lock"
	statusKey        = "sync:status"
	lastRunKey       = "sync:last_run"
	manualTriggerKey = "sync:manual_trigger"

	// DefaultLockTTL auto-expires the lock to prevent deadlocks if the
	// holder crashes mid-sync.
	DefaultLockTTL = 1 * time.Hour

	// manualTriggerTTL bounds how long a manual-sync request waits to be
	// picked up before it is considered stale and dropped.
	manualTriggerTTL = 10 * time.Minute
)

// State is a position in the idle -> syncing_master -> processing_suppliers
// -> idle cycle.
type State string

const (
	StateIdle                State = "idle"
	StateSyncingMaster       State = "syncing_master"
	StateProcessingSuppliers State = "processing_suppliers"
)

// Status is the UI-polled snapshot of the current sync run.
type Status struct {
	State           State      `json:"state"`
	TaskID          string     `json:"task_id,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	ProgressCurrent int        `json:"progress_current"`
	ProgressTotal   int        `json:"progress_total"`
}

// ProgressPercentage derives a 0-100 completion figure, 0 when no total is
// known yet.
func (s Status) ProgressPercentage() int {
	if s.ProgressTotal <= 0 {
		return 0
	}
	pct := s.ProgressCurrent * 100 / s.ProgressTotal
	if pct > 100 {
		pct = 100
	}
	return pct
}

// releaseScript atomically checks lock ownership before deleting it, so a
// task can never release a lock it doesn't hold.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end`

// Coordinator wraps the Redis-backed global sync lock and status record.
type Coordinator struct {
	rdb redis.UniversalClient
}

// New constructs a Coordinator.
func New(rdb redis.UniversalClient) *Coordinator {
	return &Coordinator{rdb: rdb}
}

// AcquireLock attempts to take the global sync lock for taskID via SET NX
// EX. When denied, it returns the current holder's task id.
func (c *Coordinator) AcquireLock(ctx context.Context, taskID string, ttl time.Duration) (acquired bool, holder string, err error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	ok, err := c.rdb.SetNX(ctx, lockKey, taskID, ttl).Result()
	if err != nil {
		return false, "", domainerr.Wrap(domainerr.KindNetwork, err, "sync: acquire lock for %s", taskID)
	}
	if ok {
		return true, "", nil
	}
	current, err := c.rdb.Get(ctx, lockKey).Result()
	if err != nil && err != redis.Nil {
		return false, "", domainerr.Wrap(domainerr.KindNetwork, err, "sync: read current lock holder")
	}
	return false, current, nil
}

// ReleaseLock releases the lock only if held by taskID, atomically.
func (c *Coordinator) ReleaseLock(ctx context.Context, taskID string) (released bool, err error) {
	result, err := c.rdb.Eval(ctx, releaseScript, []string{lockKey}, taskID).Result()
	if err != nil {
		return false, domainerr.Wrap(domainerr.KindNetwork, err, "sync: release lock for %s", taskID)
	}
	n, _ := result.(int64)
	return n > 0, nil
}

// CheckLock reports whether the lock is currently held, and by whom.
func (c *Coordinator) CheckLock(ctx context.Context) (locked bool, holder string, err error) {
	current, err := c.rdb.Get(ctx, lockKey).Result()
	if err == redis.Nil {
		return false, "", nil
	}
	if err != nil {
		return false, "", domainerr.Wrap(domainerr.KindNetwork, err, "sync: check lock")
	}
	return true, current, nil
}

// Status returns the current sync status, idle if none is stored.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	raw, err := c.rdb.Get(ctx, statusKey).Result()
	if err == redis.Nil {
		return Status{State: StateIdle}, nil
	}
	if err != nil {
		return Status{}, domainerr.Wrap(domainerr.KindNetwork, err, "sync: read status")
	}
	var s Status
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Status{State: StateIdle}, nil
	}
	return s, nil
}

func (c *Coordinator) setStatus(ctx context.Context, s Status) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return domainerr.Wrap(domainerr.KindValidation, err, "sync: marshal status")
	}
	if err := c.rdb.Set(ctx, statusKey, raw, 0).Err(); err != nil {
		return domainerr.Wrap(domainerr.KindNetwork, err, "sync: write status")
	}
	return nil
}

// MarkStarted transitions to syncing_master and stamps StartedAt.
func (c *Coordinator) MarkStarted(ctx context.Context, taskID string) error {
	now := time.Now().UTC()
	return c.setStatus(ctx, Status{State: StateSyncingMaster, TaskID: taskID, StartedAt: &now})
}

// MarkProcessingSuppliers transitions to processing_suppliers, preserving
// the run's original StartedAt and resetting progress counters.
func (c *Coordinator) MarkProcessingSuppliers(ctx context.Context, taskID string, total int) error {
	current, err := c.Status(ctx)
	if err != nil {
		return err
	}
	return c.setStatus(ctx, Status{
		State:           StateProcessingSuppliers,
		TaskID:          taskID,
		StartedAt:       current.StartedAt,
		ProgressTotal:   total,
		ProgressCurrent: 0,
	})
}

// UpdateProgress updates progress counters without changing state.
func (c *Coordinator) UpdateProgress(ctx context.Context, current, total int) error {
	status, err := c.Status(ctx)
	if err != nil {
		return err
	}
	status.ProgressCurrent = current
	status.ProgressTotal = total
	return c.setStatus(ctx, status)
}

// MarkIdle resets status to idle, for both normal completion and recovery
// from an aborted run.
func (c *Coordinator) MarkIdle(ctx context.Context) error {
	return c.setStatus(ctx, Status{State: StateIdle})
}

// RecordCompletion stamps sync:last_run with the current UTC time.
func (c *Coordinator) RecordCompletion(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if err := c.rdb.Set(ctx, lastRunKey, now, 0).Err(); err != nil {
		return domainerr.Wrap(domainerr.KindNetwork, err, "sync: record completion")
	}
	return nil
}

// LastRunAt returns the ISO-8601 timestamp of the last completed sync, or
// "" if none has ever completed.
func (c *Coordinator) LastRunAt(ctx context.Context) (string, error) {
	val, err := c.rdb.Get(ctx, lastRunKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", domainerr.Wrap(domainerr.KindNetwork, err, "sync: read last run")
	}
	return val, nil
}

// RequestManualSync sets a short-lived flag asking the next manual-sync poll
// to run a master sync ahead of its regular schedule.
func (c *Coordinator) RequestManualSync(ctx context.Context) error {
	if err := c.rdb.Set(ctx, manualTriggerKey, "1", manualTriggerTTL).Err(); err != nil {
		return domainerr.Wrap(domainerr.KindNetwork, err, "sync: request manual sync")
	}
	return nil
}

// ConsumeManualSyncTrigger atomically reads and clears the manual-sync flag,
// reporting whether one was pending.
func (c *Coordinator) ConsumeManualSyncTrigger(ctx context.Context) (bool, error) {
	n, err := c.rdb.Del(ctx, manualTriggerKey).Result()
	if err != nil {
		return false, domainerr.Wrap(domainerr.KindNetwork, err, "sync: consume manual sync trigger")
	}
	return n > 0, nil
}
