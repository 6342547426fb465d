package queue

import (
	"context"
	"sync"
	"time"

	"github.com/Valecer/market-sub001/internal/logging"
)

// ScheduledTask is one periodic unit of work run by the Scheduler. Name
// identifies the task in logs; Run is invoked with a fresh context each
// tick.
type ScheduledTask struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler runs the periodic tasks registered with Every on independent
// tickers. cmd/ingestionworker registers five, taken from the cron_jobs list
// of worker.py's WorkerSettings: a periodic file cleanup sweep, a daily
// review-queue expirer, a queue-depth monitor, the master sync and a
// manual-sync-trigger poller. No ETL-job-status or retry-trigger poller is
// registered.
type Scheduler struct {
	tasks []scheduledEntry
}

type scheduledEntry struct {
	task     ScheduledTask
	interval time.Duration
}

// NewScheduler constructs an empty Scheduler; call Every to add tasks.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Every registers task to run on a fixed interval. The first run happens
// after the first tick, not immediately, matching a ticker-driven cron
// simulation rather than at-startup execution.
func (s *Scheduler) Every(interval time.Duration, task ScheduledTask) *Scheduler {
	s.tasks = append(s.tasks, scheduledEntry{task: task, interval: interval})
	return s
}

// Run starts every registered task on its own goroutine and blocks until
// ctx is cancelled, then waits for in-flight ticks to finish.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, entry := range s.tasks {
		wg.Add(1)
		go func(entry scheduledEntry) {
			defer wg.Done()
			s.runLoop(ctx, entry)
		}(entry)
	}
	wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, entry scheduledEntry) {
	log := logging.Get(logging.CategoryQueue)
	ticker := time.NewTicker(entry.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			timer := logging.StartTimer(logging.CategoryQueue, "scheduled:"+entry.task.Name)
			if err := entry.task.Run(ctx); err != nil {
				log.Error("queue: scheduled task %s failed: %v", entry.task.Name, err)
			}
			timer.Stop()
		}
	}
}

// Standard scheduling intervals, grounded on worker.py's cron_jobs list.
// The original expresses some of these as fixed-minute crontab entries
// (e.g. minute={0,5,10,...,55} for the queue-depth monitor); a Go ticker
// cannot reproduce wall-clock-aligned minute marks without an explicit
// wait-until-boundary step, so these constants preserve the original's
// *period* rather than its exact alignment to clock minutes.
const (
	QueueDepthMonitorInterval = 5 * time.Minute
	ReviewQueueExpiryInterval = 24 * time.Hour
	ETLJobStatusPollInterval  = 10 * time.Second
	ManualSyncTriggerInterval = 1 * time.Minute
	ParseTriggerPollInterval  = 10 * time.Second
	FileCleanupInterval       = 6 * time.Hour
	RetryTriggerPollInterval  = 10 * time.Second
)

// MasterSyncInterval derives the master-sync scheduler's period from
// SYNC_INTERVAL_HOURS.
func MasterSyncInterval(syncIntervalHours int) time.Duration {
	if syncIntervalHours <= 0 {
		syncIntervalHours = 24
	}
	return time.Duration(syncIntervalHours) * time.Hour
}
