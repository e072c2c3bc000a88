package job

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oddsmith/arbiter/config"
	"github.com/oddsmith/arbiter/errors"
)

// tickInterval is how often the scheduler wakes to check due kinds.
const tickInterval = 15 * time.Second

// cleanupEvery is how often old terminal records are pruned.
const cleanupEvery = 24 * time.Hour

// Ticker manages scheduled triggering of job kinds. Each kind has a
// configured interval; a kind whose interval has elapsed since its last
// attempt is triggered with source scheduled. An active job of the kind
// simply means the schedule fires next time.
type Ticker struct {
	controller *Controller
	logger     *zap.SugaredLogger
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	mu           sync.Mutex
	intervals    map[Kind]time.Duration
	lastAttempt  map[Kind]time.Time
	cleanupAfter time.Duration
	lastCleanup  time.Time
}

// NewTicker creates a scheduler over the controller. Intervals come from
// the jobs config; zero disables a kind's schedule.
func NewTicker(parentCtx context.Context, controller *Controller, cfg config.JobsConfig, log *zap.SugaredLogger) *Ticker {
	ctx, cancel := context.WithCancel(parentCtx)

	t := &Ticker{
		controller:  controller,
		logger:      log.Named("scheduler"),
		ctx:         ctx,
		cancel:      cancel,
		intervals:   intervalsFromConfig(cfg),
		lastAttempt: make(map[Kind]time.Time),
	}
	t.cleanupAfter = time.Duration(cfg.CleanupAfterDays) * 24 * time.Hour
	return t
}

func intervalsFromConfig(cfg config.JobsConfig) map[Kind]time.Duration {
	minutes := map[Kind]int{
		KindScan:           cfg.ScanIntervalMinutes,
		KindInvestmentScan: cfg.InvestmentIntervalMinutes,
		KindEndoArbScan:    cfg.EndoArbIntervalMinutes,
		KindWatchPoll:      cfg.WatchPollIntervalMinutes,
	}
	out := make(map[Kind]time.Duration, len(minutes))
	for kind, m := range minutes {
		if m > 0 {
			out[kind] = time.Duration(m) * time.Minute
		}
	}
	return out
}

// UpdateConfig swaps in new schedule intervals (config hot reload).
func (t *Ticker) UpdateConfig(cfg config.JobsConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.intervals = intervalsFromConfig(cfg)
	t.cleanupAfter = time.Duration(cfg.CleanupAfterDays) * 24 * time.Hour
	t.logger.Infow("Scheduler intervals updated", "kinds", len(t.intervals))
}

// Start begins the scheduler loop. Each kind first fires one full
// interval after start; the startup watch poll is triggered separately
// by the daemon with source startup.
func (t *Ticker) Start() {
	now := time.Now()
	t.mu.Lock()
	for kind := range t.intervals {
		t.lastAttempt[kind] = now
	}
	t.lastCleanup = now
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run()
	t.logger.Infow("Scheduler started", "tick", tickInterval)
}

// Stop gracefully stops the scheduler.
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.logger.Infow("Scheduler stopped")
}

func (t *Ticker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.tick(time.Now())
		}
	}
}

// tick triggers every kind whose interval has elapsed, then runs the
// daily cleanup when due.
func (t *Ticker) tick(now time.Time) {
	t.mu.Lock()
	due := make([]Kind, 0, len(t.intervals))
	for kind, interval := range t.intervals {
		last, seen := t.lastAttempt[kind]
		if !seen || now.Sub(last) >= interval {
			due = append(due, kind)
			t.lastAttempt[kind] = now
		}
	}
	cleanupAfter := t.cleanupAfter
	runCleanup := cleanupAfter > 0 && now.Sub(t.lastCleanup) >= cleanupEvery
	if runCleanup {
		t.lastCleanup = now
	}
	t.mu.Unlock()

	for _, kind := range due {
		id, err := t.controller.Trigger(t.ctx, kind, SourceScheduled)
		switch {
		case err == nil:
			t.logger.Infow("Scheduled job triggered", "kind", kind, "job_id", id)
		case errors.IsConflictError(err):
			t.logger.Debugw("Scheduled trigger skipped, job already active", "kind", kind)
		default:
			t.logger.Warnw("Scheduled trigger failed", "kind", kind, "error", err)
		}
	}

	if runCleanup {
		removed, err := t.controller.Store().CleanupOld(cleanupAfter)
		if err != nil {
			t.logger.Warnw("Job record cleanup failed", "error", err)
		} else if removed > 0 {
			t.logger.Infow("Pruned old job records", "removed", removed)
		}
	}
}
