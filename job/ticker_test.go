package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oddsmith/arbiter/config"
)

func TestIntervalsFromConfig(t *testing.T) {
	cfg := config.JobsConfig{
		ScanIntervalMinutes:      60,
		WatchPollIntervalMinutes: 15,
		// investment and endo-arb left at 0: disabled
	}
	got := intervalsFromConfig(cfg)
	assert.Equal(t, 60*time.Minute, got[KindScan])
	assert.Equal(t, 15*time.Minute, got[KindWatchPoll])
	assert.NotContains(t, got, KindInvestmentScan)
	assert.NotContains(t, got, KindEndoArbScan)
}

func TestTickTriggersDueKinds(t *testing.T) {
	c := newTestController(t)
	done := make(chan struct{})
	c.Register(KindScan, func(ctx context.Context, cp Checkpoint) error {
		close(done)
		return nil
	})

	cfg := config.JobsConfig{ScanIntervalMinutes: 1}
	ticker := NewTicker(context.Background(), c, cfg, zap.NewNop().Sugar())

	// Last attempt one interval ago: scan is due
	ticker.mu.Lock()
	ticker.lastAttempt[KindScan] = time.Now().Add(-2 * time.Minute)
	ticker.mu.Unlock()

	ticker.tick(time.Now())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled trigger never ran the work unit")
	}

	recs, err := c.Store().List(nil, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, SourceScheduled, recs[0].TriggerSource)
}

func TestTickSkipsNotDueKinds(t *testing.T) {
	c := newTestController(t)
	c.Register(KindScan, func(ctx context.Context, cp Checkpoint) error { return nil })

	cfg := config.JobsConfig{ScanIntervalMinutes: 60}
	ticker := NewTicker(context.Background(), c, cfg, zap.NewNop().Sugar())

	ticker.mu.Lock()
	ticker.lastAttempt[KindScan] = time.Now() // just attempted
	ticker.mu.Unlock()

	ticker.tick(time.Now())
	c.Wait()

	recs, err := c.Store().List(nil, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestTickToleratesActiveJob(t *testing.T) {
	c := newTestController(t)
	unit := newBlockingUnit()
	c.Register(KindScan, unit.run)

	// A manual job is already live
	id, err := c.Trigger(context.Background(), KindScan, SourceManual)
	require.NoError(t, err)

	cfg := config.JobsConfig{ScanIntervalMinutes: 1}
	ticker := NewTicker(context.Background(), c, cfg, zap.NewNop().Sugar())
	ticker.mu.Lock()
	ticker.lastAttempt[KindScan] = time.Now().Add(-2 * time.Minute)
	ticker.mu.Unlock()

	// The conflict is swallowed; no second record appears
	ticker.tick(time.Now())

	recs, err := c.Store().List(nil, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, id, recs[0].ID)

	close(unit.release)
}

func TestUpdateConfigSwapsIntervals(t *testing.T) {
	c := newTestController(t)
	ticker := NewTicker(context.Background(), c,
		config.JobsConfig{ScanIntervalMinutes: 60}, zap.NewNop().Sugar())

	ticker.UpdateConfig(config.JobsConfig{EndoArbIntervalMinutes: 5})

	ticker.mu.Lock()
	defer ticker.mu.Unlock()
	assert.NotContains(t, ticker.intervals, KindScan)
	assert.Equal(t, 5*time.Minute, ticker.intervals[KindEndoArbScan])
}

func TestTickRunsCleanupWhenDue(t *testing.T) {
	c := newTestController(t)
	store := c.Store()

	old, _ := store.Create(KindScan, SourceManual)
	require.NoError(t, store.Transition(old.ID, StatusCompleted))
	_, err := store.db.Exec("UPDATE jobs SET updated_at = ? WHERE id = ?",
		time.Now().UTC().Add(-72*time.Hour), old.ID)
	require.NoError(t, err)

	ticker := NewTicker(context.Background(), c,
		config.JobsConfig{CleanupAfterDays: 1}, zap.NewNop().Sugar())
	ticker.mu.Lock()
	ticker.lastCleanup = time.Now().Add(-25 * time.Hour)
	ticker.mu.Unlock()

	ticker.tick(time.Now())

	recs, err := store.List(nil, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
