package watch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oddsmith/arbiter/config"
	"github.com/oddsmith/arbiter/job"
	arbtest "github.com/oddsmith/arbiter/internal/testing"
)

func TestAddAndList(t *testing.T) {
	store := NewStore(arbtest.CreateTestDB(t))

	item, err := store.Add("epl/arsenal-chelsea/over-2.5")
	require.NoError(t, err)
	assert.Contains(t, item.ID, "wch_")
	assert.Nil(t, item.LastCheckedAt)

	items, err := store.List()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "epl/arsenal-chelsea/over-2.5", items[0].Market)
}

func TestAddEmptyMarketRejected(t *testing.T) {
	store := NewStore(arbtest.CreateTestDB(t))
	_, err := store.Add("")
	require.Error(t, err)
}

func TestAddDuplicateMarketFails(t *testing.T) {
	store := NewStore(arbtest.CreateTestDB(t))
	_, err := store.Add("nba/lakers-celtics/ml")
	require.NoError(t, err)
	_, err = store.Add("nba/lakers-celtics/ml")
	require.Error(t, err)
}

func TestTouchUpdatesCheckState(t *testing.T) {
	store := NewStore(arbtest.CreateTestDB(t))
	item, err := store.Add("tennis/sinner-alcaraz/set-1")
	require.NoError(t, err)

	require.NoError(t, store.Touch(item.ID, 1.87))

	items, err := store.List()
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].LastCheckedAt)
	require.NotNil(t, items[0].LastPrice)
	assert.InDelta(t, 1.87, *items[0].LastPrice, 0.001)
}

func TestListOrdersStalestFirst(t *testing.T) {
	store := NewStore(arbtest.CreateTestDB(t))
	a, _ := store.Add("market-a")
	b, _ := store.Add("market-b")
	require.NoError(t, store.Touch(a.ID, 2.0))

	items, err := store.List()
	require.NoError(t, err)
	require.Len(t, items, 2)
	// Never-checked item comes first
	assert.Equal(t, b.ID, items[0].ID)
}

func TestDeleteAllPurgesWatchlistOnly(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	store := NewStore(db)
	jobs := job.NewStore(db)

	_, err := store.Add("market-a")
	require.NoError(t, err)
	_, err = store.Add("market-b")
	require.NoError(t, err)
	rec, err := jobs.Create(job.KindWatchPoll, job.SourceManual)
	require.NoError(t, err)

	removed, err := store.DeleteAll()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	n, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	// Job records are untouched by the purge
	_, err = jobs.Get(rec.ID)
	assert.NoError(t, err)
}

func TestPollerTouchesEveryItem(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	store := NewStore(db)
	_, err := store.Add("market-a")
	require.NoError(t, err)
	_, err = store.Add("market-b")
	require.NoError(t, err)

	poller := NewPoller(store, SyntheticSource{},
		config.WatchConfig{RequestsPerMinute: 6000, Burst: 10}, zap.NewNop().Sugar())

	cp := func(ctx context.Context) error { return nil }
	require.NoError(t, poller.Run(context.Background(), cp))

	items, err := store.List()
	require.NoError(t, err)
	for _, item := range items {
		assert.NotNil(t, item.LastCheckedAt, "item %s was not polled", item.Market)
	}
}

func TestPollerStopsAtCancelledCheckpoint(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	store := NewStore(db)
	for _, m := range []string{"m1", "m2", "m3"} {
		_, err := store.Add(m)
		require.NoError(t, err)
	}

	poller := NewPoller(store, SyntheticSource{},
		config.WatchConfig{RequestsPerMinute: 6000, Burst: 10}, zap.NewNop().Sugar())

	calls := 0
	cp := func(ctx context.Context) error {
		calls++
		if calls > 1 {
			return job.ErrCancelled
		}
		return nil
	}

	err := poller.Run(context.Background(), cp)
	require.Error(t, err)
	assert.ErrorIs(t, err, job.ErrCancelled)

	// Only the first item was polled before the cancel was observed
	items, _ := store.List()
	checked := 0
	for _, item := range items {
		if item.LastCheckedAt != nil {
			checked++
		}
	}
	assert.Equal(t, 1, checked)
}

func TestSyntheticSourceIsStablePerMarket(t *testing.T) {
	src := SyntheticSource{}
	p1, err := src.Quote(context.Background(), "market-a")
	require.NoError(t, err)
	p2, err := src.Quote(context.Background(), "market-a")
	require.NoError(t, err)
	assert.InDelta(t, p1, p2, p1*0.05)
	assert.Greater(t, p1, 0.0)
}
