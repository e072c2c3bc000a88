package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	arbtest "github.com/oddsmith/arbiter/internal/testing"
	"github.com/oddsmith/arbiter/job"
	"github.com/oddsmith/arbiter/watch"
)

func noopCheckpoint(context.Context) error { return nil }

// fixedSource returns a canned quote per market.
type fixedSource map[string]float64

func (f fixedSource) Quote(_ context.Context, market string) (float64, error) {
	return f[market], nil
}

func seedMarket(t *testing.T, store *watch.Store, market string, price float64) {
	t.Helper()
	item, err := store.Add(market)
	require.NoError(t, err)
	require.NoError(t, store.Touch(item.ID, price))
}

func TestScannerRunsOverWatchlist(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	store := watch.NewStore(db)
	seedMarket(t, store, "ELECTION-YES", 0.50)
	seedMarket(t, store, "RATECUT-YES", 0.30)

	src := fixedSource{"ELECTION-YES": 0.56, "RATECUT-YES": 0.30}
	s := NewScanner(store, src, zap.NewNop().Sugar())

	require.NoError(t, s.Run(context.Background(), noopCheckpoint))
}

func TestScannerStopsAtCheckpoint(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	store := watch.NewStore(db)
	seedMarket(t, store, "A-YES", 0.5)
	seedMarket(t, store, "B-YES", 0.5)

	src := fixedSource{"A-YES": 0.5, "B-YES": 0.5}
	s := NewScanner(store, src, zap.NewNop().Sugar())

	err := s.Run(context.Background(), func(context.Context) error {
		return job.ErrCancelled
	})
	assert.ErrorIs(t, err, job.ErrCancelled)
}

func TestInvestorSkipsMidRangePrices(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	store := watch.NewStore(db)
	seedMarket(t, store, "LONGSHOT-YES", 0.05)
	seedMarket(t, store, "COINFLIP-YES", 0.50)

	inv := NewInvestor(store, 1000, zap.NewNop().Sugar())
	require.NoError(t, inv.Run(context.Background(), noopCheckpoint))
}

func TestInvestorHonoursCheckpoint(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	store := watch.NewStore(db)
	seedMarket(t, store, "LONGSHOT-YES", 0.05)

	inv := NewInvestor(store, 0, zap.NewNop().Sugar())
	err := inv.Run(context.Background(), func(context.Context) error {
		return job.ErrCancelled
	})
	assert.ErrorIs(t, err, job.ErrCancelled)
}

func TestEndoArbPairsComplements(t *testing.T) {
	db := arbtest.CreateTestDB(t)
	store := watch.NewStore(db)
	// Gap pair: sums to 1.08.
	seedMarket(t, store, "ELECTION-YES", 0.60)
	seedMarket(t, store, "ELECTION-NO", 0.48)
	// Clean pair: sums to 1.00.
	seedMarket(t, store, "RATECUT-YES", 0.30)
	seedMarket(t, store, "RATECUT-NO", 0.70)
	// Unpaired market is skipped.
	seedMarket(t, store, "ORPHAN-YES", 0.10)

	e := NewEndoArb(store, zap.NewNop().Sugar())
	require.NoError(t, e.Run(context.Background(), noopCheckpoint))
}

func TestSplitSide(t *testing.T) {
	base, side := splitSide("FOO-YES")
	assert.Equal(t, "FOO", base)
	assert.Equal(t, "YES", side)

	base, side = splitSide("FOO-NO")
	assert.Equal(t, "FOO", base)
	assert.Equal(t, "NO", side)

	_, side = splitSide("FOO")
	assert.Empty(t, side)
}
