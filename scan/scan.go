// Package scan provides the work units behind the scan job kinds. The
// job controller treats these as opaque: it starts them, they checkpoint
// cooperatively, and their findings go to the log and the watchlist's
// price history rather than back to the trigger caller.
package scan

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/oddsmith/arbiter/job"
	"github.com/oddsmith/arbiter/watch"
)

// edgeThreshold is the minimum implied edge worth reporting, in percent.
const edgeThreshold = 2.0

// Scanner walks the watchlist looking for mispriced markets.
type Scanner struct {
	watchlist *watch.Store
	source    watch.PriceSource
	logger    *zap.SugaredLogger
}

// NewScanner creates the market scanner work unit.
func NewScanner(watchlist *watch.Store, source watch.PriceSource, log *zap.SugaredLogger) *Scanner {
	return &Scanner{watchlist: watchlist, source: source, logger: log.Named("scan")}
}

// Run is the job.WorkUnit for the scan kind. It compares each watched
// market's fresh quote against its last recorded price and reports
// moves beyond the edge threshold.
func (s *Scanner) Run(ctx context.Context, cp job.Checkpoint) error {
	items, err := s.watchlist.List()
	if err != nil {
		return err
	}

	s.logger.Infow("Market scan started", "markets", len(items))

	found := 0
	for _, item := range items {
		if err := cp(ctx); err != nil {
			return err
		}

		quote, err := s.source.Quote(ctx, item.Market)
		if err != nil {
			s.logger.Warnw("Quote failed during scan", "market", item.Market, "error", err)
			continue
		}

		if item.LastPrice == nil || *item.LastPrice == 0 {
			continue
		}

		movePct := (quote - *item.LastPrice) / *item.LastPrice * 100
		if math.Abs(movePct) >= edgeThreshold {
			found++
			s.logger.Infow("Price move detected",
				"market", item.Market,
				"last", *item.LastPrice,
				"quote", quote,
				"move_pct", movePct,
			)
		}
	}

	s.logger.Infow("Market scan finished", "markets", len(items), "moves", found)
	return nil
}
