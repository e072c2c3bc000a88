package scan

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/oddsmith/arbiter/job"
	"github.com/oddsmith/arbiter/watch"
)

// arbThreshold is the minimum complement gap worth reporting: a YES/NO
// pair whose prices sum further than this from 1.0 implies an internal
// arbitrage on the venue.
const arbThreshold = 0.03

// EndoArb is the work unit behind the endo-arb-scan kind. It pairs
// watched markets that are complements of each other (FOO-YES against
// FOO-NO) and flags pairs whose persisted prices do not sum to one.
type EndoArb struct {
	watchlist *watch.Store
	logger    *zap.SugaredLogger
}

// NewEndoArb creates the endogenous-arbitrage scanner work unit.
func NewEndoArb(watchlist *watch.Store, log *zap.SugaredLogger) *EndoArb {
	return &EndoArb{watchlist: watchlist, logger: log.Named("endo-arb-scan")}
}

// Run is the job.WorkUnit for the endo-arb-scan kind.
func (e *EndoArb) Run(ctx context.Context, cp job.Checkpoint) error {
	items, err := e.watchlist.List()
	if err != nil {
		return err
	}

	e.logger.Infow("Endo-arb scan started", "markets", len(items))

	prices := make(map[string]float64, len(items))
	for _, item := range items {
		if item.LastPrice != nil {
			prices[item.Market] = *item.LastPrice
		}
	}

	found := 0
	seen := make(map[string]bool)
	for _, item := range items {
		if err := cp(ctx); err != nil {
			return err
		}

		base, side := splitSide(item.Market)
		if side == "" || seen[base] {
			continue
		}
		seen[base] = true

		yes, okYes := prices[base+"-YES"]
		no, okNo := prices[base+"-NO"]
		if !okYes || !okNo {
			continue
		}

		gap := yes + no - 1.0
		if gap <= -arbThreshold || gap >= arbThreshold {
			found++
			e.logger.Infow("Complement gap detected",
				"market", base,
				"yes", yes,
				"no", no,
				"gap", gap,
			)
		}
	}

	e.logger.Infow("Endo-arb scan finished", "pairs", len(seen), "gaps", found)
	return nil
}

// splitSide decomposes FOO-YES / FOO-NO into (FOO, side). Markets
// without a side suffix return an empty side and are skipped.
func splitSide(market string) (base, side string) {
	switch {
	case strings.HasSuffix(market, "-YES"):
		return strings.TrimSuffix(market, "-YES"), "YES"
	case strings.HasSuffix(market, "-NO"):
		return strings.TrimSuffix(market, "-NO"), "NO"
	default:
		return market, ""
	}
}
