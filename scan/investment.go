package scan

import (
	"context"

	"go.uber.org/zap"

	"github.com/oddsmith/arbiter/job"
	"github.com/oddsmith/arbiter/watch"
)

// positionThreshold marks a quote as a candidate entry. Prices are
// probabilities in [0,1]; very cheap or very rich contracts are where
// the sizing model has opinions.
const (
	cheapSide = 0.15
	richSide  = 0.85
)

// Investor is the work unit behind the investment-scan kind. It sizes
// candidate positions across the watchlist. Unlike the market scanner
// it reads only persisted prices and does not hit the price source, so
// it is safe to run concurrently with the watch poller.
type Investor struct {
	watchlist *watch.Store
	bankroll  float64
	logger    *zap.SugaredLogger
}

// NewInvestor creates the investment scanner with a fixed notional
// bankroll used for Kelly-fraction sizing.
func NewInvestor(watchlist *watch.Store, bankroll float64, log *zap.SugaredLogger) *Investor {
	if bankroll <= 0 {
		bankroll = 1000
	}
	return &Investor{watchlist: watchlist, bankroll: bankroll, logger: log.Named("investment-scan")}
}

// Run is the job.WorkUnit for the investment-scan kind.
func (inv *Investor) Run(ctx context.Context, cp job.Checkpoint) error {
	items, err := inv.watchlist.List()
	if err != nil {
		return err
	}

	inv.logger.Infow("Investment scan started", "markets", len(items))

	candidates := 0
	for _, item := range items {
		if err := cp(ctx); err != nil {
			return err
		}

		if item.LastPrice == nil {
			continue
		}
		price := *item.LastPrice
		if price > cheapSide && price < richSide {
			continue
		}

		// Quarter-Kelly on the distance from the nearer bound.
		edge := price
		if price >= richSide {
			edge = 1 - price
		}
		stake := inv.bankroll * edge * 0.25

		candidates++
		inv.logger.Infow("Position candidate",
			"market", item.Market,
			"price", price,
			"stake", stake,
		)
	}

	inv.logger.Infow("Investment scan finished", "markets", len(items), "candidates", candidates)
	return nil
}
