package watch

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/oddsmith/arbiter/config"
	"github.com/oddsmith/arbiter/job"
)

// PriceSource supplies the current quote for a market. The poller treats
// it as opaque; production deployments plug in a real feed client.
type PriceSource interface {
	Quote(ctx context.Context, market string) (float64, error)
}

// Poller is the watch-poll work unit: it walks the watchlist under a
// rate limiter, refreshing each item's last observed price. Individual
// quote failures are logged and skipped; the poll itself only fails when
// the watchlist cannot be read.
type Poller struct {
	store   *Store
	source  PriceSource
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// NewPoller creates a poller over the watchlist.
func NewPoller(store *Store, source PriceSource, cfg config.WatchConfig, log *zap.SugaredLogger) *Poller {
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Poller{
		store:   store,
		source:  source,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		logger:  log.Named("watch"),
	}
}

// Run is the job.WorkUnit for the watch-poll kind. It checkpoints before
// each item so cancellation is observed between quotes, never mid-write.
func (p *Poller) Run(ctx context.Context, cp job.Checkpoint) error {
	items, err := p.store.List()
	if err != nil {
		return err
	}

	p.logger.Infow("Watch poll started", "items", len(items))

	polled := 0
	for _, item := range items {
		if err := cp(ctx); err != nil {
			p.logger.Infow("Watch poll stopping", "polled", polled, "reason", err)
			return err
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		price, err := p.source.Quote(ctx, item.Market)
		if err != nil {
			p.logger.Warnw("Quote failed, skipping market",
				"market", item.Market, "error", err)
			continue
		}

		if err := p.store.Touch(item.ID, price); err != nil {
			p.logger.Warnw("Failed to record check",
				"market", item.Market, "error", err)
			continue
		}
		polled++
	}

	p.logger.Infow("Watch poll finished", "polled", polled, "total", len(items))
	return nil
}

// SyntheticSource is a deterministic stand-in price source used when no
// real feed is configured: a slow sine drift around a per-market base.
type SyntheticSource struct{}

// Quote derives a pseudo-price from the market name and the clock.
func (SyntheticSource) Quote(_ context.Context, market string) (float64, error) {
	h := fnv.New32a()
	h.Write([]byte(market))
	base := 1 + float64(h.Sum32()%10000)/100
	drift := math.Sin(float64(time.Now().Unix())/3600) * base * 0.02
	return base + drift, nil
}
