package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cardforge/cardforge/internal/domain/market"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultInterval    = time.Minute
	DefaultBatchSize   = 100
	DefaultConcurrency = 4
	DefaultTimeout     = 30 * time.Second
)

type Listings interface {
	ExpiredIDs(ctx context.Context, limit int) ([]string, error)
	Expire(ctx context.Context, listingID string) (market.Outcome, error)
}

type Trades interface {
	ExpiredIDs(ctx context.Context, limit int) ([]string, error)
	Expire(ctx context.Context, tradeID string) (bool, error)
}

type Config struct {
	Interval    time.Duration
	BatchSize   int
	Concurrency int
	// Timeout bounds a single pass.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

type Report struct {
	ListingsSold    int64
	ListingsExpired int64
	ListingsUnpaid  int64
	TradesExpired   int64
	Skipped         int64
	Failed          int64
}

func (r Report) Total() int64 {
	return r.ListingsSold + r.ListingsExpired + r.ListingsUnpaid + r.TradesExpired
}

// Sweeper is the only component that acts on deadlines. Every item is handled
// in its own unit of work, so one failure does not hold back the others and
// a repeated pass finds nothing left to do.
type Sweeper struct {
	listings Listings
	trades   Trades
	cfg      Config
}

func New(listings Listings, trades Trades, cfg Config) *Sweeper {
	return &Sweeper{
		listings: listings,
		trades:   trades,
		cfg:      cfg.withDefaults(),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			passCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
			if _, err := s.SweepOnce(passCtx); err != nil {
				slog.Error("Sweep failed",
					slog.String("type", "sweep"),
					slog.Any("error", err))
			}
			cancel()
		}
	}
}

// SweepOnce processes one batch of expired listings and trades.
func (s *Sweeper) SweepOnce(ctx context.Context) (Report, error) {
	start := time.Now()
	var (
		r   Report
		sem = semaphore.NewWeighted(int64(s.cfg.Concurrency))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids, err := s.listings.ExpiredIDs(gctx, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		return s.each(gctx, sem, ids, func(ctx context.Context, id string) error {
			outcome, err := s.listings.Expire(ctx, id)
			if err != nil {
				return err
			}
			switch outcome {
			case market.OutcomeSold:
				atomic.AddInt64(&r.ListingsSold, 1)
			case market.OutcomeExpired:
				atomic.AddInt64(&r.ListingsExpired, 1)
			case market.OutcomeUnpaid:
				atomic.AddInt64(&r.ListingsUnpaid, 1)
			default:
				atomic.AddInt64(&r.Skipped, 1)
			}
			return nil
		}, &r.Failed)
	})
	g.Go(func() error {
		ids, err := s.trades.ExpiredIDs(gctx, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		return s.each(gctx, sem, ids, func(ctx context.Context, id string) error {
			expired, err := s.trades.Expire(ctx, id)
			if err != nil {
				return err
			}
			if expired {
				atomic.AddInt64(&r.TradesExpired, 1)
			} else {
				atomic.AddInt64(&r.Skipped, 1)
			}
			return nil
		}, &r.Failed)
	})
	if err := g.Wait(); err != nil {
		return r, fmt.Errorf("failed to sweep: %w", err)
	}

	if r.Total() > 0 || r.Failed > 0 {
		slog.Info("Sweep finished",
			slog.String("type", "sweep"),
			slog.Int64("sold", r.ListingsSold),
			slog.Int64("expired", r.ListingsExpired),
			slog.Int64("unpaid", r.ListingsUnpaid),
			slog.Int64("trades_expired", r.TradesExpired),
			slog.Int64("failed", r.Failed),
			slog.Duration("took", time.Since(start)))
	}
	return r, nil
}

// each runs fn for every id. Item errors are logged and counted; only a
// cancelled context stops the batch.
func (s *Sweeper) each(ctx context.Context, sem *semaphore.Weighted, ids []string, fn func(context.Context, string) error, failed *int64) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := fn(gctx, id); err != nil {
				atomic.AddInt64(failed, 1)
				slog.Error("Failed to sweep item",
					slog.String("type", "sweep"),
					slog.String("id", id),
					slog.Any("error", err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
