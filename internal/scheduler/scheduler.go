// Package scheduler implements PollingScheduler (C6): on each tick it
// fans out one poll per due whale, bounded to a worker budget, routing
// each through ProxyPool + RateLimitGovernor + a CircuitBreaker-wrapped
// ExchangePort, then feeds every outcome to SharingValidator and every
// resulting position snapshot to PositionDiffer.
//
// Run(ctx) is a single ticker loop that returns on <-ctx.Done(). Each tick
// fans out with golang.org/x/sync/errgroup and SetLimit for bounded
// concurrency and waits for the whole fan-out; a failed poll of one whale
// does not cancel the others.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"copytrader/internal/exchange"
	"copytrader/internal/models"
	"copytrader/internal/sharing"
	"copytrader/internal/signals"
	"copytrader/pkg/utils"
)

// PositionFetcher is the capability one poll tick exercises per whale:
// fetch the whale's current leaderboard positions (or a sharing/rate/
// network failure) via ProxyPool + RateLimitGovernor + CircuitBreaker-
// wrapped ExchangePort, kept as a seam so Scheduler never imports
// internal/exchange or internal/proxypool directly.
type PositionFetcher interface {
	FetchPositions(ctx context.Context, whale models.Whale) ([]signals.ObservedPosition, error)
}

// WhaleSource supplies the set of whales due for polling this tick and
// persists status/counter updates sharing.Evaluate produces.
type WhaleSource interface {
	DueForPolling(ctx context.Context) ([]models.Whale, error)
	ApplySharingResult(ctx context.Context, whaleID int, result sharing.CheckResult) error
}

// SignalSink receives every signal PositionDiffer derives from one tick.
type SignalSink interface {
	Emit(ctx context.Context, sig models.Signal) error
}

// Config tunes one Scheduler.
type Config struct {
	TickInterval   time.Duration
	MaxConcurrency int
}

// DefaultConfig is a reasonable starting point: poll every second (the
// interval EmptyChecksThreshold's wall-clock window assumes), bounded to
// 50 concurrent whale polls per tick.
func DefaultConfig() Config {
	return Config{TickInterval: time.Second, MaxConcurrency: 50}
}

// positionCache tracks each whale's last-seen position snapshot so Diff
// has something to compare against; keyed by whale ID. Guarded by its
// own mutex since pollOne runs concurrently across whales within a tick.
type positionCache struct {
	mu      sync.Mutex
	byWhale map[int][]signals.ObservedPosition
}

func (c *positionCache) swap(whaleID int, next []signals.ObservedPosition) []signals.ObservedPosition {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous := c.byWhale[whaleID]
	c.byWhale[whaleID] = next
	return previous
}

// Scheduler is the PollingScheduler component.
type Scheduler struct {
	cfg       Config
	fetcher   PositionFetcher
	whales    WhaleSource
	sink      SignalSink
	validator *sharing.Validator
	cache     positionCache
	logger    *utils.Logger
}

// New builds a Scheduler.
func New(cfg Config, fetcher PositionFetcher, whales WhaleSource, sink SignalSink) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		fetcher:   fetcher,
		whales:    whales,
		sink:      sink,
		validator: sharing.New(),
		cache:     positionCache{byWhale: make(map[int][]signals.ObservedPosition)},
		logger:    utils.GetGlobalLogger(),
	}
}

// Run ticks forever until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("scheduler: tick failed", utils.Err(err))
			}
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) error {
	whales, err := s.whales.DueForPolling(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)

	for _, whale := range whales {
		whale := whale
		g.Go(func() error {
			s.pollOne(gctx, whale)
			return nil // per-whale failures are logged, never abort the tick
		})
	}

	return g.Wait()
}

func (s *Scheduler) pollOne(ctx context.Context, whale models.Whale) {
	positions, fetchErr := s.fetcher.FetchPositions(ctx, whale)

	outcome := sharing.FetchOutcome{PositionCount: len(positions)}
	switch {
	case fetchErr == nil:
	case errors.Is(fetchErr, exchange.ErrSharingDisabled):
		outcome.SharingDenied = true
	case errors.Is(fetchErr, exchange.ErrRateLimited):
		outcome.RateLimited = true
	default:
		s.logger.Warn("scheduler: poll failed", utils.Component("scheduler"), utils.Err(fetchErr))
		return
	}

	result := s.validator.Evaluate(whale, outcome)
	if err := s.whales.ApplySharingResult(ctx, whale.ID, result); err != nil {
		s.logger.Error("scheduler: apply sharing result", utils.Err(err))
	}

	if fetchErr != nil {
		return
	}

	previous := s.cache.swap(whale.ID, positions)
	sigs := signals.Diff(whale.ID, previous, positions, time.Now())

	for _, sig := range sigs {
		if err := s.sink.Emit(ctx, sig); err != nil {
			s.logger.Error("scheduler: emit signal", utils.Err(err))
		}
	}
}
