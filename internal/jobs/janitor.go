// Package jobs collects copytrader's long-running background loops: a
// janitor that recovers signals stuck in PROCESSING, a reconciler that
// resolves trades left in NEEDS_RECONCILIATION, and a proxy refresher
// that tops up the pool when healthy proxies run low.
//
// One ticker per responsibility, selected over in a single for/select
// loop; each tick does maintenance work that never blocks live trading.
package jobs

import (
	"context"
	"time"

	"copytrader/internal/models"
	"copytrader/pkg/utils"
)

// SignalRecoveryStore is the seam the Janitor depends on; concrete
// implementation lives in internal/repository.
type SignalRecoveryStore interface {
	FindStuckProcessing(ctx context.Context, olderThan time.Duration) ([]models.Signal, error)
	RequeueForRetry(ctx context.Context, signalID int) error
	MarkExpired(ctx context.Context, signalID int, reason string) error
}

// Janitor recovers signals abandoned mid-processing (worker crashed,
// process restarted) by requeueing them up to Signal.CanRetry()'s cap,
// expiring the rest.
type Janitor struct {
	store      SignalRecoveryStore
	interval   time.Duration
	stuckAfter time.Duration
	logger     *utils.Logger
}

// NewJanitor builds a Janitor that sweeps every interval for signals
// that have sat in PROCESSING longer than stuckAfter.
func NewJanitor(store SignalRecoveryStore, interval, stuckAfter time.Duration) *Janitor {
	return &Janitor{
		store:      store,
		interval:   interval,
		stuckAfter: stuckAfter,
		logger:     utils.GetGlobalLogger().WithComponent("janitor"),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	stuck, err := j.store.FindStuckProcessing(ctx, j.stuckAfter)
	if err != nil {
		j.logger.Error("janitor: find stuck signals", utils.Err(err))
		return
	}

	for _, sig := range stuck {
		sig := sig
		if sig.CanRetry() {
			if err := j.store.RequeueForRetry(ctx, sig.ID); err != nil {
				j.logger.Error("janitor: requeue signal", utils.Err(err))
			}
			continue
		}
		if err := j.store.MarkExpired(ctx, sig.ID, "exceeded retry budget while stuck in PROCESSING"); err != nil {
			j.logger.Error("janitor: expire signal", utils.Err(err))
		}
	}
}
