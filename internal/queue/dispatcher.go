package queue

// Dispatcher implements scheduler.SignalSink: it persists every newly
// observed Signal exactly once (a Signal is one whale action, shared by
// all its followers) and then fans it out into one QueuedSignal per
// AutoCopy follower, applying the enqueue eligibility pre-filter
// (cached-balance check) before each per-user insert, ahead of the
// priority scoring in queue.Score.

import (
	"context"
	"errors"

	"copytrader/internal/models"
	"copytrader/internal/repository"
	"copytrader/pkg/utils"
)

// SignalStore is the persistence seam for the single canonical Signal row.
type SignalStore interface {
	Create(s *models.Signal) error
}

// FollowerLookup resolves every follower subscribed to a whale.
type FollowerLookup interface {
	GetByWhaleID(whaleID int) ([]models.WhaleFollow, error)
}

// WhaleLookup resolves a whale by ID, needed for its Score at enqueue time.
type WhaleLookup interface {
	GetByID(id int) (*models.Whale, error)
}

// Dispatcher wires SignalStore + FollowerLookup + WhaleLookup + Queue into
// a single scheduler.SignalSink implementation.
type Dispatcher struct {
	signals       SignalStore
	follows       FollowerLookup
	whales        WhaleLookup
	queue         *Queue
	minBalanceUSD float64
	logger        *utils.Logger
}

// NewDispatcher builds a Dispatcher. minBalanceUSD is
// MIN_TRADING_BALANCE_USDT (internal/config Sizing.MinTradingBalanceUSDT).
func NewDispatcher(signals SignalStore, follows FollowerLookup, whales WhaleLookup, q *Queue, minBalanceUSD float64) *Dispatcher {
	return &Dispatcher{
		signals:       signals,
		follows:       follows,
		whales:        whales,
		queue:         q,
		minBalanceUSD: minBalanceUSD,
		logger:        utils.GetGlobalLogger().WithComponent("signal_dispatcher"),
	}
}

// Emit implements scheduler.SignalSink.
func (d *Dispatcher) Emit(ctx context.Context, sig models.Signal) error {
	if err := d.signals.Create(&sig); err != nil {
		if errors.Is(err, repository.ErrDuplicateSignal) {
			return nil
		}
		return err
	}

	followers, err := d.follows.GetByWhaleID(sig.WhaleID)
	if err != nil {
		return err
	}
	if len(followers) == 0 {
		return nil
	}

	whale, err := d.whales.GetByID(sig.WhaleID)
	if err != nil {
		return err
	}

	for _, follow := range followers {
		if !follow.AutoCopy {
			continue
		}

		eligible, _, err := d.queue.CheckBalanceCached(follow.UserID, d.minBalanceUSD)
		if err != nil {
			d.logger.Warn("balance cache check failed, enqueuing anyway", utils.Int("user_id", follow.UserID), utils.Err(err))
		} else if !eligible {
			d.logger.Debug("dropping signal: insufficient_balance_cached", utils.Int("user_id", follow.UserID), utils.Int("signal_id", sig.ID))
			continue
		}

		if _, err := d.queue.Enqueue(ctx, sig, *whale, follow.UserID); err != nil {
			d.logger.Error("enqueue failed", utils.Int("user_id", follow.UserID), utils.Int("signal_id", sig.ID), utils.Err(err))
		}
	}
	return nil
}
