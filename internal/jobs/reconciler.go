package jobs

import (
	"context"
	"time"

	"copytrader/internal/exchange"
	"copytrader/internal/models"
	"copytrader/pkg/utils"
)

// TradeRecoveryStore is the seam Reconciler depends on.
type TradeRecoveryStore interface {
	FindNeedsReconciliation(ctx context.Context) ([]models.Trade, error)
	MarkFilled(ctx context.Context, tradeID int, result *exchange.OrderResult) error
	MarkFailed(ctx context.Context, tradeID int, reason string) error
}

// PortResolver returns the ExchangePort a trade was placed through, so
// the reconciler can ask the exchange itself what happened to an order
// whose placement call never returned a clean answer. Keyed by the
// trade's own (user, exchange) pair since each follower authenticates
// with their own API credentials.
type PortResolver interface {
	PortFor(userID int, exchangeName string) (exchange.ExchangePort, bool)
}

// Reconciler resolves trades the executor left in NEEDS_RECONCILIATION
// (the adapter call's outcome was ambiguous — timeout, connection reset
// after submission) by asking the exchange for the order's true status,
// looked up by the trade's recorded ExchangeOrderID. ClientOrderID is not
// used for the lookup; a trade with no ExchangeOrderID is marked FAILED.
type Reconciler struct {
	store    TradeRecoveryStore
	ports    PortResolver
	interval time.Duration
	logger   *utils.Logger
}

// NewReconciler builds a Reconciler that sweeps every interval.
func NewReconciler(store TradeRecoveryStore, ports PortResolver, interval time.Duration) *Reconciler {
	return &Reconciler{
		store:    store,
		ports:    ports,
		interval: interval,
		logger:   utils.GetGlobalLogger().WithComponent("reconciler"),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	trades, err := r.store.FindNeedsReconciliation(ctx)
	if err != nil {
		r.logger.Error("reconciler: find trades", utils.Err(err))
		return
	}

	for _, trade := range trades {
		trade := trade
		r.resolveOne(ctx, trade)
	}
}

func (r *Reconciler) resolveOne(ctx context.Context, trade models.Trade) {
	port, ok := r.ports.PortFor(trade.UserID, trade.Exchange)
	if !ok {
		r.logger.Warn("reconciler: no port for exchange", utils.Component(trade.Exchange))
		return
	}

	if trade.ExchangeOrderID == "" {
		// Placement never reached the exchange (e.g. connection refused
		// before submission) — nothing to reconcile against, fail outright.
		if err := r.store.MarkFailed(ctx, trade.ID, "no exchange order id recorded, placement never confirmed"); err != nil {
			r.logger.Error("reconciler: mark failed", utils.Err(err))
		}
		return
	}

	result, err := port.GetOrder(ctx, trade.Symbol, trade.ExchangeOrderID)
	if err != nil || result == nil {
		r.logger.Warn("reconciler: get order failed, will retry next sweep", utils.Err(err))
		return
	}

	switch result.Status {
	case exchange.OrderResultFilled, exchange.OrderResultPartiallyFilled:
		if err := r.store.MarkFilled(ctx, trade.ID, result); err != nil {
			r.logger.Error("reconciler: mark filled", utils.Err(err))
		}
	case exchange.OrderResultRejected, exchange.OrderResultCancelled:
		if err := r.store.MarkFailed(ctx, trade.ID, "exchange reports order "+result.Status); err != nil {
			r.logger.Error("reconciler: mark failed", utils.Err(err))
		}
	}
}
