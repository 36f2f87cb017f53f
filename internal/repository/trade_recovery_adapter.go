package repository

import (
	"context"

	"copytrader/internal/exchange"
	"copytrader/internal/models"
)

// TradeRecoveryAdapter exposes TradeRepository through jobs.TradeRecoveryStore's
// unversioned MarkFilled/MarkFailed signatures: the reconciler only ever
// learns a trade's ID from FindNeedsReconciliation, not its version, so it
// looks the current version up here rather than carrying it around.
type TradeRecoveryAdapter struct {
	trades *TradeRepository
}

// NewTradeRecoveryAdapter wraps trades for jobs.Reconciler.
func NewTradeRecoveryAdapter(trades *TradeRepository) *TradeRecoveryAdapter {
	return &TradeRecoveryAdapter{trades: trades}
}

// FindNeedsReconciliation implements jobs.TradeRecoveryStore.
func (a *TradeRecoveryAdapter) FindNeedsReconciliation(ctx context.Context) ([]models.Trade, error) {
	return a.trades.FindNeedsReconciliation(ctx)
}

// MarkFilled implements jobs.TradeRecoveryStore.
func (a *TradeRecoveryAdapter) MarkFilled(ctx context.Context, tradeID int, result *exchange.OrderResult) error {
	trade, err := a.trades.GetByID(tradeID)
	if err != nil {
		return err
	}
	return a.trades.MarkFilled(ctx, tradeID, trade.Version, result)
}

// MarkFailed implements jobs.TradeRecoveryStore.
func (a *TradeRecoveryAdapter) MarkFailed(ctx context.Context, tradeID int, reason string) error {
	trade, err := a.trades.GetByID(tradeID)
	if err != nil {
		return err
	}
	return a.trades.MarkFailed(ctx, tradeID, trade.Version, reason)
}
