// Package executor implements CopyTradeExecutor (C9): it drains one
// user's SignalQueue entries and places the corresponding order through
// the user's ExchangePort, in a two-phase Reserve -> Place ->
// Confirm/Compensate sequence so a crash between phases leaves a
// recoverable, never a silently-lost, trade.
//
// No close/pause callbacks are injected; adapter calls retry on transient
// failure via pkg/retry.
package executor

import "copytrader/internal/models"

// ComputeSize applies follow.SizingStrategy to determine the notional
// (USDT) size of the copy trade, given the signal's own size (amount_usd)
// and the follower's available balance.
//
// Kelly sizing is implemented as half-Kelly per DESIGN.md Open Question 1:
//
//	f* = max(0, winRate - (1-winRate)/avgWinLossRatio) / 2
//
// reading whale.WinRate/whale.AvgWinLossRatio, maintained externally (the
// analytics job) and treated here as read-only inputs.
func ComputeSize(follow models.WhaleFollow, whale models.Whale, signalAmountUSD, availableBalance float64) float64 {
	switch follow.SizingStrategy {
	case models.SizingFixed:
		return clampToBalance(follow.CopyTradeSizeUSDT, availableBalance)

	case models.SizingPercent:
		size := availableBalance * follow.TradeSizePercent / 100
		return clampToBalance(size, availableBalance)

	case models.SizingKelly:
		kelly := halfKellyFraction(whale.WinRate, whale.AvgWinLossRatio)
		size := availableBalance * kelly
		return clampToBalance(size, availableBalance)

	default:
		return clampToBalance(follow.CopyTradeSizeUSDT, availableBalance)
	}
}

func halfKellyFraction(winRate, avgWinLossRatio float64) float64 {
	if avgWinLossRatio <= 0 {
		return 0
	}
	f := winRate - (1-winRate)/avgWinLossRatio
	if f < 0 {
		f = 0
	}
	return f / 2
}

func clampToBalance(size, balance float64) float64 {
	if size <= 0 {
		return 0
	}
	if size > balance {
		return balance
	}
	return size
}
