// Package signals implements PositionDiffer/SignalEmitter (C7): it
// compares a whale's current open-position snapshot against the previous
// one and emits a Signal for every observed open, close, or size change.
//
// On-chain swaps are not diffed here. FromSwap converts an onchain.Swap
// (sibling onchain package) into a Signal, but no component calls FromSwap
// or any onchain.SwapDetector.
package signals

import (
	"fmt"
	"time"

	"copytrader/internal/models"
	"copytrader/internal/signals/onchain"
)

// ObservedPosition is one open position as reported by an exchange poll,
// keyed by Symbol+Side (a whale can hold both a long and a short on the
// same symbol simultaneously on some exchanges).
type ObservedPosition struct {
	Symbol     string
	Side       string // LONG / SHORT
	Quantity   float64
	EntryPrice float64
	Revision   time.Time // exchange's last-update timestamp for this position, used as the dedup key's natural component
}

func positionKey(symbol, side string) string {
	return symbol + ":" + side
}

// Diff computes the signals implied by moving from previous to current.
// now is the detection timestamp stamped on every emitted signal.
func Diff(whaleID int, previous, current []ObservedPosition, now time.Time) []models.Signal {
	prevByKey := make(map[string]ObservedPosition, len(previous))
	for _, p := range previous {
		prevByKey[positionKey(p.Symbol, p.Side)] = p
	}
	currByKey := make(map[string]ObservedPosition, len(current))
	for _, p := range current {
		currByKey[positionKey(p.Symbol, p.Side)] = p
	}

	var out []models.Signal

	for key, curr := range currByKey {
		prev, existed := prevByKey[key]
		switch {
		case !existed:
			out = append(out, newSignal(whaleID, curr, curr.Quantity, false, now))
		case curr.Quantity > prev.Quantity:
			out = append(out, newSignal(whaleID, curr, curr.Quantity-prev.Quantity, false, now))
		case curr.Quantity < prev.Quantity:
			out = append(out, newSignal(whaleID, curr, prev.Quantity-curr.Quantity, true, now))
		}
		_ = key
	}

	for key, prev := range prevByKey {
		if _, stillOpen := currByKey[key]; !stillOpen {
			out = append(out, newSignal(whaleID, prev, prev.Quantity, true, now))
		}
	}

	return out
}

func newSignal(whaleID int, pos ObservedPosition, deltaQty float64, isClose bool, now time.Time) models.Signal {
	action := models.ActionBuy
	if isClose {
		action = models.ActionSell
	}
	if pos.Side == "SHORT" {
		// shorts invert buy/sell semantics: opening a short is a SELL action,
		// closing it is a BUY
		if isClose {
			action = models.ActionBuy
		} else {
			action = models.ActionSell
		}
	}

	tradeType := models.TradeTypeFuturesLong
	if pos.Side == "SHORT" {
		tradeType = models.TradeTypeFuturesShort
	}

	return models.Signal{
		WhaleID:        whaleID,
		Source:         models.SignalSourceWhalePoll,
		TxHash:         fmt.Sprintf("poll:%d:%s:%s:%d", whaleID, pos.Symbol, pos.Side, pos.Revision.UnixNano()),
		Action:         action,
		Side:           action,
		TradeType:      tradeType,
		Symbol:         pos.Symbol,
		EntryPriceHint: pos.EntryPrice,
		AmountUSD:      deltaQty * pos.EntryPrice,
		Confidence:     models.ConfidenceMedium,
		IsClose:        isClose,
		Status:         models.SignalStatusPending,
		Priority:       models.PriorityMedium,
		DetectedAt:     now,
	}
}

// FromSwap converts an on-chain swap observation into a Signal.
// PollingScheduler polls only CEX leaderboards and does not call it.
func FromSwap(whaleID int, swap onchain.Swap) models.Signal {
	action := models.ActionBuy
	if !swap.IsBuy {
		action = models.ActionSell
	}
	return models.Signal{
		WhaleID:        whaleID,
		Source:         models.SignalSourceOnchain,
		TxHash:         swap.TxHash,
		Action:         action,
		Side:           action,
		TradeType:      models.TradeTypeSpot,
		Symbol:         swap.TokenOutSymbol,
		AmountUSD:      swap.AmountUSD,
		Confidence:     models.ConfidenceLow,
		IsClose:        false,
		Status:         models.SignalStatusPending,
		Priority:       models.PriorityLow,
		DetectedAt:     swap.BlockTime,
	}
}
