package exchange

import (
	"fmt"
	"strings"
)

// CopyTradeExchanges lists the exchanges with an ExchangePort adapter
// (orders, account, and leaderboard observation) usable as copy-trading
// sources or targets. The Binance adapter's leaderboard observation is not
// implemented and always returns ErrNetwork.
var CopyTradeExchanges = []string{"binance", "bybit", "bitget", "okx"}

// NewExchangePort builds the ExchangePort adapter for one of
// CopyTradeExchanges for use by PollingScheduler and CopyTradeExecutor.
// The adapter is returned unconnected; the caller calls Connect.
func NewExchangePort(name string) (ExchangePort, error) {
	name = strings.ToLower(name)
	switch name {
	case "binance":
		return NewBinance(), nil
	case "bybit":
		return NewBybit(), nil
	case "bitget":
		return NewBitget(), nil
	case "okx":
		return NewOKX(), nil
	default:
		return nil, fmt.Errorf("exchange %q has no ExchangePort adapter (copy-trading supports: %v)", name, CopyTradeExchanges)
	}
}
