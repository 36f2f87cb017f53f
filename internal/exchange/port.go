package exchange

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors an ExchangePort.GetLeaderboardPositions implementation
// may return; SharingValidator (internal/sharing) branches on these.
var (
	ErrSharingDisabled = errors.New("exchange: leaderboard sharing disabled")
	ErrRateLimited     = errors.New("exchange: rate limited")
	ErrNetwork         = errors.New("exchange: network error")
)

// OrderResult is the normalized outcome of any order placement or
// cancellation call, regardless of which exchange placed it.
type OrderResult struct {
	OrderID      string
	Status       string // FILLED, PARTIALLY_FILLED, REJECTED, CANCELLED
	FilledQty    float64
	AvgFillPrice float64
	TotalCost    float64
	FeeAmount    float64
	FeeCurrency  string
}

const (
	OrderResultFilled          = "FILLED"
	OrderResultPartiallyFilled = "PARTIALLY_FILLED"
	OrderResultRejected        = "REJECTED"
	OrderResultCancelled       = "CANCELLED"
)

// LeaderboardPosition is one open position as reported by an exchange's
// public leaderboard/copy-trading endpoint for a given trader UID.
type LeaderboardPosition struct {
	Symbol     string
	Side       string // long / short
	Size       float64
	EntryPrice float64
	Leverage   int
	MarkPrice  float64
	UpdatedAt  time.Time
}

// ExchangePort (C3) is the normalized contract CopyTradeExecutor and
// PollingScheduler depend on, covering copy-trading's three operation
// families: orders, account, and leaderboard observation.
// Embeds Exchange so adapters keep their existing spot/WS methods.
type ExchangePort interface {
	Exchange

	// SetLeverage sets leverage for symbol before opening a futures position.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// FuturesMarketLong/Short open a futures position at market, sized in
	// base-asset quantity, at the leverage last set via SetLeverage.
	FuturesMarketLong(ctx context.Context, symbol string, qty float64) (*OrderResult, error)
	FuturesMarketShort(ctx context.Context, symbol string, qty float64) (*OrderResult, error)

	// CloseFuturesPosition closes qty of the open position on side (long/short).
	// Only the OKX adapter accepts qty <= 0, closing the entire remaining
	// position; the Binance, Bybit and Bitget adapters return an error for it.
	CloseFuturesPosition(ctx context.Context, symbol, side string, qty float64) (*OrderResult, error)

	// GetOrder fetches the current normalized state of a previously placed order.
	GetOrder(ctx context.Context, symbol, orderID string) (*OrderResult, error)

	// CancelOrder cancels a resting order; a no-op error if already filled.
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// GetOpenOrders lists resting (non-terminal) orders for symbol.
	GetOpenOrders(ctx context.Context, symbol string) ([]OrderResult, error)

	// GetLeaderboardPositions returns exchangeUID's current open positions,
	// or ErrSharingDisabled/ErrRateLimited/ErrNetwork.
	GetLeaderboardPositions(ctx context.Context, exchangeUID string) ([]LeaderboardPosition, error)
}
