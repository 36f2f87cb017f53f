package exchange

import (
	"context"

	"copytrader/internal/circuitbreaker"
)

// BreakerPort wraps an ExchangePort so the methods defined below
// (GetBalance, GetTicker, PlaceMarketOrder, SetLeverage, FuturesMarketLong,
// FuturesMarketShort, CloseFuturesPosition, GetOrder, GetLeaderboardPositions)
// go through a per-exchange circuitbreaker.Breaker first. The other
// ExchangePort methods, among them CancelOrder, GetOpenOrders,
// GetOpenPositions and ClosePosition, are promoted from the embedded port
// and bypass the breaker. One BreakerPort per exchange name, drawn from a shared
// circuitbreaker.Registry so all adapters for a given process share
// failure-threshold tuning.
type BreakerPort struct {
	ExchangePort
	breaker *circuitbreaker.Breaker
}

// WithBreaker returns port decorated so that every method below routes
// through breaker.Execute, failing fast with circuitbreaker.ErrOpen
// instead of calling the underlying exchange while OPEN.
func WithBreaker(port ExchangePort, breaker *circuitbreaker.Breaker) *BreakerPort {
	return &BreakerPort{ExchangePort: port, breaker: breaker}
}

func (b *BreakerPort) GetBalance(ctx context.Context) (float64, error) {
	var out float64
	err := b.breaker.Execute(func() error {
		v, err := b.ExchangePort.GetBalance(ctx)
		out = v
		return err
	})
	return out, err
}

func (b *BreakerPort) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	var out *Ticker
	err := b.breaker.Execute(func() error {
		v, err := b.ExchangePort.GetTicker(ctx, symbol)
		out = v
		return err
	})
	return out, err
}

func (b *BreakerPort) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (*Order, error) {
	var out *Order
	err := b.breaker.Execute(func() error {
		v, err := b.ExchangePort.PlaceMarketOrder(ctx, symbol, side, qty)
		out = v
		return err
	})
	return out, err
}

func (b *BreakerPort) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return b.breaker.Execute(func() error {
		return b.ExchangePort.SetLeverage(ctx, symbol, leverage)
	})
}

func (b *BreakerPort) FuturesMarketLong(ctx context.Context, symbol string, qty float64) (*OrderResult, error) {
	var out *OrderResult
	err := b.breaker.Execute(func() error {
		v, err := b.ExchangePort.FuturesMarketLong(ctx, symbol, qty)
		out = v
		return err
	})
	return out, err
}

func (b *BreakerPort) FuturesMarketShort(ctx context.Context, symbol string, qty float64) (*OrderResult, error) {
	var out *OrderResult
	err := b.breaker.Execute(func() error {
		v, err := b.ExchangePort.FuturesMarketShort(ctx, symbol, qty)
		out = v
		return err
	})
	return out, err
}

func (b *BreakerPort) CloseFuturesPosition(ctx context.Context, symbol, side string, qty float64) (*OrderResult, error) {
	var out *OrderResult
	err := b.breaker.Execute(func() error {
		v, err := b.ExchangePort.CloseFuturesPosition(ctx, symbol, side, qty)
		out = v
		return err
	})
	return out, err
}

func (b *BreakerPort) GetOrder(ctx context.Context, symbol, orderID string) (*OrderResult, error) {
	var out *OrderResult
	err := b.breaker.Execute(func() error {
		v, err := b.ExchangePort.GetOrder(ctx, symbol, orderID)
		out = v
		return err
	})
	return out, err
}

func (b *BreakerPort) GetLeaderboardPositions(ctx context.Context, exchangeUID string) ([]LeaderboardPosition, error) {
	var out []LeaderboardPosition
	err := b.breaker.Execute(func() error {
		v, err := b.ExchangePort.GetLeaderboardPositions(ctx, exchangeUID)
		out = v
		return err
	})
	return out, err
}
