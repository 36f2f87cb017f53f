package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
)

// Binance adapts github.com/adshao/go-binance/v2's futures client to the
// Exchange/ExchangePort contract. Unlike the hand-rolled HMAC signing the
// other adapters do directly against each exchange's REST API, Binance has
// a real Go SDK already in the pack's dependency graph (yohannesjx-
// sniperterminal's execution_service.go), so this adapter is a thin
// wrapper over futures.Client rather than its own doRequest/sign pair.
type Binance struct {
	client *futures.Client

	tickerCallbacks  map[string]func(*Ticker)
	positionCallback func(*Position)

	stopC     chan struct{}
	connected bool
}

// NewBinance creates an unconnected Binance adapter; Connect must be
// called before any other method.
func NewBinance() *Binance {
	return &Binance{
		tickerCallbacks: make(map[string]func(*Ticker)),
	}
}

func (b *Binance) Connect(apiKey, secret, _ string) error {
	b.client = futures.NewClient(apiKey, secret)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := b.GetBalance(ctx); err != nil {
		return fmt.Errorf("failed to connect to Binance: %w", err)
	}
	b.connected = true
	return nil
}

func (b *Binance) GetName() string { return "binance" }

func (b *Binance) GetBalance(ctx context.Context) (float64, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, err
	}
	for _, asset := range account.Assets {
		if asset.Asset == "USDT" {
			return strconv.ParseFloat(asset.AvailableBalance, 64)
		}
	}
	return 0, nil
}

func (b *Binance) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	prices, err := b.client.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("ticker not found for %s", symbol)
	}
	p := prices[0]
	bid, _ := strconv.ParseFloat(p.BidPrice, 64)
	ask, _ := strconv.ParseFloat(p.AskPrice, 64)
	return &Ticker{
		Symbol:    symbol,
		BidPrice:  bid,
		AskPrice:  ask,
		LastPrice: (bid + ask) / 2,
		Timestamp: time.Now(),
	}, nil
}

func (b *Binance) GetOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	if depth > 1000 {
		depth = 1000
	}
	res, err := b.client.NewDepthService().Symbol(symbol).Limit(depth).Do(ctx)
	if err != nil {
		return nil, err
	}
	ob := &OrderBook{
		Symbol:    symbol,
		Bids:      make([]PriceLevel, len(res.Bids)),
		Asks:      make([]PriceLevel, len(res.Asks)),
		Timestamp: time.Now(),
	}
	for i, lvl := range res.Bids {
		price, _ := strconv.ParseFloat(lvl.Price, 64)
		qty, _ := strconv.ParseFloat(lvl.Quantity, 64)
		ob.Bids[i] = PriceLevel{Price: price, Volume: qty}
	}
	for i, lvl := range res.Asks {
		price, _ := strconv.ParseFloat(lvl.Price, 64)
		qty, _ := strconv.ParseFloat(lvl.Quantity, 64)
		ob.Asks[i] = PriceLevel{Price: price, Volume: qty}
	}
	return ob, nil
}

func binanceSide(side string) futures.SideType {
	if side == SideSell || side == SideShort {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func (b *Binance) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (*Order, error) {
	res, err := b.placeMarket(ctx, symbol, binanceSide(side), qty, false)
	if err != nil {
		return nil, err
	}
	filled, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
	avgPrice, _ := strconv.ParseFloat(res.AvgPrice, 64)
	return &Order{
		ID:           strconv.FormatInt(res.OrderID, 10),
		Symbol:       symbol,
		Side:         side,
		Type:         "market",
		Quantity:     qty,
		FilledQty:    filled,
		AvgFillPrice: avgPrice,
		Status:       binanceOrderStatus(string(res.Status)),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}, nil
}

func (b *Binance) placeMarket(ctx context.Context, symbol string, side futures.SideType, qty float64, reduceOnly bool) (*futures.CreateOrderResponse, error) {
	svc := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(strconv.FormatFloat(qty, 'f', -1, 64))
	if reduceOnly {
		svc = svc.ReduceOnly(true)
	}
	return svc.Do(ctx)
}

func binanceOrderStatus(status string) string {
	switch status {
	case "FILLED":
		return OrderStatusFilled
	case "PARTIALLY_FILLED":
		return OrderStatusPartial
	case "CANCELED", "EXPIRED":
		return OrderStatusCancelled
	case "REJECTED":
		return OrderStatusRejected
	default:
		return OrderStatusPartial
	}
}

func (b *Binance) GetOpenPositions(ctx context.Context) ([]*Position, error) {
	risks, err := b.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Position, 0, len(risks))
	for _, p := range risks {
		amt, _ := strconv.ParseFloat(p.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(p.EntryPrice, 64)
		mark, _ := strconv.ParseFloat(p.MarkPrice, 64)
		lev, _ := strconv.Atoi(p.Leverage)
		upl, _ := strconv.ParseFloat(p.UnRealizedProfit, 64)

		side := SideLong
		if amt < 0 {
			side = SideShort
			amt = -amt
		}
		out = append(out, &Position{
			Symbol:        p.Symbol,
			Side:          side,
			Size:          amt,
			EntryPrice:    entry,
			MarkPrice:     mark,
			Leverage:      lev,
			UnrealizedPnl: upl,
			UpdatedAt:     time.Now(),
		})
	}
	return out, nil
}

func (b *Binance) ClosePosition(ctx context.Context, symbol, side string, qty float64) error {
	closeSide := futures.SideTypeSell
	if side == SideShort {
		closeSide = futures.SideTypeBuy
	}
	_, err := b.placeMarket(ctx, symbol, closeSide, qty, true)
	return err
}

func (b *Binance) SubscribeTicker(symbol string, callback func(*Ticker)) error {
	b.tickerCallbacks[symbol] = callback
	doneC, stopC, err := futures.WsBookTickerServe(symbol, func(event *futures.WsBookTickerEvent) {
		bid, _ := strconv.ParseFloat(event.BestBidPrice, 64)
		ask, _ := strconv.ParseFloat(event.BestAskPrice, 64)
		callback(&Ticker{
			Symbol:    event.Symbol,
			BidPrice:  bid,
			AskPrice:  ask,
			LastPrice: (bid + ask) / 2,
			Timestamp: time.Now(),
		})
	}, func(err error) {})
	if err != nil {
		return err
	}
	b.stopC = stopC
	go func() { <-doneC }()
	return nil
}

func (b *Binance) SubscribePositions(callback func(*Position)) error {
	b.positionCallback = callback
	listenKey, err := b.client.NewStartUserStreamService().Do(context.Background())
	if err != nil {
		return err
	}
	doneC, stopC, err := futures.WsUserDataServe(listenKey, func(event *futures.WsUserDataEvent) {
		if event.Event != futures.UserDataEventTypeAccountUpdate {
			return
		}
		for _, p := range event.AccountUpdate.Positions {
			amt, _ := strconv.ParseFloat(p.Amount, 64)
			if amt == 0 {
				continue
			}
			entry, _ := strconv.ParseFloat(p.EntryPrice, 64)
			side := SideLong
			if amt < 0 {
				side = SideShort
				amt = -amt
			}
			b.positionCallback(&Position{
				Symbol:     p.Symbol,
				Side:       side,
				Size:       amt,
				EntryPrice: entry,
				UpdatedAt:  time.Now(),
			})
		}
	}, func(err error) {})
	if err != nil {
		return err
	}
	b.stopC = stopC
	go func() { <-doneC }()
	return nil
}

func (b *Binance) GetTradingFee(ctx context.Context, symbol string) (float64, error) {
	// Binance USDT-M futures standard taker fee; account-level discounts
	// (BNB burn, VIP tiers) are not modeled.
	return 0.0004, nil
}

func (b *Binance) GetLimits(ctx context.Context, symbol string) (*Limits, error) {
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		limits := &Limits{Symbol: symbol, MinNotional: 5.0}
		for _, f := range s.Filters {
			switch f["filterType"] {
			case "LOT_SIZE":
				limits.MinOrderQty, _ = strconv.ParseFloat(f["minQty"].(string), 64)
				limits.MaxOrderQty, _ = strconv.ParseFloat(f["maxQty"].(string), 64)
				limits.QtyStep, _ = strconv.ParseFloat(f["stepSize"].(string), 64)
			case "PRICE_FILTER":
				limits.PriceStep, _ = strconv.ParseFloat(f["tickSize"].(string), 64)
			case "MIN_NOTIONAL", "NOTIONAL":
				if v, ok := f["notional"].(string); ok {
					limits.MinNotional, _ = strconv.ParseFloat(v, 64)
				}
			}
		}
		limits.MaxLeverage = 125
		return limits, nil
	}
	return nil, fmt.Errorf("instrument info not found for %s", symbol)
}

func (b *Binance) Close() error {
	if b.stopC != nil {
		close(b.stopC)
	}
	b.connected = false
	return nil
}

// SetLeverage sets isolated/cross leverage for symbol before opening a
// futures position.
func (b *Binance) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := b.client.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)
	return err
}

func (b *Binance) futuresOrderResult(ctx context.Context, symbol string, res *futures.CreateOrderResponse, requested float64) *OrderResult {
	filled, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
	avgPrice, _ := strconv.ParseFloat(res.AvgPrice, 64)
	status := OrderResultFilled
	if filled < requested {
		status = OrderResultPartiallyFilled
	}
	return &OrderResult{
		OrderID:      strconv.FormatInt(res.OrderID, 10),
		Status:       status,
		FilledQty:    filled,
		AvgFillPrice: avgPrice,
		TotalCost:    filled * avgPrice,
	}
}

// FuturesMarketLong opens/adds to a long position at market.
func (b *Binance) FuturesMarketLong(ctx context.Context, symbol string, qty float64) (*OrderResult, error) {
	res, err := b.placeMarket(ctx, symbol, futures.SideTypeBuy, qty, false)
	if err != nil {
		return &OrderResult{Status: OrderResultRejected}, err
	}
	return b.futuresOrderResult(ctx, symbol, res, qty), nil
}

// FuturesMarketShort opens/adds to a short position at market.
func (b *Binance) FuturesMarketShort(ctx context.Context, symbol string, qty float64) (*OrderResult, error) {
	res, err := b.placeMarket(ctx, symbol, futures.SideTypeSell, qty, false)
	if err != nil {
		return &OrderResult{Status: OrderResultRejected}, err
	}
	return b.futuresOrderResult(ctx, symbol, res, qty), nil
}

// CloseFuturesPosition closes qty of the open position on side via a
// reduce-only market order. qty must be positive: qty<=0 returns an error
// and does not close the full remaining size.
func (b *Binance) CloseFuturesPosition(ctx context.Context, symbol, side string, qty float64) (*OrderResult, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("binance: CloseFuturesPosition requires an explicit qty")
	}
	closeSide := futures.SideTypeSell
	if side == SideShort {
		closeSide = futures.SideTypeBuy
	}
	res, err := b.placeMarket(ctx, symbol, closeSide, qty, true)
	if err != nil {
		return &OrderResult{Status: OrderResultRejected}, err
	}
	return b.futuresOrderResult(ctx, symbol, res, qty), nil
}

// GetOrder fetches an order's current normalized state.
func (b *Binance) GetOrder(ctx context.Context, symbol, orderID string) (*OrderResult, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("binance: invalid order id %q: %w", orderID, err)
	}
	res, err := b.client.NewGetOrderService().Symbol(symbol).OrderID(id).Do(ctx)
	if err != nil {
		return nil, err
	}
	filled, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
	avgPrice, _ := strconv.ParseFloat(res.AvgPrice, 64)
	return &OrderResult{
		OrderID:      strconv.FormatInt(res.OrderID, 10),
		Status:       binanceOrderResultStatus(string(res.Status)),
		FilledQty:    filled,
		AvgFillPrice: avgPrice,
	}, nil
}

func binanceOrderResultStatus(status string) string {
	switch status {
	case "FILLED":
		return OrderResultFilled
	case "PARTIALLY_FILLED":
		return OrderResultPartiallyFilled
	case "CANCELED", "EXPIRED", "REJECTED":
		return OrderResultCancelled
	default:
		return OrderResultPartiallyFilled
	}
}

// CancelOrder cancels a resting Binance order.
func (b *Binance) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("binance: invalid order id %q: %w", orderID, err)
	}
	_, err = b.client.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx)
	return err
}

// GetOpenOrders lists resting orders for symbol.
func (b *Binance) GetOpenOrders(ctx context.Context, symbol string) ([]OrderResult, error) {
	orders, err := b.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]OrderResult, 0, len(orders))
	for _, o := range orders {
		filled, _ := strconv.ParseFloat(o.ExecutedQuantity, 64)
		avgPrice, _ := strconv.ParseFloat(o.AvgPrice, 64)
		out = append(out, OrderResult{
			OrderID:      strconv.FormatInt(o.OrderID, 10),
			Status:       binanceOrderResultStatus(string(o.Status)),
			FilledQty:    filled,
			AvgFillPrice: avgPrice,
		})
	}
	return out, nil
}

// GetLeaderboardPositions is not implemented for Binance: it makes no
// request and always returns an error wrapping ErrNetwork.
func (b *Binance) GetLeaderboardPositions(ctx context.Context, exchangeUID string) ([]LeaderboardPosition, error) {
	return nil, fmt.Errorf("%w: binance leaderboard lookup for %s not implemented", ErrNetwork, exchangeUID)
}
