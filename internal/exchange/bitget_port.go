package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// SetLeverage sets Bitget cross-margin leverage for symbol before opening a
// futures position, adapting Bitget's existing doRequest/sign plumbing to
// ExchangePort's leverage-then-order sequencing.
func (b *Bitget) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := map[string]string{
		"productType": bitgetProductType,
		"symbol":      symbol,
		"marginCoin":  "USDT",
		"leverage":    strconv.Itoa(leverage),
	}
	_, err := b.doRequest(ctx, http.MethodPost, "/api/v2/mix/account/set-leverage", params, true)
	return err
}

func (b *Bitget) placeFuturesOrder(ctx context.Context, symbol, side string, qty float64) (*OrderResult, error) {
	bitgetSide := "buy"
	if side == SideShort {
		bitgetSide = "sell"
	}

	params := map[string]string{
		"productType": bitgetProductType,
		"symbol":      symbol,
		"marginMode":  "crossed",
		"marginCoin":  "USDT",
		"side":        bitgetSide,
		"tradeSide":   "open",
		"orderType":   "market",
		"size":        strconv.FormatFloat(qty, 'f', -1, 64),
	}

	body, err := b.doRequest(ctx, http.MethodPost, "/api/v2/mix/order/place-order", params, true)
	if err != nil {
		return &OrderResult{Status: OrderResultRejected}, err
	}

	var resp struct {
		Data struct {
			OrderId string `json:"orderId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	result := &OrderResult{OrderID: resp.Data.OrderId, Status: OrderResultFilled, FilledQty: qty}

	detail, err := b.getOrderDetail(ctx, symbol, resp.Data.OrderId)
	if err == nil && detail != nil {
		result.FilledQty = detail.FilledQty
		result.AvgFillPrice = detail.AvgPrice
		result.TotalCost = detail.FilledQty * detail.AvgPrice
		if detail.FilledQty < qty {
			result.Status = OrderResultPartiallyFilled
		}
	}
	return result, nil
}

// FuturesMarketLong opens/adds to a long position at market.
func (b *Bitget) FuturesMarketLong(ctx context.Context, symbol string, qty float64) (*OrderResult, error) {
	return b.placeFuturesOrder(ctx, symbol, SideLong, qty)
}

// FuturesMarketShort opens/adds to a short position at market.
func (b *Bitget) FuturesMarketShort(ctx context.Context, symbol string, qty float64) (*OrderResult, error) {
	return b.placeFuturesOrder(ctx, symbol, SideShort, qty)
}

// CloseFuturesPosition closes qty of the open position on side via a
// tradeSide=close order. qty must be positive: qty<=0 returns an error and
// does not close the whole remaining size.
func (b *Bitget) CloseFuturesPosition(ctx context.Context, symbol, side string, qty float64) (*OrderResult, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("bitget: CloseFuturesPosition requires an explicit qty")
	}

	closeSide := "sell"
	if side == SideShort {
		closeSide = "buy"
	}

	params := map[string]string{
		"productType": bitgetProductType,
		"symbol":      symbol,
		"marginMode":  "crossed",
		"marginCoin":  "USDT",
		"side":        closeSide,
		"tradeSide":   "close",
		"orderType":   "market",
		"size":        strconv.FormatFloat(qty, 'f', -1, 64),
	}

	body, err := b.doRequest(ctx, http.MethodPost, "/api/v2/mix/order/place-order", params, true)
	if err != nil {
		return &OrderResult{Status: OrderResultRejected}, err
	}

	var resp struct {
		Data struct {
			OrderId string `json:"orderId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &OrderResult{OrderID: resp.Data.OrderId, Status: OrderResultFilled, FilledQty: qty}, nil
}

// GetOrder fetches an order's current normalized state.
func (b *Bitget) GetOrder(ctx context.Context, symbol, orderID string) (*OrderResult, error) {
	params := map[string]string{
		"productType": bitgetProductType,
		"symbol":      symbol,
		"orderId":     orderID,
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/api/v2/mix/order/detail", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			OrderId    string `json:"orderId"`
			State      string `json:"state"`
			BaseVolume string `json:"baseVolume"`
			Size       string `json:"size"`
			PriceAvg   string `json:"priceAvg"`
			Fee        string `json:"fee"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Data.OrderId == "" {
		return nil, fmt.Errorf("order %s not found", orderID)
	}

	filled, _ := strconv.ParseFloat(resp.Data.BaseVolume, 64)
	requested, _ := strconv.ParseFloat(resp.Data.Size, 64)
	avgPrice, _ := strconv.ParseFloat(resp.Data.PriceAvg, 64)
	fee, _ := strconv.ParseFloat(resp.Data.Fee, 64)

	status := OrderResultPartiallyFilled
	switch resp.Data.State {
	case "filled":
		status = OrderResultFilled
	case "canceled":
		status = OrderResultCancelled
	}
	if requested > 0 && filled >= requested {
		status = OrderResultFilled
	}

	return &OrderResult{
		OrderID:      resp.Data.OrderId,
		Status:       status,
		FilledQty:    filled,
		AvgFillPrice: avgPrice,
		FeeAmount:    fee,
		FeeCurrency:  "USDT",
	}, nil
}

// CancelOrder cancels a resting Bitget order.
func (b *Bitget) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := map[string]string{
		"productType": bitgetProductType,
		"symbol":      symbol,
		"orderId":     orderID,
	}
	_, err := b.doRequest(ctx, http.MethodPost, "/api/v2/mix/order/cancel-order", params, true)
	return err
}

// GetOpenOrders lists resting orders for symbol.
func (b *Bitget) GetOpenOrders(ctx context.Context, symbol string) ([]OrderResult, error) {
	params := map[string]string{"productType": bitgetProductType, "symbol": symbol}

	body, err := b.doRequest(ctx, http.MethodGet, "/api/v2/mix/order/orders-pending", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			EntrustedList []struct {
				OrderId    string `json:"orderId"`
				BaseVolume string `json:"baseVolume"`
				PriceAvg   string `json:"priceAvg"`
			} `json:"entrustedList"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	out := make([]OrderResult, 0, len(resp.Data.EntrustedList))
	for _, o := range resp.Data.EntrustedList {
		filled, _ := strconv.ParseFloat(o.BaseVolume, 64)
		avgPrice, _ := strconv.ParseFloat(o.PriceAvg, 64)
		out = append(out, OrderResult{
			OrderID:      o.OrderId,
			Status:       OrderResultPartiallyFilled,
			FilledQty:    filled,
			AvgFillPrice: avgPrice,
		})
	}
	return out, nil
}

// GetLeaderboardPositions fetches exchangeUID's public elite-trader
// positions. Bitget is always treated as publicly sharing, so this never
// returns ErrSharingDisabled; rate-limit responses map to ErrRateLimited.
func (b *Bitget) GetLeaderboardPositions(ctx context.Context, exchangeUID string) ([]LeaderboardPosition, error) {
	params := map[string]string{"traderId": exchangeUID}

	body, err := b.doRequest(ctx, http.MethodGet, "/api/v2/mix/trace/currentTrack", params, false)
	if err != nil {
		if exchErr, ok := err.(*ExchangeError); ok && exchErr.Code == "40019" {
			return nil, ErrRateLimited
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	var resp struct {
		Data []struct {
			Symbol     string `json:"symbol"`
			Side       string `json:"holdSide"`
			Size       string `json:"openTotalPos"`
			EntryPrice string `json:"openAvgPrice"`
			MarkPrice  string `json:"markPrice"`
			Leverage   string `json:"leverage"`
			CTime      string `json:"cTime"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	out := make([]LeaderboardPosition, 0, len(resp.Data))
	for _, p := range resp.Data {
		size, _ := strconv.ParseFloat(p.Size, 64)
		if size == 0 {
			continue
		}
		entryPrice, _ := strconv.ParseFloat(p.EntryPrice, 64)
		markPrice, _ := strconv.ParseFloat(p.MarkPrice, 64)
		leverage, _ := strconv.Atoi(p.Leverage)
		cTimeMs, _ := strconv.ParseInt(p.CTime, 10, 64)

		side := "long"
		if p.Side == "short" {
			side = "short"
		}

		out = append(out, LeaderboardPosition{
			Symbol:     p.Symbol,
			Side:       side,
			Size:       size,
			EntryPrice: entryPrice,
			Leverage:   leverage,
			MarkPrice:  markPrice,
			UpdatedAt:  time.UnixMilli(cTimeMs),
		})
	}
	return out, nil
}
