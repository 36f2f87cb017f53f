package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// SetLeverage sets Bybit cross leverage for both sides of symbol before
// opening a futures position, adapting Bybit's existing doRequest/sign
// plumbing to ExchangePort's leverage-then-order sequencing.
func (b *Bybit) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := map[string]string{
		"category":     "linear",
		"symbol":       symbol,
		"buyLeverage":  strconv.Itoa(leverage),
		"sellLeverage": strconv.Itoa(leverage),
	}
	_, err := b.doRequest(ctx, http.MethodPost, "/v5/position/set-leverage", params, true)
	if exchErr, ok := err.(*ExchangeError); ok && exchErr.Code == "110043" {
		// "leverage not modified" — already at the requested value.
		return nil
	}
	return err
}

func (b *Bybit) placeFuturesOrder(ctx context.Context, symbol, side string, qty float64) (*OrderResult, error) {
	bybitSide := "Buy"
	if side == SideShort {
		bybitSide = "Sell"
	}

	params := map[string]string{
		"category":    "linear",
		"symbol":      symbol,
		"side":        bybitSide,
		"orderType":   "Market",
		"qty":         strconv.FormatFloat(qty, 'f', -1, 64),
		"timeInForce": "IOC",
	}

	body, err := b.doRequest(ctx, http.MethodPost, "/v5/order/create", params, true)
	if err != nil {
		return &OrderResult{Status: OrderResultRejected}, err
	}

	var resp struct {
		Result struct {
			OrderId string `json:"orderId"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	result := &OrderResult{OrderID: resp.Result.OrderId, Status: OrderResultFilled, FilledQty: qty}

	exec, err := b.getOrderExecution(ctx, symbol, resp.Result.OrderId)
	if err == nil && exec != nil {
		result.FilledQty = exec.FilledQty
		result.AvgFillPrice = exec.AvgPrice
		result.TotalCost = exec.FilledQty * exec.AvgPrice
		if exec.FilledQty < qty {
			result.Status = OrderResultPartiallyFilled
		}
	}
	return result, nil
}

// FuturesMarketLong opens/adds to a long position at market.
func (b *Bybit) FuturesMarketLong(ctx context.Context, symbol string, qty float64) (*OrderResult, error) {
	return b.placeFuturesOrder(ctx, symbol, SideLong, qty)
}

// FuturesMarketShort opens/adds to a short position at market.
func (b *Bybit) FuturesMarketShort(ctx context.Context, symbol string, qty float64) (*OrderResult, error) {
	return b.placeFuturesOrder(ctx, symbol, SideShort, qty)
}

// CloseFuturesPosition closes qty of the open position on side via a
// reduce-only opposite-side market order. qty must be positive: qty<=0
// returns an error and does not close the full remaining size.
func (b *Bybit) CloseFuturesPosition(ctx context.Context, symbol, side string, qty float64) (*OrderResult, error) {
	closeSide := "Sell"
	if side == SideShort {
		closeSide = "Buy"
	}

	params := map[string]string{
		"category":    "linear",
		"symbol":      symbol,
		"side":        closeSide,
		"orderType":   "Market",
		"timeInForce": "IOC",
		"reduceOnly":  "true",
	}
	if qty > 0 {
		params["qty"] = strconv.FormatFloat(qty, 'f', -1, 64)
	} else {
		// No explicit close-full-position flag on /v5/order/create, so an
		// explicit qty is required.
		return nil, fmt.Errorf("bybit: CloseFuturesPosition requires an explicit qty")
	}

	body, err := b.doRequest(ctx, http.MethodPost, "/v5/order/create", params, true)
	if err != nil {
		return &OrderResult{Status: OrderResultRejected}, err
	}

	var resp struct {
		Result struct {
			OrderId string `json:"orderId"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &OrderResult{OrderID: resp.Result.OrderId, Status: OrderResultFilled, FilledQty: qty}, nil
}

// GetOrder fetches an order's current normalized state.
func (b *Bybit) GetOrder(ctx context.Context, symbol, orderID string) (*OrderResult, error) {
	params := map[string]string{
		"category": "linear",
		"symbol":   symbol,
		"orderId":  orderID,
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/order/realtime", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				OrderId     string `json:"orderId"`
				OrderStatus string `json:"orderStatus"`
				CumExecQty  string `json:"cumExecQty"`
				Qty         string `json:"qty"`
				AvgPrice    string `json:"avgPrice"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result.List) == 0 {
		return nil, fmt.Errorf("order %s not found", orderID)
	}

	o := resp.Result.List[0]
	filled, _ := strconv.ParseFloat(o.CumExecQty, 64)
	requested, _ := strconv.ParseFloat(o.Qty, 64)
	avgPrice, _ := strconv.ParseFloat(o.AvgPrice, 64)

	status := OrderResultPartiallyFilled
	switch o.OrderStatus {
	case "Filled":
		status = OrderResultFilled
	case "Cancelled", "Rejected":
		status = OrderResultCancelled
	}
	if requested > 0 && filled >= requested {
		status = OrderResultFilled
	}

	return &OrderResult{
		OrderID:      o.OrderId,
		Status:       status,
		FilledQty:    filled,
		AvgFillPrice: avgPrice,
	}, nil
}

// CancelOrder cancels a resting Bybit order.
func (b *Bybit) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := map[string]string{
		"category": "linear",
		"symbol":   symbol,
		"orderId":  orderID,
	}
	_, err := b.doRequest(ctx, http.MethodPost, "/v5/order/cancel", params, true)
	return err
}

// GetOpenOrders lists resting orders for symbol.
func (b *Bybit) GetOpenOrders(ctx context.Context, symbol string) ([]OrderResult, error) {
	params := map[string]string{"category": "linear", "symbol": symbol}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/order/realtime", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				OrderId    string `json:"orderId"`
				CumExecQty string `json:"cumExecQty"`
				AvgPrice   string `json:"avgPrice"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	out := make([]OrderResult, 0, len(resp.Result.List))
	for _, o := range resp.Result.List {
		filled, _ := strconv.ParseFloat(o.CumExecQty, 64)
		avgPrice, _ := strconv.ParseFloat(o.AvgPrice, 64)
		out = append(out, OrderResult{
			OrderID:      o.OrderId,
			Status:       OrderResultPartiallyFilled,
			FilledQty:    filled,
			AvgFillPrice: avgPrice,
		})
	}
	return out, nil
}

// GetLeaderboardPositions fetches exchangeUID's public copy-trading master
// positions. Bybit's rate-limit errors map to ErrRateLimited and its
// "trader not open to copy" code maps to ErrSharingDisabled so
// SharingValidator can tell the two apart from "no open positions".
func (b *Bybit) GetLeaderboardPositions(ctx context.Context, exchangeUID string) ([]LeaderboardPosition, error) {
	params := map[string]string{"category": "linear", "masterUid": exchangeUID}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/copytrading/position/master-list", params, false)
	if err != nil {
		if exchErr, ok := err.(*ExchangeError); ok {
			switch exchErr.Code {
			case "180005", "180006": // master trader not sharing / uid unknown
				return nil, ErrSharingDisabled
			case "10006", "10018": // rate limit exceeded
				return nil, ErrRateLimited
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	var resp struct {
		Result struct {
			List []struct {
				Symbol     string `json:"symbol"`
				Side       string `json:"side"`
				Size       string `json:"size"`
				EntryPrice string `json:"avgPrice"`
				MarkPrice  string `json:"markPrice"`
				Leverage   string `json:"leverage"`
				UpdateTime string `json:"updatedTime"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	out := make([]LeaderboardPosition, 0, len(resp.Result.List))
	for _, p := range resp.Result.List {
		size, _ := strconv.ParseFloat(p.Size, 64)
		if size == 0 {
			continue
		}
		entryPrice, _ := strconv.ParseFloat(p.EntryPrice, 64)
		markPrice, _ := strconv.ParseFloat(p.MarkPrice, 64)
		leverage, _ := strconv.Atoi(p.Leverage)
		updateMs, _ := strconv.ParseInt(p.UpdateTime, 10, 64)

		side := "long"
		if p.Side == "Sell" {
			side = "short"
		}

		out = append(out, LeaderboardPosition{
			Symbol:     p.Symbol,
			Side:       side,
			Size:       size,
			EntryPrice: entryPrice,
			Leverage:   leverage,
			MarkPrice:  markPrice,
			UpdatedAt:  time.UnixMilli(updateMs),
		})
	}
	return out, nil
}
