package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// SetLeverage sets OKX cross-margin leverage for instId before opening a
// futures position, adapting OKX's existing doRequest/sign plumbing to
// ExchangePort's leverage-then-order sequencing.
func (o *OKX) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := map[string]string{
		"instId":  o.toOKXSymbol(symbol),
		"lever":   strconv.Itoa(leverage),
		"mgnMode": "cross",
	}
	_, err := o.doRequest(ctx, http.MethodPost, "/api/v5/account/set-leverage", params, true)
	return err
}

func (o *OKX) placeFuturesOrder(ctx context.Context, symbol, side string, qty float64) (*OrderResult, error) {
	instId := o.toOKXSymbol(symbol)

	okxSide, posSide := "buy", "long"
	if side == SideShort {
		okxSide, posSide = "sell", "short"
	}

	params := map[string]string{
		"instId":  instId,
		"tdMode":  "cross",
		"side":    okxSide,
		"posSide": posSide,
		"ordType": "market",
		"sz":      strconv.FormatFloat(qty, 'f', -1, 64),
	}

	body, err := o.doRequest(ctx, http.MethodPost, "/api/v5/trade/order", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			OrdId string `json:"ordId"`
			SCode string `json:"sCode"`
			SMsg  string `json:"sMsg"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].SCode != "0" {
		msg := "unknown error"
		if len(resp.Data) > 0 {
			msg = resp.Data[0].SMsg
		}
		return &OrderResult{Status: OrderResultRejected}, fmt.Errorf("okx order rejected: %s", msg)
	}

	orderID := resp.Data[0].OrdId
	result := &OrderResult{OrderID: orderID, Status: OrderResultFilled, FilledQty: qty}

	detail, err := o.getOrderDetail(ctx, instId, orderID)
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
func (o *OKX) FuturesMarketLong(ctx context.Context, symbol string, qty float64) (*OrderResult, error) {
	return o.placeFuturesOrder(ctx, symbol, SideLong, qty)
}

// FuturesMarketShort opens/adds to a short position at market.
func (o *OKX) FuturesMarketShort(ctx context.Context, symbol string, qty float64) (*OrderResult, error) {
	return o.placeFuturesOrder(ctx, symbol, SideShort, qty)
}

// CloseFuturesPosition closes qty (or the full remaining size when qty<=0)
// of the open position on side.
func (o *OKX) CloseFuturesPosition(ctx context.Context, symbol, side string, qty float64) (*OrderResult, error) {
	instId := o.toOKXSymbol(symbol)

	closeSide, posSide := "sell", "long"
	if side == SideShort {
		closeSide, posSide = "buy", "short"
	}

	params := map[string]string{
		"instId":  instId,
		"tdMode":  "cross",
		"side":    closeSide,
		"posSide": posSide,
		"ordType": "market",
	}
	if qty > 0 {
		params["sz"] = strconv.FormatFloat(qty, 'f', -1, 64)
	} else {
		params["closeFraction"] = "1"
	}

	body, err := o.doRequest(ctx, http.MethodPost, "/api/v5/trade/order", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			OrdId string `json:"ordId"`
			SCode string `json:"sCode"`
			SMsg  string `json:"sMsg"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].SCode != "0" {
		msg := "unknown error"
		if len(resp.Data) > 0 {
			msg = resp.Data[0].SMsg
		}
		return &OrderResult{Status: OrderResultRejected}, fmt.Errorf("okx close rejected: %s", msg)
	}
	return &OrderResult{OrderID: resp.Data[0].OrdId, Status: OrderResultFilled, FilledQty: qty}, nil
}

// GetOrder fetches an order's current normalized state.
func (o *OKX) GetOrder(ctx context.Context, symbol, orderID string) (*OrderResult, error) {
	instId := o.toOKXSymbol(symbol)
	params := map[string]string{"instId": instId, "ordId": orderID}

	body, err := o.doRequest(ctx, http.MethodGet, "/api/v5/trade/order", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			OrdId     string `json:"ordId"`
			State     string `json:"state"`
			AccFillSz string `json:"accFillSz"`
			AvgPx     string `json:"avgPx"`
			Sz        string `json:"sz"`
			Fee       string `json:"fee"`
			FeeCcy    string `json:"feeCcy"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("order %s not found", orderID)
	}

	d := resp.Data[0]
	filled := o.parseFloat(d.AccFillSz, "accFillSz")
	requested := o.parseFloat(d.Sz, "sz")

	status := OrderResultPartiallyFilled
	switch d.State {
	case "filled":
		status = OrderResultFilled
	case "canceled":
		status = OrderResultCancelled
	case "live", "partially_filled":
		if filled == 0 {
			status = OrderResultPartiallyFilled
		}
	}
	if filled >= requested && requested > 0 {
		status = OrderResultFilled
	}

	return &OrderResult{
		OrderID:      d.OrdId,
		Status:       status,
		FilledQty:    filled,
		AvgFillPrice: o.parseFloat(d.AvgPx, "avgPx"),
		FeeAmount:    o.parseFloat(d.Fee, "fee"),
		FeeCurrency:  d.FeeCcy,
	}, nil
}

// CancelOrder cancels a resting OKX order.
func (o *OKX) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := map[string]string{
		"instId": o.toOKXSymbol(symbol),
		"ordId":  orderID,
	}
	_, err := o.doRequest(ctx, http.MethodPost, "/api/v5/trade/cancel-order", params, true)
	return err
}

// GetOpenOrders lists resting orders for symbol.
func (o *OKX) GetOpenOrders(ctx context.Context, symbol string) ([]OrderResult, error) {
	params := map[string]string{"instId": o.toOKXSymbol(symbol)}

	body, err := o.doRequest(ctx, http.MethodGet, "/api/v5/trade/orders-pending", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			OrdId     string `json:"ordId"`
			AccFillSz string `json:"accFillSz"`
			AvgPx     string `json:"avgPx"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	out := make([]OrderResult, 0, len(resp.Data))
	for _, d := range resp.Data {
		out = append(out, OrderResult{
			OrderID:      d.OrdId,
			Status:       OrderResultPartiallyFilled,
			FilledQty:    o.parseFloat(d.AccFillSz, "accFillSz"),
			AvgFillPrice: o.parseFloat(d.AvgPx, "avgPx"),
		})
	}
	return out, nil
}

// GetLeaderboardPositions fetches exchangeUID's public copy-trading
// positions. OKX returns an explicit error code for traders who disabled
// lead-trading sharing; that is mapped to ErrSharingDisabled so
// SharingValidator can distinguish it from "no open positions".
func (o *OKX) GetLeaderboardPositions(ctx context.Context, exchangeUID string) ([]LeaderboardPosition, error) {
	params := map[string]string{"uniqueCode": exchangeUID, "instType": "SWAP"}

	body, err := o.doRequest(ctx, http.MethodGet, "/api/v5/copytrading/public-positions-history", params, false)
	if err != nil {
		if exchErr, ok := err.(*ExchangeError); ok {
			switch exchErr.Code {
			case "51009", "51010": // sharing disabled / uid not found as lead trader
				return nil, ErrSharingDisabled
			case "50011", "50013": // rate limit
				return nil, ErrRateLimited
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	var resp struct {
		Data []struct {
			InstId  string `json:"instId"`
			PosSide string `json:"posSide"`
			Pos     string `json:"pos"`
			AvgPx   string `json:"avgPx"`
			MarkPx  string `json:"markPx"`
			Lever   string `json:"lever"`
			UTime   string `json:"uTime"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	out := make([]LeaderboardPosition, 0, len(resp.Data))
	for _, p := range resp.Data {
		size := o.parseFloat(p.Pos, "pos")
		if size == 0 {
			continue
		}
		uTime := o.parseInt64(p.UTime, "uTime")
		out = append(out, LeaderboardPosition{
			Symbol:     o.fromOKXSymbol(p.InstId),
			Side:       p.PosSide,
			Size:       size,
			EntryPrice: o.parseFloat(p.AvgPx, "avgPx"),
			Leverage:   o.parseInt(p.Lever, "lever"),
			MarkPrice:  o.parseFloat(p.MarkPx, "markPx"),
			UpdatedAt:  time.UnixMilli(uTime),
		})
	}
	return out, nil
}
