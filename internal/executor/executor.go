package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"copytrader/internal/exchange"
	"copytrader/internal/models"
	"copytrader/pkg/retry"
	"copytrader/pkg/utils"
)

// TradeStore is the persistence seam CopyTradeExecutor depends on, an
// injected interface rather than a concrete *sql.DB dependency.
type TradeStore interface {
	Reserve(ctx context.Context, trade *models.Trade) error
	MarkExecuting(ctx context.Context, tradeID int, version int) error
	MarkFilled(ctx context.Context, tradeID int, version int, fill *exchange.OrderResult) error
	MarkFailed(ctx context.Context, tradeID int, version int, reason string) error
	MarkNeedsReconciliation(ctx context.Context, tradeID int, version int, reason string) error
}

// EventPublisher is the seam to internal/eventbus; kept as an interface so
// executor never imports eventbus's concrete Hub type.
type EventPublisher interface {
	PublishTradeExecuted(trade models.Trade)
	PublishTradeFailed(trade models.Trade, reason string)
}

// Executor runs the Reserve -> Place -> Confirm/Compensate sequence for
// one signal against one follower's exchange account.
type Executor struct {
	store     TradeStore
	events    EventPublisher
	retryCfg  retry.Config
	logger    *utils.Logger
}

// New builds an Executor. retryCfg governs the adapter-call retry envelope
// inside one Execute call (see DESIGN.md Open Question 4: this never
// touches Signal.RetryCount, which is reserved for janitor-driven recovery).
func New(store TradeStore, events EventPublisher, retryCfg retry.Config) *Executor {
	return &Executor{store: store, events: events, retryCfg: retryCfg, logger: utils.GetGlobalLogger()}
}

// ExecuteParams bundles everything one copy-trade placement needs.
type ExecuteParams struct {
	Signal   models.Signal
	Follow   models.WhaleFollow
	Port     exchange.ExchangePort
	Quantity float64 // already sized by executor.ComputeSize
	Leverage int
}

// Execute runs the full two-phase sequence:
//  1. Reserve — persist a PENDING Trade row with a pre-generated
//     ClientOrderID (idempotency key), before any exchange call.
//  2. Place — call the exchange; on success advance to FILLED/PARTIALLY_FILLED,
//     on a non-retryable failure advance to FAILED.
//  3. If retries are exhausted on a retryable error, the trade is left
//     NEEDS_RECONCILIATION for the reconciler job (internal/jobs), which
//     looks the order up by ExchangeOrderID. A process that dies mid-call
//     leaves the trade EXECUTING; no job moves EXECUTING trades on.
func (e *Executor) Execute(ctx context.Context, p ExecuteParams) (*models.Trade, error) {
	clientOrderID := uuid.New().String()

	trade := &models.Trade{
		UserID:            p.Follow.UserID,
		SignalID:          p.Signal.ID,
		Exchange:          p.Follow.Exchange,
		ClientOrderID:      clientOrderID,
		Symbol:             p.Signal.Symbol,
		Side:               string(p.Signal.Side),
		TradeType:          p.Signal.TradeType,
		RequestedQuantity:  p.Quantity,
		Leverage:           p.Leverage,
		Status:             models.TradeStatusPending,
	}
	if err := e.store.Reserve(ctx, trade); err != nil {
		return nil, fmt.Errorf("executor: reserve: %w", err)
	}

	if err := e.store.MarkExecuting(ctx, trade.ID, trade.Version); err != nil {
		return nil, fmt.Errorf("executor: mark executing: %w", err)
	}
	trade.Status = models.TradeStatusExecuting
	trade.Version++

	result, err := e.place(ctx, p)
	if err != nil {
		if !retry.IsRetryable(err) {
			if markErr := e.store.MarkFailed(ctx, trade.ID, trade.Version, err.Error()); markErr != nil {
				e.logger.Error("executor: mark failed", utils.Err(markErr))
			}
			trade.Status = models.TradeStatusFailed
			trade.ErrorMessage = err.Error()
			e.events.PublishTradeFailed(*trade, err.Error())
			return trade, err
		}
		// retries exhausted on a nominally-retryable error: the order may or
		// may not have reached the exchange. Leave it for the reconciler.
		if markErr := e.store.MarkNeedsReconciliation(ctx, trade.ID, trade.Version, err.Error()); markErr != nil {
			e.logger.Error("executor: mark needs reconciliation", utils.Err(markErr))
		}
		trade.Status = models.TradeStatusNeedsReconciliation
		return trade, err
	}

	if err := e.store.MarkFilled(ctx, trade.ID, trade.Version, result); err != nil {
		return nil, fmt.Errorf("executor: mark filled: %w", err)
	}
	trade.ExecutedQuantity = result.FilledQty
	trade.ExecutedPrice = result.AvgFillPrice
	trade.FeeAmount = result.FeeAmount
	trade.FeeCurrency = result.FeeCurrency
	trade.ExchangeOrderID = result.OrderID
	if result.Status == exchange.OrderResultFilled {
		trade.Status = models.TradeStatusFilled
	} else {
		trade.Status = models.TradeStatusPartiallyFilled
	}
	now := time.Now()
	trade.ExecutedAt = &now

	e.events.PublishTradeExecuted(*trade)
	return trade, nil
}

func (e *Executor) place(ctx context.Context, p ExecuteParams) (*exchange.OrderResult, error) {
	return retry.DoWithResult(ctx, func() (*exchange.OrderResult, error) {
		if p.Signal.TradeType == models.TradeTypeFuturesLong || p.Signal.TradeType == models.TradeTypeFuturesShort {
			if err := p.Port.SetLeverage(ctx, p.Signal.Symbol, p.Leverage); err != nil {
				return nil, err
			}
			if p.Signal.IsClose {
				return p.Port.CloseFuturesPosition(ctx, p.Signal.Symbol, sideFromTradeType(p.Signal.TradeType), p.Quantity)
			}
			if p.Signal.TradeType == models.TradeTypeFuturesLong {
				return p.Port.FuturesMarketLong(ctx, p.Signal.Symbol, p.Quantity)
			}
			return p.Port.FuturesMarketShort(ctx, p.Signal.Symbol, p.Quantity)
		}

		side := exchange.SideBuy
		if p.Signal.Side == models.ActionSell {
			side = exchange.SideSell
		}
		order, err := p.Port.PlaceMarketOrder(ctx, p.Signal.Symbol, side, p.Quantity)
		if err != nil {
			return nil, err
		}
		return &exchange.OrderResult{
			OrderID:      order.ID,
			Status:       normalizeOrderStatus(order.Status),
			FilledQty:    order.FilledQty,
			AvgFillPrice: order.AvgFillPrice,
			TotalCost:    order.FilledQty * order.AvgFillPrice,
		}, nil
	}, e.retryCfg)
}

func sideFromTradeType(tt models.TradeType) string {
	if tt == models.TradeTypeFuturesShort {
		return exchange.SideShort
	}
	return exchange.SideLong
}

func normalizeOrderStatus(s string) string {
	switch s {
	case exchange.OrderStatusFilled:
		return exchange.OrderResultFilled
	case exchange.OrderStatusPartial:
		return exchange.OrderResultPartiallyFilled
	case exchange.OrderStatusCancelled:
		return exchange.OrderResultCancelled
	case exchange.OrderStatusRejected:
		return exchange.OrderResultRejected
	default:
		return exchange.OrderResultFilled
	}
}
