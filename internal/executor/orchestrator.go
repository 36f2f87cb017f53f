package executor

// Orchestrator drains one user's SignalQueue at a time (a fairness cap of
// at most max_signals_per_batch items before yielding to the next user)
// and runs Phase 1 for each popped signal: recompute effective sizing,
// apply the three early-reject checks, then hand off to Executor for
// Phase 2 placement, finally opening or closing the follower's Position
// from the fill.
//
// One goroutine per user, guarded by queue.Queue's processing lock, gives
// single-threaded cooperative execution per user while many users drain
// concurrently.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"copytrader/internal/circuitbreaker"
	"copytrader/internal/exchange"
	"copytrader/internal/models"
	"copytrader/internal/queue"
	"copytrader/internal/repository"
	"copytrader/pkg/utils"
)

// WhaleFollowStore resolves a user's subscription to the whale that
// produced a signal.
type WhaleFollowStore interface {
	GetByUserID(userID int) ([]models.WhaleFollow, error)
}

// WhaleStore resolves the whale a signal came from, for Kelly sizing
// inputs (WinRate/AvgWinLossRatio) and exchange-min-notional lookups.
type WhaleStore interface {
	GetByID(id int) (*models.Whale, error)
}

// SignalStore is Phase 1's view of the signals table: loading the popped
// signal's current row and transitioning its status around execution.
type SignalStore interface {
	GetByID(id int) (*models.Signal, error)
	MarkProcessing(signalID int) error
	MarkProcessed(signalID int) error
	RequeueForRetry(ctx context.Context, signalID int) error
	MarkExpired(ctx context.Context, signalID int, reason string) error
	MarkFailed(ctx context.Context, signalID int, reason string) error
}

// AccountStore resolves a follower's own API credentials and cached
// equity on the exchange their WhaleFollow copies onto.
type AccountStore interface {
	GetByUserAndExchange(userID int, exchangeName string) (*models.UserExchangeAccount, error)
}

// PositionStore is Phase 1/2's view of the positions table: the opposite-
// direction and max-open-positions checks, the daily-loss check, and the
// open/close lifecycle after a fill.
type PositionStore interface {
	GetOpenByUserAndSymbol(userID int, symbol string) (*models.Position, error)
	Open(p *models.Position) error
	Close(id int, version int, exitPrice, fees float64, reason string) error
	SumRealizedPnlSince(userID int, since time.Time) (float64, error)
	CountOpenByUserID(userID int) (int, error)
}

// PositionEventPublisher is the seam to internal/eventbus for position
// lifecycle events, kept separate from EventPublisher so a TradeStore-only
// caller of Executor.Execute is never forced to satisfy it.
type PositionEventPublisher interface {
	PublishPositionOpened(position models.Position)
	PublishPositionClosed(position models.Position)
}

// PortFactory resolves a connected, breaker-wrapped ExchangePort for one
// (user, exchange) pair, caching the Connect()-ed adapter across calls
// since establishing one verifies credentials against the exchange.
type PortFactory struct {
	mu       sync.Mutex
	ports    map[string]exchange.ExchangePort
	breakers *circuitbreaker.Registry
}

// NewPortFactory builds a PortFactory backed by breakers for per-exchange
// failure isolation.
func NewPortFactory(breakers *circuitbreaker.Registry) *PortFactory {
	return &PortFactory{ports: make(map[string]exchange.ExchangePort), breakers: breakers}
}

// Get returns the cached port for account, connecting and wrapping a new
// one on first use.
func (f *PortFactory) Get(account models.UserExchangeAccount) (exchange.ExchangePort, error) {
	key := fmt.Sprintf("%d:%s", account.UserID, account.Exchange)

	f.mu.Lock()
	defer f.mu.Unlock()
	if port, ok := f.ports[key]; ok {
		return port, nil
	}

	port, err := exchange.NewExchangePort(account.Exchange)
	if err != nil {
		return nil, err
	}
	if err := port.Connect(account.APIKey, account.SecretKey, account.Passphrase); err != nil {
		return nil, fmt.Errorf("orchestrator: connect %s for user %d: %w", account.Exchange, account.UserID, err)
	}

	guarded := exchange.WithBreaker(port, f.breakers.Get(account.Exchange))
	f.ports[key] = guarded
	return guarded, nil
}

// PortFor implements jobs.PortResolver: a cache-only lookup, since by the
// time a trade reaches NEEDS_RECONCILIATION its (user, exchange) port was
// already connected once by Get during Phase 2 placement.
func (f *PortFactory) PortFor(userID int, exchangeName string) (exchange.ExchangePort, bool) {
	key := fmt.Sprintf("%d:%s", userID, exchangeName)

	f.mu.Lock()
	defer f.mu.Unlock()
	port, ok := f.ports[key]
	return port, ok
}

// SizingConfig bundles the Phase 1 sizing/risk constants read from
// internal/config.SizingConfig, kept as plain fields here so this package
// never imports internal/config (executor stays a leaf package).
type SizingConfig struct {
	MinTradeSizeUSDT   float64
	TradeSizeBufferPct float64
	MaxOpenPositions   int
	DailyLossLimitUSDT float64
	MinNotional        map[string]float64 // "EXCHANGE:MARKET" -> USDT
}

// Orchestrator drains SignalQueue entries for a batch of users, one user
// at a time, under that user's processing lock.
type Orchestrator struct {
	queue    *queue.Queue
	follows  WhaleFollowStore
	whales   WhaleStore
	signals  SignalStore
	accounts AccountStore
	positions PositionStore
	ports    *PortFactory
	exec     *Executor
	events   PositionEventPublisher
	sizing   SizingConfig
	batch    int
	logger   *utils.Logger
}

// NewOrchestrator builds an Orchestrator. batch is MAX_SIGNALS_PER_BATCH
// (internal/config QueueConfig.MaxSignalsPerBatch).
func NewOrchestrator(
	q *queue.Queue,
	follows WhaleFollowStore,
	whales WhaleStore,
	signals SignalStore,
	accounts AccountStore,
	positions PositionStore,
	ports *PortFactory,
	exec *Executor,
	events PositionEventPublisher,
	sizing SizingConfig,
	batch int,
) *Orchestrator {
	return &Orchestrator{
		queue: q, follows: follows, whales: whales, signals: signals, accounts: accounts,
		positions: positions, ports: ports, exec: exec, events: events, sizing: sizing,
		batch: batch, logger: utils.GetGlobalLogger().WithComponent("orchestrator"),
	}
}

// DrainUser acquires userID's processing lock and works through up to
// o.batch queued signals before releasing it, per the fairness/risk model
// fairness rule. Returns the number of signals processed.
func (o *Orchestrator) DrainUser(ctx context.Context, userID int) (int, error) {
	acquired, err := o.queue.AcquireProcessingLock(userID)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: acquire lock: %w", err)
	}
	if !acquired {
		return 0, nil
	}
	defer func() {
		if err := o.queue.ReleaseProcessingLock(userID); err != nil {
			o.logger.Warn("release processing lock failed", utils.Int("user_id", userID), utils.Err(err))
		}
	}()

	processed := 0
	for processed < o.batch {
		item, err := o.queue.PopHighestPriority(userID)
		if err != nil {
			return processed, fmt.Errorf("orchestrator: pop: %w", err)
		}
		if item == nil {
			break
		}

		if err := o.processOne(ctx, userID, *item); err != nil {
			o.logger.Error("process signal failed", utils.Int("user_id", userID), utils.Int("signal_id", item.SignalID), utils.Err(err))
		}
		processed++
	}
	return processed, nil
}

// processOne implements Phase 1 for one (signal, user) pair and, on
// success, lets Executor run Phase 2.
func (o *Orchestrator) processOne(ctx context.Context, userID int, item queue.QueuedSignal) error {
	sig, err := o.signals.GetByID(item.SignalID)
	if err != nil {
		return fmt.Errorf("load signal: %w", err)
	}
	if sig.IsTerminal() {
		return nil // resolved by another worker or a prior batch
	}

	follows, err := o.follows.GetByUserID(userID)
	if err != nil {
		return fmt.Errorf("load follows: %w", err)
	}
	var follow *models.WhaleFollow
	for i := range follows {
		if follows[i].WhaleID == sig.WhaleID {
			follow = &follows[i]
			break
		}
	}
	if follow == nil {
		return o.signals.MarkExpired(ctx, sig.ID, "follow_removed")
	}

	whale, err := o.whales.GetByID(sig.WhaleID)
	if err != nil {
		return fmt.Errorf("load whale: %w", err)
	}

	account, err := o.accounts.GetByUserAndExchange(userID, follow.Exchange)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	if err := o.signals.MarkProcessing(sig.ID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	quantity, reject, err := o.reserve(ctx, userID, *sig, *follow, *whale, *account)
	if err != nil {
		return o.failSignal(ctx, *sig, fmt.Errorf("reserve: %w", err))
	}
	if reject != "" {
		o.logger.Debug("signal rejected in phase 1", utils.Int("signal_id", sig.ID), utils.Int("user_id", userID), utils.String("reason", reject))
		return o.signals.MarkExpired(ctx, sig.ID, reject)
	}

	port, err := o.ports.Get(*account)
	if err != nil {
		return o.failSignal(ctx, *sig, fmt.Errorf("connect: %w", err))
	}

	trade, err := o.exec.Execute(ctx, ExecuteParams{
		Signal: *sig, Follow: *follow, Port: port, Quantity: quantity, Leverage: follow.MaxLeverage,
	})
	if trade == nil {
		return err
	}

	switch trade.Status {
	case models.TradeStatusFilled, models.TradeStatusPartiallyFilled:
		if posErr := o.settlePosition(*sig, *trade); posErr != nil {
			o.logger.Error("position settlement failed", utils.Int("trade_id", trade.ID), utils.Err(posErr))
		}
		return o.signals.MarkProcessed(sig.ID)
	case models.TradeStatusFailed:
		return o.retryOrExpireSignal(ctx, *sig)
	default: // NEEDS_RECONCILIATION: left for the reconciler job, signal stays PROCESSING
		return nil
	}
}

// reserve implements Phase 1 steps 2-3: recompute sizing and the three
// early-reject checks. An empty reject string with a nil error means the
// signal may proceed to Phase 2.
func (o *Orchestrator) reserve(ctx context.Context, userID int, sig models.Signal, follow models.WhaleFollow, whale models.Whale, account models.UserExchangeAccount) (float64, string, error) {
	market := "FUTURES"
	if sig.TradeType == models.TradeTypeSpot {
		market = "SPOT"
	}
	minNotional := o.sizing.MinNotional[fmt.Sprintf("%s:%s", follow.Exchange, market)]

	size := ComputeSize(follow, whale, sig.AmountUSD, account.AvailableBalance)
	floor := o.sizing.MinTradeSizeUSDT
	if buffered := minNotional * (1 + o.sizing.TradeSizeBufferPct/100); buffered > floor {
		floor = buffered
	}
	if size < floor {
		return 0, "below_min_trade_size", nil
	}

	existing, err := o.positions.GetOpenByUserAndSymbol(userID, sig.Symbol)
	if err != nil && !errors.Is(err, repository.ErrPositionNotFound) {
		return 0, "", err
	}
	if existing != nil && !sig.IsClose && existing.Side != sideForSignal(sig) {
		return 0, "opposite_direction_no_hedge", nil
	}

	since := time.Now().Truncate(24 * time.Hour)
	realizedToday, err := o.positions.SumRealizedPnlSince(userID, since)
	if err != nil {
		return 0, "", err
	}
	if realizedToday < -o.sizing.DailyLossLimitUSDT {
		return 0, "daily_loss_limit_reached", nil
	}

	if !sig.IsClose {
		openCount, err := o.positions.CountOpenByUserID(userID)
		if err != nil {
			return 0, "", err
		}
		if openCount >= o.sizing.MaxOpenPositions {
			return 0, "max_open_positions_reached", nil
		}
	}

	quantity := size
	if sig.EntryPriceHint > 0 {
		quantity = size / sig.EntryPriceHint
	}
	return quantity, "", nil
}

// settlePosition implements Phase 2's success branch on the position
// side: open a new Position for an OPEN signal, close the matching one
// for a CLOSE.
func (o *Orchestrator) settlePosition(sig models.Signal, trade models.Trade) error {
	if !sig.IsClose {
		pos := &models.Position{
			UserID:     trade.UserID,
			Symbol:     trade.Symbol,
			Side:       sideForSignal(sig),
			EntryPrice: trade.ExecutedPrice,
			Quantity:   trade.ExecutedQuantity,
			Leverage:   trade.Leverage,
		}
		if err := o.positions.Open(pos); err != nil {
			return err
		}
		o.events.PublishPositionOpened(*pos)
		return nil
	}

	existing, err := o.positions.GetOpenByUserAndSymbol(trade.UserID, trade.Symbol)
	if err != nil {
		if errors.Is(err, repository.ErrPositionNotFound) {
			return nil // whale closed a position we never had; nothing to settle
		}
		return err
	}
	if err := o.positions.Close(existing.ID, existing.Version, trade.ExecutedPrice, trade.FeeAmount, models.CloseReasonWhaleExit); err != nil {
		return err
	}
	existing.Status = models.PositionStatusClosed
	o.events.PublishPositionClosed(*existing)
	return nil
}

// retryOrExpireSignal applies the retry_count budget on the
// non-retryable-failure branch of Phase 2. A signal that has exhausted its
// retries is a failure, not an expiry: expiry is reserved for signals the
// queue drops before execution is ever attempted (see failSignal's own
// callers for the distinction from the genuine MarkExpired sites above).
func (o *Orchestrator) retryOrExpireSignal(ctx context.Context, sig models.Signal) error {
	if sig.RetryCount >= models.MaxSignalRetries {
		return o.signals.MarkFailed(ctx, sig.ID, "max_retries_exhausted")
	}
	return o.signals.RequeueForRetry(ctx, sig.ID)
}

func (o *Orchestrator) failSignal(ctx context.Context, sig models.Signal, cause error) error {
	if failErr := o.signals.MarkFailed(ctx, sig.ID, cause.Error()); failErr != nil {
		return fmt.Errorf("%w (also failed to mark failed: %v)", cause, failErr)
	}
	return cause
}

// sideForSignal derives the Position.Side convention ("LONG"/"SHORT", per
// models.ComputeRealizedPnl) from a signal, distinct from the lowercase
// exchange.SideLong/SideShort used when placing orders.
func sideForSignal(sig models.Signal) string {
	if sig.TradeType == models.TradeTypeFuturesShort {
		return "SHORT"
	}
	return "LONG"
}
