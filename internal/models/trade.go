package models

import "time"

// Статусы Trade. PENDING -> EXECUTING -> {FILLED, PARTIALLY_FILLED,
// CANCELLED, FAILED, NEEDS_RECONCILIATION}. NEEDS_RECONCILIATION может
// ещё перейти в {FILLED, FAILED} через reconciler; остальные терминальны.
const (
	TradeStatusPending              = "PENDING"
	TradeStatusExecuting            = "EXECUTING"
	TradeStatusFilled               = "FILLED"
	TradeStatusPartiallyFilled      = "PARTIALLY_FILLED"
	TradeStatusCancelled            = "CANCELLED"
	TradeStatusFailed               = "FAILED"
	TradeStatusNeedsReconciliation  = "NEEDS_RECONCILIATION"
)

// Trade — единичный ордер, размещённый от имени пользователя.
//
// Инварианты:
//   - статусы {FILLED, PARTIALLY_FILLED, CANCELLED, FAILED} терминальны и
//     записываются один раз; NEEDS_RECONCILIATION переходит только в
//     {FILLED, FAILED}
//   - переходы статуса следуют графу выше
//   - Version строго возрастает при каждой мутации (оптимистичная блокировка)
type Trade struct {
	ID              int    `json:"id" db:"id"`
	UserID          int    `json:"user_id" db:"user_id"`
	SignalID        int    `json:"signal_id" db:"signal_id"`
	Exchange        string `json:"exchange" db:"exchange"`
	ExchangeOrderID string `json:"exchange_order_id,omitempty" db:"exchange_order_id"`
	// ClientOrderID — ключ, выданный нами до вызова адаптера; на биржу не
	// передаётся, reconciler сопоставляет ордера по ExchangeOrderID.
	ClientOrderID string `json:"client_order_id" db:"client_order_id"`

	Symbol    string    `json:"symbol" db:"symbol"`
	Side      string    `json:"side" db:"side"`
	TradeType TradeType `json:"trade_type" db:"trade_type"`

	RequestedQuantity float64 `json:"requested_quantity" db:"requested_quantity"`
	RequestedNotional float64 `json:"requested_notional" db:"requested_notional"`
	ExecutedQuantity  float64 `json:"executed_quantity" db:"executed_quantity"`
	ExecutedPrice     float64 `json:"executed_price" db:"executed_price"`
	FeeAmount         float64 `json:"fee_amount" db:"fee_amount"`
	FeeCurrency       string  `json:"fee_currency,omitempty" db:"fee_currency"`
	Leverage          int     `json:"leverage" db:"leverage"`

	Status       string `json:"status" db:"status"`
	ErrorMessage string `json:"error_message,omitempty" db:"error_message"`
	Version      int    `json:"version" db:"version"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty" db:"executed_at"`
}

// IsTerminal сообщает, что дальнейшие мутации должны проходить через
// проверку версии и, как правило, не ожидаются (кроме NEEDS_RECONCILIATION).
func (t *Trade) IsTerminal() bool {
	switch t.Status {
	case TradeStatusFilled, TradeStatusPartiallyFilled, TradeStatusCancelled, TradeStatusFailed, TradeStatusNeedsReconciliation:
		return true
	default:
		return false
	}
}

// TradeTransitions — граф допустимых переходов статуса Trade.
var TradeTransitions = map[string][]string{
	TradeStatusPending:             {TradeStatusExecuting, TradeStatusFailed, TradeStatusCancelled},
	TradeStatusExecuting:           {TradeStatusFilled, TradeStatusPartiallyFilled, TradeStatusCancelled, TradeStatusFailed, TradeStatusNeedsReconciliation},
	TradeStatusPartiallyFilled:     {},
	TradeStatusNeedsReconciliation: {TradeStatusFilled, TradeStatusFailed},
	TradeStatusFilled:              {},
	TradeStatusCancelled:           {},
	TradeStatusFailed:              {},
}

// CanTransitionTrade проверяет допустимость перехода Trade.from -> to.
func CanTransitionTrade(from, to string) bool {
	if from == to {
		return true
	}
	for _, s := range TradeTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
