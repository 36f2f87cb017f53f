package models

import "time"

// SignalSource различает происхождение сигнала
type SignalSource string

const (
	SignalSourceWhalePoll  SignalSource = "WHALE_POLL"
	SignalSourceOnchain    SignalSource = "ONCHAIN_SWAP"
	SignalSourceManual     SignalSource = "MANUAL"
)

// SignalAction — наблюдаемое действие кита
type SignalAction string

const (
	ActionBuy             SignalAction = "BUY"
	ActionSell            SignalAction = "SELL"
	ActionAddLiquidity    SignalAction = "ADD_LIQUIDITY"
	ActionRemoveLiquidity SignalAction = "REMOVE_LIQUIDITY"
)

// TradeType — тип рынка, на котором будет скопирована сделка
type TradeType string

const (
	TradeTypeSpot         TradeType = "SPOT"
	TradeTypeFuturesLong  TradeType = "FUTURES_LONG"
	TradeTypeFuturesShort TradeType = "FUTURES_SHORT"
)

// SignalConfidence — уверенность в качестве сигнала
type SignalConfidence string

const (
	ConfidenceLow      SignalConfidence = "LOW"
	ConfidenceMedium   SignalConfidence = "MEDIUM"
	ConfidenceHigh     SignalConfidence = "HIGH"
	ConfidenceVeryHigh SignalConfidence = "VERY_HIGH"
)

// SignalPriority — грубая приоритетная корзина (отдельно от числового score в очереди)
type SignalPriority string

const (
	PriorityLow      SignalPriority = "LOW"
	PriorityMedium   SignalPriority = "MEDIUM"
	PriorityHigh     SignalPriority = "HIGH"
	PriorityVeryHigh SignalPriority = "VERY_HIGH"
)

// Статусы сигнала. PENDING -> PROCESSING -> {PROCESSED, FAILED, EXPIRED}.
// PROCESSING -> PENDING допустим только через восстановление зависших сигналов.
const (
	SignalStatusPending    = "PENDING"
	SignalStatusProcessing = "PROCESSING"
	SignalStatusProcessed  = "PROCESSED"
	SignalStatusExpired    = "EXPIRED"
	SignalStatusFailed     = "FAILED"
)

// MaxSignalRetries — потолок retry_count на уровне сигнала (не путать с retry
// адаптера внутри одного вызова исполнителя, см. DESIGN.md открытый вопрос 4).
const MaxSignalRetries = 3

// Signal — атомарное наблюдаемое действие кита.
//
// Инварианты:
//   - не более одного сигнала на внешний TxHash (естественный ключ дедупликации)
//   - терминальные статусы {PROCESSED, EXPIRED, FAILED} записываются один раз
//   - RetryCount <= MaxSignalRetries
type Signal struct {
	ID      int          `json:"id" db:"id"`
	WhaleID int          `json:"whale_id" db:"whale_id"`
	Source  SignalSource `json:"source" db:"source"`

	// TxHash — естественный ключ дедупликации: номер позиции биржи или,
	// для on-chain, хеш транзакции.
	TxHash string `json:"tx_hash" db:"tx_hash"`

	Action    SignalAction `json:"action" db:"action"`
	Side      SignalAction `json:"side" db:"side"` // BUY/SELL в нормализованном виде
	TradeType TradeType    `json:"trade_type" db:"trade_type"`

	// Symbol на целевой бирже; пустая строка означает "нет соответствия",
	// сигнал не копируется (остаётся наблюдаемым событием only).
	Symbol string `json:"symbol,omitempty" db:"symbol"`

	EntryPriceHint float64          `json:"entry_price_hint" db:"entry_price_hint"`
	AmountUSD      float64          `json:"amount_usd" db:"amount_usd"`
	Confidence     SignalConfidence `json:"confidence" db:"confidence"`
	IsClose        bool             `json:"is_close" db:"is_close"`

	Status     string         `json:"status" db:"status"`
	RetryCount int            `json:"retry_count" db:"retry_count"`
	Priority   SignalPriority `json:"priority" db:"priority"`

	DetectedAt   time.Time  `json:"detected_at" db:"detected_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
}

// CanRetry сообщает, допустимо ли ещё одно восстановление зависшего сигнала.
func (s *Signal) CanRetry() bool {
	return s.RetryCount < MaxSignalRetries
}

// IsTerminal сообщает, что статус записывается один раз и больше не меняется.
func (s *Signal) IsTerminal() bool {
	switch s.Status {
	case SignalStatusProcessed, SignalStatusExpired, SignalStatusFailed:
		return true
	default:
		return false
	}
}
