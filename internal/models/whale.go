package models

import "time"

// WhaleType различает биржевых трейдеров и on-chain кошельки
type WhaleType string

const (
	WhaleTypeCEXTrader     WhaleType = "CEX_TRADER"
	WhaleTypeOnchainWallet WhaleType = "ONCHAIN_WALLET"
)

// Статусы наблюдаемости кита (состояния SharingValidator)
const (
	WhaleStatusActive          = "ACTIVE"
	WhaleStatusSharingDisabled = "SHARING_DISABLED"
	WhaleStatusRateLimited     = "RATE_LIMITED"
	WhaleStatusInactive        = "INACTIVE"
)

// Whale представляет отслеживаемого трейдера: биржевого лидера или on-chain кошелёк.
//
// Инварианты:
//   - Exchange == "BITGET" => DataStatus никогда не SHARING_DISABLED
//   - DataStatus == SHARING_DISABLED => SharingRecheckAt != nil && после SharingDisabledAt
//   - PriorityScore монотонен относительно исторической доходности (поддерживается внешним job)
type Whale struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	WhaleType WhaleType `json:"whale_type" db:"whale_type"`

	// CEX_TRADER
	Exchange    string `json:"exchange,omitempty" db:"exchange"`
	ExchangeUID string `json:"exchange_uid,omitempty" db:"exchange_uid"`

	// ONCHAIN_WALLET
	Chain   string `json:"chain,omitempty" db:"chain"`
	Address string `json:"address,omitempty" db:"address"`

	DataStatus             string     `json:"data_status" db:"data_status"`
	ConsecutiveEmptyChecks int        `json:"consecutive_empty_checks" db:"consecutive_empty_checks"`
	LastPositionCheck      *time.Time `json:"last_position_check,omitempty" db:"last_position_check"`
	LastPositionFound      *time.Time `json:"last_position_found,omitempty" db:"last_position_found"`
	SharingDisabledAt      *time.Time `json:"sharing_disabled_at,omitempty" db:"sharing_disabled_at"`
	SharingRecheckAt       *time.Time `json:"sharing_recheck_at,omitempty" db:"sharing_recheck_at"`

	PriorityScore          float64 `json:"priority_score" db:"priority_score"`
	PollingIntervalSeconds int     `json:"polling_interval_seconds" db:"polling_interval_seconds"`

	// Используются только исполнителем для KELLY-сайзинга; сопровождаются
	// внешним аналитическим job'ом, здесь только чтение.
	WinRate          float64 `json:"win_rate,omitempty" db:"win_rate"`
	AvgWinLossRatio  float64 `json:"avg_win_loss_ratio,omitempty" db:"avg_win_loss_ratio"`
	Score            float64 `json:"score" db:"score"` // 0-100, используется SignalQueue для whale_score_weight

	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAlwaysPublic возвращает true для бирж, которые никогда не скрывают позиции.
func (w *Whale) IsAlwaysPublic() bool {
	return w.Exchange == "BITGET"
}

// SizingStrategy определяет способ расчёта размера копируемой сделки
type SizingStrategy string

const (
	SizingFixed   SizingStrategy = "FIXED"
	SizingPercent SizingStrategy = "PERCENT"
	SizingKelly   SizingStrategy = "KELLY"
)

// WhaleFollow — подписка пользователя на кита.
//
// Инвариант: пара (UserID, WhaleID) встречается не более одного раза
// (обеспечивается уникальным индексом на уровне репозитория).
type WhaleFollow struct {
	ID                int            `json:"id" db:"id"`
	UserID            int            `json:"user_id" db:"user_id"`
	WhaleID           int            `json:"whale_id" db:"whale_id"`
	AutoCopy          bool           `json:"auto_copy" db:"auto_copy"`
	CopyTradeSizeUSDT float64        `json:"copy_trade_size_usdt,omitempty" db:"copy_trade_size_usdt"`
	TradeSizePercent  float64        `json:"trade_size_percent,omitempty" db:"trade_size_percent"`
	SizingStrategy    SizingStrategy `json:"sizing_strategy" db:"sizing_strategy"`
	MaxLeverage       int            `json:"max_leverage" db:"max_leverage"`
	Exchange          string         `json:"exchange" db:"exchange"` // биржа, на которой копируется сделка
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}
