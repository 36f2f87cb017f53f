package models

import "time"

// Статусы Proxy
const (
	ProxyStatusActive      = "ACTIVE"
	ProxyStatusRateLimited = "RATE_LIMITED"
	ProxyStatusBanned      = "BANNED"
	ProxyStatusCoolingDown = "COOLING_DOWN"
	ProxyStatusDisabled    = "DISABLED"
)

// ExchangeCooldown — крайний срок cool-down прокси для конкретной биржи.
type ExchangeCooldown struct {
	Exchange string    `json:"exchange"`
	Until    time.Time `json:"until"`
}

// Proxy — исходящая идентичность, используемая PollingScheduler для опроса бирж.
type Proxy struct {
	ID       int    `json:"id" db:"id"`
	Host     string `json:"host" db:"host"`
	Port     int    `json:"port" db:"port"`
	Protocol string `json:"protocol" db:"protocol"` // http, socks5
	// Username/Password хранятся в шифрованном виде (pkg/crypto AES-256-GCM);
	// здесь — уже расшифрованное значение для текущего процесса-лизингодателя.
	Username string `json:"-" db:"username"`
	Password string `json:"-" db:"password"`

	Status           string     `json:"status" db:"status"`
	RateLimitedUntil *time.Time `json:"rate_limited_until,omitempty" db:"rate_limited_until"`

	// ExchangeCooldowns — персистентное представление per-exchange cool-down;
	// в памяти обслуживается как map[string]time.Time (см. internal/proxypool).
	ExchangeCooldowns []ExchangeCooldown `json:"exchange_cooldowns,omitempty" db:"-"`

	TotalRequests      int64     `json:"total_requests" db:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests" db:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests" db:"failed_requests"`
	ConsecutiveFails   int       `json:"consecutive_fails" db:"consecutive_fails"`
	AvgLatencyMs       float64   `json:"avg_latency_ms" db:"avg_latency_ms"`
	LastUsedAt         time.Time `json:"last_used_at" db:"last_used_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FailureRate возвращает долю неуспешных запросов для ранжирования при lease().
func (p *Proxy) FailureRate() float64 {
	if p.TotalRequests == 0 {
		return 0
	}
	return float64(p.FailedRequests) / float64(p.TotalRequests)
}

// BalanceCache — короткоживущий кэш доступного баланса пользователя,
// используемый только для предварительной фильтрации пригодности в SignalQueue.
type BalanceCache struct {
	UserID        int       `json:"user_id"`
	AvailableUSDT float64   `json:"available_usdt"`
	RefreshedAt   time.Time `json:"refreshed_at"`
}
