package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Security   SecurityConfig
	Scheduler  SchedulerConfig
	Sharing    SharingConfig
	RateLimit  RateLimitConfig
	Circuit    CircuitConfig
	Sizing     SizingConfig
	Queue      QueueConfig
	ProxyPool  ProxyPoolConfig
	Redis      RedisConfig
	Logging    LoggingConfig
}

// RedisConfig - подключение к Redis, на котором держится SignalQueue (C8):
// сортированные множества по пользователю плюс NX-блокировки обработки.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ServerConfig - настройки HTTP control surface (presentation layer, outside the trading core)
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	JWTSecret      string
	EncryptionKey  string
	SessionTimeout int
	APIToken       string // bearer token required on /api/v1/*, empty disables auth (local/dev use)
}

// SchedulerConfig - параметры PollingScheduler (C6) и фоновых задач
type SchedulerConfig struct {
	WhaleMonitorInterval  time.Duration // config contract whale_monitor_interval_seconds
	MaxInflightPerExchange int
	FetchTimeout          time.Duration // per-call timeout, default 10s
	JanitorInterval        time.Duration
	SignalExpiry           time.Duration // config contract signal_expiry_seconds
}

// SharingConfig - параметры SharingValidator (C5)
type SharingConfig struct {
	EmptyChecksThreshold  int           // EMPTY_CHECKS_THRESHOLD (count, see DESIGN.md Open Question 2)
	RecheckInterval       time.Duration // RECHECK_INTERVAL_HOURS
	AlwaysPublicExchanges []string      // ALWAYS_PUBLIC_EXCHANGES
}

// RateLimitConfig - параметры RateLimitGovernor (C2) per-exchange defaults
type RateLimitConfig struct {
	Exchanges map[string]ExchangeLimit
}

// ExchangeLimit - budget/backoff параметры для одной биржи
type ExchangeLimit struct {
	RequestsPerMinute int
	Burst             int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	JitterFactor      float64
}

// CircuitConfig - параметры CircuitBreaker (C4)
type CircuitConfig struct {
	FailureThreshold int
	TimeoutSeconds   time.Duration
	SuccessThreshold int
}

// SizingConfig - параметры сайзинга сделок исполнителя (C9)
type SizingConfig struct {
	MinTradingBalanceUSDT float64
	MinTradeSizeUSDT      float64
	TradeSizeBufferPct    float64
	MaxOpenPositions      int
	DailyLossLimitUSDT    float64
	ExchangeMaxRetries    int
	ExchangeRetryBase     time.Duration
	ExchangeRetryMax      time.Duration
	// EXCHANGE_MIN_NOTIONAL[exchange][market] — плоский ключ "exchange:market"
	MinNotional map[string]float64
}

// QueueConfig - параметры SignalQueue (C8)
type QueueConfig struct {
	MaxSignalsPerBatch  int
	ProcessingLockTTL   time.Duration
	BalanceCacheTTL     time.Duration
	QueueTTL            time.Duration
}

// ProxyPoolConfig - параметры ProxyPool (C1)
type ProxyPoolConfig struct {
	MinActiveProxies    int
	MaxProxiesToTest    int
	RefreshInterval     time.Duration
	ConsecutiveFailsToBan int
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level       string
	Format      string
	Output      string
	Development bool
}

// Load загружает конфигурацию: сперва пытается подгрузить .env (как в
// ChoSanghyuk-blackholedex / Jonaed13-potential-pancake через godotenv),
// отсутствие файла не является ошибкой, затем читает process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		// .env необязателен; логируем через fmt, т.к. логгер ещё не инициализирован
		fmt.Fprintf(os.Stderr, "config: .env not loaded: %v\n", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "copytrader"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
			EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
			SessionTimeout: getEnvAsInt("SESSION_TIMEOUT", 3600),
			APIToken:       getEnv("API_TOKEN", ""),
		},
		Scheduler: SchedulerConfig{
			WhaleMonitorInterval:   getEnvAsDuration("WHALE_MONITOR_INTERVAL_SECONDS", 1*time.Second),
			MaxInflightPerExchange: getEnvAsInt("MAX_INFLIGHT_PER_EXCHANGE", 8),
			FetchTimeout:           getEnvAsDuration("FETCH_TIMEOUT", 10*time.Second),
			JanitorInterval:        getEnvAsDuration("JANITOR_INTERVAL", 60*time.Second),
			SignalExpiry:           getEnvAsDuration("SIGNAL_EXPIRY_SECONDS", 60*time.Second),
		},
		Sharing: SharingConfig{
			EmptyChecksThreshold:  getEnvAsInt("EMPTY_CHECKS_THRESHOLD", 1000),
			RecheckInterval:       time.Duration(getEnvAsInt("RECHECK_INTERVAL_HOURS", 24)) * time.Hour,
			AlwaysPublicExchanges: getEnvAsStringSlice("ALWAYS_PUBLIC_EXCHANGES", []string{"BITGET"}),
		},
		RateLimit: RateLimitConfig{
			Exchanges: defaultExchangeLimits(),
		},
		Circuit: CircuitConfig{
			FailureThreshold: getEnvAsInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5),
			TimeoutSeconds:   getEnvAsDuration("CIRCUIT_BREAKER_RECOVERY_TIMEOUT", 30*time.Second),
			SuccessThreshold: getEnvAsInt("CIRCUIT_BREAKER_SUCCESS_THRESHOLD", 2),
		},
		Sizing: SizingConfig{
			MinTradingBalanceUSDT: getEnvAsFloat("MIN_TRADING_BALANCE_USDT", 10),
			MinTradeSizeUSDT:      getEnvAsFloat("MIN_TRADE_SIZE_USDT", 5),
			TradeSizeBufferPct:    getEnvAsFloat("TRADE_SIZE_BUFFER_PERCENT", 5),
			MaxOpenPositions:      getEnvAsInt("MAX_OPEN_POSITIONS", 10),
			DailyLossLimitUSDT:    getEnvAsFloat("DAILY_LOSS_LIMIT_USDT", 500),
			ExchangeMaxRetries:    getEnvAsInt("EXCHANGE_MAX_RETRIES", 4),
			ExchangeRetryBase:     getEnvAsDuration("EXCHANGE_RETRY_BASE_DELAY", 1*time.Second),
			ExchangeRetryMax:      getEnvAsDuration("EXCHANGE_RETRY_MAX_DELAY", 30*time.Second),
			MinNotional:           defaultMinNotional(),
		},
		Queue: QueueConfig{
			MaxSignalsPerBatch: getEnvAsInt("MAX_SIGNALS_PER_BATCH", 5),
			ProcessingLockTTL:  getEnvAsDuration("PROCESSING_LOCK_TTL", 60*time.Second),
			BalanceCacheTTL:    getEnvAsDuration("BALANCE_CACHE_TTL", 30*time.Second),
			QueueTTL:           getEnvAsDuration("QUEUE_TTL", 300*time.Second),
		},
		ProxyPool: ProxyPoolConfig{
			MinActiveProxies:      getEnvAsInt("MIN_ACTIVE_PROXIES", 10),
			MaxProxiesToTest:      getEnvAsInt("MAX_PROXIES_TO_TEST", 500),
			RefreshInterval:       getEnvAsDuration("PROXY_REFRESH_INTERVAL", 5*time.Minute),
			ConsecutiveFailsToBan: getEnvAsInt("PROXY_CONSECUTIVE_FAILS_TO_BAN", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "json"),
			Output:      getEnv("LOG_OUTPUT", ""),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if cfg.Security.EncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required for encrypting proxy credentials")
	}
	if len(cfg.Security.EncryptionKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	return cfg, nil
}

// defaultExchangeLimits seeds per-exchange RateLimitGovernor defaults.
func defaultExchangeLimits() map[string]ExchangeLimit {
	base := func(rpm, burst int) ExchangeLimit {
		return ExchangeLimit{
			RequestsPerMinute: rpm,
			Burst:             burst,
			InitialBackoff:    5 * time.Second,
			MaxBackoff:        300 * time.Second,
			BackoffMultiplier: 2,
			JitterFactor:      0.3,
		}
	}
	return map[string]ExchangeLimit{
		"BINANCE": base(60, 10),
		"OKX":     base(120, 20),
		"BITGET":  base(60, 10),
		"BYBIT":   base(60, 10),
	}
}

func defaultMinNotional() map[string]float64 {
	return map[string]float64{
		"BINANCE:SPOT":    5,
		"BINANCE:FUTURES": 5,
		"OKX:SPOT":        1,
		"OKX:FUTURES":     1,
		"BITGET:SPOT":     5,
		"BITGET:FUTURES":  5,
		"BYBIT:SPOT":      5,
		"BYBIT:FUTURES":   5,
	}
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	// поддержка как "30s", так и голого числа секунд (как в исходных *_SECONDS ключах)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, strings.ToUpper(trimmed))
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
