package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors for the validators below. Wrapped by fmt.Errorf where a
// value-specific message is useful, returned bare where the field name alone
// already says everything.
var (
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrInvalidSpread     = errors.New("spread must be in (0, 100]")
	ErrInvalidVolume     = errors.New("volume must be in (0, 1e9]")
	ErrInvalidNOrders    = errors.New("n_orders must be in [1, 100]")
	ErrInvalidStopLoss   = errors.New("stop loss must be in (0, 100]")
	ErrInvalidLeverage   = errors.New("leverage must be in [1, 100]")
	ErrInvalidPercentage = errors.New("percentage must be in [0, 100]")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidAPIKey     = errors.New("api key must be at least 16 characters of letters, digits, - or _")
	ErrInvalidAPISecret  = errors.New("api secret must be at least 16 characters")
	ErrAPIPassphraseTooLong = errors.New("api passphrase too long")
	ErrInvalidExchange   = errors.New("unsupported exchange")
)

var symbolRe = regexp.MustCompile(`^[A-Za-z0-9\-_/]{2,30}$`)
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
var apiKeyRe = regexp.MustCompile(`^[A-Za-z0-9\-_]{16,}$`)

const maxAPIPassphraseLen = 64

// SupportedExchanges — биржи, поддерживаемые конфигурацией пар (наследие
// spread-арбитража; адаптеры копи-трейдинга ведут свой собственный список,
// см. internal/exchange).
var SupportedExchanges = []string{"bybit", "bitget", "okx", "gate", "htx", "bingx"}

// GetSupportedExchanges возвращает копию SupportedExchanges, безопасную для
// модификации вызывающим кодом.
func GetSupportedExchanges() []string {
	out := make([]string, len(SupportedExchanges))
	copy(out, SupportedExchanges)
	return out
}

// ValidateSymbol проверяет формат торгового символа (BTCUSDT, BTC-USDT, ...).
func ValidateSymbol(symbol string) error {
	if !symbolRe.MatchString(symbol) {
		return ErrInvalidSymbol
	}
	if strings.ContainsAny(symbol, " \t\n") {
		return ErrInvalidSymbol
	}
	return nil
}

// IsValidSymbol — булева обёртка над ValidateSymbol.
func IsValidSymbol(symbol string) bool {
	return ValidateSymbol(symbol) == nil
}

// NormalizeSymbol приводит символ к канонической форме: без разделителей,
// в верхнем регистре.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	s = strings.NewReplacer("-", "", "_", "", "/", "").Replace(s)
	return s
}

var quoteCurrencies = []string{"USDT", "USDC", "BUSD", "BTC", "ETH"}

// ExtractBaseCurrency возвращает базовую валюту символа (BTCUSDT -> BTC).
func ExtractBaseCurrency(symbol string) string {
	norm := NormalizeSymbol(symbol)
	for _, q := range quoteCurrencies {
		if len(norm) > len(q) && strings.HasSuffix(norm, q) {
			return norm[:len(norm)-len(q)]
		}
	}
	return norm
}

// ExtractQuoteCurrency возвращает котируемую валюту символа (BTCUSDT -> USDT).
func ExtractQuoteCurrency(symbol string) string {
	norm := NormalizeSymbol(symbol)
	for _, q := range quoteCurrencies {
		if len(norm) > len(q) && strings.HasSuffix(norm, q) {
			return q
		}
	}
	return ""
}

// ValidateSpread проверяет спред входа/выхода: должен быть в (0, 100].
func ValidateSpread(spread float64) error {
	if spread <= 0 || spread > 100 {
		return ErrInvalidSpread
	}
	return nil
}

// ValidateVolume проверяет объём ордера: должен быть в (0, 1e9].
func ValidateVolume(volume float64) error {
	if volume <= 0 || volume > 1e9 {
		return ErrInvalidVolume
	}
	return nil
}

// ValidateNOrders проверяет количество ордеров на сплит: [1, 100].
func ValidateNOrders(n int) error {
	if n < 1 || n > 100 {
		return ErrInvalidNOrders
	}
	return nil
}

// ValidateStopLoss проверяет уровень stop-loss в процентах: (0, 100].
func ValidateStopLoss(sl float64) error {
	if sl <= 0 || sl > 100 {
		return ErrInvalidStopLoss
	}
	return nil
}

// ValidateLeverage проверяет плечо: [1, 100].
func ValidateLeverage(leverage int) error {
	if leverage < 1 || leverage > 100 {
		return ErrInvalidLeverage
	}
	return nil
}

// ValidatePercentage проверяет произвольный процент: [0, 100].
func ValidatePercentage(pct float64) error {
	if pct < 0 || pct > 100 {
		return ErrInvalidPercentage
	}
	return nil
}

// ValidateEmail проверяет базовый формат email.
func ValidateEmail(email string) error {
	if email == "" || !emailRe.MatchString(email) || strings.Count(email, "@") != 1 {
		return ErrInvalidEmail
	}
	return nil
}

// IsValidEmail — булева обёртка над ValidateEmail.
func IsValidEmail(email string) bool {
	return ValidateEmail(email) == nil
}

// ValidateAPIKey проверяет формат API-ключа: минимум 16 символов,
// буквы/цифры/дефис/подчёркивание.
func ValidateAPIKey(apiKey string) error {
	if !apiKeyRe.MatchString(apiKey) {
		return ErrInvalidAPIKey
	}
	return nil
}

// IsValidAPIKey — булева обёртка над ValidateAPIKey.
func IsValidAPIKey(apiKey string) bool {
	return ValidateAPIKey(apiKey) == nil
}

// ValidateAPISecret проверяет длину API-секрета (любые символы допустимы).
func ValidateAPISecret(secret string) error {
	if len(secret) < 16 {
		return ErrInvalidAPISecret
	}
	return nil
}

// ValidateAPIPassphrase проверяет пассфразу; пустая строка допустима,
// так как не все биржи её требуют.
func ValidateAPIPassphrase(passphrase string) error {
	if len(passphrase) > maxAPIPassphraseLen {
		return ErrAPIPassphraseTooLong
	}
	return nil
}

// ValidateExchange проверяет, что биржа входит в SupportedExchanges
// (регистронезависимо).
func ValidateExchange(exchange string) error {
	norm := NormalizeExchange(exchange)
	if norm == "" {
		return ErrInvalidExchange
	}
	for _, e := range SupportedExchanges {
		if e == norm {
			return nil
		}
	}
	return ErrInvalidExchange
}

// IsValidExchange — булева обёртка над ValidateExchange.
func IsValidExchange(exchange string) bool {
	return ValidateExchange(exchange) == nil
}

// NormalizeExchange приводит название биржи к нижнему регистру без пробелов.
func NormalizeExchange(exchange string) string {
	return strings.ToLower(strings.TrimSpace(exchange))
}

// PairConfigValidation — параметры конфигурации пары spread-арбитража,
// собранные в одну структуру для целостной проверки ValidatePairConfig.
type PairConfigValidation struct {
	Symbol      string
	EntrySpread float64
	ExitSpread  float64
	Volume      float64
	NOrders     int
	StopLoss    float64
	ExchangeA   string
	ExchangeB   string
}

// ValidatePairConfig проверяет конфигурацию пары целиком, собирая все
// найденные нарушения в одну ValidationErrors.
func ValidatePairConfig(cfg PairConfigValidation) error {
	var errs ValidationErrors

	errs.AddError("symbol", ValidateSymbol(cfg.Symbol))
	errs.AddError("entry_spread", ValidateSpread(cfg.EntrySpread))
	errs.AddError("exit_spread", ValidateSpread(cfg.ExitSpread))
	errs.AddError("volume", ValidateVolume(cfg.Volume))
	errs.AddError("n_orders", ValidateNOrders(cfg.NOrders))
	errs.AddError("stop_loss", ValidateStopLoss(cfg.StopLoss))
	errs.AddError("exchange_a", ValidateExchange(cfg.ExchangeA))
	errs.AddError("exchange_b", ValidateExchange(cfg.ExchangeB))

	if cfg.ExchangeA != "" && cfg.ExchangeB != "" &&
		NormalizeExchange(cfg.ExchangeA) == NormalizeExchange(cfg.ExchangeB) {
		errs.Add("exchange_b", "exchange_a and exchange_b must differ")
	}

	if cfg.EntrySpread < cfg.ExitSpread {
		errs.Add("entry_spread", "entry spread must be >= exit spread")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidationError — одно нарушение валидации, привязанное к полю.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors собирает несколько ValidationError в единый error.
type ValidationErrors []ValidationError

// Add добавляет нарушение по полю и сообщению.
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// AddError добавляет нарушение из error, если err не nil.
func (e *ValidationErrors) AddError(field string, err error) {
	if err == nil {
		return
	}
	*e = append(*e, ValidationError{Field: field, Message: err.Error()})
}

// HasErrors сообщает, накоплено ли хотя бы одно нарушение.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Error реализует интерфейс error, перечисляя все нарушения через "; ".
func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, ve := range e {
		parts[i] = fmt.Sprintf("%s: %s", ve.Field, ve.Message)
	}
	return strings.Join(parts, "; ")
}
