package models

import "time"

// UserExchangeAccount is one follower's own API credentials and cached
// equity on a single exchange, keyed by (UserID, Exchange): WhaleFollow.Exchange
// names the exchange a follow copies onto, and CopyTradeExecutor resolves
// that (user, exchange) pair here before building a connected ExchangePort.
type UserExchangeAccount struct {
	ID     int    `json:"id" db:"id"`
	UserID int    `json:"user_id" db:"user_id"`
	// Exchange — одно из exchange.CopyTradeExchanges (binance/bybit/bitget/okx).
	Exchange string `json:"exchange" db:"exchange"`

	// APIKey/SecretKey/Passphrase хранятся зашифрованными (pkg/crypto
	// AES-256-GCM), как proxy-учётки в internal/proxypool.
	APIKey     string `json:"-" db:"api_key"`
	SecretKey  string `json:"-" db:"secret_key"`
	Passphrase string `json:"-" db:"passphrase"` // только для OKX

	AvailableBalance float64 `json:"available_balance" db:"available_balance"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
