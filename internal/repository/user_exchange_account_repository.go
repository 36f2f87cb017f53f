package repository

import (
	"database/sql"
	"errors"
	"time"

	"copytrader/internal/models"
	"copytrader/pkg/crypto"
)

// ErrUserExchangeAccountNotFound mirrors the established ErrOrderNotFound
// sentinel shape.
var ErrUserExchangeAccountNotFound = errors.New("user exchange account not found")

// UserExchangeAccountRepository works against the user_exchange_accounts
// table: each follower's own API credentials per exchange, encrypted at
// rest the same way ProxyRepository encrypts proxy credentials.
type UserExchangeAccountRepository struct {
	db        *sql.DB
	cipherKey string
}

// NewUserExchangeAccountRepository builds a UserExchangeAccountRepository.
// cipherKey is the AES-256-GCM key (pkg/crypto.GenerateKeyString) used to
// decrypt stored credentials on read.
func NewUserExchangeAccountRepository(db *sql.DB, cipherKey string) *UserExchangeAccountRepository {
	return &UserExchangeAccountRepository{db: db, cipherKey: cipherKey}
}

const userExchangeAccountColumns = `id, user_id, exchange, api_key, secret_key, passphrase,
	available_balance, created_at, updated_at`

func (r *UserExchangeAccountRepository) scan(row interface{ Scan(...interface{}) error }) (*models.UserExchangeAccount, error) {
	a := &models.UserExchangeAccount{}
	err := row.Scan(
		&a.ID, &a.UserID, &a.Exchange, &a.APIKey, &a.SecretKey, &a.Passphrase,
		&a.AvailableBalance, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserExchangeAccountNotFound
		}
		return nil, err
	}

	if a.APIKey != "" {
		if plain, decErr := crypto.DecryptWithKeyString(a.APIKey, r.cipherKey); decErr == nil {
			a.APIKey = plain
		}
	}
	if a.SecretKey != "" {
		if plain, decErr := crypto.DecryptWithKeyString(a.SecretKey, r.cipherKey); decErr == nil {
			a.SecretKey = plain
		}
	}
	if a.Passphrase != "" {
		if plain, decErr := crypto.DecryptWithKeyString(a.Passphrase, r.cipherKey); decErr == nil {
			a.Passphrase = plain
		}
	}
	return a, nil
}

// Create encrypts a.APIKey/SecretKey/Passphrase and inserts the row,
// populating a.ID. a's plaintext fields are left as given to the caller.
func (r *UserExchangeAccountRepository) Create(a *models.UserExchangeAccount) error {
	encAPIKey, err := crypto.EncryptWithKeyString(a.APIKey, r.cipherKey)
	if err != nil {
		return err
	}
	encSecret, err := crypto.EncryptWithKeyString(a.SecretKey, r.cipherKey)
	if err != nil {
		return err
	}
	var encPassphrase string
	if a.Passphrase != "" {
		encPassphrase, err = crypto.EncryptWithKeyString(a.Passphrase, r.cipherKey)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO user_exchange_accounts (user_id, exchange, api_key, secret_key, passphrase,
			available_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now

	return r.db.QueryRow(
		query,
		a.UserID, a.Exchange, encAPIKey, encSecret, encPassphrase,
		a.AvailableBalance, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
}

// GetByUserAndExchange is CopyTradeExecutor's lookup before sizing and
// before building a connected ExchangePort for one (user, exchange) pair.
func (r *UserExchangeAccountRepository) GetByUserAndExchange(userID int, exchange string) (*models.UserExchangeAccount, error) {
	query := `SELECT ` + userExchangeAccountColumns + `
		FROM user_exchange_accounts WHERE user_id = $1 AND exchange = $2`
	return r.scan(r.db.QueryRow(query, userID, exchange))
}

// UpdateBalance refreshes the cached AvailableBalance, mirroring
// internal/queue's Redis balance cache but as the durable source backing
// it (the queue cache is a short-TTL read-through layer over this column).
func (r *UserExchangeAccountRepository) UpdateBalance(id int, balance float64) error {
	query := `UPDATE user_exchange_accounts SET available_balance = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(query, balance, time.Now(), id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrUserExchangeAccountNotFound
	}
	return nil
}
