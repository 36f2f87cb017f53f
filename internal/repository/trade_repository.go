package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"copytrader/internal/exchange"
	"copytrader/internal/models"
)

// ErrTradeNotFound mirrors a not-found sentinel error, one per repository.
var ErrTradeNotFound = errors.New("trade not found")

// ErrTradeVersionConflict is returned when an UPDATE's WHERE id=$1 AND
// version=$2 matches zero rows: another writer mutated the trade first.
var ErrTradeVersionConflict = errors.New("trade version conflict")

// TradeRepository works against the trades table and implements
// executor.TradeStore.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository builds a TradeRepository.
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

const tradeColumns = `id, user_id, signal_id, exchange, exchange_order_id, client_order_id,
	symbol, side, trade_type, requested_quantity, requested_notional, executed_quantity,
	executed_price, fee_amount, fee_currency, leverage, status, error_message, version,
	created_at, executed_at`

func scanTrade(row interface{ Scan(...interface{}) error }) (*models.Trade, error) {
	t := &models.Trade{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.SignalID, &t.Exchange, &t.ExchangeOrderID, &t.ClientOrderID,
		&t.Symbol, &t.Side, &t.TradeType, &t.RequestedQuantity, &t.RequestedNotional, &t.ExecutedQuantity,
		&t.ExecutedPrice, &t.FeeAmount, &t.FeeCurrency, &t.Leverage, &t.Status, &t.ErrorMessage, &t.Version,
		&t.CreatedAt, &t.ExecutedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	return t, nil
}

// Reserve inserts a PENDING trade row before any exchange call is made,
// populating trade.ID and leaving trade.Version at its initial value.
func (r *TradeRepository) Reserve(_ context.Context, trade *models.Trade) error {
	query := `
		INSERT INTO trades (user_id, signal_id, exchange, client_order_id, symbol, side,
			trade_type, requested_quantity, requested_notional, leverage, status, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	trade.Status = models.TradeStatusPending
	trade.Version = 1
	trade.CreatedAt = time.Now()

	return r.db.QueryRow(
		query,
		trade.UserID, trade.SignalID, trade.Exchange, trade.ClientOrderID, trade.Symbol, trade.Side,
		trade.TradeType, trade.RequestedQuantity, trade.RequestedNotional, trade.Leverage,
		trade.Status, trade.Version, trade.CreatedAt,
	).Scan(&trade.ID)
}

// MarkExecuting implements executor.TradeStore.
func (r *TradeRepository) MarkExecuting(_ context.Context, tradeID int, version int) error {
	query := `
		UPDATE trades
		SET status = $1, version = version + 1
		WHERE id = $2 AND version = $3`

	result, err := r.db.Exec(query, models.TradeStatusExecuting, tradeID, version)
	return r.checkVersionedUpdate(result, err)
}

// MarkFilled implements executor.TradeStore, recording the adapter's
// normalized OrderResult. ExecutedAt is set here and never again: it marks
// the moment the fill was observed, not every subsequent mutation.
func (r *TradeRepository) MarkFilled(ctx context.Context, tradeID int, version int, fill *exchange.OrderResult) error {
	query := `
		UPDATE trades
		SET status = $1, exchange_order_id = $2, executed_quantity = $3, executed_price = $4,
			fee_amount = $5, fee_currency = $6, version = version + 1, executed_at = $7
		WHERE id = $8 AND version = $9`

	status := models.TradeStatusFilled
	if fill.Status == exchange.OrderResultPartiallyFilled {
		status = models.TradeStatusPartiallyFilled
	}

	result, err := r.db.Exec(query, status, fill.OrderID, fill.FilledQty, fill.AvgFillPrice,
		fill.FeeAmount, fill.FeeCurrency, time.Now(), tradeID, version)
	return r.checkVersionedUpdate(result, err)
}

// MarkFailed implements executor.TradeStore.
func (r *TradeRepository) MarkFailed(ctx context.Context, tradeID int, version int, reason string) error {
	query := `
		UPDATE trades
		SET status = $1, error_message = $2, version = version + 1
		WHERE id = $3 AND version = $4`

	result, err := r.db.Exec(query, models.TradeStatusFailed, reason, tradeID, version)
	return r.checkVersionedUpdate(result, err)
}

// MarkNeedsReconciliation implements executor.TradeStore.
func (r *TradeRepository) MarkNeedsReconciliation(ctx context.Context, tradeID int, version int, reason string) error {
	query := `
		UPDATE trades
		SET status = $1, error_message = $2, version = version + 1
		WHERE id = $3 AND version = $4`

	result, err := r.db.Exec(query, models.TradeStatusNeedsReconciliation, reason, tradeID, version)
	return r.checkVersionedUpdate(result, err)
}

func (r *TradeRepository) checkVersionedUpdate(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrTradeVersionConflict
	}
	return nil
}

// GetByID returns a trade by ID.
func (r *TradeRepository) GetByID(id int) (*models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`
	return scanTrade(r.db.QueryRow(query, id))
}

// GetByClientOrderID finds a trade by its idempotent client order id.
// The reconciler does not use it; it looks trades up by exchange order id.
func (r *TradeRepository) GetByClientOrderID(clientOrderID string) (*models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE client_order_id = $1`
	return scanTrade(r.db.QueryRow(query, clientOrderID))
}

// FindNeedsReconciliation implements jobs.TradeRecoveryStore.
func (r *TradeRepository) FindNeedsReconciliation(_ context.Context) ([]models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE status = $1`

	rows, err := r.db.Query(query, models.TradeStatusNeedsReconciliation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *t)
	}
	return trades, rows.Err()
}
