package repository

import (
	"database/sql"
	"errors"
	"time"

	"copytrader/internal/models"
)

// ErrPositionNotFound mirrors a not-found sentinel error, one per repository.
var ErrPositionNotFound = errors.New("position not found")

// ErrPositionVersionConflict is returned when an UPDATE's WHERE id=$1 AND
// version=$2 matches zero rows: another writer mutated the position first.
var ErrPositionVersionConflict = errors.New("position version conflict")

// PositionRepository works against the positions table: the executor's
// record of a user's copied exposure, opened and grown by filled trades
// and closed once RemainingQty reaches zero.
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository builds a PositionRepository.
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

const positionColumns = `id, user_id, symbol, side, entry_price, exit_price, quantity,
	remaining_quantity, leverage, stop_loss_price, stop_loss_order_id, take_profit_price,
	take_profit_order_id, unrealized_pnl, realized_pnl, status, close_reason, version,
	opened_at, closed_at`

func scanPosition(row interface{ Scan(...interface{}) error }) (*models.Position, error) {
	p := &models.Position{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.Symbol, &p.Side, &p.EntryPrice, &p.ExitPrice, &p.Quantity,
		&p.RemainingQty, &p.Leverage, &p.StopLossPrice, &p.StopLossOrderID, &p.TakeProfitPrice,
		&p.TakeProfitOrderID, &p.UnrealizedPnl, &p.RealizedPnl, &p.Status, &p.CloseReason, &p.Version,
		&p.OpenedAt, &p.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}
	return p, nil
}

// Open inserts a new OPEN position, populating p.ID.
func (r *PositionRepository) Open(p *models.Position) error {
	query := `
		INSERT INTO positions (user_id, symbol, side, entry_price, quantity, remaining_quantity,
			leverage, stop_loss_price, stop_loss_order_id, take_profit_price, take_profit_order_id,
			status, version, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	p.Status = models.PositionStatusOpen
	p.Version = 1
	p.RemainingQty = p.Quantity
	p.OpenedAt = time.Now()

	return r.db.QueryRow(
		query,
		p.UserID, p.Symbol, p.Side, p.EntryPrice, p.Quantity, p.RemainingQty,
		p.Leverage, p.StopLossPrice, p.StopLossOrderID, p.TakeProfitPrice, p.TakeProfitOrderID,
		p.Status, p.Version, p.OpenedAt,
	).Scan(&p.ID)
}

// GetByID returns a position by ID.
func (r *PositionRepository) GetByID(id int) (*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = $1`
	return scanPosition(r.db.QueryRow(query, id))
}

// GetOpenByUserAndSymbol finds the user's live position in a symbol, the
// executor's lookup before deciding whether an incoming signal opens,
// adds to, or closes a position.
func (r *PositionRepository) GetOpenByUserAndSymbol(userID int, symbol string) (*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions
		WHERE user_id = $1 AND symbol = $2 AND status = $3`
	return scanPosition(r.db.QueryRow(query, userID, symbol, models.PositionStatusOpen))
}

// ReduceQuantity applies a partial close/add-on fill, leaving status OPEN.
// version is the caller's last-read value; a mismatch signals a concurrent
// writer and returns ErrPositionVersionConflict.
func (r *PositionRepository) ReduceQuantity(id int, version int, newRemainingQty, unrealizedPnl float64) error {
	query := `
		UPDATE positions
		SET remaining_quantity = $1, unrealized_pnl = $2, version = version + 1
		WHERE id = $3 AND version = $4 AND status = $5`

	result, err := r.db.Exec(query, newRemainingQty, unrealizedPnl, id, version, models.PositionStatusOpen)
	return r.checkVersionedUpdate(result, err)
}

// Close finalizes a position: RealizedPnl is computed once here via
// models.ComputeRealizedPnl and never changes afterward.
func (r *PositionRepository) Close(id int, version int, exitPrice float64, fees float64, reason string) error {
	pos, err := r.GetByID(id)
	if err != nil {
		return err
	}

	realized := models.ComputeRealizedPnl(pos.Side, pos.EntryPrice, exitPrice, pos.Quantity, pos.Leverage, fees)
	status := models.PositionStatusClosed
	if reason == models.CloseReasonLiquidated {
		status = models.PositionStatusLiquidated
	}

	query := `
		UPDATE positions
		SET status = $1, exit_price = $2, remaining_quantity = 0, realized_pnl = $3,
			close_reason = $4, closed_at = $5, version = version + 1
		WHERE id = $6 AND version = $7`

	now := time.Now()
	result, err := r.db.Exec(query, status, exitPrice, realized, reason, now, id, version)
	return r.checkVersionedUpdate(result, err)
}

func (r *PositionRepository) checkVersionedUpdate(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrPositionVersionConflict
	}
	return nil
}

// SumRealizedPnlSince totals RealizedPnl for positions this user closed at
// or after since, for the executor's daily-realized-loss check: a sum
// below -daily_loss_limit_usdt rejects new trades.
func (r *PositionRepository) SumRealizedPnlSince(userID int, since time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(realized_pnl), 0) FROM positions
		WHERE user_id = $1 AND closed_at >= $2 AND status IN ($3, $4)`

	var total float64
	err := r.db.QueryRow(query, userID, since, models.PositionStatusClosed, models.PositionStatusLiquidated).Scan(&total)
	return total, err
}

// CountOpenByUserID returns how many live positions a user currently
// holds, for the executor's max_open_positions check.
func (r *PositionRepository) CountOpenByUserID(userID int) (int, error) {
	query := `SELECT COUNT(*) FROM positions WHERE user_id = $1 AND status = $2`

	var count int
	err := r.db.QueryRow(query, userID, models.PositionStatusOpen).Scan(&count)
	return count, err
}

// GetOpenByUserID lists every live position for a user, used by the API's
// portfolio view.
func (r *PositionRepository) GetOpenByUserID(userID int) ([]models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE user_id = $1 AND status = $2`

	rows, err := r.db.Query(query, userID, models.PositionStatusOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}
