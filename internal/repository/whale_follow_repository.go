package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"copytrader/internal/models"
)

// ErrWhaleFollowNotFound mirrors a not-found sentinel error, one per repository.
var ErrWhaleFollowNotFound = errors.New("whale follow not found")

// ErrDuplicateFollow is returned by Create when (user_id, whale_id)
// already has a row; enforced by a unique index at the schema level.
var ErrDuplicateFollow = errors.New("user already follows this whale")

// WhaleFollowRepository works against the whale_follows table.
type WhaleFollowRepository struct {
	db *sql.DB
}

// NewWhaleFollowRepository builds a WhaleFollowRepository.
func NewWhaleFollowRepository(db *sql.DB) *WhaleFollowRepository {
	return &WhaleFollowRepository{db: db}
}

const whaleFollowColumns = `id, user_id, whale_id, auto_copy, copy_trade_size_usdt,
	trade_size_percent, sizing_strategy, max_leverage, exchange, created_at, updated_at`

func scanWhaleFollow(row interface{ Scan(...interface{}) error }) (*models.WhaleFollow, error) {
	f := &models.WhaleFollow{}
	err := row.Scan(
		&f.ID, &f.UserID, &f.WhaleID, &f.AutoCopy, &f.CopyTradeSizeUSDT,
		&f.TradeSizePercent, &f.SizingStrategy, &f.MaxLeverage, &f.Exchange,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWhaleFollowNotFound
		}
		return nil, err
	}
	return f, nil
}

// Create inserts a follow subscription, translating the schema's unique
// constraint violation into ErrDuplicateFollow.
func (r *WhaleFollowRepository) Create(f *models.WhaleFollow) error {
	query := `
		INSERT INTO whale_follows (user_id, whale_id, auto_copy, copy_trade_size_usdt,
			trade_size_percent, sizing_strategy, max_leverage, exchange, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	now := time.Now()
	f.CreatedAt, f.UpdatedAt = now, now

	err := r.db.QueryRow(
		query,
		f.UserID, f.WhaleID, f.AutoCopy, f.CopyTradeSizeUSDT,
		f.TradeSizePercent, f.SizingStrategy, f.MaxLeverage, f.Exchange,
		f.CreatedAt, f.UpdatedAt,
	).Scan(&f.ID)

	if err != nil && isWhaleFollowUniqueViolation(err) {
		return ErrDuplicateFollow
	}
	return err
}

// isWhaleFollowUniqueViolation проверяет, является ли ошибка нарушением UNIQUE constraint
func isWhaleFollowUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "23505")
}

// GetByID returns one follow row.
func (r *WhaleFollowRepository) GetByID(id int) (*models.WhaleFollow, error) {
	query := `SELECT ` + whaleFollowColumns + ` FROM whale_follows WHERE id = $1`
	return scanWhaleFollow(r.db.QueryRow(query, id))
}

// GetByWhaleID returns every active follower of a whale, used by the
// executor fan-out when a signal is emitted for that whale.
func (r *WhaleFollowRepository) GetByWhaleID(whaleID int) ([]models.WhaleFollow, error) {
	query := `SELECT ` + whaleFollowColumns + ` FROM whale_follows WHERE whale_id = $1 AND auto_copy = true`

	rows, err := r.db.Query(query, whaleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var follows []models.WhaleFollow
	for rows.Next() {
		f, err := scanWhaleFollow(rows)
		if err != nil {
			return nil, err
		}
		follows = append(follows, *f)
	}
	return follows, rows.Err()
}

// GetByUserID returns every follow a user has configured.
func (r *WhaleFollowRepository) GetByUserID(userID int) ([]models.WhaleFollow, error) {
	query := `SELECT ` + whaleFollowColumns + ` FROM whale_follows WHERE user_id = $1`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var follows []models.WhaleFollow
	for rows.Next() {
		f, err := scanWhaleFollow(rows)
		if err != nil {
			return nil, err
		}
		follows = append(follows, *f)
	}
	return follows, rows.Err()
}

// ActiveUserIDs returns the distinct set of users with at least one
// auto-copy follow, so the orchestrator's drain loop knows whose queue
// to sweep each tick without scanning every registered user.
func (r *WhaleFollowRepository) ActiveUserIDs() ([]int, error) {
	query := `SELECT DISTINCT user_id FROM whale_follows WHERE auto_copy = true`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateSizing changes a follow's sizing strategy/parameters.
func (r *WhaleFollowRepository) UpdateSizing(id int, strategy models.SizingStrategy, fixedUSDT, percent float64, maxLeverage int) error {
	query := `
		UPDATE whale_follows
		SET sizing_strategy = $1, copy_trade_size_usdt = $2, trade_size_percent = $3,
			max_leverage = $4, updated_at = $5
		WHERE id = $6`

	result, err := r.db.Exec(query, strategy, fixedUSDT, percent, maxLeverage, time.Now(), id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrWhaleFollowNotFound
	}
	return nil
}

// Delete removes a follow subscription.
func (r *WhaleFollowRepository) Delete(id int) error {
	result, err := r.db.Exec(`DELETE FROM whale_follows WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrWhaleFollowNotFound
	}
	return nil
}
