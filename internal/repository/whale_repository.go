package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"copytrader/internal/models"
	"copytrader/internal/sharing"
)

// ErrWhaleNotFound mirrors a not-found sentinel error, one per repository.
var ErrWhaleNotFound = errors.New("whale not found")

// WhaleRepository works against the whales table.
type WhaleRepository struct {
	db *sql.DB
}

// NewWhaleRepository builds a WhaleRepository.
func NewWhaleRepository(db *sql.DB) *WhaleRepository {
	return &WhaleRepository{db: db}
}

func scanWhale(row interface{ Scan(...interface{}) error }) (*models.Whale, error) {
	w := &models.Whale{}
	err := row.Scan(
		&w.ID, &w.Name, &w.WhaleType,
		&w.Exchange, &w.ExchangeUID,
		&w.Chain, &w.Address,
		&w.DataStatus, &w.ConsecutiveEmptyChecks,
		&w.LastPositionCheck, &w.LastPositionFound,
		&w.SharingDisabledAt, &w.SharingRecheckAt,
		&w.PriorityScore, &w.PollingIntervalSeconds,
		&w.WinRate, &w.AvgWinLossRatio, &w.Score,
		&w.IsActive, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWhaleNotFound
		}
		return nil, err
	}
	return w, nil
}

const whaleColumns = `id, name, whale_type, exchange, exchange_uid, chain, address,
	data_status, consecutive_empty_checks, last_position_check, last_position_found,
	sharing_disabled_at, sharing_recheck_at, priority_score, polling_interval_seconds,
	win_rate, avg_win_loss_ratio, score, is_active, created_at, updated_at`

// Create inserts a whale and populates its ID.
func (r *WhaleRepository) Create(w *models.Whale) error {
	query := `
		INSERT INTO whales (name, whale_type, exchange, exchange_uid, chain, address,
			data_status, consecutive_empty_checks, priority_score, polling_interval_seconds,
			win_rate, avg_win_loss_ratio, score, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`

	now := time.Now()
	w.CreatedAt, w.UpdatedAt = now, now

	return r.db.QueryRow(
		query,
		w.Name, w.WhaleType, w.Exchange, w.ExchangeUID, w.Chain, w.Address,
		w.DataStatus, w.ConsecutiveEmptyChecks, w.PriorityScore, w.PollingIntervalSeconds,
		w.WinRate, w.AvgWinLossRatio, w.Score, w.IsActive, w.CreatedAt, w.UpdatedAt,
	).Scan(&w.ID)
}

// GetByID returns a whale by ID, or ErrWhaleNotFound.
func (r *WhaleRepository) GetByID(id int) (*models.Whale, error) {
	query := `SELECT ` + whaleColumns + ` FROM whales WHERE id = $1`
	return scanWhale(r.db.QueryRow(query, id))
}

// DueForPolling implements scheduler.WhaleSource: whales whose data_status
// admits another poll right now — ACTIVE outright, or RATE_LIMITED/
// SHARING_DISABLED only once their sharing_recheck_at deadline has
// passed — and whose last check is stale enough for another poll tick,
// ordered by priority so hot whales are served first.
func (r *WhaleRepository) DueForPolling(_ context.Context) ([]models.Whale, error) {
	query := `
		SELECT ` + whaleColumns + ` FROM whales
		WHERE is_active = true
			AND (
				data_status = $1
				OR (data_status IN ($2, $3) AND sharing_recheck_at <= $4)
			)
			AND (
				last_position_check IS NULL
				OR last_position_check <= $4 - (polling_interval_seconds || ' seconds')::interval
			)
		ORDER BY priority_score DESC`

	rows, err := r.db.Query(
		query,
		models.WhaleStatusActive, models.WhaleStatusRateLimited, models.WhaleStatusSharingDisabled,
		time.Now(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var whales []models.Whale
	for rows.Next() {
		w, err := scanWhale(rows)
		if err != nil {
			return nil, err
		}
		whales = append(whales, *w)
	}
	return whales, rows.Err()
}

// ApplySharingResult implements scheduler.WhaleSource: persists the
// outcome of one sharing.Evaluate call.
func (r *WhaleRepository) ApplySharingResult(_ context.Context, whaleID int, result sharing.CheckResult) error {
	query := `
		UPDATE whales
		SET data_status = $1, consecutive_empty_checks = $2, sharing_disabled_at = $3,
			sharing_recheck_at = $4, last_position_found = $5, last_position_check = $6,
			updated_at = $7
		WHERE id = $8`

	now := time.Now()
	dbResult, err := r.db.Exec(query, result.Status, result.ConsecutiveEmpty, result.SharingDisabledAt,
		result.SharingRecheckAt, result.LastPositionFound, now, now, whaleID)
	if err != nil {
		return err
	}
	rowsAffected, err := dbResult.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrWhaleNotFound
	}
	return nil
}

// UpdatePriorityScore is used by an out-of-core analytics job
// to keep PriorityScore monotone with realized performance.
func (r *WhaleRepository) UpdatePriorityScore(whaleID int, score, winRate, avgWinLossRatio float64) error {
	query := `
		UPDATE whales
		SET priority_score = $1, win_rate = $2, avg_win_loss_ratio = $3, updated_at = $4
		WHERE id = $5`

	result, err := r.db.Exec(query, score, winRate, avgWinLossRatio, time.Now(), whaleID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrWhaleNotFound
	}
	return nil
}
