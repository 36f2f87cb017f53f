package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"copytrader/internal/models"
)

// ErrSignalNotFound mirrors a not-found sentinel error, one per repository.
var ErrSignalNotFound = errors.New("signal not found")

// ErrDuplicateSignal is returned by Create when tx_hash already exists;
// TxHash is the natural dedup key per models.Signal's invariant comment.
var ErrDuplicateSignal = errors.New("signal with this tx_hash already exists")

// SignalRepository works against the signals table.
type SignalRepository struct {
	db *sql.DB
}

// NewSignalRepository builds a SignalRepository.
func NewSignalRepository(db *sql.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

const signalColumns = `id, whale_id, source, tx_hash, action, side, trade_type, symbol,
	entry_price_hint, amount_usd, confidence, is_close, status, retry_count, priority,
	detected_at, processed_at, error_message`

func scanSignal(row interface{ Scan(...interface{}) error }) (*models.Signal, error) {
	s := &models.Signal{}
	err := row.Scan(
		&s.ID, &s.WhaleID, &s.Source, &s.TxHash, &s.Action, &s.Side, &s.TradeType, &s.Symbol,
		&s.EntryPriceHint, &s.AmountUSD, &s.Confidence, &s.IsClose, &s.Status, &s.RetryCount, &s.Priority,
		&s.DetectedAt, &s.ProcessedAt, &s.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSignalNotFound
		}
		return nil, err
	}
	return s, nil
}

// Create inserts a signal, translating a tx_hash unique violation into
// ErrDuplicateSignal (the expected outcome of re-observing the same
// whale action across overlapping poll ticks).
func (r *SignalRepository) Create(s *models.Signal) error {
	query := `
		INSERT INTO signals (whale_id, source, tx_hash, action, side, trade_type, symbol,
			entry_price_hint, amount_usd, confidence, is_close, status, retry_count, priority, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	if s.DetectedAt.IsZero() {
		s.DetectedAt = time.Now()
	}

	err := r.db.QueryRow(
		query,
		s.WhaleID, s.Source, s.TxHash, s.Action, s.Side, s.TradeType, s.Symbol,
		s.EntryPriceHint, s.AmountUSD, s.Confidence, s.IsClose, s.Status, s.RetryCount, s.Priority, s.DetectedAt,
	).Scan(&s.ID)

	if err != nil && isSignalUniqueViolation(err) {
		return ErrDuplicateSignal
	}
	return err
}

// isSignalUniqueViolation проверяет, является ли ошибка нарушением UNIQUE constraint
func isSignalUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "23505")
}

// Emit implements scheduler.SignalSink: persists a newly-derived signal,
// silently absorbing a duplicate tx_hash (the same whale action observed
// again across overlapping poll ticks is expected, not an error).
func (r *SignalRepository) Emit(_ context.Context, sig models.Signal) error {
	err := r.Create(&sig)
	if errors.Is(err, ErrDuplicateSignal) {
		return nil
	}
	return err
}

// GetByID returns a signal by ID.
func (r *SignalRepository) GetByID(id int) (*models.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE id = $1`
	return scanSignal(r.db.QueryRow(query, id))
}

// FindStuckProcessing implements jobs.SignalRecoveryStore: signals still
// marked PROCESSING after olderThan have outlived a crashed/restarted worker.
func (r *SignalRepository) FindStuckProcessing(_ context.Context, olderThan time.Duration) ([]models.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE status = $1 AND detected_at <= $2`
	cutoff := time.Now().Add(-olderThan)

	rows, err := r.db.Query(query, models.SignalStatusProcessing, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		signals = append(signals, *s)
	}
	return signals, rows.Err()
}

// RequeueForRetry moves a stuck signal back to PENDING, bumping retry_count.
func (r *SignalRepository) RequeueForRetry(_ context.Context, signalID int) error {
	query := `
		UPDATE signals
		SET status = $1, retry_count = retry_count + 1
		WHERE id = $2`

	result, err := r.db.Exec(query, models.SignalStatusPending, signalID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrSignalNotFound
	}
	return nil
}

// MarkExpired marks a signal EXPIRED after it exhausts its retry budget.
func (r *SignalRepository) MarkExpired(_ context.Context, signalID int, reason string) error {
	query := `
		UPDATE signals
		SET status = $1, error_message = $2, processed_at = $3
		WHERE id = $4`

	result, err := r.db.Exec(query, models.SignalStatusExpired, reason, time.Now(), signalID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrSignalNotFound
	}
	return nil
}

// MarkFailed marks a signal FAILED after its retry budget is exhausted or
// it hits a non-retryable execution error, distinct from MarkExpired which
// is reserved for signals the queue drops without attempting execution
// (e.g. the follow was removed before the signal was popped).
func (r *SignalRepository) MarkFailed(_ context.Context, signalID int, reason string) error {
	query := `
		UPDATE signals
		SET status = $1, error_message = $2, processed_at = $3
		WHERE id = $4`

	result, err := r.db.Exec(query, models.SignalStatusFailed, reason, time.Now(), signalID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrSignalNotFound
	}
	return nil
}

// MarkProcessing transitions a PENDING signal to PROCESSING before a
// worker starts acting on it.
func (r *SignalRepository) MarkProcessing(signalID int) error {
	query := `UPDATE signals SET status = $1 WHERE id = $2 AND status = $3`

	result, err := r.db.Exec(query, models.SignalStatusProcessing, signalID, models.SignalStatusPending)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrSignalNotFound
	}
	return nil
}

// MarkProcessed marks a signal PROCESSED once its trade(s) are resolved.
func (r *SignalRepository) MarkProcessed(signalID int) error {
	query := `
		UPDATE signals
		SET status = $1, processed_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(query, models.SignalStatusProcessed, time.Now(), signalID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrSignalNotFound
	}
	return nil
}
