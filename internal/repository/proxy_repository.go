package repository

import (
	"database/sql"
	"errors"
	"time"

	"copytrader/internal/models"
)

// ErrProxyNotFound mirrors a not-found sentinel error, one per repository.
var ErrProxyNotFound = errors.New("proxy not found")

// ProxyRepository works against the proxies table. Username/Password are
// stored encrypted at rest (pkg/crypto AES-256-GCM); this repository never
// sees plaintext credentials, only the ciphertext columns.
type ProxyRepository struct {
	db *sql.DB
}

// NewProxyRepository builds a ProxyRepository.
func NewProxyRepository(db *sql.DB) *ProxyRepository {
	return &ProxyRepository{db: db}
}

const proxyColumns = `id, host, port, protocol, username, password, status,
	rate_limited_until, total_requests, successful_requests, failed_requests,
	consecutive_fails, avg_latency_ms, last_used_at, created_at, updated_at`

func scanProxy(row interface{ Scan(...interface{}) error }) (*models.Proxy, error) {
	p := &models.Proxy{}
	err := row.Scan(
		&p.ID, &p.Host, &p.Port, &p.Protocol, &p.Username, &p.Password, &p.Status,
		&p.RateLimitedUntil, &p.TotalRequests, &p.SuccessfulRequests, &p.FailedRequests,
		&p.ConsecutiveFails, &p.AvgLatencyMs, &p.LastUsedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProxyNotFound
		}
		return nil, err
	}
	return p, nil
}

// Insert stores a new proxy row with encrypted credentials, populating p.ID.
// encUsername/encPassword are ciphertext produced by pkg/crypto; this
// repository never decrypts them.
func (r *ProxyRepository) Insert(p *models.Proxy, encUsername, encPassword string) error {
	query := `
		INSERT INTO proxies (host, port, protocol, username, password, status,
			total_requests, successful_requests, failed_requests, consecutive_fails,
			avg_latency_ms, last_used_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	now := time.Now()
	p.Status = models.ProxyStatusActive
	p.CreatedAt, p.UpdatedAt = now, now

	return r.db.QueryRow(
		query,
		p.Host, p.Port, p.Protocol, encUsername, encPassword, p.Status,
		p.TotalRequests, p.SuccessfulRequests, p.FailedRequests, p.ConsecutiveFails,
		p.AvgLatencyMs, p.LastUsedAt, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
}

// GetByID returns a proxy by ID, credentials still encrypted.
func (r *ProxyRepository) GetByID(id int) (*models.Proxy, error) {
	query := `SELECT ` + proxyColumns + ` FROM proxies WHERE id = $1`
	return scanProxy(r.db.QueryRow(query, id))
}

// ListActive returns every proxy not DISABLED/BANNED, the pool's candidate
// set on startup and after an external status change.
func (r *ProxyRepository) ListActive() ([]models.Proxy, error) {
	query := `SELECT ` + proxyColumns + ` FROM proxies WHERE status NOT IN ($1, $2)`

	rows, err := r.db.Query(query, models.ProxyStatusDisabled, models.ProxyStatusBanned)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var proxies []models.Proxy
	for rows.Next() {
		p, err := scanProxy(rows)
		if err != nil {
			return nil, err
		}
		proxies = append(proxies, *p)
	}
	return proxies, rows.Err()
}

// RecordOutcome updates the rolling request counters used by FailureRate
// ranking after every lease is returned.
func (r *ProxyRepository) RecordOutcome(id int, success bool, latencyMs float64) error {
	query := `
		UPDATE proxies
		SET total_requests = total_requests + 1,
			successful_requests = successful_requests + $1,
			failed_requests = failed_requests + $2,
			consecutive_fails = CASE WHEN $3 THEN 0 ELSE consecutive_fails + 1 END,
			avg_latency_ms = (avg_latency_ms * total_requests + $4) / (total_requests + 1),
			last_used_at = $5,
			updated_at = $5
		WHERE id = $6`

	successInc, failInc := 0, 1
	if success {
		successInc, failInc = 1, 0
	}

	now := time.Now()
	result, err := r.db.Exec(query, successInc, failInc, success, latencyMs, now, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrProxyNotFound
	}
	return nil
}

// SetStatus transitions a proxy's status (e.g. into RATE_LIMITED or
// COOLING_DOWN), optionally setting RateLimitedUntil.
func (r *ProxyRepository) SetStatus(id int, status string, rateLimitedUntil *time.Time) error {
	query := `
		UPDATE proxies
		SET status = $1, rate_limited_until = $2, updated_at = $3
		WHERE id = $4`

	result, err := r.db.Exec(query, status, rateLimitedUntil, time.Now(), id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrProxyNotFound
	}
	return nil
}
