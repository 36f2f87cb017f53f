// Package queue implements the SignalQueue (C8): a per-user priority queue
// that orders pending signals by a 0-100 score so the executor processes
// the highest-conviction copy trades first, with a distributed per-user
// processing lock so one user's signals are never executed concurrently
// by two workers.
//
// Priority is a sorted set keyed by score, with a per-user lock implemented
// as a Redis NX key carrying a TTL, using github.com/go-redis/redis for both.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis"

	"copytrader/internal/models"
)

const (
	queueKeyPrefix         = "signal_queue:"
	processingLockPrefix   = "signal_processing_user:"
	balanceCachePrefix     = "user_balance:"

	// QueueTTL — signals expire out of a user's queue if never processed.
	QueueTTL = 5 * time.Minute
	// ProcessingLockTTL — max time one worker may hold a user's lock.
	ProcessingLockTTL = 60 * time.Second
	// BalanceCacheTTL matches the balance-sync job's refresh interval.
	BalanceCacheTTL = 30 * time.Second
)

// QueuedSignal is one entry in a user's priority queue.
type QueuedSignal struct {
	SignalID   int     `json:"signal_id"`
	WhaleID    int     `json:"whale_id"`
	UserID     int     `json:"user_id"`
	Priority   int     `json:"priority"`
	Symbol     string  `json:"symbol"`
	Action     string  `json:"action"`
	AmountUSD  float64 `json:"amount_usd"`
	Confidence string  `json:"confidence"`
	QueuedAt   int64   `json:"queued_at"`
}

// CalculatePriority scores signal for whale on a 0-100 scale: confidence
// (0-40), whale historical score (0-35), position size (0-25). Formula
// ported verbatim from signal_queue.py's calculate_signal_priority.
func CalculatePriority(signal models.Signal, whale models.Whale) int {
	confidenceWeights := map[models.SignalConfidence]int{
		models.ConfidenceVeryHigh: 40,
		models.ConfidenceHigh:     30,
		models.ConfidenceMedium:   20,
		models.ConfidenceLow:      10,
	}
	confidenceScore, ok := confidenceWeights[signal.Confidence]
	if !ok {
		confidenceScore = 20
	}

	whaleScore := whale.Score
	if whaleScore == 0 {
		whaleScore = 50
	}
	whaleROIScore := int(whaleScore * 0.35)
	if whaleROIScore > 35 {
		whaleROIScore = 35
	}

	amount := signal.AmountUSD
	var sizeScore int
	switch {
	case amount >= 100_000:
		sizeScore = 25
	case amount >= 50_000:
		sizeScore = 15 + int((amount-50_000)/5_000)
	case amount >= 10_000:
		sizeScore = 5 + int((amount-10_000)/4_000)
	default:
		sizeScore = int(amount / 2_000)
		if sizeScore < 0 {
			sizeScore = 0
		}
	}

	total := confidenceScore + whaleROIScore + sizeScore
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	return total
}

// Queue wraps a redis.Client with the per-user sorted-set priority queue
// and processing-lock operations.
type Queue struct {
	client *redis.Client
}

// New builds a Queue backed by client.
func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// CheckBalanceCached reports whether user_id has a cached balance at or
// above minBalance. Absence of a cache entry is treated as eligible (the
// caller falls back to a DB check), matching the original's conservative
// default.
func (q *Queue) CheckBalanceCached(userID int, minBalance float64) (sufficient bool, cached *float64, err error) {
	key := fmt.Sprintf("%s%d", balanceCachePrefix, userID)
	val, err := q.client.Get(key).Result()
	if err == redis.Nil {
		return true, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	var balance float64
	if _, err := fmt.Sscanf(val, "%f", &balance); err != nil {
		return false, nil, err
	}
	return balance >= minBalance, &balance, nil
}

// UpdateBalanceCache stores userID's balance for BalanceCacheTTL.
func (q *Queue) UpdateBalanceCache(userID int, balance float64) error {
	key := fmt.Sprintf("%s%d", balanceCachePrefix, userID)
	return q.client.Set(key, fmt.Sprintf("%f", balance), BalanceCacheTTL).Err()
}

// Enqueue scores and inserts signal into userID's priority queue,
// returning the computed priority.
func (q *Queue) Enqueue(ctx context.Context, signal models.Signal, whale models.Whale, userID int) (int, error) {
	priority := CalculatePriority(signal, whale)

	queued := QueuedSignal{
		SignalID:   signal.ID,
		WhaleID:    whale.ID,
		UserID:     userID,
		Priority:   priority,
		Symbol:     signal.Symbol,
		Action:     string(signal.Action),
		AmountUSD:  signal.AmountUSD,
		Confidence: string(signal.Confidence),
		QueuedAt:   time.Now().Unix(),
	}
	payload, err := json.Marshal(queued)
	if err != nil {
		return 0, err
	}

	key := fmt.Sprintf("%s%d", queueKeyPrefix, userID)
	// negative priority: ZPOPMIN returns the lowest score first, i.e. the
	// most negative, i.e. the highest-priority signal.
	if err := q.client.ZAdd(key, redis.Z{Score: float64(-priority), Member: payload}).Err(); err != nil {
		return 0, err
	}
	q.client.Expire(key, QueueTTL)
	return priority, nil
}

// Depth returns the number of pending signals for userID.
func (q *Queue) Depth(userID int) (int64, error) {
	key := fmt.Sprintf("%s%d", queueKeyPrefix, userID)
	return q.client.ZCard(key).Result()
}

// PopHighestPriority removes and returns the next signal to process for
// userID, or (nil, nil) if the queue is empty.
func (q *Queue) PopHighestPriority(userID int) (*QueuedSignal, error) {
	key := fmt.Sprintf("%s%d", queueKeyPrefix, userID)
	items, err := q.client.ZPopMin(key, 1).Result()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	var qs QueuedSignal
	member, ok := items[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("queue: unexpected member type %T", items[0].Member)
	}
	if err := json.Unmarshal([]byte(member), &qs); err != nil {
		return nil, err
	}
	return &qs, nil
}

// AcquireProcessingLock attempts to become the sole worker processing
// userID's queue; returns false if another worker already holds the lock.
func (q *Queue) AcquireProcessingLock(userID int) (bool, error) {
	key := fmt.Sprintf("%s%d", processingLockPrefix, userID)
	return q.client.SetNX(key, "1", ProcessingLockTTL).Result()
}

// ReleaseProcessingLock releases userID's processing lock.
func (q *Queue) ReleaseProcessingLock(userID int) error {
	key := fmt.Sprintf("%s%d", processingLockPrefix, userID)
	return q.client.Del(key).Err()
}

// ExtendProcessingLock refreshes userID's lock TTL; call periodically
// during long-running processing to avoid losing the lock mid-execution.
func (q *Queue) ExtendProcessingLock(userID int, ttl time.Duration) error {
	key := fmt.Sprintf("%s%d", processingLockPrefix, userID)
	return q.client.Expire(key, ttl).Err()
}
