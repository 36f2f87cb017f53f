// Package ratelimit implements the per-exchange RateLimitGovernor: one
// golang.org/x/time/rate.Limiter per exchange, plus exponential
// backoff-with-jitter for temporary per-exchange cooldowns triggered by
// 429/418 responses.
package ratelimit

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ExchangeLimit describes one exchange's steady-state rate and burst.
type ExchangeLimit struct {
	RequestsPerMinute int
	Burst             int
}

// DefaultLimits is the built-in per-exchange request budget table.
func DefaultLimits() map[string]ExchangeLimit {
	return map[string]ExchangeLimit{
		"BINANCE": {RequestsPerMinute: 60, Burst: 10},
		"OKX":     {RequestsPerMinute: 120, Burst: 20},
		"BITGET":  {RequestsPerMinute: 60, Burst: 10},
	}
}

const (
	initialBackoff = 5 * time.Second
	maxBackoff     = 300 * time.Second
	backoffMult    = 2.0
	backoffJitter  = 0.3
)

type exchangeState struct {
	limiter       *rate.Limiter
	mu            sync.Mutex
	cooldownUntil time.Time
	failStreak    int
}

// Governor is the RateLimitGovernor (C2): per-exchange token-bucket pacing
// plus a cooldown window applied on top when an exchange signals rate
// limiting explicitly (HTTP 429/418).
type Governor struct {
	mu    sync.RWMutex
	state map[string]*exchangeState
	limits map[string]ExchangeLimit
}

// New builds a Governor seeded with limits (falls back to DefaultLimits()
// for any exchange not present in limits).
func New(limits map[string]ExchangeLimit) *Governor {
	merged := DefaultLimits()
	for k, v := range limits {
		merged[k] = v
	}
	return &Governor{state: make(map[string]*exchangeState), limits: merged}
}

func (g *Governor) stateFor(exchange string) *exchangeState {
	g.mu.RLock()
	s, ok := g.state[exchange]
	g.mu.RUnlock()
	if ok {
		return s
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok = g.state[exchange]; ok {
		return s
	}
	lim := g.limits[exchange]
	if lim.RequestsPerMinute <= 0 {
		lim = ExchangeLimit{RequestsPerMinute: 60, Burst: 10}
	}
	s = &exchangeState{
		limiter: rate.NewLimiter(rate.Limit(float64(lim.RequestsPerMinute)/60.0), lim.Burst),
	}
	g.state[exchange] = s
	return s
}

// Wait blocks until a request to exchange is permitted: first honoring any
// active cooldown, then the token bucket.
func (g *Governor) Wait(ctx context.Context, exchange string) error {
	s := g.stateFor(exchange)

	s.mu.Lock()
	until := s.cooldownUntil
	s.mu.Unlock()
	if wait := time.Until(until); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return s.limiter.Wait(ctx)
}

// RecordRateLimited puts exchange into a cooldown window sized by
// exponential backoff with jitter, advancing the failure streak. Call on
// every observed 429/418 from that exchange's adapter.
func (g *Governor) RecordRateLimited(exchange string) time.Duration {
	s := g.stateFor(exchange)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStreak++
	delay := backoffDelay(s.failStreak)
	s.cooldownUntil = time.Now().Add(delay)
	return delay
}

// RecordSuccess resets the failure streak after a clean response.
func (g *Governor) RecordSuccess(exchange string) {
	s := g.stateFor(exchange)
	s.mu.Lock()
	s.failStreak = 0
	s.mu.Unlock()
}

// CooldownUntil reports the exchange's current cooldown deadline (zero if none).
func (g *Governor) CooldownUntil(exchange string) time.Time {
	s := g.stateFor(exchange)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cooldownUntil
}

func backoffDelay(attempt int) time.Duration {
	d := float64(initialBackoff) * math.Pow(backoffMult, float64(attempt-1))
	if d > float64(maxBackoff) {
		d = float64(maxBackoff)
	}
	jitter := d * backoffJitter * (rand.Float64()*2 - 1)
	d += jitter
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
