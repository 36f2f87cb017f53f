package scheduler

// Fetcher is the production PositionFetcher: it wires ProxyPool (C1),
// RateLimitGovernor (C2), CircuitBreaker (C4), and an ExchangePort
// adapter (C3) together to observe one whale's public leaderboard
// positions per the fairness/risk model "scheduler composes C1-C4" framing.
//
// GetLeaderboardPositions is an unauthenticated public lookup on every
// adapter (see okx_port.go/bybit_port.go/bitget_port.go: doRequest's
// signed argument is false), so Fetcher builds a fresh, unconnected
// exchange.NewExchangePort per call rather than holding one shared,
// Connect()-ed adapter instance: the per-tick fan-out in Scheduler.tick
// polls many whales on the same exchange concurrently, and the REST
// adapters keep their http.Client in a plain struct field (SetHTTPClient
// added for exactly this seam) that is not safe to mutate from multiple
// goroutines at once.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"copytrader/internal/circuitbreaker"
	"copytrader/internal/exchange"
	"copytrader/internal/models"
	"copytrader/internal/proxypool"
	"copytrader/internal/ratelimit"
	"copytrader/internal/signals"
	"copytrader/pkg/utils"
)

// Fetcher implements PositionFetcher.
type Fetcher struct {
	breakers *circuitbreaker.Registry
	proxies  *proxypool.Pool
	governor *ratelimit.Governor
	logger   *utils.Logger
}

// NewFetcher builds a Fetcher. proxies may be nil, in which case calls
// skip proxy leasing and go out on the process's default transport.
func NewFetcher(breakers *circuitbreaker.Registry, proxies *proxypool.Pool, governor *ratelimit.Governor) *Fetcher {
	return &Fetcher{breakers: breakers, proxies: proxies, governor: governor, logger: utils.GetGlobalLogger()}
}

// FetchPositions observes whale's current leaderboard positions. Errors
// from the adapter are passed through unwrapped so Scheduler.pollOne can
// classify ErrSharingDisabled/ErrRateLimited via errors.Is.
func (f *Fetcher) FetchPositions(ctx context.Context, whale models.Whale) ([]signals.ObservedPosition, error) {
	if whale.WhaleType != models.WhaleTypeCEXTrader {
		return nil, fmt.Errorf("scheduler: fetcher only observes CEX_TRADER whales (whale %d is %s)", whale.ID, whale.WhaleType)
	}

	exchangeName := strings.ToUpper(whale.Exchange)

	if err := f.governor.Wait(ctx, exchangeName); err != nil {
		return nil, err
	}

	port, err := exchange.NewExchangePort(whale.Exchange)
	if err != nil {
		return nil, err
	}

	var release func(success bool)
	if f.proxies != nil {
		client, r, leaseErr := f.proxies.Lease(ctx, exchangeName)
		if leaseErr == nil {
			if aware, ok := port.(interface{ SetHTTPClient(*http.Client) }); ok {
				aware.SetHTTPClient(client)
			}
			release = r
		} else if !errors.Is(leaseErr, proxypool.ErrNoProxyAvailable) {
			f.logger.Warn("scheduler: proxy lease failed, falling back to default transport", utils.Err(leaseErr))
		}
	}

	breaker := f.breakers.Get(exchangeName)
	guarded := exchange.WithBreaker(port, breaker)

	positions, fetchErr := guarded.GetLeaderboardPositions(ctx, whale.ExchangeUID)

	if release != nil {
		release(fetchErr == nil)
	}
	switch {
	case fetchErr == nil:
		f.governor.RecordSuccess(exchangeName)
	case errors.Is(fetchErr, exchange.ErrRateLimited):
		f.governor.RecordRateLimited(exchangeName)
	}
	if fetchErr != nil {
		return nil, fetchErr
	}

	out := make([]signals.ObservedPosition, 0, len(positions))
	for _, p := range positions {
		out = append(out, signals.ObservedPosition{
			Symbol:     p.Symbol,
			Side:       strings.ToUpper(p.Side),
			Quantity:   p.Size,
			EntryPrice: p.EntryPrice,
			Revision:   p.UpdatedAt,
		})
	}
	return out, nil
}
