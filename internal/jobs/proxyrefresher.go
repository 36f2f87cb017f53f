package jobs

import (
	"context"
	"time"

	"copytrader/internal/models"
	"copytrader/internal/proxypool"
	"copytrader/pkg/utils"
)

// ProxyPool is the subset of proxypool.Pool the refresher depends on.
type ProxyPool interface {
	ActiveCount() int
	Admit(storedProxy models.Proxy, encUsername, encPassword string) error
}

// ProxyCandidate bundles a proxy row with its encrypted-at-rest
// credentials, exactly what Pool.Admit needs.
type ProxyCandidate struct {
	Proxy             models.Proxy
	EncryptedUsername string
	EncryptedPassword string
}

// ProxySupplier yields candidate proxies not currently admitted to the
// pool, rotating between whatever upstream providers are configured.
type ProxySupplier interface {
	NextCandidates(ctx context.Context, count int) ([]ProxyCandidate, error)
}

// ProxyRefresher tops the pool back up to proxypool.MinActiveProxies
// whenever ActiveCount drops below it.
type ProxyRefresher struct {
	pool     ProxyPool
	supplier ProxySupplier
	interval time.Duration
	floor    int
	logger   *utils.Logger
}

// NewProxyRefresher builds a ProxyRefresher that checks every interval.
func NewProxyRefresher(pool ProxyPool, supplier ProxySupplier, interval time.Duration) *ProxyRefresher {
	return &ProxyRefresher{
		pool:     pool,
		supplier: supplier,
		interval: interval,
		floor:    proxypool.MinActiveProxies,
		logger:   utils.GetGlobalLogger().WithComponent("proxy_refresher"),
	}
}

// Run checks the pool's health on every tick until ctx is cancelled.
func (r *ProxyRefresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refill(ctx)
		}
	}
}

func (r *ProxyRefresher) refill(ctx context.Context) {
	deficit := r.floor - r.pool.ActiveCount()
	if deficit <= 0 {
		return
	}

	candidates, err := r.supplier.NextCandidates(ctx, deficit)
	if err != nil {
		r.logger.Error("proxy refresher: fetch candidates", utils.Err(err))
		return
	}

	for _, candidate := range candidates {
		if err := r.pool.Admit(candidate.Proxy, candidate.EncryptedUsername, candidate.EncryptedPassword); err != nil {
			r.logger.Warn("proxy refresher: admit candidate failed", utils.Err(err))
		}
	}
}
