// Package proxypool — ProxyPool (C1): a rotating set of outbound
// identities used by PollingScheduler so that per-whale polling spreads
// load across many source IPs instead of hammering an exchange from one.
//
// Proxies are admitted without a probe; their rolling failure rate is
// tracked, and three consecutive failures put a proxy on a per-exchange
// cool-down rather than permanently banning it.
package proxypool

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"copytrader/internal/models"
	"copytrader/pkg/crypto"
)

// ErrNoProxyAvailable is returned by Lease when every known proxy is
// COOLING_DOWN, RATE_LIMITED, BANNED or DISABLED for the requested exchange.
var ErrNoProxyAvailable = errors.New("proxypool: no proxy available")

// MinActiveProxies is the floor below which the pool's health check should
// trigger a refresh job (internal/jobs proxy refresher), mirroring
// free_proxy_fetcher.py's MIN_ACTIVE_PROXIES.
const MinActiveProxies = 5

// entry is the pool's in-memory view of one models.Proxy plus its live
// per-exchange cooldown map (the DB column is a denormalized snapshot).
type entry struct {
	mu         sync.Mutex
	proxy      models.Proxy
	cooldowns  map[string]time.Time
	client     *http.Client
	leasedBy   int // 0 when free; otherwise a lease token for diagnostics
}

// Pool is the ProxyPool component: a set of entries leased out to callers
// by (exchange) so that concurrent pollers don't collide on one identity.
type Pool struct {
	mu      sync.RWMutex
	entries map[int]*entry
	cipher  string // AES-256-GCM key string, pkg/crypto

	nextLease int64
}

// New builds an empty Pool. cipherKey is the AES-256-GCM key (pkg/crypto.GenerateKeyString)
// used to decrypt proxy credentials read from storage.
func New(cipherKey string) *Pool {
	return &Pool{entries: make(map[int]*entry), cipher: cipherKey}
}

// Admit decrypts storedProxy's credentials and adds it to the pool in
// ACTIVE status. Call once per row loaded from the proxy repository.
func (p *Pool) Admit(storedProxy models.Proxy, encUsername, encPassword string) error {
	username, err := crypto.DecryptWithKeyString(encUsername, p.cipher)
	if err != nil {
		return fmt.Errorf("proxypool: decrypt username: %w", err)
	}
	password, err := crypto.DecryptWithKeyString(encPassword, p.cipher)
	if err != nil {
		return fmt.Errorf("proxypool: decrypt password: %w", err)
	}
	storedProxy.Username = username
	storedProxy.Password = password

	e := &entry{
		proxy:     storedProxy,
		cooldowns: make(map[string]time.Time),
		client:    buildClient(storedProxy),
	}
	for _, cd := range storedProxy.ExchangeCooldowns {
		e.cooldowns[cd.Exchange] = cd.Until
	}

	p.mu.Lock()
	p.entries[storedProxy.ID] = e
	p.mu.Unlock()
	return nil
}

// Remove drops a proxy from the pool entirely (e.g. operator-banned).
func (p *Pool) Remove(proxyID int) {
	p.mu.Lock()
	delete(p.entries, proxyID)
	p.mu.Unlock()
}

// Lease picks the healthiest available proxy not cooling down for exchange,
// ranked by lowest FailureRate, and returns a client bound to it plus a
// Release func the caller must call exactly once with the outcome.
func (p *Pool) Lease(ctx context.Context, exchange string) (*http.Client, func(success bool), error) {
	p.mu.RLock()
	candidates := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		candidates = append(candidates, e)
	}
	p.mu.RUnlock()

	var best *entry
	now := time.Now()
	for _, e := range candidates {
		e.mu.Lock()
		available := isAvailable(e, exchange, now)
		rate := e.proxy.FailureRate()
		e.mu.Unlock()
		if !available {
			continue
		}
		if best == nil {
			best = e
			continue
		}
		best.mu.Lock()
		bestRate := best.proxy.FailureRate()
		best.mu.Unlock()
		if rate < bestRate {
			best = e
		}
	}
	if best == nil {
		return nil, nil, ErrNoProxyAvailable
	}

	best.mu.Lock()
	best.proxy.LastUsedAt = now
	best.proxy.TotalRequests++
	client := best.client
	best.mu.Unlock()

	release := func(success bool) {
		best.mu.Lock()
		defer best.mu.Unlock()
		if success {
			best.proxy.SuccessfulRequests++
			best.proxy.ConsecutiveFails = 0
		} else {
			best.proxy.FailedRequests++
			best.proxy.ConsecutiveFails++
			if best.proxy.ConsecutiveFails >= 3 {
				best.cooldowns[exchange] = now.Add(coolDownDuration(best.proxy.ConsecutiveFails))
			}
		}
	}
	return client, release, nil
}

func isAvailable(e *entry, exchange string, now time.Time) bool {
	switch e.proxy.Status {
	case models.ProxyStatusBanned, models.ProxyStatusDisabled:
		return false
	}
	if until, ok := e.cooldowns[exchange]; ok && now.Before(until) {
		return false
	}
	if e.proxy.RateLimitedUntil != nil && now.Before(*e.proxy.RateLimitedUntil) {
		return false
	}
	return true
}

func coolDownDuration(consecutiveFails int) time.Duration {
	d := time.Duration(consecutiveFails) * 30 * time.Second
	if d > 15*time.Minute {
		d = 15 * time.Minute
	}
	return d
}

// ActiveCount returns how many proxies are not banned/disabled, used by the
// proxy-refresher job to decide whether to fetch more.
func (p *Pool) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, e := range p.entries {
		e.mu.Lock()
		if e.proxy.Status != models.ProxyStatusBanned && e.proxy.Status != models.ProxyStatusDisabled {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

func buildClient(proxy models.Proxy) *http.Client {
	proxyURL := &url.URL{
		Scheme: proxy.Protocol,
		Host:   fmt.Sprintf("%s:%d", proxy.Host, proxy.Port),
	}
	if proxy.Username != "" {
		proxyURL.User = url.UserPassword(proxy.Username, proxy.Password)
	}

	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:               http.ProxyURL(proxyURL),
		DialContext:         dialer.DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &http.Client{Transport: transport, Timeout: 15 * time.Second}
}
