package jobs

import (
	"context"
	"testing"
	"time"

	"copytrader/internal/models"
)

type fakeProxyPool struct {
	active   int
	admitted []models.Proxy
}

func (f *fakeProxyPool) ActiveCount() int { return f.active }

func (f *fakeProxyPool) Admit(storedProxy models.Proxy, _ string, _ string) error {
	f.admitted = append(f.admitted, storedProxy)
	f.active++
	return nil
}

type fakeProxySupplier struct {
	candidates []ProxyCandidate
}

func (f *fakeProxySupplier) NextCandidates(_ context.Context, count int) ([]ProxyCandidate, error) {
	if count > len(f.candidates) {
		count = len(f.candidates)
	}
	return f.candidates[:count], nil
}

func TestProxyRefresher_AdmitsUpToDeficit(t *testing.T) {
	pool := &fakeProxyPool{active: 2}
	supplier := &fakeProxySupplier{candidates: []ProxyCandidate{
		{Proxy: models.Proxy{ID: 1}},
		{Proxy: models.Proxy{ID: 2}},
		{Proxy: models.Proxy{ID: 3}},
		{Proxy: models.Proxy{ID: 4}},
	}}

	r := NewProxyRefresher(pool, supplier, time.Minute)
	r.refill(context.Background())

	// floor is proxypool.MinActiveProxies (5); deficit = 5-2 = 3
	if len(pool.admitted) != 3 {
		t.Fatalf("expected 3 proxies admitted, got %d", len(pool.admitted))
	}
}

func TestProxyRefresher_NoOpWhenAboveFloor(t *testing.T) {
	pool := &fakeProxyPool{active: 10}
	supplier := &fakeProxySupplier{candidates: []ProxyCandidate{{Proxy: models.Proxy{ID: 1}}}}

	r := NewProxyRefresher(pool, supplier, time.Minute)
	r.refill(context.Background())

	if len(pool.admitted) != 0 {
		t.Fatalf("expected no admissions when already above floor, got %d", len(pool.admitted))
	}
}
