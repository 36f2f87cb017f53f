package repository

import (
	"context"

	"copytrader/internal/jobs"
)

// ProxySupplier adapts ProxyRepository to jobs.ProxySupplier: every active
// DB row is a valid re-admission candidate since proxypool.Pool.Admit is
// keyed by proxy ID and idempotent, so refreshing an already-admitted
// proxy's client/credentials is harmless.
type ProxySupplier struct {
	proxies *ProxyRepository
}

// NewProxySupplier wraps proxies for jobs.ProxyRefresher.
func NewProxySupplier(proxies *ProxyRepository) *ProxySupplier {
	return &ProxySupplier{proxies: proxies}
}

// NextCandidates implements jobs.ProxySupplier.
func (s *ProxySupplier) NextCandidates(_ context.Context, count int) ([]jobs.ProxyCandidate, error) {
	active, err := s.proxies.ListActive()
	if err != nil {
		return nil, err
	}
	if len(active) > count {
		active = active[:count]
	}

	candidates := make([]jobs.ProxyCandidate, 0, len(active))
	for _, p := range active {
		candidates = append(candidates, jobs.ProxyCandidate{
			Proxy:             p,
			EncryptedUsername: p.Username, // still ciphertext: scanProxy never decrypts
			EncryptedPassword: p.Password,
		})
	}
	return candidates, nil
}
