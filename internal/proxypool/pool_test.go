package proxypool

import (
	"context"
	"testing"

	"copytrader/internal/models"
	"copytrader/pkg/crypto"
)

func mustKey(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKeyString()
	if err != nil {
		t.Fatalf("GenerateKeyString: %v", err)
	}
	return key
}

func admitTestProxy(t *testing.T, p *Pool, id int) {
	t.Helper()
	encUser, err := crypto.EncryptWithKeyString("user", p.cipher)
	if err != nil {
		t.Fatalf("encrypt username: %v", err)
	}
	encPass, err := crypto.EncryptWithKeyString("pass", p.cipher)
	if err != nil {
		t.Fatalf("encrypt password: %v", err)
	}
	proxy := models.Proxy{ID: id, Host: "10.0.0.1", Port: 8080, Protocol: "http", Status: models.ProxyStatusActive}
	if err := p.Admit(proxy, encUser, encPass); err != nil {
		t.Fatalf("Admit: %v", err)
	}
}

func TestPool_LeaseReleaseSuccess(t *testing.T) {
	p := New(mustKey(t))
	admitTestProxy(t, p, 1)

	client, release, err := p.Lease(context.Background(), "OKX")
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
	release(true)

	if p.ActiveCount() != 1 {
		t.Fatalf("expected 1 active proxy, got %d", p.ActiveCount())
	}
}

func TestPool_CooldownAfterConsecutiveFailures(t *testing.T) {
	p := New(mustKey(t))
	admitTestProxy(t, p, 1)

	for i := 0; i < 3; i++ {
		_, release, err := p.Lease(context.Background(), "OKX")
		if err != nil {
			t.Fatalf("Lease attempt %d: %v", i, err)
		}
		release(false)
	}

	if _, _, err := p.Lease(context.Background(), "OKX"); err != ErrNoProxyAvailable {
		t.Fatalf("expected ErrNoProxyAvailable after 3 consecutive failures, got %v", err)
	}

	// a different exchange's cooldown is independent
	if _, _, err := p.Lease(context.Background(), "BYBIT"); err != nil {
		t.Fatalf("expected BYBIT lease to succeed (independent cooldown), got %v", err)
	}
}

func TestPool_NoProxyAvailableWhenEmpty(t *testing.T) {
	p := New(mustKey(t))
	if _, _, err := p.Lease(context.Background(), "OKX"); err != ErrNoProxyAvailable {
		t.Fatalf("expected ErrNoProxyAvailable, got %v", err)
	}
}
