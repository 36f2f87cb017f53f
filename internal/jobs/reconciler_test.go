package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"copytrader/internal/exchange"
	"copytrader/internal/models"
)

type fakeTradeStore struct {
	pending []models.Trade
	filled  map[int]exchange.OrderResult
	failed  map[int]string
}

func (f *fakeTradeStore) FindNeedsReconciliation(_ context.Context) ([]models.Trade, error) {
	return f.pending, nil
}

func (f *fakeTradeStore) MarkFilled(_ context.Context, tradeID int, result *exchange.OrderResult) error {
	if f.filled == nil {
		f.filled = make(map[int]exchange.OrderResult)
	}
	f.filled[tradeID] = *result
	return nil
}

func (f *fakeTradeStore) MarkFailed(_ context.Context, tradeID int, reason string) error {
	if f.failed == nil {
		f.failed = make(map[int]string)
	}
	f.failed[tradeID] = reason
	return nil
}

type fakePort struct {
	exchange.ExchangePort
	result exchange.OrderResult
	err    error
}

func (p *fakePort) GetOrder(_ context.Context, _ string, _ string) (*exchange.OrderResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &p.result, nil
}

type fakePortResolver struct {
	ports map[string]exchange.ExchangePort
}

func (f *fakePortResolver) PortFor(_ int, exchangeName string) (exchange.ExchangePort, bool) {
	p, ok := f.ports[exchangeName]
	return p, ok
}

func TestReconciler_MarksFilledWhenExchangeConfirms(t *testing.T) {
	store := &fakeTradeStore{pending: []models.Trade{
		{ID: 1, Exchange: "OKX", ExchangeOrderID: "ord-1"},
	}}
	resolver := &fakePortResolver{ports: map[string]exchange.ExchangePort{
		"OKX": &fakePort{result: exchange.OrderResult{Status: exchange.OrderResultFilled}},
	}}

	r := NewReconciler(store, resolver, time.Minute)
	r.sweep(context.Background())

	if _, ok := store.filled[1]; !ok {
		t.Fatalf("expected trade 1 marked filled")
	}
}

func TestReconciler_MarksFailedWhenExchangeRejects(t *testing.T) {
	store := &fakeTradeStore{pending: []models.Trade{
		{ID: 2, Exchange: "OKX", ExchangeOrderID: "ord-2"},
	}}
	resolver := &fakePortResolver{ports: map[string]exchange.ExchangePort{
		"OKX": &fakePort{result: exchange.OrderResult{Status: exchange.OrderResultRejected}},
	}}

	r := NewReconciler(store, resolver, time.Minute)
	r.sweep(context.Background())

	if _, ok := store.failed[2]; !ok {
		t.Fatalf("expected trade 2 marked failed")
	}
}

func TestReconciler_LeavesTradeAloneOnTransientLookupError(t *testing.T) {
	store := &fakeTradeStore{pending: []models.Trade{
		{ID: 3, Exchange: "OKX", ExchangeOrderID: "ord-3"},
	}}
	resolver := &fakePortResolver{ports: map[string]exchange.ExchangePort{
		"OKX": &fakePort{err: errors.New("timeout")},
	}}

	r := NewReconciler(store, resolver, time.Minute)
	r.sweep(context.Background())

	if len(store.filled) != 0 || len(store.failed) != 0 {
		t.Fatalf("expected trade left untouched for a future sweep")
	}
}

func TestReconciler_FailsTradeWithoutExchangeOrderID(t *testing.T) {
	store := &fakeTradeStore{pending: []models.Trade{
		{ID: 4, Exchange: "OKX", ExchangeOrderID: ""},
	}}
	resolver := &fakePortResolver{ports: map[string]exchange.ExchangePort{
		"OKX": &fakePort{},
	}}

	r := NewReconciler(store, resolver, time.Minute)
	r.sweep(context.Background())

	if _, ok := store.failed[4]; !ok {
		t.Fatalf("expected trade 4 marked failed (no order id to reconcile against)")
	}
}
