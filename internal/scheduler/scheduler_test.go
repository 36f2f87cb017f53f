package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"copytrader/internal/exchange"
	"copytrader/internal/models"
	"copytrader/internal/sharing"
	"copytrader/internal/signals"
)

type fakeFetcher struct {
	mu        sync.Mutex
	positions map[int][]signals.ObservedPosition
	err       map[int]error
}

func (f *fakeFetcher) FetchPositions(_ context.Context, whale models.Whale) ([]signals.ObservedPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.err[whale.ID]; ok {
		return nil, err
	}
	return f.positions[whale.ID], nil
}

type fakeWhaleSource struct {
	mu      sync.Mutex
	whales  []models.Whale
	applied map[int]sharing.CheckResult
}

func (f *fakeWhaleSource) DueForPolling(_ context.Context) ([]models.Whale, error) {
	return f.whales, nil
}

func (f *fakeWhaleSource) ApplySharingResult(_ context.Context, whaleID int, result sharing.CheckResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applied == nil {
		f.applied = make(map[int]sharing.CheckResult)
	}
	f.applied[whaleID] = result
	return nil
}

type fakeSink struct {
	mu      sync.Mutex
	signals []models.Signal
}

func (f *fakeSink) Emit(_ context.Context, sig models.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, sig)
	return nil
}

func TestTick_EmitsSignalForNewPosition(t *testing.T) {
	whale := models.Whale{ID: 1, Exchange: "OKX"}
	fetcher := &fakeFetcher{positions: map[int][]signals.ObservedPosition{
		1: {{Symbol: "BTCUSDT", Side: "LONG", Quantity: 1.5, EntryPrice: 60000}},
	}}
	whales := &fakeWhaleSource{whales: []models.Whale{whale}}
	sink := &fakeSink{}

	s := New(Config{TickInterval: time.Millisecond, MaxConcurrency: 4}, fetcher, whales, sink)
	if err := s.tick(context.Background()); err != nil {
		t.Fatalf("tick() error = %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(sink.signals))
	}
	if sink.signals[0].WhaleID != 1 {
		t.Errorf("expected WhaleID 1, got %d", sink.signals[0].WhaleID)
	}
}

func TestTick_SharingDeniedAppliesValidatorResult(t *testing.T) {
	whale := models.Whale{ID: 2, Exchange: "OKX"}
	fetcher := &fakeFetcher{err: map[int]error{2: exchange.ErrSharingDisabled}}
	whales := &fakeWhaleSource{whales: []models.Whale{whale}}
	sink := &fakeSink{}

	s := New(Config{TickInterval: time.Millisecond, MaxConcurrency: 4}, fetcher, whales, sink)
	if err := s.tick(context.Background()); err != nil {
		t.Fatalf("tick() error = %v", err)
	}

	whales.mu.Lock()
	defer whales.mu.Unlock()
	result, ok := whales.applied[2]
	if !ok {
		t.Fatalf("expected ApplySharingResult to be called for whale 2")
	}
	if result.Status != models.WhaleStatusSharingDisabled {
		t.Errorf("expected status %s, got %s", models.WhaleStatusSharingDisabled, result.Status)
	}
}

func TestTick_SecondPollDiffsAgainstCachedPositions(t *testing.T) {
	whale := models.Whale{ID: 3, Exchange: "OKX"}
	fetcher := &fakeFetcher{positions: map[int][]signals.ObservedPosition{
		3: {{Symbol: "ETHUSDT", Side: "LONG", Quantity: 2.0, EntryPrice: 3000}},
	}}
	whales := &fakeWhaleSource{whales: []models.Whale{whale}}
	sink := &fakeSink{}

	s := New(Config{TickInterval: time.Millisecond, MaxConcurrency: 4}, fetcher, whales, sink)
	if err := s.tick(context.Background()); err != nil {
		t.Fatalf("first tick() error = %v", err)
	}
	if err := s.tick(context.Background()); err != nil {
		t.Fatalf("second tick() error = %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.signals) != 1 {
		t.Fatalf("expected only 1 signal total (unchanged position on second tick), got %d", len(sink.signals))
	}
}

func TestTick_NetworkErrorSkipsWhaleWithoutAbortingTick(t *testing.T) {
	okWhale := models.Whale{ID: 4, Exchange: "OKX"}
	badWhale := models.Whale{ID: 5, Exchange: "OKX"}
	fetcher := &fakeFetcher{
		positions: map[int][]signals.ObservedPosition{
			4: {{Symbol: "BTCUSDT", Side: "LONG", Quantity: 1, EntryPrice: 60000}},
		},
		err: map[int]error{5: exchange.ErrNetwork},
	}
	whales := &fakeWhaleSource{whales: []models.Whale{okWhale, badWhale}}
	sink := &fakeSink{}

	s := New(Config{TickInterval: time.Millisecond, MaxConcurrency: 4}, fetcher, whales, sink)
	if err := s.tick(context.Background()); err != nil {
		t.Fatalf("tick() error = %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.signals) != 1 {
		t.Fatalf("expected 1 signal from the healthy whale, got %d", len(sink.signals))
	}

	whales.mu.Lock()
	defer whales.mu.Unlock()
	if _, ok := whales.applied[5]; ok {
		t.Errorf("network error should not reach ApplySharingResult")
	}
}
