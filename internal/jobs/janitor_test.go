package jobs

import (
	"context"
	"testing"
	"time"

	"copytrader/internal/models"
)

type fakeSignalStore struct {
	stuck    []models.Signal
	requeued []int
	expired  []int
}

func (f *fakeSignalStore) FindStuckProcessing(_ context.Context, _ time.Duration) ([]models.Signal, error) {
	return f.stuck, nil
}

func (f *fakeSignalStore) RequeueForRetry(_ context.Context, signalID int) error {
	f.requeued = append(f.requeued, signalID)
	return nil
}

func (f *fakeSignalStore) MarkExpired(_ context.Context, signalID int, _ string) error {
	f.expired = append(f.expired, signalID)
	return nil
}

func TestJanitor_RequeuesSignalsUnderRetryCap(t *testing.T) {
	store := &fakeSignalStore{stuck: []models.Signal{
		{ID: 1, Status: models.SignalStatusProcessing, RetryCount: 1},
	}}
	j := NewJanitor(store, time.Minute, 5*time.Minute)
	j.sweep(context.Background())

	if len(store.requeued) != 1 || store.requeued[0] != 1 {
		t.Fatalf("expected signal 1 requeued, got %v", store.requeued)
	}
	if len(store.expired) != 0 {
		t.Fatalf("expected no expired signals, got %v", store.expired)
	}
}

func TestJanitor_ExpiresSignalsAtRetryCap(t *testing.T) {
	store := &fakeSignalStore{stuck: []models.Signal{
		{ID: 2, Status: models.SignalStatusProcessing, RetryCount: models.MaxSignalRetries},
	}}
	j := NewJanitor(store, time.Minute, 5*time.Minute)
	j.sweep(context.Background())

	if len(store.expired) != 1 || store.expired[0] != 2 {
		t.Fatalf("expected signal 2 expired, got %v", store.expired)
	}
	if len(store.requeued) != 0 {
		t.Fatalf("expected no requeued signals, got %v", store.requeued)
	}
}
