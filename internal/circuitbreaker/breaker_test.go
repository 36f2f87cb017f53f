package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, OpenTimeout: time.Hour, HalfOpenSuccessThreshold: 1})

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED after 2 failures, got %v", b.State())
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN after 3 failures, got %v", b.State())
	}
	if b.Allow() {
		t.Fatal("Allow() should be false while OPEN and within OpenTimeout")
	}
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenTimeout: 10 * time.Millisecond, HalfOpenSuccessThreshold: 2})

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN, got %v", b.State())
	}

	time.Sleep(15 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("Allow() should be true once OpenTimeout elapsed")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN, got %v", b.State())
	}

	b.RecordSuccess()
	if b.State() != StateHalfOpen {
		t.Fatalf("one success should not yet close, got %v", b.State())
	}
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED after HalfOpenSuccessThreshold successes, got %v", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenTimeout: 10 * time.Millisecond, HalfOpenSuccessThreshold: 2})
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	b.Allow()
	if b.State() != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN, got %v", b.State())
	}
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN after half-open failure, got %v", b.State())
	}
}

func TestBreaker_ExecuteRejectsWhenOpen(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenTimeout: time.Hour, HalfOpenSuccessThreshold: 1})
	_ = b.Execute(func() error { return errors.New("boom") })
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN, got %v", b.State())
	}
	err := b.Execute(func() error {
		t.Fatal("operation should not run while circuit is open")
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
}

func TestRegistry_PerKeyIsolation(t *testing.T) {
	reg := NewRegistry(Config{FailureThreshold: 1, OpenTimeout: time.Hour, HalfOpenSuccessThreshold: 1})

	reg.Get("bybit").RecordFailure()

	if reg.Get("bybit").State() != StateOpen {
		t.Fatal("bybit breaker should be OPEN")
	}
	if reg.Get("okx").State() != StateClosed {
		t.Fatal("okx breaker should be unaffected and CLOSED")
	}
}
