package sharing

import (
	"testing"
	"time"

	"copytrader/internal/models"
)

func TestValidator_BitgetAlwaysActive(t *testing.T) {
	v := New()
	whale := models.Whale{Exchange: "BITGET", ConsecutiveEmptyChecks: 999}

	res := v.Evaluate(whale, FetchOutcome{PositionCount: 0})
	if res.Status != models.WhaleStatusActive {
		t.Fatalf("expected ACTIVE for BITGET, got %s", res.Status)
	}
	if res.ConsecutiveEmpty != 0 {
		t.Fatalf("expected counter reset to 0, got %d", res.ConsecutiveEmpty)
	}
}

func TestValidator_PositionsFoundResetsCounter(t *testing.T) {
	v := New()
	whale := models.Whale{Exchange: "BINANCE", ConsecutiveEmptyChecks: 500}

	res := v.Evaluate(whale, FetchOutcome{PositionCount: 2})
	if res.Status != models.WhaleStatusActive || res.ConsecutiveEmpty != 0 {
		t.Fatalf("expected ACTIVE/0, got %s/%d", res.Status, res.ConsecutiveEmpty)
	}
	if res.LastPositionFound == nil {
		t.Fatal("expected LastPositionFound to be set")
	}
}

func TestValidator_ThresholdTripsSharingDisabled(t *testing.T) {
	v := New()
	whale := models.Whale{Exchange: "BINANCE", ConsecutiveEmptyChecks: EmptyChecksThreshold - 1, PollingIntervalSeconds: 1}

	res := v.Evaluate(whale, FetchOutcome{PositionCount: 0})
	if res.Status != models.WhaleStatusSharingDisabled {
		t.Fatalf("expected SHARING_DISABLED, got %s", res.Status)
	}
	if res.ConsecutiveEmpty != EmptyChecksThreshold {
		t.Fatalf("expected counter %d, got %d", EmptyChecksThreshold, res.ConsecutiveEmpty)
	}
	if res.SharingRecheckAt == nil {
		t.Fatal("expected SharingRecheckAt to be set")
	}
}

func TestValidator_BelowThresholdStaysActive(t *testing.T) {
	v := New()
	whale := models.Whale{Exchange: "BINANCE", ConsecutiveEmptyChecks: 2}

	res := v.Evaluate(whale, FetchOutcome{PositionCount: 0})
	if res.Status != models.WhaleStatusActive {
		t.Fatalf("expected ACTIVE below threshold, got %s", res.Status)
	}
	if res.ConsecutiveEmpty != 3 {
		t.Fatalf("expected counter 3, got %d", res.ConsecutiveEmpty)
	}
}

func TestValidator_RateLimited(t *testing.T) {
	v := New()
	whale := models.Whale{Exchange: "OKX", ConsecutiveEmptyChecks: 10}

	res := v.Evaluate(whale, FetchOutcome{RateLimited: true})
	if res.Status != models.WhaleStatusRateLimited {
		t.Fatalf("expected RATE_LIMITED, got %s", res.Status)
	}
	if res.ConsecutiveEmpty != 10 {
		t.Fatalf("expected counter unchanged at 10, got %d", res.ConsecutiveEmpty)
	}
	if res.SharingRecheckAt == nil {
		t.Fatal("expected SharingRecheckAt to be set so the whale isn't suppressed indefinitely")
	}
}

func TestValidator_ExplicitSharingDenied(t *testing.T) {
	v := New()
	whale := models.Whale{Exchange: "BINANCE", ConsecutiveEmptyChecks: 5}

	res := v.Evaluate(whale, FetchOutcome{SharingDenied: true})
	if res.Status != models.WhaleStatusSharingDisabled {
		t.Fatalf("expected SHARING_DISABLED, got %s", res.Status)
	}
	if res.ConsecutiveEmpty != 0 {
		t.Fatalf("expected counter reset to 0, got %d", res.ConsecutiveEmpty)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{models.WhaleStatusActive, models.WhaleStatusSharingDisabled, true},
		{models.WhaleStatusSharingDisabled, models.WhaleStatusActive, true},
		{models.WhaleStatusInactive, models.WhaleStatusActive, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestDueForRevalidation(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	whale := models.Whale{DataStatus: models.WhaleStatusSharingDisabled, SharingRecheckAt: &past}
	if !DueForRevalidation(whale, now) {
		t.Fatal("expected due for revalidation")
	}

	future := now.Add(time.Hour)
	whale.SharingRecheckAt = &future
	if DueForRevalidation(whale, now) {
		t.Fatal("expected not yet due for revalidation")
	}
}
