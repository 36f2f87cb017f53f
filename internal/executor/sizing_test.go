package executor

import (
	"testing"

	"copytrader/internal/models"
)

func TestComputeSize_Fixed(t *testing.T) {
	follow := models.WhaleFollow{SizingStrategy: models.SizingFixed, CopyTradeSizeUSDT: 500}
	got := ComputeSize(follow, models.Whale{}, 10000, 1000)
	if got != 500 {
		t.Fatalf("expected 500, got %f", got)
	}
}

func TestComputeSize_FixedClampedToBalance(t *testing.T) {
	follow := models.WhaleFollow{SizingStrategy: models.SizingFixed, CopyTradeSizeUSDT: 5000}
	got := ComputeSize(follow, models.Whale{}, 10000, 1000)
	if got != 1000 {
		t.Fatalf("expected clamp to 1000, got %f", got)
	}
}

func TestComputeSize_Percent(t *testing.T) {
	follow := models.WhaleFollow{SizingStrategy: models.SizingPercent, TradeSizePercent: 10}
	got := ComputeSize(follow, models.Whale{}, 10000, 2000)
	if got != 200 {
		t.Fatalf("expected 200, got %f", got)
	}
}

func TestComputeSize_KellyZeroOnBadInputs(t *testing.T) {
	follow := models.WhaleFollow{SizingStrategy: models.SizingKelly}
	whale := models.Whale{WinRate: 0.6, AvgWinLossRatio: 0}
	got := ComputeSize(follow, whale, 10000, 1000)
	if got != 0 {
		t.Fatalf("expected 0 kelly fraction with zero win/loss ratio, got %f", got)
	}
}

func TestComputeSize_KellyPositive(t *testing.T) {
	follow := models.WhaleFollow{SizingStrategy: models.SizingKelly}
	whale := models.Whale{WinRate: 0.6, AvgWinLossRatio: 2.0}
	// f* = (0.6 - 0.4/2) / 2 = (0.6-0.2)/2 = 0.2
	got := ComputeSize(follow, whale, 10000, 1000)
	want := 0.2 * 1000
	if got != want {
		t.Fatalf("expected %f, got %f", want, got)
	}
}
