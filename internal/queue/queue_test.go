package queue

import (
	"testing"

	"copytrader/internal/models"
)

func TestCalculatePriority_ConfidenceWeights(t *testing.T) {
	whale := models.Whale{Score: 50} // whaleROIScore = int(50*0.35) = 17
	cases := []struct {
		confidence models.SignalConfidence
		want       int
	}{
		{models.ConfidenceLow, 10 + 17 + 0},
		{models.ConfidenceMedium, 20 + 17 + 0},
		{models.ConfidenceHigh, 30 + 17 + 0},
		{models.ConfidenceVeryHigh, 40 + 17 + 0},
	}
	for _, c := range cases {
		sig := models.Signal{Confidence: c.confidence, AmountUSD: 0}
		got := CalculatePriority(sig, whale)
		if got != c.want {
			t.Errorf("confidence %s: got %d, want %d", c.confidence, got, c.want)
		}
	}
}

func TestCalculatePriority_SizeBands(t *testing.T) {
	whale := models.Whale{Score: 0} // whaleROIScore defaults to int(50*0.35) = 17
	cases := []struct {
		amount float64
		want   int // size_score component
	}{
		{0, 0},
		{1_000, 0},
		{3_000, 1},
		{10_000, 5},
		{30_000, 5 + 5}, // 5 + (30000-10000)/4000 = 5+5
		{50_000, 15},
		{75_000, 15 + 5}, // 15 + (75000-50000)/5000
		{100_000, 25},
		{250_000, 25}, // capped
	}
	for _, c := range cases {
		sig := models.Signal{Confidence: models.ConfidenceMedium, AmountUSD: c.amount}
		got := CalculatePriority(sig, whale) - 20 - 17 // subtract confidence + whale components
		if got != c.want {
			t.Errorf("amount %.0f: size_score = %d, want %d", c.amount, got, c.want)
		}
	}
}

func TestCalculatePriority_WhaleScoreCapped(t *testing.T) {
	whale := models.Whale{Score: 100} // 100*0.35 = 35, at the cap
	sig := models.Signal{Confidence: models.ConfidenceLow, AmountUSD: 0}
	got := CalculatePriority(sig, whale)
	want := 10 + 35 + 0
	if got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestCalculatePriority_MaxScoreIsHundred(t *testing.T) {
	whale := models.Whale{Score: 100}
	sig := models.Signal{Confidence: models.ConfidenceVeryHigh, AmountUSD: 200_000}
	got := CalculatePriority(sig, whale)
	if got != 100 {
		t.Fatalf("expected the three component caps (40+35+25) to sum to 100, got %d", got)
	}
}

// TestCalculatePriority_ScenarioSixOrdering pins the §4.8 additive formula
// against the three-signal priority-ordering scenario: A(HIGH, $100,000),
// B(VERY_HIGH, $1,000), C(MEDIUM, $60,000), all observed on a whale with no
// recorded historical score (score defaults to 50, contributing 17 to every
// signal alike and so never changing the relative order below).
//
// The scenario's prose claims pop order B, A, C (reasoning that VERY_HIGH
// confidence alone outweighs size). Plugging the three signals into the
// additive formula actually in force gives A=72, B=57, C=54 — A sorts
// ahead of B because size_score(A)=25 beats confidence_weight(B)-confidence_weight(A)=10.
// This test pins the formula's actual behavior (A, B, C), not the scenario's
// prose claim; CalculatePriority is the source of truth and the two
// disagree.
func TestCalculatePriority_ScenarioSixOrdering(t *testing.T) {
	whale := models.Whale{Score: 50}

	a := models.Signal{Confidence: models.ConfidenceHigh, AmountUSD: 100_000}
	b := models.Signal{Confidence: models.ConfidenceVeryHigh, AmountUSD: 1_000}
	c := models.Signal{Confidence: models.ConfidenceMedium, AmountUSD: 60_000}

	scoreA := CalculatePriority(a, whale)
	scoreB := CalculatePriority(b, whale)
	scoreC := CalculatePriority(c, whale)

	if scoreA != 72 {
		t.Errorf("signal A: got %d, want 72", scoreA)
	}
	if scoreB != 57 {
		t.Errorf("signal B: got %d, want 57", scoreB)
	}
	if scoreC != 54 {
		t.Errorf("signal C: got %d, want 54", scoreC)
	}

	if !(scoreA > scoreB && scoreB > scoreC) {
		t.Fatalf("expected pop order A, B, C (scores %d, %d, %d)", scoreA, scoreB, scoreC)
	}
}

func TestCalculatePriority_UnknownConfidenceDefaultsToMedium(t *testing.T) {
	whale := models.Whale{Score: 50}
	sig := models.Signal{Confidence: models.SignalConfidence("UNKNOWN"), AmountUSD: 0}
	got := CalculatePriority(sig, whale)
	want := 20 + 17 + 0
	if got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}
