package signals

import (
	"testing"
	"time"

	"copytrader/internal/models"
	"copytrader/internal/signals/onchain"
)

func swapFixture(now time.Time) onchain.Swap {
	return onchain.Swap{
		TxHash:         "0xabc",
		Chain:          "ETHEREUM",
		WalletAddress:  "0xwallet",
		DEX:            "uniswap_v3",
		TokenInSymbol:  "USDC",
		TokenOutSymbol: "WETH",
		AmountUSD:      1200,
		IsBuy:          true,
		BlockTime:      now,
	}
}

func TestDiff_NewPositionEmitsOpenSignal(t *testing.T) {
	now := time.Now()
	current := []ObservedPosition{{Symbol: "BTCUSDT", Side: "LONG", Quantity: 1, EntryPrice: 50000}}

	sigs := Diff(1, nil, current, now)
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(sigs))
	}
	if sigs[0].IsClose {
		t.Fatal("expected open signal, got close")
	}
	if sigs[0].Symbol != "BTCUSDT" {
		t.Fatalf("unexpected symbol %s", sigs[0].Symbol)
	}
}

func TestDiff_ClosedPositionEmitsCloseSignal(t *testing.T) {
	now := time.Now()
	previous := []ObservedPosition{{Symbol: "BTCUSDT", Side: "LONG", Quantity: 1, EntryPrice: 50000}}

	sigs := Diff(1, previous, nil, now)
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(sigs))
	}
	if !sigs[0].IsClose {
		t.Fatal("expected close signal")
	}
}

func TestDiff_UnchangedPositionEmitsNothing(t *testing.T) {
	now := time.Now()
	pos := []ObservedPosition{{Symbol: "BTCUSDT", Side: "LONG", Quantity: 1, EntryPrice: 50000}}

	sigs := Diff(1, pos, pos, now)
	if len(sigs) != 0 {
		t.Fatalf("expected 0 signals, got %d", len(sigs))
	}
}

func TestDiff_IncreasedPositionEmitsPartialOpen(t *testing.T) {
	now := time.Now()
	previous := []ObservedPosition{{Symbol: "ETHUSDT", Side: "SHORT", Quantity: 1, EntryPrice: 3000}}
	current := []ObservedPosition{{Symbol: "ETHUSDT", Side: "SHORT", Quantity: 2.5, EntryPrice: 3000}}

	sigs := Diff(1, previous, current, now)
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(sigs))
	}
	if sigs[0].IsClose {
		t.Fatal("expected non-close signal for size increase")
	}
	if sigs[0].AmountUSD != 1.5*3000 {
		t.Fatalf("expected delta amount %f, got %f", 1.5*3000, sigs[0].AmountUSD)
	}
}

func TestDiff_DecreasedPositionEmitsPartialClose(t *testing.T) {
	now := time.Now()
	previous := []ObservedPosition{{Symbol: "ETHUSDT", Side: "LONG", Quantity: 2, EntryPrice: 3000}}
	current := []ObservedPosition{{Symbol: "ETHUSDT", Side: "LONG", Quantity: 0.5, EntryPrice: 3000}}

	sigs := Diff(1, previous, current, now)
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(sigs))
	}
	if !sigs[0].IsClose {
		t.Fatal("expected close signal for size decrease")
	}

	want := 1.5 * 3000.0
	if sigs[0].AmountUSD != want {
		t.Fatalf("expected delta amount %f, got %f", want, sigs[0].AmountUSD)
	}
}

func TestDiff_DeduplicationKeyBySymbolAndSide(t *testing.T) {
	now := time.Now()
	// same symbol, opposite sides: must be treated as independent positions
	current := []ObservedPosition{
		{Symbol: "BTCUSDT", Side: "LONG", Quantity: 1, EntryPrice: 50000},
		{Symbol: "BTCUSDT", Side: "SHORT", Quantity: 1, EntryPrice: 50000},
	}
	sigs := Diff(1, nil, current, now)
	if len(sigs) != 2 {
		t.Fatalf("expected 2 independent open signals, got %d", len(sigs))
	}
}

func TestDiff_IdempotentOnRepeatedSnapshot(t *testing.T) {
	now := time.Now()
	revision := now.Add(-time.Minute)
	previous := []ObservedPosition{{Symbol: "BTCUSDT", Side: "LONG", Quantity: 1, EntryPrice: 50000, Revision: revision}}
	current := []ObservedPosition{{Symbol: "BTCUSDT", Side: "LONG", Quantity: 2, EntryPrice: 50000, Revision: revision}}

	first := Diff(1, previous, current, now)
	second := Diff(1, previous, current, now)

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected 1 signal each run, got %d and %d", len(first), len(second))
	}
	if first[0].TxHash != second[0].TxHash {
		t.Fatalf("expected stable natural key across repeated diffs, got %q and %q", first[0].TxHash, second[0].TxHash)
	}
}

func TestFromSwap(t *testing.T) {
	now := time.Now()
	sig := FromSwap(7, swapFixture(now))
	if sig.WhaleID != 7 {
		t.Fatalf("expected whale id 7, got %d", sig.WhaleID)
	}
	if sig.Source != models.SignalSourceOnchain {
		t.Fatalf("expected ONCHAIN_SWAP source, got %s", sig.Source)
	}
	if sig.Action != models.ActionBuy {
		t.Fatalf("expected BUY action, got %s", sig.Action)
	}
}
