package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"copytrader/internal/exchange"
	"copytrader/internal/models"
)

func TestTradeRepositoryReserve(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	trade := &models.Trade{UserID: 1, SignalID: 2, Exchange: "OKX", ClientOrderID: "cid-1", Symbol: "BTC-USDT", Side: "BUY", TradeType: models.TradeTypeFuturesLong}

	mock.ExpectQuery(`INSERT INTO trades`).
		WithArgs(trade.UserID, trade.SignalID, trade.Exchange, trade.ClientOrderID, trade.Symbol, trade.Side,
			trade.TradeType, trade.RequestedQuantity, trade.RequestedNotional, trade.Leverage,
			models.TradeStatusPending, 1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	repo := NewTradeRepository(db)
	if err := repo.Reserve(context.Background(), trade); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trade.ID != 11 {
		t.Errorf("expected ID 11, got %d", trade.ID)
	}
	if trade.Status != models.TradeStatusPending || trade.Version != 1 {
		t.Errorf("expected PENDING/v1, got %s/%d", trade.Status, trade.Version)
	}
}

func TestTradeRepositoryMarkExecuting_VersionConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE trades SET status = \$1, version = version \+ 1`).
		WithArgs(models.TradeStatusExecuting, 5, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewTradeRepository(db)
	err = repo.MarkExecuting(context.Background(), 5, 1)
	if !errors.Is(err, ErrTradeVersionConflict) {
		t.Errorf("expected ErrTradeVersionConflict, got %v", err)
	}
}

func TestTradeRepositoryMarkFilled(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	fill := &exchange.OrderResult{OrderID: "ex-order-1", Status: exchange.OrderResultFilled, FilledQty: 0.5, AvgFillPrice: 30000, FeeAmount: 1.5, FeeCurrency: "USDT"}

	mock.ExpectExec(`UPDATE trades SET status = \$1, exchange_order_id = \$2`).
		WithArgs(models.TradeStatusFilled, fill.OrderID, fill.FilledQty, fill.AvgFillPrice,
			fill.FeeAmount, fill.FeeCurrency, sqlmock.AnyArg(), 5, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewTradeRepository(db)
	if err := repo.MarkFilled(context.Background(), 5, 2, fill); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTradeRepositoryMarkFilled_PartiallyFilled(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	fill := &exchange.OrderResult{OrderID: "ex-order-2", Status: exchange.OrderResultPartiallyFilled, FilledQty: 0.2}

	mock.ExpectExec(`UPDATE trades SET status = \$1, exchange_order_id = \$2`).
		WithArgs(models.TradeStatusPartiallyFilled, fill.OrderID, fill.FilledQty, fill.AvgFillPrice,
			fill.FeeAmount, fill.FeeCurrency, sqlmock.AnyArg(), 5, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewTradeRepository(db)
	if err := repo.MarkFilled(context.Background(), 5, 2, fill); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTradeRepositoryGetByClientOrderID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM trades WHERE client_order_id = \$1`).
		WithArgs("missing-cid").
		WillReturnError(errors.New("sql: no rows in result set"))

	repo := NewTradeRepository(db)
	_, err = repo.GetByClientOrderID("missing-cid")
	if err == nil {
		t.Fatal("expected an error")
	}
}
