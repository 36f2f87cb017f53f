package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"copytrader/internal/models"
)

func TestSignalRepositoryCreate_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	s := &models.Signal{WhaleID: 1, Source: models.SignalSourceWhalePoll, TxHash: "tx-1", Action: models.ActionBuy, Side: models.ActionBuy, TradeType: models.TradeTypeFuturesLong}

	mock.ExpectQuery(`INSERT INTO signals`).
		WithArgs(s.WhaleID, s.Source, s.TxHash, s.Action, s.Side, s.TradeType, s.Symbol,
			s.EntryPriceHint, s.AmountUSD, s.Confidence, s.IsClose, s.Status, s.RetryCount, s.Priority, sqlmock.AnyArg()).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "signals_tx_hash_key" (SQLSTATE 23505)`))

	repo := NewSignalRepository(db)
	err = repo.Create(s)
	if !errors.Is(err, ErrDuplicateSignal) {
		t.Errorf("expected ErrDuplicateSignal, got %v", err)
	}
}

func TestSignalRepositoryEmit_DuplicateIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	sig := models.Signal{WhaleID: 1, Source: models.SignalSourceWhalePoll, TxHash: "tx-2"}

	mock.ExpectQuery(`INSERT INTO signals`).
		WithArgs(sig.WhaleID, sig.Source, sig.TxHash, sig.Action, sig.Side, sig.TradeType, sig.Symbol,
			sig.EntryPriceHint, sig.AmountUSD, sig.Confidence, sig.IsClose, sig.Status, sig.RetryCount, sig.Priority, sqlmock.AnyArg()).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))

	repo := NewSignalRepository(db)
	if err := repo.Emit(context.Background(), sig); err != nil {
		t.Fatalf("expected Emit to absorb duplicate, got %v", err)
	}
}

func TestSignalRepositoryRequeueForRetry_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE signals SET status = \$1, retry_count = retry_count \+ 1`).
		WithArgs(models.SignalStatusPending, 9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewSignalRepository(db)
	err = repo.RequeueForRetry(context.Background(), 9)
	if !errors.Is(err, ErrSignalNotFound) {
		t.Errorf("expected ErrSignalNotFound, got %v", err)
	}
}

func TestSignalRepositoryMarkProcessing_WrongStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE signals SET status = \$1 WHERE id = \$2 AND status = \$3`).
		WithArgs(models.SignalStatusProcessing, 3, models.SignalStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewSignalRepository(db)
	err = repo.MarkProcessing(3)
	if !errors.Is(err, ErrSignalNotFound) {
		t.Errorf("expected ErrSignalNotFound, got %v", err)
	}
}
