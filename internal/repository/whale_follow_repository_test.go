package repository

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"copytrader/internal/models"
)

func TestWhaleFollowRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	f := &models.WhaleFollow{UserID: 1, WhaleID: 2, AutoCopy: true, SizingStrategy: models.SizingFixed, CopyTradeSizeUSDT: 100}

	mock.ExpectQuery(`INSERT INTO whale_follows`).
		WithArgs(f.UserID, f.WhaleID, f.AutoCopy, f.CopyTradeSizeUSDT, f.TradeSizePercent,
			f.SizingStrategy, f.MaxLeverage, f.Exchange, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	repo := NewWhaleFollowRepository(db)
	if err := repo.Create(f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.ID != 5 {
		t.Errorf("expected ID 5, got %d", f.ID)
	}
}

func TestWhaleFollowRepositoryCreate_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	f := &models.WhaleFollow{UserID: 1, WhaleID: 2}

	mock.ExpectQuery(`INSERT INTO whale_follows`).
		WithArgs(f.UserID, f.WhaleID, f.AutoCopy, f.CopyTradeSizeUSDT, f.TradeSizePercent,
			f.SizingStrategy, f.MaxLeverage, f.Exchange, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "whale_follows_user_id_whale_id_key"`))

	repo := NewWhaleFollowRepository(db)
	err = repo.Create(f)
	if !errors.Is(err, ErrDuplicateFollow) {
		t.Errorf("expected ErrDuplicateFollow, got %v", err)
	}
}

func TestWhaleFollowRepositoryDelete_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM whale_follows WHERE id = \$1`).
		WithArgs(42).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewWhaleFollowRepository(db)
	err = repo.Delete(42)
	if !errors.Is(err, ErrWhaleFollowNotFound) {
		t.Errorf("expected ErrWhaleFollowNotFound, got %v", err)
	}
}
