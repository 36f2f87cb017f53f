package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"copytrader/internal/models"
	"copytrader/internal/sharing"
)

func TestWhaleRepositoryGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "name", "whale_type", "exchange", "exchange_uid", "chain", "address",
		"data_status", "consecutive_empty_checks", "last_position_check", "last_position_found",
		"sharing_disabled_at", "sharing_recheck_at", "priority_score", "polling_interval_seconds",
		"win_rate", "avg_win_loss_ratio", "score", "is_active", "created_at", "updated_at",
	}).AddRow(
		1, "whale-1", "CEX", "OKX", "uid-1", "", "",
		models.WhaleStatusActive, 0, nil, nil,
		nil, nil, 1.0, 60,
		0.6, 1.5, 10.0, true, now, now,
	)
	mock.ExpectQuery(`SELECT (.+) FROM whales WHERE id = \$1`).WithArgs(1).WillReturnRows(rows)

	repo := NewWhaleRepository(db)
	w, err := repo.GetByID(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Name != "whale-1" {
		t.Errorf("got name %q", w.Name)
	}
}

func TestWhaleRepositoryGetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM whales WHERE id = \$1`).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	repo := NewWhaleRepository(db)
	_, err = repo.GetByID(99)
	if !errors.Is(err, ErrWhaleNotFound) {
		t.Errorf("expected ErrWhaleNotFound, got %v", err)
	}
}

func TestWhaleRepositoryApplySharingResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	foundAt := time.Now()
	result := sharing.CheckResult{
		Status:            models.WhaleStatusActive,
		ConsecutiveEmpty:  0,
		LastPositionFound: &foundAt,
	}

	mock.ExpectExec(`UPDATE whales SET`).
		WithArgs(result.Status, result.ConsecutiveEmpty, result.SharingDisabledAt,
			result.SharingRecheckAt, result.LastPositionFound, sqlmock.AnyArg(), sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewWhaleRepository(db)
	if err := repo.ApplySharingResult(context.Background(), 7, result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWhaleRepositoryApplySharingResult_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	result := sharing.CheckResult{Status: models.WhaleStatusActive}

	mock.ExpectExec(`UPDATE whales SET`).
		WithArgs(result.Status, result.ConsecutiveEmpty, result.SharingDisabledAt,
			result.SharingRecheckAt, result.LastPositionFound, sqlmock.AnyArg(), sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewWhaleRepository(db)
	err = repo.ApplySharingResult(context.Background(), 7, result)
	if !errors.Is(err, ErrWhaleNotFound) {
		t.Errorf("expected ErrWhaleNotFound, got %v", err)
	}
}
