package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-api/internal/models"
)

func TestExchangeRateRepositorySupersedeClosesCurrentRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExchangeRateRepository(db)

	validFrom := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	rate := &models.ExchangeRate{
		Rate:      decimal.RequireFromString("36.75"),
		ValidFrom: validFrom,
		CreatedBy: "usr-1",
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE exchange_rates SET valid_to = \$1 WHERE valid_to IS NULL`).
		WithArgs(validFrom).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO exchange_rates`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Supersede(context.Background(), rate))
	require.NotEmpty(t, rate.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExchangeRateRepositoryCurrentReturnsOpenEndedRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExchangeRateRepository(db)

	rows := sqlmock.NewRows([]string{"id", "rate", "valid_from", "valid_to", "created_by"}).
		AddRow("rate-1", "36.50", time.Now(), nil, "usr-1")
	mock.ExpectQuery(`FROM exchange_rates WHERE valid_to IS NULL`).
		WillReturnRows(rows)

	current, err := repo.Current(context.Background())
	require.NoError(t, err)
	require.True(t, current.Rate.Equal(decimal.RequireFromString("36.50")))
	require.Nil(t, current.ValidTo)
	require.NoError(t, mock.ExpectationsWereMet())
}
