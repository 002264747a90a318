package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-api/internal/models"
)

func completedPayment(kind models.PaymentKind, createdAt time.Time) *models.Payment {
	return &models.Payment{
		EnrollmentID: "enr-1",
		Kind:         kind,
		CashLocal:    decimal.RequireFromString("3650.00"),
		ExchangeRate: decimal.RequireFromString("36.50"),
		AmountOwed:   decimal.RequireFromString("100.00"),
		TotalPaid:    decimal.RequireFromString("100.00"),
		Channel:      models.PaymentChannelCash,
		State:        models.PaymentStateCompleted,
		CreatedAt:    createdAt,
	}
}

func TestPaymentRepositoryApplyRegistrationActivatesEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db, 3)

	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	payment := completedPayment(models.PaymentKindRegistration, createdAt)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT code FROM payments WHERE code LIKE \$1`).
		WithArgs("PAY-2026-%").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO payments`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE enrollments SET state = \$2, activated_at = \$3`).
		WithArgs("enr-1", models.EnrollmentStateActive, createdAt, models.EnrollmentStatePending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ApplyRegistration(context.Background(), payment))
	require.Equal(t, "PAY-2026-00001", payment.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryApplyRegistrationRollsBackWhenNotPending(t *testing.T) {
	// A concurrent void or activation leaves the guarded UPDATE with no
	// rows; the payment insert must not survive it.
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db, 3)

	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	payment := completedPayment(models.PaymentKindRegistration, createdAt)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT code FROM payments WHERE code LIKE \$1`).
		WithArgs("PAY-2026-%").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO payments`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE enrollments SET state = \$2, activated_at = \$3`).
		WithArgs("enr-1", models.EnrollmentStateActive, createdAt, models.EnrollmentStatePending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ApplyRegistration(context.Background(), payment)
	require.ErrorIs(t, err, ErrStaleEnrollment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryApplyRecurringCompletesAtRequiredCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db, 3)

	createdAt := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	payment := completedPayment(models.PaymentKindRecurring, createdAt)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT code FROM payments WHERE code LIKE \$1`).
		WithArgs("PAY-2026-%").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("PAY-2026-00004"))
	mock.ExpectExec(`INSERT INTO payments`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM payments`).
		WithArgs("enr-1", models.PaymentKindRecurring, models.PaymentStateCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectExec(`UPDATE enrollments SET state = \$2, completed_at = \$3`).
		WithArgs("enr-1", models.EnrollmentStateCompleted, createdAt, models.EnrollmentStateActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	completed, err := repo.ApplyRecurring(context.Background(), payment, 5)
	require.NoError(t, err)
	require.True(t, completed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryApplyRecurringBelowRequiredCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db, 3)

	createdAt := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	payment := completedPayment(models.PaymentKindRecurring, createdAt)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT code FROM payments WHERE code LIKE \$1`).
		WithArgs("PAY-2026-%").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO payments`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM payments`).
		WithArgs("enr-1", models.PaymentKindRecurring, models.PaymentStateCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	completed, err := repo.ApplyRecurring(context.Background(), payment, 5)
	require.NoError(t, err)
	require.False(t, completed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryApplyRecurringRollsBackWhenNotActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db, 3)

	createdAt := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	payment := completedPayment(models.PaymentKindRecurring, createdAt)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT code FROM payments WHERE code LIKE \$1`).
		WithArgs("PAY-2026-%").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO payments`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM payments`).
		WithArgs("enr-1", models.PaymentKindRecurring, models.PaymentStateCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectExec(`UPDATE enrollments SET state = \$2, completed_at = \$3`).
		WithArgs("enr-1", models.EnrollmentStateCompleted, createdAt, models.EnrollmentStateActive).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	completed, err := repo.ApplyRecurring(context.Background(), payment, 5)
	require.ErrorIs(t, err, ErrStaleEnrollment)
	require.False(t, completed)
	require.NoError(t, mock.ExpectationsWereMet())
}
