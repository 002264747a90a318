package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-api/internal/models"
)

func pendingEnrollment(createdAt time.Time) *models.Enrollment {
	return &models.Enrollment{
		StudentID:   "stu-1",
		ProgramID:   "prog-1",
		ProgramKind: models.ProgramKindAcademic,
		CategoryID:  "cat-1",
		Gross:       decimal.RequireFromString("100.00"),
		Discount:    decimal.RequireFromString("10.00"),
		Net:         decimal.RequireFromString("90.00"),
		State:       models.EnrollmentStatePending,
		CreatedAt:   createdAt,
	}
}

func TestEnrollmentRepositoryCreateGeneratesFirstCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db, 3)

	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	enrollment := pendingEnrollment(createdAt)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT code FROM enrollments WHERE code LIKE \$1`).
		WithArgs("ENR-2026-%").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO enrollments`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), enrollment))
	require.Equal(t, "ENR-2026-00001", enrollment.Code)
	require.NotEmpty(t, enrollment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateRetriesOnCodeCollision(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db, 3)

	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	enrollment := pendingEnrollment(createdAt)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT code FROM enrollments WHERE code LIKE \$1`).
		WithArgs("ENR-2026-%").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("ENR-2026-00016"))
	mock.ExpectExec(`INSERT INTO enrollments`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT code FROM enrollments WHERE code LIKE \$1`).
		WithArgs("ENR-2026-%").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("ENR-2026-00017"))
	mock.ExpectExec(`INSERT INTO enrollments`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), enrollment))
	require.Equal(t, "ENR-2026-00018", enrollment.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryVoidAlreadyVoid(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db, 3)

	mock.ExpectExec(`UPDATE enrollments SET state = \$2, void_reason = \$3, voided_at = \$4 WHERE id = \$1 AND state <> \$2`).
		WithArgs("enr-1", models.EnrollmentStateVoid, "duplicate", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	voided, err := repo.Void(context.Background(), "enr-1", "duplicate", time.Now())
	require.NoError(t, err)
	require.False(t, voided)
	require.NoError(t, mock.ExpectationsWereMet())
}
