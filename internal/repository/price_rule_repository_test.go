package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func priceRuleRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "fee_kind", "category_id", "role_id", "amount", "active", "created_at"})
}

func TestPriceRuleRepositoryFindActiveWithRole(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPriceRuleRepository(db)

	role := "role-scholar"
	rows := priceRuleRows().
		AddRow("rule-1", models.FeeKindRegistration, "cat-1", &role, "150.00", true, time.Now())
	mock.ExpectQuery(`FROM price_rules\s+WHERE fee_kind = \$1 AND category_id = \$2 AND active = TRUE AND role_id = \$3`).
		WithArgs(models.FeeKindRegistration, "cat-1", role).
		WillReturnRows(rows)

	rule, err := repo.FindActive(context.Background(), models.FeeKindRegistration, "cat-1", &role)
	require.NoError(t, err)
	require.True(t, rule.Amount.Equal(decimal.RequireFromString("150.00")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceRuleRepositoryFindActiveBaseRule(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPriceRuleRepository(db)

	rows := priceRuleRows().
		AddRow("rule-2", models.FeeKindRecurring, "cat-1", nil, "80.00", true, time.Now())
	mock.ExpectQuery(`FROM price_rules\s+WHERE fee_kind = \$1 AND category_id = \$2 AND active = TRUE AND role_id IS NULL`).
		WithArgs(models.FeeKindRecurring, "cat-1").
		WillReturnRows(rows)

	rule, err := repo.FindActive(context.Background(), models.FeeKindRecurring, "cat-1", nil)
	require.NoError(t, err)
	require.Nil(t, rule.RoleID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceRuleRepositoryFindActiveNoRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPriceRuleRepository(db)

	mock.ExpectQuery(`FROM price_rules`).
		WithArgs(models.FeeKindRegistration, "cat-2", "role-x").
		WillReturnError(sql.ErrNoRows)

	role := "role-x"
	_, err := repo.FindActive(context.Background(), models.FeeKindRegistration, "cat-2", &role)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
