package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-api/internal/models"
	"github.com/noah-isme/institute-api/pkg/database"
)

// ExchangeRateRepository manages the versioned exchange rate table.
// Exactly one row is open-ended (valid_to IS NULL) at any time.
type ExchangeRateRepository struct {
	db *sqlx.DB
}

// NewExchangeRateRepository constructs the repository.
func NewExchangeRateRepository(db *sqlx.DB) *ExchangeRateRepository {
	return &ExchangeRateRepository{db: db}
}

const exchangeRateColumns = `id, rate, valid_from, valid_to, created_by`

// Current returns the open-ended rate row.
func (r *ExchangeRateRepository) Current(ctx context.Context) (*models.ExchangeRate, error) {
	query := fmt.Sprintf(`SELECT %s FROM exchange_rates WHERE valid_to IS NULL
        ORDER BY valid_from DESC LIMIT 1`, exchangeRateColumns)
	var rate models.ExchangeRate
	if err := r.db.GetContext(ctx, &rate, query); err != nil {
		return nil, err
	}
	return &rate, nil
}

// Supersede closes the current rate and inserts the new one in a single
// transaction, so no reader ever observes zero or two open rates.
func (r *ExchangeRateRepository) Supersede(ctx context.Context, rate *models.ExchangeRate) error {
	if rate.ID == "" {
		rate.ID = uuid.NewString()
	}
	if rate.ValidFrom.IsZero() {
		rate.ValidFrom = time.Now().UTC()
	}
	return database.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const closeQuery = `UPDATE exchange_rates SET valid_to = $1 WHERE valid_to IS NULL`
		if _, err := tx.ExecContext(ctx, closeQuery, rate.ValidFrom); err != nil {
			return fmt.Errorf("close current rate: %w", err)
		}
		const insertQuery = `INSERT INTO exchange_rates (id, rate, valid_from, created_by)
            VALUES (:id, :rate, :valid_from, :created_by)`
		if _, err := sqlx.NamedExecContext(ctx, tx, insertQuery, rate); err != nil {
			return fmt.Errorf("insert rate: %w", err)
		}
		return nil
	})
}

// History returns past and present rates, newest first.
func (r *ExchangeRateRepository) History(ctx context.Context, limit int) ([]models.ExchangeRate, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM exchange_rates ORDER BY valid_from DESC LIMIT %d`,
		exchangeRateColumns, limit)
	var rates []models.ExchangeRate
	if err := r.db.SelectContext(ctx, &rates, query); err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	return rates, nil
}
