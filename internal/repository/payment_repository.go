package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-api/internal/models"
	"github.com/noah-isme/institute-api/pkg/database"
)

// ErrStaleEnrollment reports that the enrollment state changed between
// the service's checks and the guarded transition, so the whole
// transaction, payment insert included, was rolled back.
var ErrStaleEnrollment = errors.New("enrollment state changed concurrently")

// PaymentRepository handles persistence of payments. The payment insert
// and the enrollment state transition it triggers commit in the same
// transaction or not at all.
type PaymentRepository struct {
	db          *sqlx.DB
	codeRetries int
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB, codeRetries int) *PaymentRepository {
	if codeRetries <= 0 {
		codeRetries = 3
	}
	return &PaymentRepository{db: db, codeRetries: codeRetries}
}

const paymentColumns = `id, code, enrollment_id, kind, unit_ref, installment_no,
        cash_local, cash_foreign, card_local, card_foreign,
        exchange_rate, amount_owed, total_paid, change_local, change_foreign,
        channel, state, idempotency_key, created_at, voided_at, void_reason`

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByIdempotencyKey returns a previously stored payment for the same
// attempt, letting retried submissions return without a second charge.
func (r *PaymentRepository) FindByIdempotencyKey(ctx context.Context, enrollmentID, key string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE enrollment_id = $1 AND idempotency_key = $2`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, enrollmentID, key); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ExistsCompletedRegistration checks for a completed registration-fee
// payment on the enrollment.
func (r *PaymentRepository) ExistsCompletedRegistration(ctx context.Context, enrollmentID string) (bool, error) {
	const query = `SELECT 1 FROM payments WHERE enrollment_id = $1 AND kind = $2 AND state = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, enrollmentID, models.PaymentKindRegistration, models.PaymentStateCompleted); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check registration payment: %w", err)
	}
	return true, nil
}

// ExistsCompletedRecurringUnit checks for a completed recurring payment
// against the same subject or month reference.
func (r *PaymentRepository) ExistsCompletedRecurringUnit(ctx context.Context, enrollmentID, unitRef string) (bool, error) {
	const query = `SELECT 1 FROM payments
        WHERE enrollment_id = $1 AND kind = $2 AND state = $3 AND unit_ref = $4 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, enrollmentID, models.PaymentKindRecurring, models.PaymentStateCompleted, unitRef); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check recurring payment: %w", err)
	}
	return true, nil
}

// HasAnyCompleted checks whether any completed payment exists for the
// enrollment (the grading eligibility fallback).
func (r *PaymentRepository) HasAnyCompleted(ctx context.Context, enrollmentID string) (bool, error) {
	const query = `SELECT 1 FROM payments WHERE enrollment_id = $1 AND state = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, enrollmentID, models.PaymentStateCompleted); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check completed payments: %w", err)
	}
	return true, nil
}

// ApplyRegistration inserts the registration payment and activates a
// pending enrollment in one transaction.
func (r *PaymentRepository) ApplyRegistration(ctx context.Context, payment *models.Payment) error {
	return r.applyWithRetry(ctx, payment, func(tx *sqlx.Tx) error {
		const transition = `UPDATE enrollments SET state = $2, activated_at = $3
            WHERE id = $1 AND state = $4`
		result, err := tx.ExecContext(ctx, transition, payment.EnrollmentID,
			models.EnrollmentStateActive, payment.CreatedAt, models.EnrollmentStatePending)
		if err != nil {
			return fmt.Errorf("activate enrollment: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("activate enrollment: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("activate enrollment %s: %w", payment.EnrollmentID, ErrStaleEnrollment)
		}
		return nil
	})
}

// ApplyRecurring inserts a recurring payment and, when the completed
// installment count reaches required, completes the enrollment in the
// same transaction. Returns whether the enrollment completed.
func (r *PaymentRepository) ApplyRecurring(ctx context.Context, payment *models.Payment, required int) (bool, error) {
	completed := false
	err := r.applyWithRetry(ctx, payment, func(tx *sqlx.Tx) error {
		const countQuery = `SELECT COUNT(*) FROM payments
            WHERE enrollment_id = $1 AND kind = $2 AND state = $3`
		var count int
		if err := tx.GetContext(ctx, &count, countQuery, payment.EnrollmentID,
			models.PaymentKindRecurring, models.PaymentStateCompleted); err != nil {
			return fmt.Errorf("count recurring payments: %w", err)
		}
		if required > 0 && count >= required {
			const transition = `UPDATE enrollments SET state = $2, completed_at = $3
                WHERE id = $1 AND state = $4`
			result, err := tx.ExecContext(ctx, transition, payment.EnrollmentID,
				models.EnrollmentStateCompleted, payment.CreatedAt, models.EnrollmentStateActive)
			if err != nil {
				return fmt.Errorf("complete enrollment: %w", err)
			}
			rows, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("complete enrollment: %w", err)
			}
			if rows == 0 {
				return fmt.Errorf("complete enrollment %s: %w", payment.EnrollmentID, ErrStaleEnrollment)
			}
			completed = true
		}
		return nil
	})
	return completed, err
}

// applyWithRetry inserts the payment plus transition, regenerating the
// payment code when a concurrent writer took it first.
func (r *PaymentRepository) applyWithRetry(ctx context.Context, payment *models.Payment, transition func(tx *sqlx.Tx) error) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	prefix := fmt.Sprintf("PAY-%d-", payment.CreatedAt.Year())

	var lastErr error
	for attempt := 0; attempt < r.codeRetries; attempt++ {
		err := database.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
			code, err := nextSequentialCode(ctx, tx, "payments", prefix)
			if err != nil {
				return err
			}
			payment.Code = code
			const query = `INSERT INTO payments (id, code, enrollment_id, kind, unit_ref, installment_no,
                cash_local, cash_foreign, card_local, card_foreign,
                exchange_rate, amount_owed, total_paid, change_local, change_foreign,
                channel, state, idempotency_key, created_at)
                VALUES (:id, :code, :enrollment_id, :kind, :unit_ref, :installment_no,
                :cash_local, :cash_foreign, :card_local, :card_foreign,
                :exchange_rate, :amount_owed, :total_paid, :change_local, :change_foreign,
                :channel, :state, :idempotency_key, :created_at)`
			if _, err := sqlx.NamedExecContext(ctx, tx, query, payment); err != nil {
				return fmt.Errorf("create payment: %w", err)
			}
			return transition(tx)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsUniqueViolation(err) {
			return err
		}
	}
	return fmt.Errorf("create payment: code collision persisted after %d attempts: %w", r.codeRetries, lastErr)
}

// List returns payments filtered by the provided criteria.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	var conditions []string
	var args []interface{}

	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, filter.State)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM payments%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		paymentColumns, clause, size, offset)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM payments%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// ListCompleted returns all completed payments inside the window,
// oldest first, without pagination. Feeds the ledger export.
func (r *PaymentRepository) ListCompleted(ctx context.Context, from, to *time.Time) ([]models.Payment, error) {
	conditions := []string{"state = $1"}
	args := []interface{}{models.PaymentStateCompleted}

	if from != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)+1))
		args = append(args, *to)
	}

	query := fmt.Sprintf(`SELECT %s FROM payments WHERE %s ORDER BY created_at`,
		paymentColumns, strings.Join(conditions, " AND "))
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, fmt.Errorf("list completed payments: %w", err)
	}
	return payments, nil
}

// Void annotates a completed payment as voided. Completed payments are
// otherwise immutable.
func (r *PaymentRepository) Void(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	const query = `UPDATE payments SET state = $2, void_reason = $3, voided_at = $4
        WHERE id = $1 AND state = $5`
	result, err := r.db.ExecContext(ctx, query, id, models.PaymentStateVoided, reason, at, models.PaymentStateCompleted)
	if err != nil {
		return false, fmt.Errorf("void payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("void payment: %w", err)
	}
	return rows > 0, nil
}
