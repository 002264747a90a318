package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-api/internal/models"
	"github.com/noah-isme/institute-api/pkg/database"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db          *sqlx.DB
	codeRetries int
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB, codeRetries int) *EnrollmentRepository {
	if codeRetries <= 0 {
		codeRetries = 3
	}
	return &EnrollmentRepository{db: db, codeRetries: codeRetries}
}

const enrollmentColumns = `id, code, student_id, program_id, program_kind, category_id,
        gross, discount, net, state, note, approved, void_reason,
        created_at, activated_at, completed_at, voided_at`

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student and program info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.code, e.student_id, e.program_id, e.program_kind, e.category_id,
        e.gross, e.discount, e.net, e.state, e.note, e.approved, e.void_reason,
        e.created_at, e.activated_at, e.completed_at, e.voided_at,
        s.full_name AS student_name, p.name AS program_name
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN programs p ON p.id = e.program_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN programs p ON p.id = e.program_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("e.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("e.state = $%d", len(args)+1))
		args = append(args, filter.State)
	}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("EXTRACT(YEAR FROM e.created_at) = $%d", len(args)+1))
		args = append(args, filter.Year)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "e.created_at",
		"code":         "e.code",
		"student_name": "s.full_name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT e.id, e.code, e.student_id, e.program_id, e.program_kind, e.category_id,
        e.gross, e.discount, e.net, e.state, e.note, e.approved, e.void_reason,
        e.created_at, e.activated_at, e.completed_at, e.voided_at,
        s.full_name AS student_name, p.name AS program_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ExistsNonVoid checks for an existing Pending/Active/Completed enrollment
// for the (student, program) pair.
func (r *EnrollmentRepository) ExistsNonVoid(ctx context.Context, studentID, programID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND program_id = $2 AND state <> $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, programID, models.EnrollmentStateVoid); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check non-void enrollment: %w", err)
	}
	return true, nil
}

// ExistsApprovedCompleted checks for a completed, approved enrollment for
// the pair (the re-enrollment block for passed courses).
func (r *EnrollmentRepository) ExistsApprovedCompleted(ctx context.Context, studentID, programID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments
        WHERE student_id = $1 AND program_id = $2 AND state = $3 AND approved = TRUE LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, programID, models.EnrollmentStateCompleted); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check approved enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment, generating its per-year code inside
// the insert transaction. Retries on code collision.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	prefix := fmt.Sprintf("ENR-%d-", enrollment.CreatedAt.Year())

	var lastErr error
	for attempt := 0; attempt < r.codeRetries; attempt++ {
		err := database.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
			code, err := nextSequentialCode(ctx, tx, "enrollments", prefix)
			if err != nil {
				return err
			}
			enrollment.Code = code
			const query = `INSERT INTO enrollments (id, code, student_id, program_id, program_kind, category_id,
                gross, discount, net, state, note, approved, created_at, activated_at)
                VALUES (:id, :code, :student_id, :program_id, :program_kind, :category_id,
                :gross, :discount, :net, :state, :note, :approved, :created_at, :activated_at)`
			if _, err := sqlx.NamedExecContext(ctx, tx, query, enrollment); err != nil {
				return fmt.Errorf("create enrollment: %w", err)
			}
			return nil
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsUniqueViolation(err) {
			return err
		}
	}
	return fmt.Errorf("create enrollment: code collision persisted after %d attempts: %w", r.codeRetries, lastErr)
}

// Void marks the enrollment void. The state guard runs in SQL so a
// concurrent void cannot overwrite the first reason.
func (r *EnrollmentRepository) Void(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	const query = `UPDATE enrollments SET state = $2, void_reason = $3, voided_at = $4 WHERE id = $1 AND state <> $2`
	result, err := r.db.ExecContext(ctx, query, id, models.EnrollmentStateVoid, reason, at)
	if err != nil {
		return false, fmt.Errorf("void enrollment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("void enrollment: %w", err)
	}
	return rows > 0, nil
}

// SetApproved flags a completed course enrollment as approved.
func (r *EnrollmentRepository) SetApproved(ctx context.Context, id string) error {
	const query = `UPDATE enrollments SET approved = TRUE WHERE id = $1 AND state = $2`
	if _, err := r.db.ExecContext(ctx, query, id, models.EnrollmentStateCompleted); err != nil {
		return fmt.Errorf("approve enrollment: %w", err)
	}
	return nil
}
