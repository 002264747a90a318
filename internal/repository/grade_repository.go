package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-api/internal/models"
)

// GradeRepository persists per-component grade entries.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Exists checks for an entry on the (enrollment, component, subject)
// triple. Grades are write-once; corrections go through void-and-re-enter.
func (r *GradeRepository) Exists(ctx context.Context, enrollmentID, componentID string, subjectID *string) (bool, error) {
	query := `SELECT 1 FROM grade_entries WHERE enrollment_id = $1 AND component_id = $2`
	args := []interface{}{enrollmentID, componentID}
	if subjectID != nil {
		query += " AND subject_id = $3"
		args = append(args, *subjectID)
	} else {
		query += " AND subject_id IS NULL"
	}
	query += " LIMIT 1"

	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check grade entry: %w", err)
	}
	return true, nil
}

// Create persists a new grade entry.
func (r *GradeRepository) Create(ctx context.Context, entry *models.GradeEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO grade_entries (id, enrollment_id, component_id, subject_id, score, created_at)
        VALUES (:id, :enrollment_id, :component_id, :subject_id, :score, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create grade entry: %w", err)
	}
	return nil
}

// ListByEnrollment returns the enrollment's entries joined with their
// component weight and position, in position order.
func (r *GradeRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.GradeReportEntry, error) {
	const query = `SELECT g.component_id, c.name AS component_name, c.weight, c.position, g.score
        FROM grade_entries g
        JOIN evaluation_components c ON c.id = g.component_id
        WHERE g.enrollment_id = $1
        ORDER BY c.position`
	var entries []models.GradeReportEntry
	if err := r.db.SelectContext(ctx, &entries, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list grade entries: %w", err)
	}
	return entries, nil
}
