package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-api/internal/models"
)

// ProgramRepository reads the unified program catalog (academic modules
// and specialized courses share one table keyed by kind).
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

const programColumns = `id, kind, name, category_id, evaluation_type_id, subject_count, start_date, end_date, active`

// FindByID returns a program by its ID.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	query := fmt.Sprintf(`SELECT %s FROM programs WHERE id = $1`, programColumns)
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// ListActive returns the active programs of a kind.
func (r *ProgramRepository) ListActive(ctx context.Context, kind models.ProgramKind) ([]models.Program, error) {
	query := fmt.Sprintf(`SELECT %s FROM programs WHERE kind = $1 AND active = TRUE ORDER BY name`, programColumns)
	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query, kind); err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}
