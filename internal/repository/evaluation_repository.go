package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-api/internal/models"
)

// EvaluationRepository reads evaluation types and their weighted
// components. Both are administrative reference data.
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository constructs the repository.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// FindTypeByID returns an evaluation type by its ID.
func (r *EvaluationRepository) FindTypeByID(ctx context.Context, id string) (*models.EvaluationType, error) {
	const query = `SELECT id, name, required_components, active FROM evaluation_types WHERE id = $1`
	var evalType models.EvaluationType
	if err := r.db.GetContext(ctx, &evalType, query, id); err != nil {
		return nil, err
	}
	return &evalType, nil
}

// FindComponentByID returns an evaluation component by its ID.
func (r *EvaluationRepository) FindComponentByID(ctx context.Context, id string) (*models.EvaluationComponent, error) {
	const query = `SELECT id, type_id, name, weight, position, mandatory, active
        FROM evaluation_components WHERE id = $1`
	var component models.EvaluationComponent
	if err := r.db.GetContext(ctx, &component, query, id); err != nil {
		return nil, err
	}
	return &component, nil
}

// ListComponentsByType returns the active components of an evaluation
// type in position order.
func (r *EvaluationRepository) ListComponentsByType(ctx context.Context, typeID string) ([]models.EvaluationComponent, error) {
	const query = `SELECT id, type_id, name, weight, position, mandatory, active
        FROM evaluation_components WHERE type_id = $1 AND active = TRUE ORDER BY position`
	var components []models.EvaluationComponent
	if err := r.db.SelectContext(ctx, &components, query, typeID); err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	return components, nil
}
