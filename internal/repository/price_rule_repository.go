package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-api/internal/models"
)

// PriceRuleRepository reads the registration and recurring price tables.
// Rules are administrative reference data; the tuition core only reads them.
type PriceRuleRepository struct {
	db *sqlx.DB
}

// NewPriceRuleRepository constructs the repository.
func NewPriceRuleRepository(db *sqlx.DB) *PriceRuleRepository {
	return &PriceRuleRepository{db: db}
}

const priceRuleColumns = `id, fee_kind, category_id, role_id, amount, active, created_at`

// FindActive returns the single active rule for (fee kind, category, role).
// A nil roleID selects the base "no role" rule.
func (r *PriceRuleRepository) FindActive(ctx context.Context, feeKind models.FeeKind, categoryID string, roleID *string) (*models.PriceRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM price_rules
        WHERE fee_kind = $1 AND category_id = $2 AND active = TRUE`, priceRuleColumns)
	args := []interface{}{feeKind, categoryID}
	if roleID != nil {
		query += " AND role_id = $3"
		args = append(args, *roleID)
	} else {
		query += " AND role_id IS NULL"
	}
	query += " LIMIT 1"

	var rule models.PriceRule
	if err := r.db.GetContext(ctx, &rule, query, args...); err != nil {
		return nil, err
	}
	return &rule, nil
}

// List returns price rules filtered by the provided criteria.
func (r *PriceRuleRepository) List(ctx context.Context, filter models.PriceRuleFilter) ([]models.PriceRule, int, error) {
	var conditions []string
	var args []interface{}

	if filter.FeeKind != "" {
		conditions = append(conditions, fmt.Sprintf("fee_kind = $%d", len(args)+1))
		args = append(args, filter.FeeKind)
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
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

	query := fmt.Sprintf(`SELECT %s FROM price_rules%s ORDER BY fee_kind, category_id, role_id NULLS FIRST LIMIT %d OFFSET %d`,
		priceRuleColumns, clause, size, offset)
	var rules []models.PriceRule
	if err := r.db.SelectContext(ctx, &rules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list price rules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM price_rules%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count price rules: %w", err)
	}
	return rules, total, nil
}
