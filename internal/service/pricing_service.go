package service

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-api/internal/models"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
)

type priceRuleReader interface {
	FindActive(ctx context.Context, feeKind models.FeeKind, categoryID string, roleID *string) (*models.PriceRule, error)
	List(ctx context.Context, filter models.PriceRuleFilter) ([]models.PriceRule, int, error)
}

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// PriceQuote is a priced amount after the scholarship discount.
type PriceQuote struct {
	Gross    decimal.Decimal `json:"gross"`
	Discount decimal.Decimal `json:"discount"`
	Net      decimal.Decimal `json:"net"`
}

// PricingService resolves unit prices and applies scholarship discounts.
// Registration and recurring fees read independent rule sets.
type PricingService struct {
	rules  priceRuleReader
	logger *zap.Logger
}

// NewPricingService constructs PricingService.
func NewPricingService(rules priceRuleReader, logger *zap.Logger) *PricingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PricingService{rules: rules, logger: logger}
}

// ResolvePrice returns the active unit price for (fee kind, category,
// optional role). A role-specific rule wins; otherwise the base rule for
// the category applies. No rule at all is NotFound.
func (s *PricingService) ResolvePrice(ctx context.Context, feeKind models.FeeKind, categoryID string, roleID *string) (decimal.Decimal, error) {
	if roleID != nil {
		rule, err := s.rules.FindActive(ctx, feeKind, categoryID, roleID)
		if err == nil {
			return rule.Amount, nil
		}
		if err != sql.ErrNoRows {
			return zero, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve price")
		}
	}
	rule, err := s.rules.FindActive(ctx, feeKind, categoryID, nil)
	if err != nil {
		if err == sql.ErrNoRows {
			return zero, appErrors.Clone(appErrors.ErrNotFound, "no active price rule for category")
		}
		return zero, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve price")
	}
	return rule.Amount, nil
}

// ComputeDiscount applies a scholarship percentage to a gross amount.
// The percentage is clamped to [0,100] before use; stored values outside
// the range are treated as the nearest bound.
func (s *PricingService) ComputeDiscount(gross decimal.Decimal, scholarship bool, pct decimal.Decimal) (discount, net decimal.Decimal) {
	if !scholarship {
		return zero, gross
	}
	if pct.LessThan(zero) {
		pct = zero
	}
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	discount = gross.Mul(pct).Div(hundred).Round(2)
	net = gross.Sub(discount)
	return discount, net
}

// Quote resolves the price for a student and applies their scholarship.
// A nil student quotes the base price: no role rule, no discount.
func (s *PricingService) Quote(ctx context.Context, feeKind models.FeeKind, categoryID string, student *models.Student) (*PriceQuote, error) {
	var roleID *string
	scholarship := false
	pct := zero
	if student != nil {
		roleID = student.RoleID
		scholarship = student.Scholarship
		pct = student.ScholarshipPct
	}

	gross, err := s.ResolvePrice(ctx, feeKind, categoryID, roleID)
	if err != nil {
		return nil, err
	}
	discount, net := s.ComputeDiscount(gross, scholarship, pct)
	return &PriceQuote{Gross: gross, Discount: discount, Net: net}, nil
}

// ListRules returns price rules for administration reads.
func (s *PricingService) ListRules(ctx context.Context, filter models.PriceRuleFilter) ([]models.PriceRule, int, error) {
	rules, total, err := s.rules.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list price rules")
	}
	return rules, total, nil
}
