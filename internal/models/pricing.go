package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeKind selects which price table a lookup reads. Registration and
// recurring fees carry independent rule sets that must never be conflated.
type FeeKind string

const (
	FeeKindRegistration FeeKind = "REGISTRATION"
	FeeKindRecurring    FeeKind = "RECURRING"
)

// PriceRule maps a (category, optional role) pair to an active unit price.
// At most one rule per pair is active at a time; rules are deactivated,
// never deleted.
type PriceRule struct {
	ID         string          `db:"id" json:"id"`
	FeeKind    FeeKind         `db:"fee_kind" json:"fee_kind"`
	CategoryID string          `db:"category_id" json:"category_id"`
	RoleID     *string         `db:"role_id" json:"role_id,omitempty"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Active     bool            `db:"active" json:"active"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// PriceRuleFilter provides filters for listing price rules.
type PriceRuleFilter struct {
	FeeKind    FeeKind
	CategoryID string
	Active     *bool
	Page       int
	PageSize   int
}
