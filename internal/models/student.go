package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Student is the billing profile every price computation reads.
// Internal students may carry a role; the role and the scholarship fields
// directly affect pricing for the student.
type Student struct {
	ID             string          `db:"id" json:"id"`
	FullName       string          `db:"full_name" json:"full_name"`
	DocumentID     string          `db:"document_id" json:"document_id"`
	Internal       bool            `db:"internal" json:"internal"`
	RoleID         *string         `db:"role_id" json:"role_id,omitempty"`
	Scholarship    bool            `db:"scholarship" json:"scholarship"`
	ScholarshipPct decimal.Decimal `db:"scholarship_pct" json:"scholarship_pct"`
	Active         bool            `db:"active" json:"active"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// StudentFilter provides filters for listing students.
type StudentFilter struct {
	Search   string
	Internal *bool
	Active   *bool
	Page     int
	PageSize int
}
