package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EnrollmentState represents the lifecycle of an enrollment.
type EnrollmentState string

// Possible enrollment states. Void is terminal from any state.
const (
	EnrollmentStatePending   EnrollmentState = "PENDING"
	EnrollmentStateActive    EnrollmentState = "ACTIVE"
	EnrollmentStateCompleted EnrollmentState = "COMPLETED"
	EnrollmentStateVoid      EnrollmentState = "VOID"
)

// Enrollment ties a student to a program with its priced amounts.
// Amounts are denominated in the settlement currency.
type Enrollment struct {
	ID          string          `db:"id" json:"id"`
	Code        string          `db:"code" json:"code"`
	StudentID   string          `db:"student_id" json:"student_id"`
	ProgramID   string          `db:"program_id" json:"program_id"`
	ProgramKind ProgramKind     `db:"program_kind" json:"program_kind"`
	CategoryID  string          `db:"category_id" json:"category_id"`
	Gross       decimal.Decimal `db:"gross" json:"gross"`
	Discount    decimal.Decimal `db:"discount" json:"discount"`
	Net         decimal.Decimal `db:"net" json:"net"`
	State       EnrollmentState `db:"state" json:"state"`
	Note        string          `db:"note" json:"note,omitempty"`
	Approved    bool            `db:"approved" json:"approved"`
	VoidReason  *string         `db:"void_reason" json:"void_reason,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	ActivatedAt *time.Time      `db:"activated_at" json:"activated_at,omitempty"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	VoidedAt    *time.Time      `db:"voided_at" json:"voided_at,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student and program info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	ProgramName string `db:"program_name" json:"program_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	ProgramID string
	State     EnrollmentState
	Year      int
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
