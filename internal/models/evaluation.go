package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EvaluationType groups the weighted components a program is graded on.
type EvaluationType struct {
	ID                 string `db:"id" json:"id"`
	Name               string `db:"name" json:"name"`
	RequiredComponents int    `db:"required_components" json:"required_components"`
	Active             bool   `db:"active" json:"active"`
}

// EvaluationComponent is one weighted sub-assessment of an evaluation type.
type EvaluationComponent struct {
	ID        string          `db:"id" json:"id"`
	TypeID    string          `db:"type_id" json:"type_id"`
	Name      string          `db:"name" json:"name"`
	Weight    decimal.Decimal `db:"weight" json:"weight"`
	Position  int             `db:"position" json:"position"`
	Mandatory bool            `db:"mandatory" json:"mandatory"`
	Active    bool            `db:"active" json:"active"`
}

// GradeEntry ties an enrollment to one evaluation component.
// Scores are integral percentages in [0,100].
type GradeEntry struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	ComponentID  string    `db:"component_id" json:"component_id"`
	SubjectID    *string   `db:"subject_id" json:"subject_id,omitempty"`
	Score        int       `db:"score" json:"score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// GradeReportEntry is one scored component inside a report.
type GradeReportEntry struct {
	ComponentID   string          `db:"component_id" json:"component_id"`
	ComponentName string          `db:"component_name" json:"component_name"`
	Weight        decimal.Decimal `db:"weight" json:"weight"`
	Position      int             `db:"position" json:"position"`
	Score         int             `db:"score" json:"score"`
}

// GradeReport is the (possibly partial) outcome of a final grade
// computation. FinalScore and Verdict are only set when complete.
type GradeReport struct {
	EnrollmentID string             `json:"enrollment_id"`
	Complete     bool               `json:"complete"`
	Required     int                `json:"required_components"`
	Entered      int                `json:"entered_components"`
	Entries      []GradeReportEntry `json:"entries"`
	FinalScore   *int               `json:"final_score,omitempty"`
	Verdict      string             `json:"verdict,omitempty"`
}

// Report verdicts.
const (
	VerdictPass = "PASS"
	VerdictFail = "FAIL"
)

// WeightsCheck reports whether the active component weights of an
// evaluation type sum to 100. Advisory only; never blocks grading.
type WeightsCheck struct {
	TypeID     string          `json:"type_id"`
	Components int             `json:"components"`
	WeightSum  decimal.Decimal `json:"weight_sum"`
	Balanced   bool            `json:"balanced"`
}
