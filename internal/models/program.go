package models

import "time"

// ProgramKind distinguishes academic modules from specialized courses.
// Both run through the same enrollment and payment engine; the kind only
// decides how many recurring installments a program requires.
type ProgramKind string

const (
	ProgramKindAcademic ProgramKind = "ACADEMIC"
	ProgramKindCourse   ProgramKind = "COURSE"
)

// Program is the unified view over academic modules and specialized courses.
type Program struct {
	ID               string      `db:"id" json:"id"`
	Kind             ProgramKind `db:"kind" json:"kind"`
	Name             string      `db:"name" json:"name"`
	CategoryID       string      `db:"category_id" json:"category_id"`
	EvaluationTypeID string      `db:"evaluation_type_id" json:"evaluation_type_id"`
	SubjectCount     int         `db:"subject_count" json:"subject_count"`
	StartDate        *time.Time  `db:"start_date" json:"start_date,omitempty"`
	EndDate          *time.Time  `db:"end_date" json:"end_date,omitempty"`
	Active           bool        `db:"active" json:"active"`
}

// RequiredInstallments returns how many recurring payments complete an
// enrollment: one per subject for academic modules, one per month of
// duration for courses.
func (p Program) RequiredInstallments() int {
	switch p.Kind {
	case ProgramKindAcademic:
		return p.SubjectCount
	case ProgramKindCourse:
		if p.StartDate == nil || p.EndDate == nil {
			return 0
		}
		return MonthsBetween(*p.StartDate, *p.EndDate)
	default:
		return 0
	}
}

// MonthsBetween counts calendar months inclusive of both endpoints.
func MonthsBetween(start, end time.Time) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
	if months < 0 {
		return 0
	}
	return months
}
