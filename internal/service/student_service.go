package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-api/internal/models"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
)

type studentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	UpdateBilling(ctx context.Context, student *models.Student) error
}

// UpdateStudentBillingRequest updates the fields every price computation
// reads: role, scholarship and activity.
type UpdateStudentBillingRequest struct {
	Internal       *bool            `json:"internal"`
	RoleID         *string          `json:"role_id"`
	ClearRole      bool             `json:"clear_role"`
	Scholarship    *bool            `json:"scholarship"`
	ScholarshipPct *decimal.Decimal `json:"scholarship_pct"`
	Active         *bool            `json:"active"`
}

// StudentService manages student billing profiles.
type StudentService struct {
	students  studentRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(students studentRepo, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{students: students, validator: validate, logger: logger}
}

// Get returns a student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// List returns students filtered by the provided criteria.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, total, nil
}

// UpdateBilling applies a partial update to the billing profile. Only
// internal students may carry a role; the scholarship percentage must
// stay within [0,100].
func (s *StudentService) UpdateBilling(ctx context.Context, id string, req UpdateStudentBillingRequest) (*models.Student, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Internal != nil {
		student.Internal = *req.Internal
	}
	if req.ClearRole {
		student.RoleID = nil
	} else if req.RoleID != nil {
		student.RoleID = req.RoleID
	}
	if req.Scholarship != nil {
		student.Scholarship = *req.Scholarship
	}
	if req.ScholarshipPct != nil {
		pct := *req.ScholarshipPct
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return nil, appErrors.Clone(appErrors.ErrOutOfRange, "scholarship percentage must be between 0 and 100")
		}
		student.ScholarshipPct = pct
	}
	if req.Active != nil {
		student.Active = *req.Active
	}
	if !student.Internal && student.RoleID != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only internal students may carry a role")
	}

	if err := s.students.UpdateBilling(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.logger.Info("student billing updated", zap.String("student_id", student.ID))
	return student, nil
}
