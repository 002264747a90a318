package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-api/internal/models"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
)

type enrollmentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	ExistsNonVoid(ctx context.Context, studentID, programID string) (bool, error)
	ExistsApprovedCompleted(ctx context.Context, studentID, programID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Void(ctx context.Context, id, reason string, at time.Time) (bool, error)
}

// CreateEnrollmentRequest enrolls a student into a program. The
// optional amounts override the price tables for negotiated fees; when
// absent the registration fee is quoted from the active price rule.
type CreateEnrollmentRequest struct {
	StudentID string           `json:"student_id" validate:"required"`
	ProgramID string           `json:"program_id" validate:"required"`
	Gross     *decimal.Decimal `json:"gross,omitempty"`
	Discount  *decimal.Decimal `json:"discount,omitempty"`
	Net       *decimal.Decimal `json:"net,omitempty"`
}

// VoidEnrollmentRequest voids an enrollment with an audit reason.
type VoidEnrollmentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

const waiverNote = "registration fee waived by full scholarship"

// EnrollmentService drives the enrollment lifecycle. Academic modules
// and specialized courses run through the same engine; the program kind
// only changes how many installments complete the enrollment.
type EnrollmentService struct {
	enrollments enrollmentRepo
	students    studentReader
	programs    programReader
	pricing     priceQuoter
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(enrollments enrollmentRepo, students studentReader, programs programReader, pricing priceQuoter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		students:    students,
		programs:    programs,
		pricing:     pricing,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Create prices and persists a new enrollment. A net amount of zero
// (full scholarship) activates it immediately with an audit note; any
// other amount starts Pending until the registration fee is settled.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is inactive")
	}

	program, err := s.programs.FindByID(ctx, req.ProgramID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	if !program.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "program is inactive")
	}

	if program.Kind == models.ProgramKindCourse {
		approved, err := s.enrollments.ExistsApprovedCompleted(ctx, req.StudentID, req.ProgramID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check approval")
		}
		if approved {
			return nil, appErrors.Clone(appErrors.ErrAlreadyApproved, "")
		}
	}
	duplicate, err := s.enrollments.ExistsNonVoid(ctx, req.StudentID, req.ProgramID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicates")
	}
	if duplicate {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
	}

	quote, err := s.resolveAmounts(ctx, req, program, student)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	enrollment := &models.Enrollment{
		StudentID:   student.ID,
		ProgramID:   program.ID,
		ProgramKind: program.Kind,
		CategoryID:  program.CategoryID,
		Gross:       quote.Gross,
		Discount:    quote.Discount,
		Net:         quote.Net,
		State:       models.EnrollmentStatePending,
		CreatedAt:   now,
	}
	if quote.Net.IsZero() {
		enrollment.State = models.EnrollmentStateActive
		enrollment.Note = waiverNote
		enrollment.ActivatedAt = &now
	}

	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.metrics.RecordEnrollment(string(enrollment.ProgramKind), string(enrollment.State))
	s.logger.Info("enrollment created",
		zap.String("code", enrollment.Code),
		zap.String("student_id", enrollment.StudentID),
		zap.String("program_id", enrollment.ProgramID),
		zap.String("state", string(enrollment.State)))
	return enrollment, nil
}

// resolveAmounts prefers caller-supplied amounts over the price tables,
// so a missing price rule blocks creation only when no override came in.
func (s *EnrollmentService) resolveAmounts(ctx context.Context, req CreateEnrollmentRequest, program *models.Program, student *models.Student) (*PriceQuote, error) {
	if req.Gross == nil {
		return s.pricing.Quote(ctx, models.FeeKindRegistration, program.CategoryID, student)
	}

	gross := *req.Gross
	discount := decimal.Zero
	if req.Discount != nil {
		discount = *req.Discount
	}
	if gross.IsNegative() || discount.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "override amounts must not be negative")
	}
	if discount.GreaterThan(gross) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "discount must not exceed gross")
	}
	net := gross.Sub(discount)
	if req.Net != nil && !req.Net.Equal(net) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "net must equal gross minus discount")
	}
	return &PriceQuote{Gross: gross, Discount: discount, Net: net}, nil
}

// Get returns the enrollment with student and program names.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.enrollments.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// List returns enrollments filtered by the provided criteria.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, total, nil
}

// Void terminates the enrollment from any state. Voiding twice conflicts;
// the first reason is never overwritten.
func (s *EnrollmentService) Void(ctx context.Context, id string, req VoidEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "void reason required")
	}

	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.State == models.EnrollmentStateVoid {
		return nil, appErrors.Clone(appErrors.ErrAlreadyVoid, "")
	}

	now := time.Now().UTC()
	voided, err := s.enrollments.Void(ctx, id, req.Reason, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to void enrollment")
	}
	if !voided {
		return nil, appErrors.Clone(appErrors.ErrAlreadyVoid, "")
	}

	enrollment.State = models.EnrollmentStateVoid
	enrollment.VoidReason = &req.Reason
	enrollment.VoidedAt = &now
	s.logger.Info("enrollment voided",
		zap.String("code", enrollment.Code),
		zap.String("reason", req.Reason))
	return enrollment, nil
}
