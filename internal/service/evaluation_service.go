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

type evaluationRepo interface {
	FindTypeByID(ctx context.Context, id string) (*models.EvaluationType, error)
	FindComponentByID(ctx context.Context, id string) (*models.EvaluationComponent, error)
	ListComponentsByType(ctx context.Context, typeID string) ([]models.EvaluationComponent, error)
}

type gradeRepo interface {
	Exists(ctx context.Context, enrollmentID, componentID string, subjectID *string) (bool, error)
	Create(ctx context.Context, entry *models.GradeEntry) error
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.GradeReportEntry, error)
}

type paymentEligibility interface {
	ExistsCompletedRegistration(ctx context.Context, enrollmentID string) (bool, error)
	HasAnyCompleted(ctx context.Context, enrollmentID string) (bool, error)
}

type enrollmentApprover interface {
	SetApproved(ctx context.Context, id string) error
}

// SubmitGradeRequest records one component score for an enrollment.
type SubmitGradeRequest struct {
	ComponentID string  `json:"component_id" validate:"required"`
	SubjectID   *string `json:"subject_id"`
	Score       int     `json:"score"`
}

// Passing threshold for the final grade. Fixed institute policy.
const passingScore = 70

// EvaluationService records weighted grades and computes final outcomes.
// Scores stay integral; the weighted sum is rounded once, at the end.
type EvaluationService struct {
	evaluations evaluationRepo
	grades      gradeRepo
	enrollments enrollmentReader
	approver    enrollmentApprover
	payments    paymentEligibility
	students    studentReader
	programs    programReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEvaluationService constructs EvaluationService.
func NewEvaluationService(evaluations evaluationRepo, grades gradeRepo, enrollments enrollmentReader, approver enrollmentApprover, payments paymentEligibility, students studentReader, programs programReader, validate *validator.Validate, logger *zap.Logger) *EvaluationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationService{
		evaluations: evaluations,
		grades:      grades,
		enrollments: enrollments,
		approver:    approver,
		payments:    payments,
		students:    students,
		programs:    programs,
		validator:   validate,
		logger:      logger,
	}
}

// SubmitGrade records a score against one evaluation component.
func (s *EvaluationService) SubmitGrade(ctx context.Context, enrollmentID string, req SubmitGradeRequest) (*models.GradeEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if req.Score < 0 || req.Score > 100 {
		return nil, appErrors.Clone(appErrors.ErrOutOfRange, "score must be between 0 and 100")
	}

	enrollment, program, err := s.loadScope(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.State == models.EnrollmentStateVoid {
		return nil, appErrors.Clone(appErrors.ErrAlreadyVoid, "enrollment is void")
	}

	eligible, err := s.isEligible(ctx, enrollment)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, appErrors.Clone(appErrors.ErrNotEligible, "")
	}

	component, err := s.evaluations.FindComponentByID(ctx, req.ComponentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation component not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load component")
	}
	if component.TypeID != program.EvaluationTypeID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "component does not belong to the program's evaluation type")
	}
	if !component.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "evaluation component is inactive")
	}

	exists, err := s.grades.Exists(ctx, enrollmentID, req.ComponentID, req.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check grade entry")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEntry, "")
	}

	entry := &models.GradeEntry{
		EnrollmentID: enrollmentID,
		ComponentID:  req.ComponentID,
		SubjectID:    req.SubjectID,
		Score:        req.Score,
	}
	if err := s.grades.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store grade entry")
	}
	s.logger.Info("grade recorded",
		zap.String("enrollment_id", enrollmentID),
		zap.String("component_id", req.ComponentID),
		zap.Int("score", req.Score))
	return entry, nil
}

// ComputeFinalGrade returns the weighted outcome, or a partial report
// when entries are still missing. The weighted sum is rounded exactly
// once, half away from zero, to an integral final score.
func (s *EvaluationService) ComputeFinalGrade(ctx context.Context, enrollmentID string) (*models.GradeReport, error) {
	_, program, err := s.loadScope(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	evalType, err := s.evaluations.FindTypeByID(ctx, program.EvaluationTypeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation type")
	}
	entries, err := s.grades.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade entries")
	}

	report := &models.GradeReport{
		EnrollmentID: enrollmentID,
		Required:     evalType.RequiredComponents,
		Entered:      len(entries),
		Entries:      entries,
	}
	if report.Entered < report.Required {
		return report, nil
	}

	weighted := decimal.Zero
	for _, entry := range entries {
		weighted = weighted.Add(decimal.NewFromInt(int64(entry.Score)).Mul(entry.Weight))
	}
	final := int(weighted.Div(hundred).Round(0).IntPart())

	report.Complete = true
	report.FinalScore = &final
	if final >= passingScore {
		report.Verdict = models.VerdictPass
	} else {
		report.Verdict = models.VerdictFail
	}
	return report, nil
}

// FinalizeGrade computes the final grade and persists its consequences:
// a passing, completed course enrollment becomes Approved, which blocks
// re-enrollment into the same course.
func (s *EvaluationService) FinalizeGrade(ctx context.Context, enrollmentID string) (*models.GradeReport, error) {
	report, err := s.ComputeFinalGrade(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !report.Complete {
		return nil, appErrors.WithDetails(appErrors.ErrPreconditionFailed, "grade entries incomplete",
			map[string]int{"required": report.Required, "entered": report.Entered})
	}

	enrollment, program, err := s.loadScope(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if report.Verdict == models.VerdictPass &&
		program.Kind == models.ProgramKindCourse &&
		enrollment.State == models.EnrollmentStateCompleted {
		if err := s.approver.SetApproved(ctx, enrollmentID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve enrollment")
		}
		s.logger.Info("enrollment approved",
			zap.String("enrollment_id", enrollmentID),
			zap.Intp("final_score", report.FinalScore))
	}
	return report, nil
}

// CheckWeights reports whether the active component weights of an
// evaluation type sum to 100. Advisory; unbalanced weights never block
// grade entry.
func (s *EvaluationService) CheckWeights(ctx context.Context, typeID string) (*models.WeightsCheck, error) {
	if _, err := s.evaluations.FindTypeByID(ctx, typeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation type")
	}
	components, err := s.evaluations.ListComponentsByType(ctx, typeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list components")
	}

	sum := decimal.Zero
	for _, component := range components {
		sum = sum.Add(component.Weight)
	}
	return &models.WeightsCheck{
		TypeID:     typeID,
		Components: len(components),
		WeightSum:  sum,
		Balanced:   sum.Equal(hundred),
	}, nil
}

func (s *EvaluationService) loadScope(ctx context.Context, enrollmentID string) (*models.Enrollment, *models.Program, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	program, err := s.programs.FindByID(ctx, enrollment.ProgramID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	return enrollment, program, nil
}

// isEligible applies the grading gate: the registration fee is paid, the
// student holds a full scholarship, or any completed payment exists.
func (s *EvaluationService) isEligible(ctx context.Context, enrollment *models.Enrollment) (bool, error) {
	paid, err := s.payments.ExistsCompletedRegistration(ctx, enrollment.ID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registration payment")
	}
	if paid {
		return true, nil
	}

	student, err := s.students.FindByID(ctx, enrollment.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Scholarship && student.ScholarshipPct.GreaterThanOrEqual(hundred) {
		return true, nil
	}

	any, err := s.payments.HasAnyCompleted(ctx, enrollment.ID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check payments")
	}
	return any, nil
}
