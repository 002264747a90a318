package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-api/internal/models"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
)

func newEvaluationFixture() (*EvaluationService, *mockPaymentRepo, *mockGradeRepo, *mockEnrollmentRepo) {
	evaluations := &mockEvaluationRepo{
		types: map[string]models.EvaluationType{
			"type-1": {ID: "type-1", RequiredComponents: 3, Active: true},
		},
		components: map[string]models.EvaluationComponent{
			"comp-1": {ID: "comp-1", TypeID: "type-1", Weight: dec("30"), Position: 1, Active: true},
			"comp-2": {ID: "comp-2", TypeID: "type-1", Weight: dec("30"), Position: 2, Active: true},
			"comp-3": {ID: "comp-3", TypeID: "type-1", Weight: dec("40"), Position: 3, Active: true},
			"comp-other": {ID: "comp-other", TypeID: "type-2", Weight: dec("100"), Position: 1, Active: true},
		},
	}
	grades := &mockGradeRepo{
		existing: map[string]bool{},
		entries:  map[string][]models.GradeReportEntry{},
	}
	enrollments := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", StudentID: "stu-1", ProgramID: "prog-1", State: models.EnrollmentStateActive},
		"enr-done": {ID: "enr-done", StudentID: "stu-1", ProgramID: "prog-course", State: models.EnrollmentStateCompleted},
	}}
	payments := &mockPaymentRepo{
		registrationPaid: map[string]bool{"enr-1": true, "enr-done": true},
		anyCompleted:     map[string]bool{},
	}
	students := &mockStudentRepo{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", Active: true},
		"stu-scholar": {ID: "stu-scholar", Active: true, Scholarship: true, ScholarshipPct: dec("100")},
	}}
	programs := &mockProgramReader{programs: map[string]models.Program{
		"prog-1":      {ID: "prog-1", Kind: models.ProgramKindAcademic, EvaluationTypeID: "type-1", Active: true},
		"prog-course": {ID: "prog-course", Kind: models.ProgramKindCourse, EvaluationTypeID: "type-1", Active: true},
	}}
	svc := NewEvaluationService(evaluations, grades, enrollments, enrollments, payments, students, programs, nil, nil)
	return svc, payments, grades, enrollments
}

func TestSubmitGradeStoresEntry(t *testing.T) {
	svc, _, grades, _ := newEvaluationFixture()

	entry, err := svc.SubmitGrade(context.Background(), "enr-1", SubmitGradeRequest{ComponentID: "comp-1", Score: 85})
	require.NoError(t, err)
	assert.Equal(t, 85, entry.Score)
	require.Len(t, grades.created, 1)
}

func TestSubmitGradeScoreOutOfRange(t *testing.T) {
	svc, _, _, _ := newEvaluationFixture()

	_, err := svc.SubmitGrade(context.Background(), "enr-1", SubmitGradeRequest{ComponentID: "comp-1", Score: 101})
	assert.Equal(t, appErrors.ErrOutOfRange.Code, appErrors.FromError(err).Code)

	_, err = svc.SubmitGrade(context.Background(), "enr-1", SubmitGradeRequest{ComponentID: "comp-1", Score: -1})
	assert.Equal(t, appErrors.ErrOutOfRange.Code, appErrors.FromError(err).Code)
}

func TestSubmitGradeBoundaryScores(t *testing.T) {
	svc, _, _, _ := newEvaluationFixture()

	_, err := svc.SubmitGrade(context.Background(), "enr-1", SubmitGradeRequest{ComponentID: "comp-1", Score: 0})
	assert.NoError(t, err)
	_, err = svc.SubmitGrade(context.Background(), "enr-1", SubmitGradeRequest{ComponentID: "comp-2", Score: 100})
	assert.NoError(t, err)
}

func TestSubmitGradeNotEligible(t *testing.T) {
	svc, payments, _, _ := newEvaluationFixture()
	payments.registrationPaid["enr-1"] = false

	_, err := svc.SubmitGrade(context.Background(), "enr-1", SubmitGradeRequest{ComponentID: "comp-1", Score: 85})
	assert.Equal(t, appErrors.ErrNotEligible.Code, appErrors.FromError(err).Code)
}

func TestSubmitGradeFullScholarshipIsEligible(t *testing.T) {
	svc, payments, _, enrollments := newEvaluationFixture()
	payments.registrationPaid["enr-1"] = false
	e := enrollments.enrollments["enr-1"]
	e.StudentID = "stu-scholar"
	enrollments.enrollments["enr-1"] = e

	_, err := svc.SubmitGrade(context.Background(), "enr-1", SubmitGradeRequest{ComponentID: "comp-1", Score: 85})
	assert.NoError(t, err)
}

func TestSubmitGradeAnyCompletedPaymentIsEligible(t *testing.T) {
	svc, payments, _, _ := newEvaluationFixture()
	payments.registrationPaid["enr-1"] = false
	payments.anyCompleted["enr-1"] = true

	_, err := svc.SubmitGrade(context.Background(), "enr-1", SubmitGradeRequest{ComponentID: "comp-1", Score: 85})
	assert.NoError(t, err)
}

func TestSubmitGradeWrongEvaluationType(t *testing.T) {
	svc, _, _, _ := newEvaluationFixture()

	_, err := svc.SubmitGrade(context.Background(), "enr-1", SubmitGradeRequest{ComponentID: "comp-other", Score: 85})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmitGradeDuplicateEntry(t *testing.T) {
	svc, _, grades, _ := newEvaluationFixture()
	grades.existing[gradeKey("enr-1", "comp-1", nil)] = true

	_, err := svc.SubmitGrade(context.Background(), "enr-1", SubmitGradeRequest{ComponentID: "comp-1", Score: 85})
	assert.Equal(t, appErrors.ErrDuplicateEntry.Code, appErrors.FromError(err).Code)
}

func TestComputeFinalGradePartialReport(t *testing.T) {
	svc, _, grades, _ := newEvaluationFixture()
	grades.entries["enr-1"] = []models.GradeReportEntry{
		{ComponentID: "comp-1", Weight: dec("30"), Score: 80},
	}

	report, err := svc.ComputeFinalGrade(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.False(t, report.Complete)
	assert.Equal(t, 3, report.Required)
	assert.Equal(t, 1, report.Entered)
	assert.Nil(t, report.FinalScore)
	assert.Empty(t, report.Verdict)
}

func TestComputeFinalGradeWeightedPass(t *testing.T) {
	svc, _, grades, _ := newEvaluationFixture()
	grades.entries["enr-1"] = []models.GradeReportEntry{
		{ComponentID: "comp-1", Weight: dec("30"), Score: 80},
		{ComponentID: "comp-2", Weight: dec("30"), Score: 60},
		{ComponentID: "comp-3", Weight: dec("40"), Score: 75},
	}

	// 80*0.30 + 60*0.30 + 75*0.40 = 24 + 18 + 30 = 72
	report, err := svc.ComputeFinalGrade(context.Background(), "enr-1")
	require.NoError(t, err)
	require.True(t, report.Complete)
	require.NotNil(t, report.FinalScore)
	assert.Equal(t, 72, *report.FinalScore)
	assert.Equal(t, models.VerdictPass, report.Verdict)
}

func TestComputeFinalGradeRoundsOnceHalfAwayFromZero(t *testing.T) {
	svc, _, grades, _ := newEvaluationFixture()
	grades.entries["enr-1"] = []models.GradeReportEntry{
		{ComponentID: "comp-1", Weight: dec("30"), Score: 65},
		{ComponentID: "comp-2", Weight: dec("30"), Score: 70},
		{ComponentID: "comp-3", Weight: dec("40"), Score: 71},
	}

	// 19.5 + 21 + 28.4 = 68.9 -> 69, Fail
	report, err := svc.ComputeFinalGrade(context.Background(), "enr-1")
	require.NoError(t, err)
	require.NotNil(t, report.FinalScore)
	assert.Equal(t, 69, *report.FinalScore)
	assert.Equal(t, models.VerdictFail, report.Verdict)
}

func TestComputeFinalGradeExactThresholdPasses(t *testing.T) {
	svc, _, grades, _ := newEvaluationFixture()
	grades.entries["enr-1"] = []models.GradeReportEntry{
		{ComponentID: "comp-1", Weight: dec("30"), Score: 70},
		{ComponentID: "comp-2", Weight: dec("30"), Score: 70},
		{ComponentID: "comp-3", Weight: dec("40"), Score: 70},
	}

	report, err := svc.ComputeFinalGrade(context.Background(), "enr-1")
	require.NoError(t, err)
	require.NotNil(t, report.FinalScore)
	assert.Equal(t, 70, *report.FinalScore)
	assert.Equal(t, models.VerdictPass, report.Verdict)
}

func TestFinalizeGradeApprovesPassingCompletedCourse(t *testing.T) {
	svc, _, grades, enrollments := newEvaluationFixture()
	grades.entries["enr-done"] = []models.GradeReportEntry{
		{ComponentID: "comp-1", Weight: dec("30"), Score: 90},
		{ComponentID: "comp-2", Weight: dec("30"), Score: 90},
		{ComponentID: "comp-3", Weight: dec("40"), Score: 90},
	}

	report, err := svc.FinalizeGrade(context.Background(), "enr-done")
	require.NoError(t, err)
	assert.Equal(t, models.VerdictPass, report.Verdict)
	assert.Contains(t, enrollments.approvedIDs, "enr-done")
}

func TestFinalizeGradeIncompleteFails(t *testing.T) {
	svc, _, _, _ := newEvaluationFixture()

	_, err := svc.FinalizeGrade(context.Background(), "enr-1")
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestFinalizeGradeFailingCourseNotApproved(t *testing.T) {
	svc, _, grades, enrollments := newEvaluationFixture()
	grades.entries["enr-done"] = []models.GradeReportEntry{
		{ComponentID: "comp-1", Weight: dec("30"), Score: 50},
		{ComponentID: "comp-2", Weight: dec("30"), Score: 50},
		{ComponentID: "comp-3", Weight: dec("40"), Score: 50},
	}

	report, err := svc.FinalizeGrade(context.Background(), "enr-done")
	require.NoError(t, err)
	assert.Equal(t, models.VerdictFail, report.Verdict)
	assert.Empty(t, enrollments.approvedIDs)
}

func TestCheckWeightsAdvisory(t *testing.T) {
	svc, _, _, _ := newEvaluationFixture()

	check, err := svc.CheckWeights(context.Background(), "type-1")
	require.NoError(t, err)
	assert.True(t, check.Balanced)
	assert.Equal(t, 3, check.Components)
	assert.Equal(t, "100", check.WeightSum.String())
}
