package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/institute-api/internal/models"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
)

type mockStudentRepo struct {
	students map[string]models.Student
	updated  *models.Student
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	return nil, 0, nil
}

func (m *mockStudentRepo) UpdateBilling(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	m.updated = student
	return nil
}

type mockProgramReader struct {
	programs map[string]models.Program
}

func (m *mockProgramReader) FindByID(ctx context.Context, id string) (*models.Program, error) {
	if p, ok := m.programs[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

type mockPriceRuleReader struct {
	rules map[string]models.PriceRule
}

func priceRuleKey(feeKind models.FeeKind, categoryID string, roleID *string) string {
	key := string(feeKind) + "|" + categoryID + "|"
	if roleID != nil {
		key += *roleID
	}
	return key
}

func (m *mockPriceRuleReader) FindActive(ctx context.Context, feeKind models.FeeKind, categoryID string, roleID *string) (*models.PriceRule, error) {
	if rule, ok := m.rules[priceRuleKey(feeKind, categoryID, roleID)]; ok {
		return &rule, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPriceRuleReader) List(ctx context.Context, filter models.PriceRuleFilter) ([]models.PriceRule, int, error) {
	return nil, 0, nil
}

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	nonVoid     map[string]bool
	approvedFor map[string]bool
	created     *models.Enrollment
	voided      map[string]string
	approvedIDs []string
}

func pairKey(studentID, programID string) string { return studentID + "|" + programID }

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e, StudentName: "Student", ProgramName: "Program"}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) ExistsNonVoid(ctx context.Context, studentID, programID string) (bool, error) {
	return m.nonVoid[pairKey(studentID, programID)], nil
}

func (m *mockEnrollmentRepo) ExistsApprovedCompleted(ctx context.Context, studentID, programID string) (bool, error) {
	return m.approvedFor[pairKey(studentID, programID)], nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "enr-new"
	}
	enrollment.Code = "ENR-2026-00001"
	m.enrollments[enrollment.ID] = *enrollment
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) Void(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	e, ok := m.enrollments[id]
	if !ok || e.State == models.EnrollmentStateVoid {
		return false, nil
	}
	e.State = models.EnrollmentStateVoid
	e.VoidReason = &reason
	m.enrollments[id] = e
	if m.voided == nil {
		m.voided = make(map[string]string)
	}
	m.voided[id] = reason
	return true, nil
}

func (m *mockEnrollmentRepo) SetApproved(ctx context.Context, id string) error {
	if e, ok := m.enrollments[id]; ok && e.State == models.EnrollmentStateCompleted {
		e.Approved = true
		m.enrollments[id] = e
	}
	m.approvedIDs = append(m.approvedIDs, id)
	return nil
}

type mockPaymentRepo struct {
	payments         map[string]models.Payment
	byIdemKey        map[string]models.Payment
	registrationPaid map[string]bool
	unitPaid         map[string]bool
	anyCompleted     map[string]bool
	applied          []*models.Payment
	completeOnApply  bool
}

func (m *mockPaymentRepo) ApplyRegistration(ctx context.Context, payment *models.Payment) error {
	payment.ID = "pay-new"
	payment.Code = "PAY-2026-00001"
	m.applied = append(m.applied, payment)
	return nil
}

func (m *mockPaymentRepo) ApplyRecurring(ctx context.Context, payment *models.Payment, required int) (bool, error) {
	payment.ID = "pay-new"
	payment.Code = "PAY-2026-00002"
	m.applied = append(m.applied, payment)
	return m.completeOnApply, nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if p, ok := m.payments[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) FindByIdempotencyKey(ctx context.Context, enrollmentID, key string) (*models.Payment, error) {
	if p, ok := m.byIdemKey[enrollmentID+"|"+key]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) ExistsCompletedRegistration(ctx context.Context, enrollmentID string) (bool, error) {
	return m.registrationPaid[enrollmentID], nil
}

func (m *mockPaymentRepo) ExistsCompletedRecurringUnit(ctx context.Context, enrollmentID, unitRef string) (bool, error) {
	return m.unitPaid[enrollmentID+"|"+unitRef], nil
}

func (m *mockPaymentRepo) HasAnyCompleted(ctx context.Context, enrollmentID string) (bool, error) {
	return m.anyCompleted[enrollmentID], nil
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	return nil, 0, nil
}

func (m *mockPaymentRepo) Void(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	p, ok := m.payments[id]
	if !ok || p.State == models.PaymentStateVoided {
		return false, nil
	}
	p.State = models.PaymentStateVoided
	p.VoidReason = &reason
	p.VoidedAt = &at
	m.payments[id] = p
	return true, nil
}

type mockRateProvider struct {
	rate decimal.Decimal
	err  error
}

func (m *mockRateProvider) Current(ctx context.Context) (*models.ExchangeRate, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.ExchangeRate{ID: "rate-1", Rate: m.rate, ValidFrom: time.Now().UTC()}, nil
}

type mockQuoter struct {
	quote *PriceQuote
	err   error
}

func (m *mockQuoter) Quote(ctx context.Context, feeKind models.FeeKind, categoryID string, student *models.Student) (*PriceQuote, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.quote, nil
}

type mockEvaluationRepo struct {
	types      map[string]models.EvaluationType
	components map[string]models.EvaluationComponent
}

func (m *mockEvaluationRepo) FindTypeByID(ctx context.Context, id string) (*models.EvaluationType, error) {
	if t, ok := m.types[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEvaluationRepo) FindComponentByID(ctx context.Context, id string) (*models.EvaluationComponent, error) {
	if c, ok := m.components[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEvaluationRepo) ListComponentsByType(ctx context.Context, typeID string) ([]models.EvaluationComponent, error) {
	var list []models.EvaluationComponent
	for _, c := range m.components {
		if c.TypeID == typeID && c.Active {
			list = append(list, c)
		}
	}
	return list, nil
}

type mockGradeRepo struct {
	existing map[string]bool
	entries  map[string][]models.GradeReportEntry
	created  []*models.GradeEntry
}

func gradeKey(enrollmentID, componentID string, subjectID *string) string {
	key := enrollmentID + "|" + componentID + "|"
	if subjectID != nil {
		key += *subjectID
	}
	return key
}

func (m *mockGradeRepo) Exists(ctx context.Context, enrollmentID, componentID string, subjectID *string) (bool, error) {
	return m.existing[gradeKey(enrollmentID, componentID, subjectID)], nil
}

func (m *mockGradeRepo) Create(ctx context.Context, entry *models.GradeEntry) error {
	m.created = append(m.created, entry)
	return nil
}

func (m *mockGradeRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.GradeReportEntry, error) {
	return m.entries[enrollmentID], nil
}

type mockCacheRepo struct {
	gets    int
	sets    int
	deletes int
}

func (m *mockCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets++
	return appErrors.ErrCacheMiss
}

func (m *mockCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets++
	return nil
}

func (m *mockCacheRepo) Delete(ctx context.Context, key string) error {
	m.deletes++
	return nil
}
