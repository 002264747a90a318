package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-api/internal/models"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
)

func newPaymentFixture() (*PaymentService, *mockPaymentRepo, *mockEnrollmentRepo) {
	payments := &mockPaymentRepo{
		byIdemKey:        map[string]models.Payment{},
		registrationPaid: map[string]bool{},
		unitPaid:         map[string]bool{},
	}
	enrollments := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-pending": {ID: "enr-pending", StudentID: "stu-1", ProgramID: "prog-1", CategoryID: "cat-1",
			Net: dec("100.00"), State: models.EnrollmentStatePending},
		"enr-active": {ID: "enr-active", StudentID: "stu-1", ProgramID: "prog-1", CategoryID: "cat-1",
			Net: dec("100.00"), State: models.EnrollmentStateActive},
		"enr-void": {ID: "enr-void", StudentID: "stu-1", ProgramID: "prog-1", CategoryID: "cat-1",
			Net: dec("100.00"), State: models.EnrollmentStateVoid},
	}}
	programs := &mockProgramReader{programs: map[string]models.Program{
		"prog-1": {ID: "prog-1", Kind: models.ProgramKindAcademic, CategoryID: "cat-1", SubjectCount: 5, Active: true},
	}}
	students := &mockStudentRepo{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", Active: true},
	}}
	rates := &mockRateProvider{rate: dec("36.50")}
	quoter := &mockQuoter{quote: &PriceQuote{Gross: dec("80.00"), Discount: dec("0"), Net: dec("80.00")}}

	svc := NewPaymentService(payments, enrollments, programs, students, rates, quoter, nil, nil, nil, nil)
	return svc, payments, enrollments
}

func TestReconcileCashLocalExact(t *testing.T) {
	svc, _, _ := newPaymentFixture()

	rec, err := svc.Reconcile(PaymentRequest{CashLocal: dec("3650.00"), IdempotencyKey: "k"}, dec("36.50"), dec("100.00"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", rec.LocalInForeign.StringFixed(2))
	assert.Equal(t, "100.00", rec.TotalPaid.StringFixed(2))
	assert.True(t, rec.Change.IsZero())
	assert.Equal(t, models.PaymentChannelCash, rec.Channel)
}

func TestReconcileRoundsConversionHalfAwayFromZero(t *testing.T) {
	svc, _, _ := newPaymentFixture()

	// 100 / 36.50 = 2.73972..., rounds to 2.74
	rec, err := svc.Reconcile(PaymentRequest{CashLocal: dec("100.00"), CashForeign: dec("100.00"), IdempotencyKey: "k"}, dec("36.50"), dec("100.00"))
	require.NoError(t, err)
	assert.Equal(t, "2.74", rec.LocalInForeign.StringFixed(2))
	assert.Equal(t, "102.74", rec.TotalPaid.StringFixed(2))
	assert.Equal(t, "2.74", rec.Change.StringFixed(2))
}

func TestReconcileInsufficientCarriesDeficit(t *testing.T) {
	svc, _, _ := newPaymentFixture()

	_, err := svc.Reconcile(PaymentRequest{CashForeign: dec("50.00"), IdempotencyKey: "k"}, dec("36.50"), dec("100.00"))
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrInsufficientPayment.Code, appErr.Code)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "50.00", details["deficit"])
}

func TestReconcileRejectsNonPositiveRate(t *testing.T) {
	svc, _, _ := newPaymentFixture()

	_, err := svc.Reconcile(PaymentRequest{CashForeign: dec("100.00"), IdempotencyKey: "k"}, dec("0"), dec("100.00"))
	assert.Equal(t, appErrors.ErrInvalidRate.Code, appErrors.FromError(err).Code)
}

func TestReconcileRejectsNegativeAmounts(t *testing.T) {
	svc, _, _ := newPaymentFixture()

	_, err := svc.Reconcile(PaymentRequest{CashLocal: dec("-1"), IdempotencyKey: "k"}, dec("36.50"), dec("100.00"))
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReconcileRequiresChangeSplitWhenOverpaying(t *testing.T) {
	svc, _, _ := newPaymentFixture()

	_, err := svc.Reconcile(PaymentRequest{CashForeign: dec("120.00"), IdempotencyKey: "k"}, dec("36.50"), dec("100.00"))
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	rec, err := svc.Reconcile(PaymentRequest{CashForeign: dec("120.00"), ChangeForeign: dec("20.00"), IdempotencyKey: "k"}, dec("36.50"), dec("100.00"))
	require.NoError(t, err)
	assert.Equal(t, "20.00", rec.Change.StringFixed(2))
}

func TestReconcileChannelClassification(t *testing.T) {
	svc, _, _ := newPaymentFixture()

	rec, err := svc.Reconcile(PaymentRequest{CardForeign: dec("100.00"), IdempotencyKey: "k"}, dec("36.50"), dec("100.00"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentChannelCard, rec.Channel)

	rec, err = svc.Reconcile(PaymentRequest{CashForeign: dec("50.00"), CardForeign: dec("50.00"), IdempotencyKey: "k"}, dec("36.50"), dec("100.00"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentChannelMixed, rec.Channel)
}

func TestPayRegistrationActivates(t *testing.T) {
	svc, payments, _ := newPaymentFixture()

	result, err := svc.PayRegistration(context.Background(), "enr-pending",
		PaymentRequest{CashLocal: dec("3650.00"), IdempotencyKey: "attempt-1"})
	require.NoError(t, err)
	require.Len(t, payments.applied, 1)
	assert.Equal(t, models.PaymentKindRegistration, result.Payment.Kind)
	assert.Equal(t, "100.00", result.Payment.AmountOwed.StringFixed(2))
	assert.Equal(t, models.PaymentChannelCash, result.Payment.Channel)
	assert.False(t, result.Replayed)
}

func TestPayRegistrationReplaysIdempotencyKey(t *testing.T) {
	svc, payments, _ := newPaymentFixture()
	payments.byIdemKey["enr-pending|attempt-1"] = models.Payment{ID: "pay-prev", Code: "PAY-2026-00009"}

	result, err := svc.PayRegistration(context.Background(), "enr-pending",
		PaymentRequest{CashLocal: dec("3650.00"), IdempotencyKey: "attempt-1"})
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, "PAY-2026-00009", result.Payment.Code)
	assert.Empty(t, payments.applied)
}

func TestPayRegistrationAlreadyPaid(t *testing.T) {
	svc, payments, _ := newPaymentFixture()
	payments.registrationPaid["enr-pending"] = true

	_, err := svc.PayRegistration(context.Background(), "enr-pending",
		PaymentRequest{CashLocal: dec("3650.00"), IdempotencyKey: "attempt-1"})
	assert.Equal(t, appErrors.ErrAlreadyPaid.Code, appErrors.FromError(err).Code)
}

func TestPayRegistrationVoidEnrollment(t *testing.T) {
	svc, _, _ := newPaymentFixture()

	_, err := svc.PayRegistration(context.Background(), "enr-void",
		PaymentRequest{CashLocal: dec("3650.00"), IdempotencyKey: "attempt-1"})
	assert.Equal(t, appErrors.ErrAlreadyVoid.Code, appErrors.FromError(err).Code)
}

func TestPayRecurringCompletesEnrollment(t *testing.T) {
	svc, payments, _ := newPaymentFixture()
	payments.completeOnApply = true

	result, err := svc.PayRecurring(context.Background(), "enr-active", RecurringPaymentRequest{
		PaymentRequest: PaymentRequest{CashForeign: dec("80.00"), IdempotencyKey: "attempt-1"},
		UnitRef:        "subject-5",
	})
	require.NoError(t, err)
	assert.True(t, result.EnrollmentComplete)
	require.NotNil(t, result.Payment.UnitRef)
	assert.Equal(t, "subject-5", *result.Payment.UnitRef)
	assert.Equal(t, "80.00", result.Payment.AmountOwed.StringFixed(2))
}

func TestPayRecurringDuplicateUnit(t *testing.T) {
	svc, payments, _ := newPaymentFixture()
	payments.unitPaid["enr-active|subject-1"] = true

	_, err := svc.PayRecurring(context.Background(), "enr-active", RecurringPaymentRequest{
		PaymentRequest: PaymentRequest{CashForeign: dec("80.00"), IdempotencyKey: "attempt-1"},
		UnitRef:        "subject-1",
	})
	assert.Equal(t, appErrors.ErrDuplicatePayment.Code, appErrors.FromError(err).Code)
}

func TestPayRecurringRequiresActiveEnrollment(t *testing.T) {
	svc, _, _ := newPaymentFixture()

	_, err := svc.PayRecurring(context.Background(), "enr-pending", RecurringPaymentRequest{
		PaymentRequest: PaymentRequest{CashForeign: dec("80.00"), IdempotencyKey: "attempt-1"},
		UnitRef:        "subject-1",
	})
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestVoidPaymentMarksVoided(t *testing.T) {
	svc, payments, _ := newPaymentFixture()
	payments.payments = map[string]models.Payment{
		"pay-1": {ID: "pay-1", EnrollmentID: "enr-active", State: models.PaymentStateCompleted},
	}

	payment, err := svc.Void(context.Background(), "pay-1", VoidPaymentRequest{Reason: "wrong amount entered"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStateVoided, payment.State)
	require.NotNil(t, payment.VoidReason)
	assert.Equal(t, "wrong amount entered", *payment.VoidReason)

	_, err = svc.Void(context.Background(), "pay-1", VoidPaymentRequest{Reason: "again"})
	assert.Equal(t, appErrors.ErrAlreadyVoid.Code, appErrors.FromError(err).Code)
}

func TestVoidPaymentRequiresReason(t *testing.T) {
	svc, payments, _ := newPaymentFixture()
	payments.payments = map[string]models.Payment{
		"pay-1": {ID: "pay-1", EnrollmentID: "enr-active", State: models.PaymentStateCompleted},
	}

	_, err := svc.Void(context.Background(), "pay-1", VoidPaymentRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
