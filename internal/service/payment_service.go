package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-api/internal/models"
	"github.com/noah-isme/institute-api/internal/repository"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
)

type paymentRepo interface {
	ApplyRegistration(ctx context.Context, payment *models.Payment) error
	ApplyRecurring(ctx context.Context, payment *models.Payment, required int) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindByIdempotencyKey(ctx context.Context, enrollmentID, key string) (*models.Payment, error)
	ExistsCompletedRegistration(ctx context.Context, enrollmentID string) (bool, error)
	ExistsCompletedRecurringUnit(ctx context.Context, enrollmentID, unitRef string) (bool, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	Void(ctx context.Context, id, reason string, at time.Time) (bool, error)
}

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type programReader interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type rateProvider interface {
	Current(ctx context.Context) (*models.ExchangeRate, error)
}

type priceQuoter interface {
	Quote(ctx context.Context, feeKind models.FeeKind, categoryID string, student *models.Student) (*PriceQuote, error)
}

type receiptDispatcher interface {
	Dispatch(payment *models.Payment)
}

// PaymentRequest carries the four channel amounts of one payment attempt
// plus the change split the cashier hands back when overpaying.
type PaymentRequest struct {
	CashLocal      decimal.Decimal `json:"cash_local"`
	CashForeign    decimal.Decimal `json:"cash_foreign"`
	CardLocal      decimal.Decimal `json:"card_local"`
	CardForeign    decimal.Decimal `json:"card_foreign"`
	ChangeLocal    decimal.Decimal `json:"change_local"`
	ChangeForeign  decimal.Decimal `json:"change_foreign"`
	IdempotencyKey string          `json:"idempotency_key" validate:"required"`
}

// RecurringPaymentRequest adds the installment reference.
type RecurringPaymentRequest struct {
	PaymentRequest
	UnitRef       string `json:"unit_ref" validate:"required"`
	InstallmentNo *int   `json:"installment_no"`
}

// VoidPaymentRequest voids a completed payment with an audit reason.
type VoidPaymentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// PaymentResult is a stored payment plus whether it completed the enrollment.
type PaymentResult struct {
	Payment            *models.Payment `json:"payment"`
	EnrollmentComplete bool            `json:"enrollment_complete"`
	Replayed           bool            `json:"replayed"`
}

// PaymentService reconciles multi-currency payments and applies them to
// enrollments. Every amount is rounded half-away-from-zero to 2 decimals
// at each derivation step; totals are sums of already-rounded parts.
type PaymentService struct {
	payments    paymentRepo
	enrollments enrollmentReader
	programs    programReader
	students    studentReader
	rates       rateProvider
	pricing     priceQuoter
	receipts    receiptDispatcher
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(payments paymentRepo, enrollments enrollmentReader, programs programReader, students studentReader, rates rateProvider, pricing priceQuoter, receipts receiptDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		payments:    payments,
		enrollments: enrollments,
		programs:    programs,
		students:    students,
		rates:       rates,
		pricing:     pricing,
		receipts:    receipts,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Reconcile totals the four channel amounts against the amount owed in
// the settlement (foreign) currency.
func (s *PaymentService) Reconcile(req PaymentRequest, rate, owed decimal.Decimal) (*models.Reconciliation, error) {
	if !rate.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrInvalidRate, "")
	}
	for _, amount := range []decimal.Decimal{req.CashLocal, req.CashForeign, req.CardLocal, req.CardForeign} {
		if amount.IsNegative() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "channel amounts must not be negative")
		}
	}

	totalLocal := req.CashLocal.Add(req.CardLocal)
	totalForeign := req.CashForeign.Add(req.CardForeign)
	localInForeign := totalLocal.Div(rate).Round(2)
	totalPaid := totalForeign.Add(localInForeign).Round(2)

	if totalPaid.LessThan(owed) {
		s.metrics.RecordInsufficientPayment()
		deficit := owed.Sub(totalPaid)
		return nil, appErrors.WithDetails(appErrors.ErrInsufficientPayment, "",
			map[string]string{"deficit": deficit.StringFixed(2)})
	}

	change := totalPaid.Sub(owed).Round(2)
	if change.IsPositive() && req.ChangeLocal.IsZero() && req.ChangeForeign.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "change split required when overpaying")
	}

	cashTotal := req.CashLocal.Add(req.CashForeign)
	cardTotal := req.CardLocal.Add(req.CardForeign)
	channel := models.PaymentChannelCash
	switch {
	case cashTotal.IsPositive() && cardTotal.IsPositive():
		channel = models.PaymentChannelMixed
	case cardTotal.IsPositive():
		channel = models.PaymentChannelCard
	}

	return &models.Reconciliation{
		TotalLocal:     totalLocal,
		TotalForeign:   totalForeign,
		LocalInForeign: localInForeign,
		TotalPaid:      totalPaid,
		Change:         change,
		Channel:        channel,
	}, nil
}

// PayRegistration settles the registration fee and activates the enrollment.
func (s *PaymentService) PayRegistration(ctx context.Context, enrollmentID string, req PaymentRequest) (*PaymentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	enrollment, err := s.loadEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.State == models.EnrollmentStateVoid {
		return nil, appErrors.Clone(appErrors.ErrAlreadyVoid, "enrollment is void")
	}

	paid, err := s.payments.ExistsCompletedRegistration(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registration payment")
	}
	if paid {
		return nil, appErrors.Clone(appErrors.ErrAlreadyPaid, "")
	}
	if enrollment.State != models.EnrollmentStatePending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is not pending registration")
	}

	if replay, err := s.findReplay(ctx, enrollmentID, req.IdempotencyKey); err != nil {
		return nil, err
	} else if replay != nil {
		return &PaymentResult{Payment: replay, Replayed: true}, nil
	}

	rate, err := s.rates.Current(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.Reconcile(req, rate.Rate, enrollment.Net)
	if err != nil {
		return nil, err
	}

	payment := s.buildPayment(enrollment.ID, models.PaymentKindRegistration, req, rec, rate.Rate, enrollment.Net)
	if err := s.payments.ApplyRegistration(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrStaleEnrollment) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment state changed, retry the payment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply registration payment")
	}

	s.settle(payment)
	return &PaymentResult{Payment: payment}, nil
}

// PayRecurring settles one installment (a subject for academic programs,
// a month for courses) and completes the enrollment when the required
// count is reached.
func (s *PaymentService) PayRecurring(ctx context.Context, enrollmentID string, req RecurringPaymentRequest) (*PaymentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	enrollment, err := s.loadEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	switch enrollment.State {
	case models.EnrollmentStateVoid:
		return nil, appErrors.Clone(appErrors.ErrAlreadyVoid, "enrollment is void")
	case models.EnrollmentStatePending:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "registration fee unpaid")
	case models.EnrollmentStateCompleted:
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment already completed")
	}

	duplicate, err := s.payments.ExistsCompletedRecurringUnit(ctx, enrollmentID, req.UnitRef)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check installment")
	}
	if duplicate {
		return nil, appErrors.Clone(appErrors.ErrDuplicatePayment, "")
	}

	if replay, err := s.findReplay(ctx, enrollmentID, req.IdempotencyKey); err != nil {
		return nil, err
	} else if replay != nil {
		return &PaymentResult{Payment: replay, Replayed: true}, nil
	}

	student, err := s.students.FindByID(ctx, enrollment.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	quote, err := s.pricing.Quote(ctx, models.FeeKindRecurring, enrollment.CategoryID, student)
	if err != nil {
		return nil, err
	}
	program, err := s.programs.FindByID(ctx, enrollment.ProgramID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}

	rate, err := s.rates.Current(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.Reconcile(req.PaymentRequest, rate.Rate, quote.Net)
	if err != nil {
		return nil, err
	}

	payment := s.buildPayment(enrollment.ID, models.PaymentKindRecurring, req.PaymentRequest, rec, rate.Rate, quote.Net)
	payment.UnitRef = &req.UnitRef
	payment.InstallmentNo = req.InstallmentNo

	completed, err := s.payments.ApplyRecurring(ctx, payment, program.RequiredInstallments())
	if err != nil {
		if errors.Is(err, repository.ErrStaleEnrollment) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment state changed, retry the payment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply recurring payment")
	}

	s.settle(payment)
	if completed {
		s.logger.Info("enrollment completed",
			zap.String("enrollment_id", enrollment.ID),
			zap.String("payment_code", payment.Code))
	}
	return &PaymentResult{Payment: payment, EnrollmentComplete: completed}, nil
}

// Find returns a payment by ID.
func (s *PaymentService) Find(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// Void marks a completed payment as voided. The payment row stays in
// the ledger with its reason; enrollment state is not reverted, a
// mistaken transition gets fixed by voiding the enrollment itself.
func (s *PaymentService) Void(ctx context.Context, id string, req VoidPaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "void reason is required")
	}

	payment, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.State == models.PaymentStateVoided {
		return nil, appErrors.Clone(appErrors.ErrAlreadyVoid, "payment is already voided")
	}

	now := time.Now().UTC()
	ok, err := s.payments.Void(ctx, id, req.Reason, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to void payment")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrAlreadyVoid, "payment is already voided")
	}

	payment.State = models.PaymentStateVoided
	payment.VoidReason = &req.Reason
	payment.VoidedAt = &now

	s.logger.Info("payment voided",
		zap.String("payment_id", payment.ID),
		zap.String("reason", req.Reason))
	return payment, nil
}

// List returns payments filtered by the provided criteria.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, total, nil
}

func (s *PaymentService) loadEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *PaymentService) findReplay(ctx context.Context, enrollmentID, key string) (*models.Payment, error) {
	existing, err := s.payments.FindByIdempotencyKey(ctx, enrollmentID, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check idempotency key")
	}
	return existing, nil
}

func (s *PaymentService) buildPayment(enrollmentID string, kind models.PaymentKind, req PaymentRequest, rec *models.Reconciliation, rate, owed decimal.Decimal) *models.Payment {
	return &models.Payment{
		EnrollmentID:   enrollmentID,
		Kind:           kind,
		CashLocal:      req.CashLocal,
		CashForeign:    req.CashForeign,
		CardLocal:      req.CardLocal,
		CardForeign:    req.CardForeign,
		ExchangeRate:   rate,
		AmountOwed:     owed,
		TotalPaid:      rec.TotalPaid,
		ChangeLocal:    req.ChangeLocal,
		ChangeForeign:  req.ChangeForeign,
		Channel:        rec.Channel,
		State:          models.PaymentStateCompleted,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
}

func (s *PaymentService) settle(payment *models.Payment) {
	s.metrics.RecordPayment(string(payment.Kind), string(payment.Channel))
	if s.receipts != nil {
		s.receipts.Dispatch(payment)
	}
	s.logger.Info("payment completed",
		zap.String("payment_code", payment.Code),
		zap.String("enrollment_id", payment.EnrollmentID),
		zap.String("kind", string(payment.Kind)),
		zap.String("channel", string(payment.Channel)),
		zap.String("total_paid", payment.TotalPaid.StringFixed(2)))
}
