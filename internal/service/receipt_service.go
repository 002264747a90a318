package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/institute-api/internal/models"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
	"github.com/noah-isme/institute-api/pkg/export"
	"github.com/noah-isme/institute-api/pkg/jobs"
	"github.com/noah-isme/institute-api/pkg/storage"
)

type receiptPaymentReader interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
}

type receiptEnrollmentReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

// ReceiptServiceConfig configures the async receipt pipeline.
type ReceiptServiceConfig struct {
	Enabled     bool
	Concurrency int
	MaxRetries  int
}

// ReceiptService renders PDF receipts for completed payments in the
// background and hands out HMAC-signed download tokens. Payment flows
// never wait on PDF output.
type ReceiptService struct {
	payments    receiptPaymentReader
	enrollments receiptEnrollmentReader
	renderer    *export.ReceiptRenderer
	files       *storage.LocalStorage
	signer      *storage.SignedURLSigner
	queue       *jobs.Queue
	logger      *zap.Logger
	enabled     bool
}

// NewReceiptService constructs ReceiptService with its own worker queue.
func NewReceiptService(payments receiptPaymentReader, enrollments receiptEnrollmentReader, renderer *export.ReceiptRenderer, files *storage.LocalStorage, signer *storage.SignedURLSigner, cfg ReceiptServiceConfig, logger *zap.Logger) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReceiptService{
		payments:    payments,
		enrollments: enrollments,
		renderer:    renderer,
		files:       files,
		signer:      signer,
		logger:      logger,
		enabled:     cfg.Enabled,
	}
	s.queue = jobs.NewQueue("receipts", s.process, jobs.QueueConfig{
		Workers:    cfg.Concurrency,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the receipt workers.
func (s *ReceiptService) Start(ctx context.Context) {
	if !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *ReceiptService) Stop() {
	if !s.enabled {
		return
	}
	s.queue.Stop()
}

// Dispatch enqueues receipt rendering for a completed payment.
func (s *ReceiptService) Dispatch(payment *models.Payment) {
	if !s.enabled {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      payment.ID,
		Type:    "receipt.render",
		Payload: payment.ID,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue receipt", zap.String("payment_id", payment.ID), zap.Error(err))
	}
}

// DownloadURL returns a signed token for the payment's receipt.
func (s *ReceiptService) DownloadURL(ctx context.Context, paymentID string) (string, time.Time, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	relPath := receiptPath(payment)
	token, expiresAt, err := s.signer.Generate(payment.ID, relPath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign receipt url")
	}
	return token, expiresAt, nil
}

// Open validates a download token and opens the stored receipt.
func (s *ReceiptService) Open(token string) (*os.File, string, error) {
	paymentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "receipt not generated yet")
	}
	return file, paymentID, nil
}

func (s *ReceiptService) process(ctx context.Context, job jobs.Job) error {
	paymentID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("receipt job carries unexpected payload %T", job.Payload)
	}
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("load payment %s: %w", paymentID, err)
	}
	detail, err := s.enrollments.FindDetailByID(ctx, payment.EnrollmentID)
	if err != nil {
		return fmt.Errorf("load enrollment %s: %w", payment.EnrollmentID, err)
	}

	data, err := s.renderer.Render(buildReceipt(payment, detail))
	if err != nil {
		return err
	}
	if _, err := s.files.Save(receiptPath(payment), data); err != nil {
		return err
	}
	s.logger.Info("receipt rendered",
		zap.String("payment_code", payment.Code),
		zap.String("path", receiptPath(payment)))
	return nil
}

func receiptPath(payment *models.Payment) string {
	return fmt.Sprintf("%d/%s.pdf", payment.CreatedAt.Year(), payment.Code)
}

func buildReceipt(payment *models.Payment, detail *models.EnrollmentDetail) export.Receipt {
	concept := "Registration fee"
	if payment.Kind == models.PaymentKindRecurring {
		concept = "Installment"
		if payment.UnitRef != nil {
			concept = fmt.Sprintf("Installment %s", *payment.UnitRef)
		}
	}

	lines := make([]export.ReceiptLine, 0, 4)
	if payment.CashLocal.IsPositive() {
		lines = append(lines, export.ReceiptLine{Label: "Cash (local)", Amount: payment.CashLocal.StringFixed(2)})
	}
	if payment.CashForeign.IsPositive() {
		lines = append(lines, export.ReceiptLine{Label: "Cash (foreign)", Amount: payment.CashForeign.StringFixed(2)})
	}
	if payment.CardLocal.IsPositive() {
		lines = append(lines, export.ReceiptLine{Label: "Card (local)", Amount: payment.CardLocal.StringFixed(2)})
	}
	if payment.CardForeign.IsPositive() {
		lines = append(lines, export.ReceiptLine{Label: "Card (foreign)", Amount: payment.CardForeign.StringFixed(2)})
	}

	change := ""
	totalChange := payment.ChangeLocal.Add(payment.ChangeForeign)
	if totalChange.IsPositive() {
		change = fmt.Sprintf("local %s / foreign %s",
			payment.ChangeLocal.StringFixed(2), payment.ChangeForeign.StringFixed(2))
	}

	return export.Receipt{
		Code:           payment.Code,
		IssuedAt:       payment.CreatedAt.Format("2006-01-02 15:04"),
		StudentName:    detail.StudentName,
		EnrollmentCode: detail.Code,
		ProgramName:    detail.ProgramName,
		Concept:        concept,
		Lines:          lines,
		TotalPaid:      payment.TotalPaid.StringFixed(2),
		AmountOwed:     payment.AmountOwed.StringFixed(2),
		Change:         change,
		ExchangeRate:   payment.ExchangeRate.String(),
		Channel:        string(payment.Channel),
	}
}
