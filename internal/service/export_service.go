package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/institute-api/internal/models"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
	"github.com/noah-isme/institute-api/pkg/export"
)

type ledgerReader interface {
	ListCompleted(ctx context.Context, from, to *time.Time) ([]models.Payment, error)
}

// ExportService renders the payment ledger as CSV. Ledger totals are
// sums of individually rounded payments, so the export reproduces the
// books exactly as they were settled.
type ExportService struct {
	payments ledgerReader
	exporter *export.CSVExporter
	logger   *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(payments ledgerReader, exporter *export.CSVExporter, logger *zap.Logger) *ExportService {
	if exporter == nil {
		exporter = export.NewCSVExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{payments: payments, exporter: exporter, logger: logger}
}

var ledgerHeaders = []string{
	"code", "enrollment_id", "kind", "unit_ref",
	"cash_local", "cash_foreign", "card_local", "card_foreign",
	"exchange_rate", "amount_owed", "total_paid",
	"change_local", "change_foreign", "channel", "created_at",
}

// LedgerCSV exports completed payments inside the window.
func (s *ExportService) LedgerCSV(ctx context.Context, from, to *time.Time) ([]byte, string, error) {
	payments, err := s.payments.ListCompleted(ctx, from, to)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}

	rows := make([]map[string]string, 0, len(payments))
	for _, p := range payments {
		unitRef := ""
		if p.UnitRef != nil {
			unitRef = *p.UnitRef
		}
		rows = append(rows, map[string]string{
			"code":           p.Code,
			"enrollment_id":  p.EnrollmentID,
			"kind":           string(p.Kind),
			"unit_ref":       unitRef,
			"cash_local":     p.CashLocal.StringFixed(2),
			"cash_foreign":   p.CashForeign.StringFixed(2),
			"card_local":     p.CardLocal.StringFixed(2),
			"card_foreign":   p.CardForeign.StringFixed(2),
			"exchange_rate":  p.ExchangeRate.String(),
			"amount_owed":    p.AmountOwed.StringFixed(2),
			"total_paid":     p.TotalPaid.StringFixed(2),
			"change_local":   p.ChangeLocal.StringFixed(2),
			"change_foreign": p.ChangeForeign.StringFixed(2),
			"channel":        string(p.Channel),
			"created_at":     p.CreatedAt.Format(time.RFC3339),
		})
	}

	data, err := s.exporter.Render(export.Dataset{Headers: ledgerHeaders, Rows: rows})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render ledger")
	}

	filename := fmt.Sprintf("ledger-%s.csv", time.Now().UTC().Format("20060102-150405"))
	s.logger.Info("ledger exported", zap.Int("payments", len(payments)), zap.String("filename", filename))
	return data, filename, nil
}
