package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Receipt describes the payment data rendered onto a PDF receipt.
type Receipt struct {
	Code           string
	IssuedAt       string
	StudentName    string
	EnrollmentCode string
	ProgramName    string
	Concept        string
	Lines          []ReceiptLine
	TotalPaid      string
	AmountOwed     string
	Change         string
	ExchangeRate   string
	Channel        string
}

// ReceiptLine is one labelled amount on the receipt body.
type ReceiptLine struct {
	Label  string
	Amount string
}

// ReceiptRenderer produces PDF receipts for completed payments.
type ReceiptRenderer struct {
	instituteName string
}

// NewReceiptRenderer constructs a renderer with the institute letterhead.
func NewReceiptRenderer(instituteName string) *ReceiptRenderer {
	if instituteName == "" {
		instituteName = "INSTITUTE"
	}
	return &ReceiptRenderer{instituteName: instituteName}
}

// Render creates a single-page PDF receipt.
func (r *ReceiptRenderer) Render(receipt Receipt) ([]byte, error) {
	if receipt.Code == "" {
		return nil, fmt.Errorf("receipt requires a payment code")
	}
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 14, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, r.instituteName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, "PAYMENT RECEIPT", "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Arial", "", 9)
	header := [][2]string{
		{"Receipt", receipt.Code},
		{"Date", receipt.IssuedAt},
		{"Student", receipt.StudentName},
		{"Enrollment", receipt.EnrollmentCode},
		{"Program", receipt.ProgramName},
		{"Concept", receipt.Concept},
	}
	for _, kv := range header {
		pdf.CellFormat(32, 6, kv[0], "", 0, "", false, 0, "")
		pdf.CellFormat(0, 6, kv[1], "", 1, "", false, 0, "")
	}
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(70, 7, "Detail", "1", 0, "", false, 0, "")
	pdf.CellFormat(0, 7, "Amount", "1", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, line := range receipt.Lines {
		pdf.CellFormat(70, 6, line.Label, "1", 0, "", false, 0, "")
		pdf.CellFormat(0, 6, line.Amount, "1", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	totals := [][2]string{
		{"Amount owed", receipt.AmountOwed},
		{"Total paid", receipt.TotalPaid},
		{"Change", receipt.Change},
		{"Exchange rate", receipt.ExchangeRate},
		{"Channel", receipt.Channel},
	}
	for _, kv := range totals {
		if kv[1] == "" {
			continue
		}
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(70, 6, kv[0], "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 6, kv[1], "", 1, "R", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
