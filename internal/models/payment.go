package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentKind distinguishes the one-time registration fee from the
// per-subject / per-month recurring installments.
type PaymentKind string

const (
	PaymentKindRegistration PaymentKind = "REGISTRATION"
	PaymentKindRecurring    PaymentKind = "RECURRING"
)

// PaymentState is Completed on creation; voiding only annotates.
type PaymentState string

const (
	PaymentStateCompleted PaymentState = "COMPLETED"
	PaymentStateVoided    PaymentState = "VOIDED"
)

// PaymentChannel classifies how the money arrived.
type PaymentChannel string

const (
	PaymentChannelCash  PaymentChannel = "CASH"
	PaymentChannelCard  PaymentChannel = "CARD"
	PaymentChannelMixed PaymentChannel = "MIXED"
)

// Payment records a reconciled, settled payment against an enrollment.
// The four channel amounts and the rate used are kept so ledger totals
// can always be re-derived from individually rounded records.
type Payment struct {
	ID             string          `db:"id" json:"id"`
	Code           string          `db:"code" json:"code"`
	EnrollmentID   string          `db:"enrollment_id" json:"enrollment_id"`
	Kind           PaymentKind     `db:"kind" json:"kind"`
	UnitRef        *string         `db:"unit_ref" json:"unit_ref,omitempty"`
	InstallmentNo  *int            `db:"installment_no" json:"installment_no,omitempty"`
	CashLocal      decimal.Decimal `db:"cash_local" json:"cash_local"`
	CashForeign    decimal.Decimal `db:"cash_foreign" json:"cash_foreign"`
	CardLocal      decimal.Decimal `db:"card_local" json:"card_local"`
	CardForeign    decimal.Decimal `db:"card_foreign" json:"card_foreign"`
	ExchangeRate   decimal.Decimal `db:"exchange_rate" json:"exchange_rate"`
	AmountOwed     decimal.Decimal `db:"amount_owed" json:"amount_owed"`
	TotalPaid      decimal.Decimal `db:"total_paid" json:"total_paid"`
	ChangeLocal    decimal.Decimal `db:"change_local" json:"change_local"`
	ChangeForeign  decimal.Decimal `db:"change_foreign" json:"change_foreign"`
	Channel        PaymentChannel  `db:"channel" json:"channel"`
	State          PaymentState    `db:"state" json:"state"`
	IdempotencyKey string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	VoidedAt       *time.Time      `db:"voided_at" json:"voided_at,omitempty"`
	VoidReason     *string         `db:"void_reason" json:"void_reason,omitempty"`
}

// Reconciliation is the outcome of totalling a multi-currency payment
// against the amount owed in the settlement currency.
type Reconciliation struct {
	TotalLocal     decimal.Decimal `json:"total_local"`
	TotalForeign   decimal.Decimal `json:"total_foreign"`
	LocalInForeign decimal.Decimal `json:"local_in_foreign"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	Change         decimal.Decimal `json:"change"`
	Channel        PaymentChannel  `json:"channel"`
}

// ExchangeRate is one row of the versioned rate table. The current rate
// has an open-ended validity; superseding closes it and inserts a new row.
type ExchangeRate struct {
	ID        string          `db:"id" json:"id"`
	Rate      decimal.Decimal `db:"rate" json:"rate"`
	ValidFrom time.Time       `db:"valid_from" json:"valid_from"`
	ValidTo   *time.Time      `db:"valid_to" json:"valid_to,omitempty"`
	CreatedBy string          `db:"created_by" json:"created_by,omitempty"`
}

// PaymentFilter provides filters for listing payments.
type PaymentFilter struct {
	EnrollmentID string
	Kind         PaymentKind
	State        PaymentState
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}
