package models

import "time"

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheck        PaymentMethod = "check"
)

// ValidPaymentMethod reports whether m is an accepted method.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodCheck:
		return true
	}
	return false
}

// Payment is a single payment event by a student. Reverted payments are
// retained with their items as an audit trail.
type Payment struct {
	ID              int64         `db:"id" json:"id"`
	StudentID       int64         `db:"student_id" json:"student_id"`
	InvoiceNumber   string        `db:"invoice_number" json:"invoice_number"`
	PaymentDate     time.Time     `db:"payment_date" json:"payment_date"`
	TotalAmount     float64       `db:"total_amount" json:"total_amount"`
	PaymentMethod   PaymentMethod `db:"payment_method" json:"payment_method"`
	ReferenceNumber *string       `db:"reference_number" json:"reference_number,omitempty"`
	Notes           *string       `db:"notes" json:"notes,omitempty"`
	Reverted        bool          `db:"reverted" json:"reverted"`
	RevertedAt      *time.Time    `db:"reverted_at" json:"reverted_at,omitempty"`
	RevertReason    *string       `db:"revert_reason" json:"revert_reason,omitempty"`
	CreatedBy       int64         `db:"created_by" json:"created_by"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// PaymentItem is one line within a payment, either linked to a charge or a
// manual entry (including back-payment lines).
type PaymentItem struct {
	ID             int64     `db:"id" json:"id"`
	PaymentID      int64     `db:"payment_id" json:"payment_id"`
	ChargeID       *int64    `db:"charge_id" json:"charge_id,omitempty"`
	Description    string    `db:"description" json:"description"`
	Amount         float64   `db:"amount" json:"amount"`
	IsManualCharge bool      `db:"is_manual_charge" json:"is_manual_charge"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`

	ChargeName *string     `db:"charge_name" json:"charge_name,omitempty"`
	ChargeType *ChargeType `db:"charge_type" json:"charge_type,omitempty"`
}

// PaymentDetail joins a payment with its student and creator context.
type PaymentDetail struct {
	Payment
	FirstName         string        `db:"first_name" json:"first_name"`
	LastName          string        `db:"last_name" json:"last_name"`
	StudentNumber     string        `db:"student_number" json:"student_number"`
	CreatedByUsername string        `db:"created_by_username" json:"created_by_username"`
	Items             []PaymentItem `json:"items"`
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	StudentID *int64
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

// StudentPaymentSummary aggregates a student's payment history totals.
type StudentPaymentSummary struct {
	TotalPayments   int     `db:"total_payments" json:"total_payments"`
	TotalAmountPaid float64 `db:"total_amount_paid" json:"total_amount_paid"`
}
