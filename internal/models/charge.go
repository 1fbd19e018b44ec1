package models

import "time"

// ChargeType enumerates billable item categories.
type ChargeType string

const (
	ChargeTypeTuition    ChargeType = "tuition"
	ChargeTypeBooks      ChargeType = "books"
	ChargeTypeUniform    ChargeType = "uniform"
	ChargeTypeActivities ChargeType = "activities"
	ChargeTypeOther      ChargeType = "other"
)

// ValidChargeType reports whether t is a known charge type.
func ValidChargeType(t ChargeType) bool {
	switch t {
	case ChargeTypeTuition, ChargeTypeBooks, ChargeTypeUniform, ChargeTypeActivities, ChargeTypeOther:
		return true
	}
	return false
}

// Charge is a billable fee definition, optionally scoped to a grade level.
type Charge struct {
	ID          int64      `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description,omitempty"`
	Amount      float64    `db:"amount" json:"amount"`
	ChargeType  ChargeType `db:"charge_type" json:"charge_type"`
	GradeLevel  *int       `db:"grade_level" json:"grade_level,omitempty"`
	IsMandatory bool       `db:"is_mandatory" json:"is_mandatory"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ChargeFilter narrows charge listings.
type ChargeFilter struct {
	ChargeType ChargeType
	GradeLevel *int
	Active     *bool
	Search     string
	Page       int
	PageSize   int
}

// LedgerStatus enumerates the paid/due state of a ledger row. The same
// states apply to student charges and back payments.
type LedgerStatus string

const (
	LedgerStatusPending LedgerStatus = "pending"
	LedgerStatusPartial LedgerStatus = "partial"
	LedgerStatusPaid    LedgerStatus = "paid"
	LedgerStatusOverdue LedgerStatus = "overdue"
)

// StudentCharge is the per-student ledger instance of a charge.
// status is paid iff amount_paid >= amount_due, partial iff
// 0 < amount_paid < amount_due, pending otherwise.
type StudentCharge struct {
	ID         int64        `db:"id" json:"id"`
	StudentID  int64        `db:"student_id" json:"student_id"`
	ChargeID   int64        `db:"charge_id" json:"charge_id"`
	AmountDue  float64      `db:"amount_due" json:"amount_due"`
	AmountPaid float64      `db:"amount_paid" json:"amount_paid"`
	DueDate    *time.Time   `db:"due_date" json:"due_date,omitempty"`
	Status     LedgerStatus `db:"status" json:"status"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
}
