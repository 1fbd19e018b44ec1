package models

import (
	"fmt"
	"regexp"
	"time"
)

// BackPayment is an unpaid charge carried forward when a student is
// promoted a grade. It tracks its own due/paid ledger independently of the
// student_charges row it was derived from.
type BackPayment struct {
	ID                 int64        `db:"id" json:"id"`
	StudentID          int64        `db:"student_id" json:"student_id"`
	OriginalGradeLevel int          `db:"original_grade_level" json:"original_grade_level"`
	CurrentGradeLevel  int          `db:"current_grade_level" json:"current_grade_level"`
	ChargeName         string       `db:"charge_name" json:"charge_name"`
	AmountDue          float64      `db:"amount_due" json:"amount_due"`
	AmountPaid         float64      `db:"amount_paid" json:"amount_paid"`
	Status             LedgerStatus `db:"status" json:"status"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`
}

// BackPaymentRef identifies the back_payments row a manual payment item
// settles. The receipt line is the only persisted link, so the reference is
// recovered from the item description.
type BackPaymentRef struct {
	ChargeName    string
	OriginalGrade int
	CurrentGrade  int
}

var backPaymentPattern = regexp.MustCompile(`^Back Payment: (.+) \(Grade (\d+) → (\d+)\)$`)

// BackPaymentDescription renders the canonical receipt line for a carried
// over charge.
func BackPaymentDescription(chargeName string, originalGrade, currentGrade int) string {
	return fmt.Sprintf("Back Payment: %s (Grade %d → %d)", chargeName, originalGrade, currentGrade)
}

// ParseBackPaymentDescription recovers the back payment reference from a
// manual item description. It returns false when the line is not a
// back-payment entry.
func ParseBackPaymentDescription(description string) (BackPaymentRef, bool) {
	m := backPaymentPattern.FindStringSubmatch(description)
	if m == nil {
		return BackPaymentRef{}, false
	}
	var ref BackPaymentRef
	ref.ChargeName = m[1]
	if _, err := fmt.Sscanf(m[2], "%d", &ref.OriginalGrade); err != nil {
		return BackPaymentRef{}, false
	}
	if _, err := fmt.Sscanf(m[3], "%d", &ref.CurrentGrade); err != nil {
		return BackPaymentRef{}, false
	}
	return ref, true
}

// UnpaidCharge is one outstanding charge discovered during the
// grade-promotion check, including mandatory charges that have not been
// billed into student_charges yet.
type UnpaidCharge struct {
	ChargeID   int64        `db:"charge_id" json:"charge_id"`
	ChargeName string       `db:"charge_name" json:"charge_name"`
	AmountDue  float64      `db:"amount_due" json:"amount_due"`
	AmountPaid float64      `db:"amount_paid" json:"amount_paid"`
	Unpaid     float64      `db:"unpaid" json:"unpaid"`
	Status     LedgerStatus `db:"status" json:"status"`
	Billed     bool         `db:"billed" json:"billed"`
}

// BackPaymentCheck summarises what a promotion would carry over.
type BackPaymentCheck struct {
	StudentID     int64          `json:"student_id"`
	GradeLevel    int            `json:"grade_level"`
	UnpaidCharges []UnpaidCharge `json:"unpaid_charges"`
	TotalUnpaid   float64        `json:"total_unpaid"`
}

// UpgradeResult reports a completed grade promotion.
type UpgradeResult struct {
	StudentID           int64         `json:"student_id"`
	FromGrade           int           `json:"from_grade"`
	ToGrade             int           `json:"to_grade"`
	Status              StudentStatus `json:"status"`
	BackPaymentsCreated int           `json:"back_payments_created"`
	CarriedAmount       float64       `json:"carried_amount"`
}
