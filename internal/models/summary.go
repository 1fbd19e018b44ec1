package models

// StudentBalanceSummary is the per-student aggregate used by the summary
// listing: charges applicable to the student's grade, payments received and
// outstanding back payments. remaining_balance is always recomputed on
// read, never stored.
type StudentBalanceSummary struct {
	StudentID        int64         `db:"student_id" json:"student_id"`
	StudentNumber    string        `db:"student_number" json:"student_number"`
	FirstName        string        `db:"first_name" json:"first_name"`
	LastName         string        `db:"last_name" json:"last_name"`
	GradeLevel       int           `db:"grade_level" json:"grade_level"`
	Status           StudentStatus `db:"status" json:"status"`
	MandatoryCharges float64       `db:"mandatory_charges" json:"mandatory_charges"`
	TotalCharges     float64       `db:"total_charges" json:"total_charges"`
	TotalPayments    float64       `db:"total_payments" json:"total_payments"`
	BackPaymentsDue  float64       `db:"back_payments_due" json:"back_payments_due"`
	RemainingBalance float64       `db:"remaining_balance" json:"remaining_balance"`
}

// BreakdownSummary carries the computed totals of a single student's
// charge breakdown.
type BreakdownSummary struct {
	TotalCharges     float64 `json:"total_charges"`
	MandatoryCharges float64 `json:"mandatory_charges"`
	TotalPayments    float64 `json:"total_payments"`
	BackPaymentsDue  float64 `json:"back_payments_due"`
	RemainingBalance float64 `json:"remaining_balance"`
}

// StudentChargeBreakdown is the full per-student billing picture.
type StudentChargeBreakdown struct {
	Student      Student          `json:"student"`
	Charges      []Charge         `json:"charges"`
	Payments     []Payment        `json:"payments"`
	BackPayments []BackPayment    `json:"back_payments"`
	Summary      BreakdownSummary `json:"summary"`
}

// DashboardStats is the cached aggregate snapshot for the admin dashboard.
type DashboardStats struct {
	ActiveStudents     int          `db:"active_students" json:"active_students"`
	InactiveStudents   int          `db:"inactive_students" json:"inactive_students"`
	GraduatedStudents  int          `db:"graduated_students" json:"graduated_students"`
	StudentsByGrade    []GradeCount `json:"students_by_grade"`
	TotalCharges       float64      `db:"total_charges" json:"total_charges"`
	TotalCollected     float64      `db:"total_collected" json:"total_collected"`
	OutstandingBalance float64      `db:"outstanding_balance" json:"outstanding_balance"`
	PaymentsToday      int          `db:"payments_today" json:"payments_today"`
}

// GradeCount pairs a grade level with its active student count.
type GradeCount struct {
	GradeLevel int `db:"grade_level" json:"grade_level"`
	Count      int `db:"count" json:"count"`
}
