package models

import "time"

// AssessmentBatch is a named point-in-time snapshot run covering many
// students, kept for printing and record keeping.
type AssessmentBatch struct {
	ID             int64     `db:"id" json:"id"`
	BatchName      string    `db:"batch_name" json:"batch_name"`
	AssessmentDate time.Time `db:"assessment_date" json:"assessment_date"`
	DueDate        time.Time `db:"due_date" json:"due_date"`
	CreatedBy      int64     `db:"created_by" json:"created_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`

	AssessmentCount int `db:"assessment_count" json:"assessment_count"`
}

// Assessment is one student's snapshot within a batch. Totals are frozen at
// creation time and never recomputed.
type Assessment struct {
	ID             int64     `db:"id" json:"id"`
	BatchID        int64     `db:"batch_id" json:"batch_id"`
	StudentID      int64     `db:"student_id" json:"student_id"`
	AssessmentDate time.Time `db:"assessment_date" json:"assessment_date"`
	DueDate        time.Time `db:"due_date" json:"due_date"`
	TotalCharges   float64   `db:"total_charges" json:"total_charges"`
	TotalPaid      float64   `db:"total_paid" json:"total_paid"`
	CurrentDue     float64   `db:"current_due" json:"current_due"`
	CreatedBy      int64     `db:"created_by" json:"created_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// AssessmentDetail joins an assessment row with student identity for
// batch listings and print sheets.
type AssessmentDetail struct {
	Assessment
	StudentNumber string        `db:"student_number" json:"student_number"`
	FirstName     string        `db:"first_name" json:"first_name"`
	MiddleName    *string       `db:"middle_name" json:"middle_name,omitempty"`
	LastName      string        `db:"last_name" json:"last_name"`
	GradeLevel    int           `db:"grade_level" json:"grade_level"`
	Status        StudentStatus `db:"status" json:"status"`
}

// BatchDetail is a batch with its member assessments.
type BatchDetail struct {
	AssessmentBatch
	Assessments []AssessmentDetail `json:"assessments"`
}
