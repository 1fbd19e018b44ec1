package models

import "time"

// StudentStatus enumerates a student's enrollment state.
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "active"
	StudentStatusInactive  StudentStatus = "inactive"
	StudentStatusGraduated StudentStatus = "graduated"
)

// Student represents a learner billed through the system.
type Student struct {
	ID             int64         `db:"id" json:"id"`
	StudentNumber  string        `db:"student_number" json:"student_number"`
	FirstName      string        `db:"first_name" json:"first_name"`
	MiddleName     *string       `db:"middle_name" json:"middle_name,omitempty"`
	LastName       string        `db:"last_name" json:"last_name"`
	GradeLevel     int           `db:"grade_level" json:"grade_level"`
	DateOfBirth    *time.Time    `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Address        *string       `db:"address" json:"address,omitempty"`
	ParentName     *string       `db:"parent_name" json:"parent_name,omitempty"`
	ParentContact  *string       `db:"parent_contact" json:"parent_contact,omitempty"`
	ParentEmail    *string       `db:"parent_email" json:"parent_email,omitempty"`
	EnrollmentDate time.Time     `db:"enrollment_date" json:"enrollment_date"`
	Status         StudentStatus `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	GradeLevel *int
	Status     StudentStatus
	Search     string
	Page       int
	PageSize   int
}

// BatchUpgradeResult reports the outcome of a bulk grade move.
type BatchUpgradeResult struct {
	FromGrade    int   `json:"from_grade"`
	ToGrade      int   `json:"to_grade"`
	UpdatedCount int64 `json:"updated_count"`
}
