package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/emsd/school-billing-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.GradeLevel != nil {
		conditions = append(conditions, fmt.Sprintf("s.grade_level = $%d", len(args)+1))
		args = append(args, *filter.GradeLevel)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.first_name) LIKE $%d OR LOWER(s.last_name) LIKE $%d OR LOWER(s.student_number) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.student_number, s.first_name, s.middle_name, s.last_name, s.grade_level,
        s.date_of_birth, s.address, s.parent_name, s.parent_contact, s.parent_email,
        s.enrollment_date, s.status, s.created_at, s.updated_at
        %s ORDER BY s.last_name ASC, s.first_name ASC LIMIT %d OFFSET %d`, base, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a single student by identifier.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	const query = `SELECT id, student_number, first_name, middle_name, last_name, grade_level,
        date_of_birth, address, parent_name, parent_contact, parent_email,
        enrollment_date, status, created_at, updated_at
        FROM students WHERE id = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// ExistsByNumber checks whether a student number is already registered.
// When excludeID is non-zero that record is ignored, which allows updates
// to keep their own number.
func (r *StudentRepository) ExistsByNumber(ctx context.Context, studentNumber string, excludeID int64) (bool, error) {
	const query = `SELECT 1 FROM students WHERE student_number = $1 AND id <> $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentNumber, excludeID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student number: %w", err)
	}
	return true, nil
}

// Create inserts a new student and assigns the generated identifier.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now

	const query = `INSERT INTO students (student_number, first_name, middle_name, last_name, grade_level,
        date_of_birth, address, parent_name, parent_contact, parent_email, enrollment_date, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		student.StudentNumber, student.FirstName, student.MiddleName, student.LastName, student.GradeLevel,
		student.DateOfBirth, student.Address, student.ParentName, student.ParentContact, student.ParentEmail,
		student.EnrollmentDate, student.Status, student.CreatedAt, student.UpdatedAt,
	).Scan(&student.ID); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update rewrites a student record.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()

	const query = `UPDATE students SET student_number = :student_number, first_name = :first_name,
        middle_name = :middle_name, last_name = :last_name, grade_level = :grade_level,
        date_of_birth = :date_of_birth, address = :address, parent_name = :parent_name,
        parent_contact = :parent_contact, parent_email = :parent_email,
        enrollment_date = :enrollment_date, status = :status, updated_at = :updated_at
        WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update student rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a student record.
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete student rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BatchUpgrade promotes active students in fromGrade to toGrade and returns
// the number of affected rows. An empty studentIDs promotes the whole grade;
// otherwise only the listed students move.
func (r *StudentRepository) BatchUpgrade(ctx context.Context, fromGrade, toGrade int, studentIDs []int64) (int64, error) {
	query := `UPDATE students SET grade_level = ?, updated_at = ? WHERE grade_level = ? AND status = ?`
	args := []interface{}{toGrade, time.Now().UTC(), fromGrade, models.StudentStatusActive}
	if len(studentIDs) > 0 {
		query += ` AND id IN (?)`
		args = append(args, studentIDs)
	}
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return 0, fmt.Errorf("build batch upgrade query: %w", err)
	}
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("batch upgrade students: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("batch upgrade rows: %w", err)
	}
	return rows, nil
}
