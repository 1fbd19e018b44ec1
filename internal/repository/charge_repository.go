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

// ChargeRepository manages the charge catalog and the per-student ledger.
type ChargeRepository struct {
	db *sqlx.DB
}

// NewChargeRepository constructs a ChargeRepository.
func NewChargeRepository(db *sqlx.DB) *ChargeRepository {
	return &ChargeRepository{db: db}
}

// List returns charges matching the provided filters.
func (r *ChargeRepository) List(ctx context.Context, filter models.ChargeFilter) ([]models.Charge, int, error) {
	base := "FROM charges c"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.GradeLevel != nil {
		conditions = append(conditions, fmt.Sprintf("(c.grade_level = $%d OR c.grade_level IS NULL)", len(args)+1))
		args = append(args, *filter.GradeLevel)
	}
	if filter.ChargeType != "" {
		conditions = append(conditions, fmt.Sprintf("c.charge_type = $%d", len(args)+1))
		args = append(args, filter.ChargeType)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("c.is_active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(c.name) LIKE $%d", len(args)+1))
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

	query := fmt.Sprintf(`SELECT c.id, c.name, c.description, c.amount, c.charge_type, c.grade_level,
        c.is_mandatory, c.is_active, c.created_at, c.updated_at
        %s ORDER BY c.name ASC LIMIT %d OFFSET %d`, base, size, offset)

	var charges []models.Charge
	if err := r.db.SelectContext(ctx, &charges, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list charges: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count charges: %w", err)
	}
	return charges, total, nil
}

// ListByGrade returns active charges applicable to a grade level, which
// includes school-wide charges with no grade restriction.
func (r *ChargeRepository) ListByGrade(ctx context.Context, gradeLevel int) ([]models.Charge, error) {
	const query = `SELECT id, name, description, amount, charge_type, grade_level, is_mandatory, is_active, created_at, updated_at
        FROM charges WHERE is_active = TRUE AND (grade_level = $1 OR grade_level IS NULL)
        ORDER BY is_mandatory DESC, name ASC`
	var charges []models.Charge
	if err := r.db.SelectContext(ctx, &charges, query, gradeLevel); err != nil {
		return nil, fmt.Errorf("list charges by grade: %w", err)
	}
	return charges, nil
}

// FindByID returns a single charge by identifier.
func (r *ChargeRepository) FindByID(ctx context.Context, id int64) (*models.Charge, error) {
	const query = `SELECT id, name, description, amount, charge_type, grade_level, is_mandatory, is_active, created_at, updated_at
        FROM charges WHERE id = $1 LIMIT 1`
	var charge models.Charge
	if err := r.db.GetContext(ctx, &charge, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find charge: %w", err)
	}
	return &charge, nil
}

// Create inserts a new charge and assigns the generated identifier.
func (r *ChargeRepository) Create(ctx context.Context, charge *models.Charge) error {
	now := time.Now().UTC()
	charge.CreatedAt = now
	charge.UpdatedAt = now

	const query = `INSERT INTO charges (name, description, amount, charge_type, grade_level, is_mandatory, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		charge.Name, charge.Description, charge.Amount, charge.ChargeType, charge.GradeLevel,
		charge.IsMandatory, charge.IsActive, charge.CreatedAt, charge.UpdatedAt,
	).Scan(&charge.ID); err != nil {
		return fmt.Errorf("create charge: %w", err)
	}
	return nil
}

// Update rewrites a charge record.
func (r *ChargeRepository) Update(ctx context.Context, charge *models.Charge) error {
	charge.UpdatedAt = time.Now().UTC()

	const query = `UPDATE charges SET name = :name, description = :description, amount = :amount,
        charge_type = :charge_type, grade_level = :grade_level, is_mandatory = :is_mandatory,
        is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, charge)
	if err != nil {
		return fmt.Errorf("update charge: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update charge rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// InUse reports whether any payment item references the charge. Charges
// with payment history must not be deleted.
func (r *ChargeRepository) InUse(ctx context.Context, id int64) (bool, error) {
	const query = `SELECT 1 FROM payment_items WHERE charge_id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check charge usage: %w", err)
	}
	return true, nil
}

// Delete removes a charge and its ledger rows.
func (r *ChargeRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete charge: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM student_charges WHERE charge_id = $1`, id); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete charge ledger: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM charges WHERE id = $1`, id)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("delete charge: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("delete charge rows: %w", err)
	}
	if rows == 0 {
		tx.Rollback()
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete charge: %w", err)
	}
	return nil
}

// LedgerForStudent returns the ledger rows recorded for a student.
func (r *ChargeRepository) LedgerForStudent(ctx context.Context, studentID int64) ([]models.StudentCharge, error) {
	const query = `SELECT id, student_id, charge_id, amount_due, amount_paid, due_date, status, created_at, updated_at
        FROM student_charges WHERE student_id = $1 ORDER BY created_at ASC`
	var rows []models.StudentCharge
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list student charges: %w", err)
	}
	return rows, nil
}
