package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/emsd/school-billing-api/internal/models"
)

// BackPaymentRepository manages carried-over charges created during grade
// promotion.
type BackPaymentRepository struct {
	db *sqlx.DB
}

// NewBackPaymentRepository constructs a BackPaymentRepository.
func NewBackPaymentRepository(db *sqlx.DB) *BackPaymentRepository {
	return &BackPaymentRepository{db: db}
}

// ListByStudent returns every back payment recorded for a student.
func (r *BackPaymentRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.BackPayment, error) {
	const query = `SELECT id, student_id, original_grade_level, current_grade_level, charge_name,
        amount_due, amount_paid, status, created_at, updated_at
        FROM back_payments WHERE student_id = $1 ORDER BY created_at ASC, id ASC`
	var rows []models.BackPayment
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list back payments: %w", err)
	}
	return rows, nil
}

// unpaidChargesQuery discovers what a promotion would carry over: ledger
// rows that are not fully paid, plus active mandatory charges for the
// grade that were never billed into student_charges.
const unpaidChargesQuery = `SELECT c.id AS charge_id, c.name AS charge_name,
        COALESCE(sc.amount_due, c.amount) AS amount_due,
        COALESCE(sc.amount_paid, 0) AS amount_paid,
        COALESCE(sc.amount_due, c.amount) - COALESCE(sc.amount_paid, 0) AS unpaid,
        COALESCE(sc.status, 'pending') AS status,
        sc.id IS NOT NULL AS billed
        FROM charges c
        LEFT JOIN student_charges sc ON sc.charge_id = c.id AND sc.student_id = $1
        WHERE c.is_active = TRUE AND (c.grade_level = $2 OR c.grade_level IS NULL)
          AND ((sc.id IS NULL AND c.is_mandatory = TRUE) OR sc.status IN ('pending', 'partial', 'overdue'))
          AND COALESCE(sc.amount_due, c.amount) - COALESCE(sc.amount_paid, 0) > 0
        ORDER BY c.name ASC`

// UnpaidCharges returns the outstanding charges for a student at a grade
// level without mutating anything.
func (r *BackPaymentRepository) UnpaidCharges(ctx context.Context, studentID int64, gradeLevel int) ([]models.UnpaidCharge, error) {
	var charges []models.UnpaidCharge
	if err := r.db.SelectContext(ctx, &charges, unpaidChargesQuery, studentID, gradeLevel); err != nil {
		return nil, fmt.Errorf("unpaid charges: %w", err)
	}
	return charges, nil
}

// CarryOver promotes a student to the new grade and converts every
// outstanding charge into a back_payments row in one transaction. The
// outstanding set is recomputed inside the transaction so the promotion
// never drops a balance written between check and upgrade. Prior
// student_charges rows are left in place.
func (r *BackPaymentRepository) CarryOver(ctx context.Context, studentID int64, fromGrade, toGrade int, newStatus models.StudentStatus) (int, float64, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin carry over: %w", err)
	}

	var unpaid []models.UnpaidCharge
	if err := tx.SelectContext(ctx, &unpaid, unpaidChargesQuery, studentID, fromGrade); err != nil {
		tx.Rollback()
		return 0, 0, fmt.Errorf("unpaid charges: %w", err)
	}

	const billCharge = `INSERT INTO student_charges (student_id, charge_id, amount_due, amount_paid, status, created_at, updated_at)
        VALUES ($1, $2, $3, 0, $5, $4, $4)
        ON CONFLICT (student_id, charge_id) DO NOTHING`
	const insertBackPayment = `INSERT INTO back_payments (student_id, original_grade_level, current_grade_level,
        charge_name, amount_due, amount_paid, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, 0, $7, $6, $6)`

	var carried float64
	for _, charge := range unpaid {
		if !charge.Billed {
			if _, err := tx.ExecContext(ctx, billCharge, studentID, charge.ChargeID, charge.AmountDue, now, models.LedgerStatusPending); err != nil {
				tx.Rollback()
				return 0, 0, fmt.Errorf("bill unbilled charge: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, insertBackPayment,
			studentID, fromGrade, toGrade, charge.ChargeName, charge.Unpaid, now, models.LedgerStatusPending,
		); err != nil {
			tx.Rollback()
			return 0, 0, fmt.Errorf("create back payment: %w", err)
		}
		carried += charge.Unpaid
	}

	const promote = `UPDATE students SET grade_level = $2, status = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, promote, studentID, toGrade, newStatus, now); err != nil {
		tx.Rollback()
		return 0, 0, fmt.Errorf("promote student: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit carry over: %w", err)
	}
	return len(unpaid), carried, nil
}
