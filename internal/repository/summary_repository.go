package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/emsd/school-billing-api/internal/models"
)

// SummaryRepository serves the read-only balance aggregations. Every
// figure is recomputed per request from the base tables.
type SummaryRepository struct {
	db *sqlx.DB
}

// NewSummaryRepository constructs a SummaryRepository.
func NewSummaryRepository(db *sqlx.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// StudentSummaries returns balance summaries for students, optionally
// restricted to one grade level. remaining_balance is
// charges + back payments outstanding - payments.
func (r *SummaryRepository) StudentSummaries(ctx context.Context, gradeLevel *int) ([]models.StudentBalanceSummary, error) {
	query := `SELECT s.id AS student_id, s.student_number, s.first_name, s.last_name, s.grade_level, s.status,
        COALESCE(ch.mandatory_charges, 0) AS mandatory_charges,
        COALESCE(ch.total_charges, 0) AS total_charges,
        COALESCE(pay.total_payments, 0) AS total_payments,
        COALESCE(bp.back_payments_due, 0) AS back_payments_due,
        COALESCE(ch.total_charges, 0) + COALESCE(bp.back_payments_due, 0) - COALESCE(pay.total_payments, 0) AS remaining_balance
        FROM students s
        LEFT JOIN (
            SELECT g.grade_level,
                SUM(c.amount) FILTER (WHERE c.is_mandatory) AS mandatory_charges,
                SUM(c.amount) AS total_charges
            FROM (SELECT DISTINCT grade_level FROM students WHERE status = 'active') AS g
            JOIN charges c ON c.is_active = TRUE AND (c.grade_level = g.grade_level OR c.grade_level IS NULL)
            GROUP BY g.grade_level
        ) ch ON ch.grade_level = s.grade_level
        LEFT JOIN (
            SELECT student_id, SUM(total_amount) AS total_payments
            FROM payments WHERE reverted = FALSE GROUP BY student_id
        ) pay ON pay.student_id = s.id
        LEFT JOIN (
            SELECT student_id, SUM(amount_due - amount_paid) AS back_payments_due
            FROM back_payments WHERE status <> 'paid' GROUP BY student_id
        ) bp ON bp.student_id = s.id
        WHERE s.status = 'active'`
	args := []interface{}{}
	if gradeLevel != nil {
		query += " AND s.grade_level = $1"
		args = append(args, *gradeLevel)
	}
	query += " ORDER BY s.grade_level ASC, s.last_name ASC, s.first_name ASC"

	var summaries []models.StudentBalanceSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("student summaries: %w", err)
	}
	return summaries, nil
}

// BreakdownTotals computes the summary block of a single student's
// breakdown view.
func (r *SummaryRepository) BreakdownTotals(ctx context.Context, studentID int64, gradeLevel int) (*models.BreakdownSummary, error) {
	const query = `SELECT
        COALESCE((SELECT SUM(amount) FROM charges WHERE is_active = TRUE AND (grade_level = $2 OR grade_level IS NULL)), 0) AS total_charges,
        COALESCE((SELECT SUM(amount) FROM charges WHERE is_active = TRUE AND is_mandatory = TRUE AND (grade_level = $2 OR grade_level IS NULL)), 0) AS mandatory_charges,
        COALESCE((SELECT SUM(total_amount) FROM payments WHERE student_id = $1 AND reverted = FALSE), 0) AS total_payments,
        COALESCE((SELECT SUM(amount_due - amount_paid) FROM back_payments WHERE student_id = $1 AND status <> 'paid'), 0) AS back_payments_due`
	var row struct {
		TotalCharges     float64 `db:"total_charges"`
		MandatoryCharges float64 `db:"mandatory_charges"`
		TotalPayments    float64 `db:"total_payments"`
		BackPaymentsDue  float64 `db:"back_payments_due"`
	}
	if err := r.db.GetContext(ctx, &row, query, studentID, gradeLevel); err != nil {
		return nil, fmt.Errorf("breakdown totals: %w", err)
	}
	return &models.BreakdownSummary{
		TotalCharges:     row.TotalCharges,
		MandatoryCharges: row.MandatoryCharges,
		TotalPayments:    row.TotalPayments,
		BackPaymentsDue:  row.BackPaymentsDue,
		RemainingBalance: row.TotalCharges + row.BackPaymentsDue - row.TotalPayments,
	}, nil
}

// StudentPayments returns the non-reverted payments used in breakdown and
// assessment views.
func (r *SummaryRepository) StudentPayments(ctx context.Context, studentID int64) ([]models.Payment, error) {
	const query = `SELECT id, student_id, invoice_number, payment_date, total_amount, payment_method,
        reference_number, notes, reverted, reverted_at, revert_reason, created_by, created_at
        FROM payments WHERE student_id = $1 AND reverted = FALSE ORDER BY payment_date DESC, id DESC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("student payments: %w", err)
	}
	return payments, nil
}

// DashboardStats aggregates the figures shown on the admin dashboard.
func (r *SummaryRepository) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM students WHERE status = 'active') AS active_students,
        (SELECT COUNT(*) FROM students WHERE status = 'inactive') AS inactive_students,
        (SELECT COUNT(*) FROM students WHERE status = 'graduated') AS graduated_students,
        COALESCE((SELECT SUM(amount_due) FROM student_charges), 0) AS total_charges,
        COALESCE((SELECT SUM(total_amount) FROM payments WHERE reverted = FALSE), 0) AS total_collected,
        COALESCE((SELECT SUM(amount_due - amount_paid) FROM student_charges WHERE status <> 'paid'), 0)
            + COALESCE((SELECT SUM(amount_due - amount_paid) FROM back_payments WHERE status <> 'paid'), 0) AS outstanding_balance,
        (SELECT COUNT(*) FROM payments WHERE reverted = FALSE AND payment_date::date = $1) AS payments_today`

	var stats models.DashboardStats
	if err := r.db.GetContext(ctx, &stats, query, time.Now().UTC().Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}

	const byGrade = `SELECT grade_level, COUNT(*) AS count FROM students
        WHERE status = 'active' GROUP BY grade_level ORDER BY grade_level ASC`
	if err := r.db.SelectContext(ctx, &stats.StudentsByGrade, byGrade); err != nil {
		return nil, fmt.Errorf("students by grade: %w", err)
	}
	return &stats, nil
}
