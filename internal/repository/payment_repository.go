package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/emsd/school-billing-api/internal/models"
)

// ErrPaymentAlreadyReverted is returned when a revert targets a payment
// that has been reverted before. The check runs inside the transaction so
// concurrent reverts cannot both succeed.
var ErrPaymentAlreadyReverted = errors.New("payment already reverted")

// PaymentRepository manages payments, their line items and the ledger
// reconciliation that accompanies every mutation.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentDetailColumns = `p.id, p.student_id, p.invoice_number, p.payment_date, p.total_amount,
        p.payment_method, p.reference_number, p.notes, p.reverted, p.reverted_at, p.revert_reason,
        p.created_by, p.created_at,
        s.first_name, s.last_name, s.student_number, u.username AS created_by_username`

// List returns payments matching the filter, newest first, with their
// line items attached.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	base := "FROM payments p JOIN students s ON s.id = p.student_id JOIN users u ON u.id = p.created_by"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != nil {
		conditions = append(conditions, fmt.Sprintf("p.student_id = $%d", len(args)+1))
		args = append(args, *filter.StudentID)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("p.payment_date >= $%d", len(args)+1))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("p.payment_date <= $%d", len(args)+1))
		args = append(args, *filter.EndDate)
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

	query := fmt.Sprintf(`SELECT %s %s ORDER BY p.payment_date DESC, p.id DESC LIMIT %d OFFSET %d`,
		paymentDetailColumns, base, size, offset)

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	if err := r.attachItems(ctx, payments); err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// FindByID returns one payment with its line items.
func (r *PaymentRepository) FindByID(ctx context.Context, id int64) (*models.PaymentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p
        JOIN students s ON s.id = p.student_id
        JOIN users u ON u.id = p.created_by
        WHERE p.id = $1 LIMIT 1`, paymentDetailColumns)

	var payment models.PaymentDetail
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}

	details := []models.PaymentDetail{payment}
	if err := r.attachItems(ctx, details); err != nil {
		return nil, err
	}
	return &details[0], nil
}

// StudentHistory returns every payment recorded for a student together
// with totals over the non-reverted ones.
func (r *PaymentRepository) StudentHistory(ctx context.Context, studentID int64) ([]models.PaymentDetail, *models.StudentPaymentSummary, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p
        JOIN students s ON s.id = p.student_id
        JOIN users u ON u.id = p.created_by
        WHERE p.student_id = $1 ORDER BY p.payment_date DESC, p.id DESC`, paymentDetailColumns)

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, nil, fmt.Errorf("student payment history: %w", err)
	}
	if err := r.attachItems(ctx, payments); err != nil {
		return nil, nil, err
	}

	const summaryQuery = `SELECT COUNT(*) AS total_payments, COALESCE(SUM(total_amount), 0) AS total_amount_paid
        FROM payments WHERE student_id = $1 AND reverted = FALSE`
	var summary models.StudentPaymentSummary
	if err := r.db.GetContext(ctx, &summary, summaryQuery, studentID); err != nil {
		return nil, nil, fmt.Errorf("student payment summary: %w", err)
	}
	return payments, &summary, nil
}

func (r *PaymentRepository) attachItems(ctx context.Context, payments []models.PaymentDetail) error {
	if len(payments) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(payments))
	for i := range payments {
		payments[i].Items = []models.PaymentItem{}
		ids = append(ids, payments[i].ID)
	}

	query, args, err := sqlx.In(`SELECT pi.id, pi.payment_id, pi.charge_id, pi.description, pi.amount,
        pi.is_manual_charge, pi.created_at, c.name AS charge_name, c.charge_type
        FROM payment_items pi LEFT JOIN charges c ON c.id = pi.charge_id
        WHERE pi.payment_id IN (?) ORDER BY pi.id ASC`, ids)
	if err != nil {
		return fmt.Errorf("build items query: %w", err)
	}
	query = r.db.Rebind(query)

	var items []models.PaymentItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return fmt.Errorf("list payment items: %w", err)
	}

	byPayment := make(map[int64]int, len(payments))
	for i := range payments {
		byPayment[payments[i].ID] = i
	}
	for _, item := range items {
		if idx, ok := byPayment[item.PaymentID]; ok {
			payments[idx].Items = append(payments[idx].Items, item)
		}
	}
	return nil
}

// nextInvoiceNumber derives the next YYYY-NNNNNN invoice number for the
// payment year from the highest sequence recorded so far.
func nextInvoiceNumber(ctx context.Context, tx *sqlx.Tx, paymentDate time.Time) (string, error) {
	year := paymentDate.Year()
	const query = `SELECT COALESCE(MAX(CAST(SPLIT_PART(invoice_number, '-', 2) AS INTEGER)), 0)
        FROM payments WHERE invoice_number LIKE $1`
	var max int
	if err := tx.GetContext(ctx, &max, query, fmt.Sprintf("%d-%%", year)); err != nil {
		return "", fmt.Errorf("invoice sequence: %w", err)
	}
	return fmt.Sprintf("%d-%06d", year, max+1), nil
}

// applyChargePayment adds amount to the student's ledger row for the
// charge and recomputes its status. A charge never billed to the student
// gets a zero-due row, so paying it settles it outright instead of opening
// a balance against the catalog price.
func applyChargePayment(ctx context.Context, tx *sqlx.Tx, studentID, chargeID int64, amount float64, now time.Time) error {
	const upsert = `INSERT INTO student_charges (student_id, charge_id, amount_due, amount_paid, status, created_at, updated_at)
        VALUES ($1, $2, 0, $3, $5, $4, $4)
        ON CONFLICT (student_id, charge_id) DO UPDATE
        SET amount_paid = student_charges.amount_paid + EXCLUDED.amount_paid, updated_at = EXCLUDED.updated_at`
	if _, err := tx.ExecContext(ctx, upsert, studentID, chargeID, amount, now, models.LedgerStatusPending); err != nil {
		return fmt.Errorf("apply charge payment: %w", err)
	}
	return recomputeLedgerStatus(ctx, tx, studentID, chargeID, now)
}

// reverseChargePayment removes amount from the student's ledger row,
// flooring at zero, and recomputes its status.
func reverseChargePayment(ctx context.Context, tx *sqlx.Tx, studentID, chargeID int64, amount float64, now time.Time) error {
	const query = `UPDATE student_charges SET amount_paid = GREATEST(0, amount_paid - $3), updated_at = $4
        WHERE student_id = $1 AND charge_id = $2`
	if _, err := tx.ExecContext(ctx, query, studentID, chargeID, amount, now); err != nil {
		return fmt.Errorf("reverse charge payment: %w", err)
	}
	return recomputeLedgerStatus(ctx, tx, studentID, chargeID, now)
}

// recomputeLedgerStatus derives the ledger status from the stored amounts
// so Go float arithmetic never participates in the comparison.
func recomputeLedgerStatus(ctx context.Context, tx *sqlx.Tx, studentID, chargeID int64, now time.Time) error {
	const query = `UPDATE student_charges SET status = CASE
            WHEN amount_paid >= amount_due THEN 'paid'
            WHEN amount_paid > 0 THEN 'partial'
            ELSE 'pending'
        END, updated_at = $3
        WHERE student_id = $1 AND charge_id = $2`
	if _, err := tx.ExecContext(ctx, query, studentID, chargeID, now); err != nil {
		return fmt.Errorf("recompute ledger status: %w", err)
	}
	return nil
}

// applyBackPayment adds amount to the matching back_payments row.
func applyBackPayment(ctx context.Context, tx *sqlx.Tx, studentID int64, ref models.BackPaymentRef, amount float64, now time.Time) error {
	const query = `UPDATE back_payments SET amount_paid = amount_paid + $1,
        status = CASE
            WHEN amount_paid + $1 >= amount_due THEN 'paid'
            WHEN amount_paid + $1 > 0 THEN 'partial'
            ELSE 'pending'
        END, updated_at = $2
        WHERE student_id = $3 AND original_grade_level = $4 AND current_grade_level = $5 AND charge_name = $6`
	if _, err := tx.ExecContext(ctx, query, amount, now, studentID, ref.OriginalGrade, ref.CurrentGrade, ref.ChargeName); err != nil {
		return fmt.Errorf("apply back payment: %w", err)
	}
	return nil
}

// reverseBackPayment removes amount from the matching back_payments row,
// flooring at zero.
func reverseBackPayment(ctx context.Context, tx *sqlx.Tx, studentID int64, ref models.BackPaymentRef, amount float64, now time.Time) error {
	const query = `UPDATE back_payments SET amount_paid = GREATEST(0, amount_paid - $1),
        status = CASE
            WHEN GREATEST(0, amount_paid - $1) >= amount_due THEN 'paid'
            WHEN GREATEST(0, amount_paid - $1) > 0 THEN 'partial'
            ELSE 'pending'
        END, updated_at = $2
        WHERE student_id = $3 AND original_grade_level = $4 AND current_grade_level = $5 AND charge_name = $6`
	if _, err := tx.ExecContext(ctx, query, amount, now, studentID, ref.OriginalGrade, ref.CurrentGrade, ref.ChargeName); err != nil {
		return fmt.Errorf("reverse back payment: %w", err)
	}
	return nil
}

// Create records a payment with its items and applies every item to the
// student's ledgers in one transaction. The invoice number is assigned
// inside the transaction from the per-year sequence.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment, items []models.PaymentItem) error {
	now := time.Now().UTC()
	payment.CreatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create payment: %w", err)
	}

	invoice, err := nextInvoiceNumber(ctx, tx, payment.PaymentDate)
	if err != nil {
		tx.Rollback()
		return err
	}
	payment.InvoiceNumber = invoice

	const insertPayment = `INSERT INTO payments (student_id, invoice_number, payment_date, total_amount,
        payment_method, reference_number, notes, reverted, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $9) RETURNING id`
	if err := tx.QueryRowxContext(ctx, insertPayment,
		payment.StudentID, payment.InvoiceNumber, payment.PaymentDate, payment.TotalAmount,
		payment.PaymentMethod, payment.ReferenceNumber, payment.Notes, payment.CreatedBy, payment.CreatedAt,
	).Scan(&payment.ID); err != nil {
		tx.Rollback()
		return fmt.Errorf("create payment: %w", err)
	}

	const insertItem = `INSERT INTO payment_items (payment_id, charge_id, description, amount, is_manual_charge, created_at)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	for i := range items {
		item := &items[i]
		item.PaymentID = payment.ID
		item.CreatedAt = now
		if err := tx.QueryRowxContext(ctx, insertItem,
			item.PaymentID, item.ChargeID, item.Description, item.Amount, item.IsManualCharge, item.CreatedAt,
		).Scan(&item.ID); err != nil {
			tx.Rollback()
			return fmt.Errorf("create payment item: %w", err)
		}

		if item.ChargeID != nil {
			if err := applyChargePayment(ctx, tx, payment.StudentID, *item.ChargeID, item.Amount, now); err != nil {
				tx.Rollback()
				return err
			}
			continue
		}
		if ref, ok := models.ParseBackPaymentDescription(item.Description); ok {
			if err := applyBackPayment(ctx, tx, payment.StudentID, ref, item.Amount, now); err != nil {
				tx.Rollback()
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create payment: %w", err)
	}
	return nil
}

// Revert marks a payment reverted and rolls its items back out of the
// student's ledgers. The payment record and its items survive as an audit
// trail.
func (r *PaymentRepository) Revert(ctx context.Context, id int64, reason string) error {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin revert payment: %w", err)
	}

	payment, items, err := lockPayment(ctx, tx, id)
	if err != nil {
		tx.Rollback()
		return err
	}
	if payment.Reverted {
		tx.Rollback()
		return ErrPaymentAlreadyReverted
	}

	if err := reverseItems(ctx, tx, payment.StudentID, items, now); err != nil {
		tx.Rollback()
		return err
	}

	const markReverted = `UPDATE payments SET reverted = TRUE, reverted_at = $2, revert_reason = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, markReverted, id, now, reason); err != nil {
		tx.Rollback()
		return fmt.Errorf("mark payment reverted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit revert payment: %w", err)
	}
	return nil
}

// Delete removes a payment and its items. When the payment has not been
// reverted its ledger effects are rolled back first.
func (r *PaymentRepository) Delete(ctx context.Context, id int64) error {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete payment: %w", err)
	}

	payment, items, err := lockPayment(ctx, tx, id)
	if err != nil {
		tx.Rollback()
		return err
	}

	if !payment.Reverted {
		if err := reverseItems(ctx, tx, payment.StudentID, items, now); err != nil {
			tx.Rollback()
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM payment_items WHERE payment_id = $1`, id); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete payment items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete payment: %w", err)
	}
	return nil
}

// lockPayment loads a payment and its items under FOR UPDATE so that
// concurrent revert/delete calls serialize on the row.
func lockPayment(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Payment, []models.PaymentItem, error) {
	const query = `SELECT id, student_id, invoice_number, payment_date, total_amount, payment_method,
        reference_number, notes, reverted, reverted_at, revert_reason, created_by, created_at
        FROM payments WHERE id = $1 FOR UPDATE`
	var payment models.Payment
	if err := tx.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("lock payment: %w", err)
	}

	const itemsQuery = `SELECT id, payment_id, charge_id, description, amount, is_manual_charge, created_at
        FROM payment_items WHERE payment_id = $1 ORDER BY id ASC`
	var items []models.PaymentItem
	if err := tx.SelectContext(ctx, &items, itemsQuery, id); err != nil {
		return nil, nil, fmt.Errorf("load payment items: %w", err)
	}
	return &payment, items, nil
}

// reverseItems rolls every item of a payment back out of the ledgers.
func reverseItems(ctx context.Context, tx *sqlx.Tx, studentID int64, items []models.PaymentItem, now time.Time) error {
	for _, item := range items {
		if item.ChargeID != nil {
			if err := reverseChargePayment(ctx, tx, studentID, *item.ChargeID, item.Amount, now); err != nil {
				return err
			}
			continue
		}
		if ref, ok := models.ParseBackPaymentDescription(item.Description); ok {
			if err := reverseBackPayment(ctx, tx, studentID, ref, item.Amount, now); err != nil {
				return err
			}
		}
	}
	return nil
}
