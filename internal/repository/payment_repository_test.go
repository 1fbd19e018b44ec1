package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsd/school-billing-api/internal/models"
)

func newPaymentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var paymentLockColumns = []string{
	"id", "student_id", "invoice_number", "payment_date", "total_amount", "payment_method",
	"reference_number", "notes", "reverted", "reverted_at", "revert_reason", "created_by", "created_at",
}

var paymentItemColumns = []string{
	"id", "payment_id", "charge_id", "description", "amount", "is_manual_charge", "created_at",
}

func TestPaymentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	paymentDate := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	chargeID := int64(3)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(CAST\(SPLIT_PART`).
		WithArgs("2026-%").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(41))
	mock.ExpectQuery("INSERT INTO payments").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("INSERT INTO payment_items").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))
	mock.ExpectExec(`(?s)INSERT INTO student_charges.+VALUES \(\$1, \$2, 0,`).
		WithArgs(int64(1), chargeID, 100.0, sqlmock.AnyArg(), models.LedgerStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE student_charges SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO payment_items").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(22))
	mock.ExpectExec("UPDATE back_payments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment := &models.Payment{
		StudentID:     1,
		PaymentDate:   paymentDate,
		TotalAmount:   175,
		PaymentMethod: models.PaymentMethodCash,
		CreatedBy:     9,
	}
	items := []models.PaymentItem{
		{ChargeID: &chargeID, Description: "Tuition Fee", Amount: 100},
		{Description: models.BackPaymentDescription("Books Fee", 2, 3), Amount: 75, IsManualCharge: true},
	}

	err := repo.Create(context.Background(), payment, items)
	require.NoError(t, err)
	assert.Equal(t, "2026-000042", payment.InvoiceNumber)
	assert.Equal(t, int64(7), payment.ID)
	assert.Equal(t, int64(7), items[0].PaymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryCreateRollsBackOnItemFailure(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(CAST\(SPLIT_PART`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO payments").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery("INSERT INTO payment_items").
		WillReturnError(fmt.Errorf("constraint violation"))
	mock.ExpectRollback()

	payment := &models.Payment{
		StudentID:     1,
		PaymentDate:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		TotalAmount:   50,
		PaymentMethod: models.PaymentMethodCash,
		CreatedBy:     9,
	}
	items := []models.PaymentItem{{Description: "Field trip", Amount: 50, IsManualCharge: true}}

	err := repo.Create(context.Background(), payment, items)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryRevert(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	chargeID := int64(3)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM payments WHERE id = \\$1 FOR UPDATE").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(paymentLockColumns).
			AddRow(7, 1, "2026-000042", now, 100.0, "cash", nil, nil, false, nil, nil, 9, now))
	mock.ExpectQuery("FROM payment_items WHERE payment_id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(paymentItemColumns).
			AddRow(21, 7, chargeID, "Tuition Fee", 100.0, false, now))
	mock.ExpectExec(`UPDATE student_charges SET amount_paid = GREATEST`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE student_charges SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payments SET reverted = TRUE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Revert(context.Background(), 7, "wrong student")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryRevertTwiceFails(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM payments WHERE id = \\$1 FOR UPDATE").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(paymentLockColumns).
			AddRow(7, 1, "2026-000042", now, 100.0, "cash", nil, nil, true, now, "typo", 9, now))
	mock.ExpectQuery("FROM payment_items WHERE payment_id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(paymentItemColumns))
	mock.ExpectRollback()

	err := repo.Revert(context.Background(), 7, "again")
	require.ErrorIs(t, err, ErrPaymentAlreadyReverted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryDeleteRollsBackLedger(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	chargeID := int64(3)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM payments WHERE id = \\$1 FOR UPDATE").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(paymentLockColumns).
			AddRow(7, 1, "2026-000042", now, 100.0, "cash", nil, nil, false, nil, nil, 9, now))
	mock.ExpectQuery("FROM payment_items WHERE payment_id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(paymentItemColumns).
			AddRow(21, 7, chargeID, "Tuition Fee", 100.0, false, now))
	mock.ExpectExec(`UPDATE student_charges SET amount_paid = GREATEST`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE student_charges SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM payment_items").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM payments").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), 7)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryDeleteRevertedSkipsLedger(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	chargeID := int64(3)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM payments WHERE id = \\$1 FOR UPDATE").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(paymentLockColumns).
			AddRow(7, 1, "2026-000042", now, 100.0, "cash", nil, nil, true, now, "typo", 9, now))
	mock.ExpectQuery("FROM payment_items WHERE payment_id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(paymentItemColumns).
			AddRow(21, 7, chargeID, "Tuition Fee", 100.0, false, now))
	mock.ExpectExec("DELETE FROM payment_items").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM payments").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), 7)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
