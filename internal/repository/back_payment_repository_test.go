package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsd/school-billing-api/internal/models"
)

func newBackPaymentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var unpaidColumns = []string{"charge_id", "charge_name", "amount_due", "amount_paid", "unpaid", "status", "billed"}

func TestBackPaymentRepositoryUnpaidCharges(t *testing.T) {
	db, mock, cleanup := newBackPaymentMock(t)
	defer cleanup()
	repo := NewBackPaymentRepository(db)

	rows := sqlmock.NewRows(unpaidColumns).
		AddRow(1, "Tuition Fee", 500.0, 200.0, 300.0, "partial", true).
		AddRow(2, "Books Fee", 75.0, 0.0, 75.0, "pending", false)
	mock.ExpectQuery("LEFT JOIN student_charges sc").
		WithArgs(int64(1), 2).
		WillReturnRows(rows)

	charges, err := repo.UnpaidCharges(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, charges, 2)
	assert.Equal(t, 300.0, charges[0].Unpaid)
	assert.True(t, charges[0].Billed)
	assert.False(t, charges[1].Billed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackPaymentRepositoryCarryOver(t *testing.T) {
	db, mock, cleanup := newBackPaymentMock(t)
	defer cleanup()
	repo := NewBackPaymentRepository(db)

	mock.ExpectBegin()
	rows := sqlmock.NewRows(unpaidColumns).
		AddRow(1, "Tuition Fee", 500.0, 200.0, 300.0, "partial", true).
		AddRow(2, "Books Fee", 75.0, 0.0, 75.0, "pending", false)
	mock.ExpectQuery("LEFT JOIN student_charges sc").
		WithArgs(int64(1), 2).
		WillReturnRows(rows)
	mock.ExpectExec("INSERT INTO back_payments").
		WithArgs(int64(1), 2, 3, "Tuition Fee", 300.0, sqlmock.AnyArg(), models.LedgerStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO student_charges").
		WithArgs(int64(1), int64(2), 75.0, sqlmock.AnyArg(), models.LedgerStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO back_payments").
		WithArgs(int64(1), 2, 3, "Books Fee", 75.0, sqlmock.AnyArg(), models.LedgerStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE students SET grade_level").
		WithArgs(int64(1), 3, models.StudentStatusActive, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, carried, err := repo.CarryOver(context.Background(), 1, 2, 3, models.StudentStatusActive)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 375.0, carried)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackPaymentRepositoryCarryOverNothingOutstanding(t *testing.T) {
	db, mock, cleanup := newBackPaymentMock(t)
	defer cleanup()
	repo := NewBackPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("LEFT JOIN student_charges sc").
		WithArgs(int64(1), 6).
		WillReturnRows(sqlmock.NewRows(unpaidColumns))
	mock.ExpectExec("UPDATE students SET grade_level").
		WithArgs(int64(1), 7, models.StudentStatusGraduated, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, carried, err := repo.CarryOver(context.Background(), 1, 6, 7, models.StudentStatusGraduated)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Zero(t, carried)
	assert.NoError(t, mock.ExpectationsWereMet())
}
