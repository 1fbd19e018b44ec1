package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsd/school-billing-api/internal/models"
)

func newChargeMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var chargeColumns = []string{
	"id", "name", "description", "amount", "charge_type", "grade_level",
	"is_mandatory", "is_active", "created_at", "updated_at",
}

func TestChargeRepositoryListByGrade(t *testing.T) {
	db, mock, cleanup := newChargeMock(t)
	defer cleanup()
	repo := NewChargeRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(chargeColumns).
		AddRow(1, "Tuition Fee", nil, 500.0, "tuition", 3, true, true, now, now).
		AddRow(2, "Library Fee", nil, 25.0, "other", nil, false, true, now, now)
	mock.ExpectQuery(`FROM charges WHERE is_active = TRUE AND \(grade_level = \$1 OR grade_level IS NULL\)`).
		WithArgs(3).
		WillReturnRows(rows)

	charges, err := repo.ListByGrade(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, charges, 2)
	assert.Equal(t, "Tuition Fee", charges[0].Name)
	assert.Nil(t, charges[1].GradeLevel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChargeRepositoryInUse(t *testing.T) {
	db, mock, cleanup := newChargeMock(t)
	defer cleanup()
	repo := NewChargeRepository(db)

	mock.ExpectQuery("SELECT 1 FROM payment_items WHERE charge_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	inUse, err := repo.InUse(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, inUse)

	mock.ExpectQuery("SELECT 1 FROM payment_items WHERE charge_id").
		WithArgs(int64(2)).
		WillReturnError(sql.ErrNoRows)

	inUse, err = repo.InUse(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, inUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChargeRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newChargeMock(t)
	defer cleanup()
	repo := NewChargeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM student_charges WHERE charge_id").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM charges WHERE id").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), 1)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChargeRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newChargeMock(t)
	defer cleanup()
	repo := NewChargeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM student_charges WHERE charge_id").
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM charges WHERE id").
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 99)
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChargeRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newChargeMock(t)
	defer cleanup()
	repo := NewChargeRepository(db)

	mock.ExpectQuery("INSERT INTO charges").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))

	charge := &models.Charge{
		Name:       "Uniform Fee",
		Amount:     80,
		ChargeType: models.ChargeTypeUniform,
		IsActive:   true,
	}
	err := repo.Create(context.Background(), charge)
	require.NoError(t, err)
	assert.Equal(t, int64(4), charge.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
