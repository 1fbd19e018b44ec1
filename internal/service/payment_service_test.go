package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emsd/school-billing-api/internal/models"
	"github.com/emsd/school-billing-api/internal/repository"
	appErrors "github.com/emsd/school-billing-api/pkg/errors"
)

type mockChargeRepo struct {
	charges map[int64]models.Charge
	inUse   map[int64]bool
	deleted []int64
}

func (m *mockChargeRepo) List(ctx context.Context, filter models.ChargeFilter) ([]models.Charge, int, error) {
	charges := make([]models.Charge, 0, len(m.charges))
	for _, c := range m.charges {
		charges = append(charges, c)
	}
	return charges, len(charges), nil
}

func (m *mockChargeRepo) ListByGrade(ctx context.Context, gradeLevel int) ([]models.Charge, error) {
	return nil, nil
}

func (m *mockChargeRepo) FindByID(ctx context.Context, id int64) (*models.Charge, error) {
	if c, ok := m.charges[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockChargeRepo) Create(ctx context.Context, charge *models.Charge) error {
	if m.charges == nil {
		m.charges = make(map[int64]models.Charge)
	}
	if charge.ID == 0 {
		charge.ID = int64(len(m.charges) + 1)
	}
	m.charges[charge.ID] = *charge
	return nil
}

func (m *mockChargeRepo) Update(ctx context.Context, charge *models.Charge) error {
	if _, ok := m.charges[charge.ID]; !ok {
		return sql.ErrNoRows
	}
	m.charges[charge.ID] = *charge
	return nil
}

func (m *mockChargeRepo) InUse(ctx context.Context, id int64) (bool, error) {
	return m.inUse[id], nil
}

func (m *mockChargeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.charges[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.charges, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockPaymentRepo struct {
	payments     map[int64]models.PaymentDetail
	createdItems []models.PaymentItem
	revertErr    error
	reverted     []int64
	deleted      []int64
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	payments := make([]models.PaymentDetail, 0, len(m.payments))
	for _, p := range m.payments {
		payments = append(payments, p)
	}
	return payments, len(payments), nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id int64) (*models.PaymentDetail, error) {
	if p, ok := m.payments[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) StudentHistory(ctx context.Context, studentID int64) ([]models.PaymentDetail, *models.StudentPaymentSummary, error) {
	return nil, &models.StudentPaymentSummary{}, nil
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment, items []models.PaymentItem) error {
	if m.payments == nil {
		m.payments = make(map[int64]models.PaymentDetail)
	}
	payment.ID = int64(len(m.payments) + 1)
	payment.InvoiceNumber = "2026-000001"
	m.createdItems = items
	m.payments[payment.ID] = models.PaymentDetail{Payment: *payment, Items: items}
	return nil
}

func (m *mockPaymentRepo) Revert(ctx context.Context, id int64, reason string) error {
	if m.revertErr != nil {
		return m.revertErr
	}
	if _, ok := m.payments[id]; !ok {
		return sql.ErrNoRows
	}
	m.reverted = append(m.reverted, id)
	return nil
}

func (m *mockPaymentRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.payments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.payments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func newPaymentServiceForTest(repo *mockPaymentRepo, students *mockStudentRepo, charges *mockChargeRepo) *PaymentService {
	return NewPaymentService(repo, students, charges, validator.New(), zap.NewNop())
}

func TestPaymentServiceCreate(t *testing.T) {
	students := &mockStudentRepo{students: map[int64]models.Student{
		1: {ID: 1, GradeLevel: 3, Status: models.StudentStatusActive},
	}}
	charges := &mockChargeRepo{charges: map[int64]models.Charge{
		3: {ID: 3, Name: "Tuition Fee", Amount: 500},
	}}
	repo := &mockPaymentRepo{}
	svc := newPaymentServiceForTest(repo, students, charges)

	chargeID := int64(3)
	payment, err := svc.Create(context.Background(), 9, CreatePaymentRequest{
		StudentID:     1,
		PaymentMethod: models.PaymentMethodCash,
		Items: []PaymentItemRequest{
			{ChargeID: &chargeID, Amount: 200},
			{Description: "Lost library book", Amount: 15},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 215.0, payment.TotalAmount)
	assert.Equal(t, "2026-000001", payment.InvoiceNumber)
	require.Len(t, repo.createdItems, 2)
	assert.Equal(t, "Tuition Fee", repo.createdItems[0].Description)
	assert.False(t, repo.createdItems[0].IsManualCharge)
	assert.True(t, repo.createdItems[1].IsManualCharge)
}

func TestPaymentServiceCreateUnknownStudent(t *testing.T) {
	svc := newPaymentServiceForTest(&mockPaymentRepo{}, &mockStudentRepo{}, &mockChargeRepo{})

	chargeID := int64(3)
	_, err := svc.Create(context.Background(), 9, CreatePaymentRequest{
		StudentID:     42,
		PaymentMethod: models.PaymentMethodCash,
		Items:         []PaymentItemRequest{{ChargeID: &chargeID, Amount: 100}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestPaymentServiceCreateUnknownCharge(t *testing.T) {
	students := &mockStudentRepo{students: map[int64]models.Student{
		1: {ID: 1, Status: models.StudentStatusActive},
	}}
	svc := newPaymentServiceForTest(&mockPaymentRepo{}, students, &mockChargeRepo{})

	chargeID := int64(99)
	_, err := svc.Create(context.Background(), 9, CreatePaymentRequest{
		StudentID:     1,
		PaymentMethod: models.PaymentMethodCash,
		Items:         []PaymentItemRequest{{ChargeID: &chargeID, Amount: 100}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestPaymentServiceCreateManualItemNeedsDescription(t *testing.T) {
	students := &mockStudentRepo{students: map[int64]models.Student{
		1: {ID: 1, Status: models.StudentStatusActive},
	}}
	svc := newPaymentServiceForTest(&mockPaymentRepo{}, students, &mockChargeRepo{})

	_, err := svc.Create(context.Background(), 9, CreatePaymentRequest{
		StudentID:     1,
		PaymentMethod: models.PaymentMethodCash,
		Items:         []PaymentItemRequest{{Description: "   ", Amount: 100}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestPaymentServiceRevertTwice(t *testing.T) {
	repo := &mockPaymentRepo{revertErr: repository.ErrPaymentAlreadyReverted}
	svc := newPaymentServiceForTest(repo, &mockStudentRepo{}, &mockChargeRepo{})

	_, err := svc.Revert(context.Background(), 7, RevertPaymentRequest{Reason: "duplicate"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPaymentReverted.Code, appErr.Code)
}

func TestPaymentServiceRevertWithoutReason(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[int64]models.PaymentDetail{
		7: {Payment: models.Payment{ID: 7, StudentID: 1, TotalAmount: 100}},
	}}
	svc := newPaymentServiceForTest(repo, &mockStudentRepo{}, &mockChargeRepo{})

	got, err := svc.Revert(context.Background(), 7, RevertPaymentRequest{})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, repo.reverted)
	assert.Equal(t, int64(7), got.ID)
}

func TestPaymentServiceRevertMissing(t *testing.T) {
	svc := newPaymentServiceForTest(&mockPaymentRepo{}, &mockStudentRepo{}, &mockChargeRepo{})

	_, err := svc.Revert(context.Background(), 99, RevertPaymentRequest{Reason: "typo"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestPaymentServiceDeleteMissing(t *testing.T) {
	svc := newPaymentServiceForTest(&mockPaymentRepo{}, &mockStudentRepo{}, &mockChargeRepo{})

	err := svc.Delete(context.Background(), 99)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
