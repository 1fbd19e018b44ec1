package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsd/school-billing-api/internal/models"
	"github.com/emsd/school-billing-api/internal/service"
)

type paymentRepoStub struct {
	payments   map[int64]models.PaymentDetail
	reverted   []int64
	lastReason string
}

func (s *paymentRepoStub) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	out := make([]models.PaymentDetail, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (s *paymentRepoStub) FindByID(ctx context.Context, id int64) (*models.PaymentDetail, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (s *paymentRepoStub) StudentHistory(ctx context.Context, studentID int64) ([]models.PaymentDetail, *models.StudentPaymentSummary, error) {
	return nil, &models.StudentPaymentSummary{}, nil
}

func (s *paymentRepoStub) Create(ctx context.Context, payment *models.Payment, items []models.PaymentItem) error {
	return nil
}

func (s *paymentRepoStub) Revert(ctx context.Context, id int64, reason string) error {
	if _, ok := s.payments[id]; !ok {
		return sql.ErrNoRows
	}
	s.reverted = append(s.reverted, id)
	s.lastReason = reason
	return nil
}

func (s *paymentRepoStub) Delete(ctx context.Context, id int64) error {
	if _, ok := s.payments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.payments, id)
	return nil
}

type chargeRepoStub struct {
	charges map[int64]models.Charge
}

func (s *chargeRepoStub) List(ctx context.Context, filter models.ChargeFilter) ([]models.Charge, int, error) {
	return nil, 0, nil
}

func (s *chargeRepoStub) ListByGrade(ctx context.Context, gradeLevel int) ([]models.Charge, error) {
	return nil, nil
}

func (s *chargeRepoStub) FindByID(ctx context.Context, id int64) (*models.Charge, error) {
	c, ok := s.charges[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (s *chargeRepoStub) Create(ctx context.Context, charge *models.Charge) error { return nil }

func (s *chargeRepoStub) Update(ctx context.Context, charge *models.Charge) error { return nil }

func (s *chargeRepoStub) InUse(ctx context.Context, id int64) (bool, error) { return false, nil }

func (s *chargeRepoStub) Delete(ctx context.Context, id int64) error { return nil }

func newPaymentHandlerForTest(repo *paymentRepoStub) *PaymentHandler {
	svc := service.NewPaymentService(repo, &studentRepoStub{}, &chargeRepoStub{}, nil, nil)
	return NewPaymentHandler(svc, nil, nil, nil, nil)
}

func TestPaymentHandlerRevertWithoutBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &paymentRepoStub{payments: map[int64]models.PaymentDetail{
		7: {Payment: models.Payment{ID: 7, StudentID: 1, InvoiceNumber: "2026-000007", TotalAmount: 150}},
	}}
	handler := newPaymentHandlerForTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/payments/7/revert", http.NoBody)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "7"}}

	handler.Revert(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{7}, repo.reverted)
	assert.Empty(t, repo.lastReason)
}

func TestPaymentHandlerRevertWithReason(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &paymentRepoStub{payments: map[int64]models.PaymentDetail{
		7: {Payment: models.Payment{ID: 7, StudentID: 1, InvoiceNumber: "2026-000007", TotalAmount: 150}},
	}}
	handler := newPaymentHandlerForTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/payments/7/revert", bytes.NewBufferString(`{"reason":"duplicate entry"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "7"}}

	handler.Revert(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "duplicate entry", repo.lastReason)
}

func TestPaymentHandlerRevertMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &paymentRepoStub{payments: map[int64]models.PaymentDetail{
		7: {Payment: models.Payment{ID: 7}},
	}}
	handler := newPaymentHandlerForTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/payments/7/revert", bytes.NewBufferString(`{"reason":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "7"}}

	handler.Revert(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, repo.reverted)
}
