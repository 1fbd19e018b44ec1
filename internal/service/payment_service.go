package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/emsd/school-billing-api/internal/models"
	"github.com/emsd/school-billing-api/internal/repository"
	appErrors "github.com/emsd/school-billing-api/pkg/errors"
)

type paymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	FindByID(ctx context.Context, id int64) (*models.PaymentDetail, error)
	StudentHistory(ctx context.Context, studentID int64) ([]models.PaymentDetail, *models.StudentPaymentSummary, error)
	Create(ctx context.Context, payment *models.Payment, items []models.PaymentItem) error
	Revert(ctx context.Context, id int64, reason string) error
	Delete(ctx context.Context, id int64) error
}

// PaymentItemRequest is one line of a payment submission. Lines either
// reference a catalog charge or carry a free-text description.
type PaymentItemRequest struct {
	ChargeID    *int64  `json:"charge_id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
}

// CreatePaymentRequest holds payload for recording a payment.
type CreatePaymentRequest struct {
	StudentID       int64                `json:"student_id" validate:"required"`
	PaymentDate     *time.Time           `json:"payment_date"`
	PaymentMethod   models.PaymentMethod `json:"payment_method" validate:"required,oneof=cash card bank_transfer check"`
	ReferenceNumber *string              `json:"reference_number"`
	Notes           *string              `json:"notes"`
	Items           []PaymentItemRequest `json:"items" validate:"required,min=1,dive"`
}

// RevertPaymentRequest optionally records why a payment is being reverted.
type RevertPaymentRequest struct {
	Reason string `json:"reason"`
}

// PaymentHistory pairs a student's payments with their totals.
type PaymentHistory struct {
	Payments []models.PaymentDetail       `json:"payments"`
	Summary  models.StudentPaymentSummary `json:"summary"`
}

// PaymentService orchestrates the payment reconciliation workflow. The
// ledger bookkeeping itself runs in repository transactions; the service
// owns validation and shaping.
type PaymentService struct {
	repo      paymentRepository
	students  studentRepository
	charges   chargeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs the payment service.
func NewPaymentService(repo paymentRepository, students studentRepository, charges chargeRepository, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{repo: repo, students: students, charges: charges, validator: validate, logger: logger}
}

// List returns payments matching the filter with pagination metadata.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return payments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one payment with items.
func (s *PaymentService) Get(ctx context.Context, id int64) (*models.PaymentDetail, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// StudentHistory returns every payment of one student with totals.
func (s *PaymentService) StudentHistory(ctx context.Context, studentID int64) (*PaymentHistory, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	payments, summary, err := s.repo.StudentHistory(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment history")
	}
	return &PaymentHistory{Payments: payments, Summary: *summary}, nil
}

// Create validates and records a payment. Every ledger update happens in
// one transaction together with the payment itself.
func (s *PaymentService) Create(ctx context.Context, createdBy int64, req CreatePaymentRequest) (*models.PaymentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	items := make([]models.PaymentItem, 0, len(req.Items))
	var total float64
	for _, line := range req.Items {
		item := models.PaymentItem{
			ChargeID: line.ChargeID,
			Amount:   line.Amount,
		}
		if line.ChargeID != nil {
			charge, err := s.charges.FindByID(ctx, *line.ChargeID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrValidation, "payment item references an unknown charge")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load charge")
			}
			item.Description = charge.Name
			if line.Description != "" {
				item.Description = line.Description
			}
		} else {
			if strings.TrimSpace(line.Description) == "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, "manual payment items require a description")
			}
			item.Description = line.Description
			item.IsManualCharge = true
		}
		items = append(items, item)
		total += line.Amount
	}
	if total <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment total must be positive")
	}

	paymentDate := time.Now().UTC()
	if req.PaymentDate != nil {
		paymentDate = *req.PaymentDate
	}

	payment := &models.Payment{
		StudentID:       req.StudentID,
		PaymentDate:     paymentDate,
		TotalAmount:     total,
		PaymentMethod:   req.PaymentMethod,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		CreatedBy:       createdBy,
	}
	if err := s.repo.Create(ctx, payment, items); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	s.logger.Info("payment recorded",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("student_id", payment.StudentID),
		zap.String("invoice", payment.InvoiceNumber),
		zap.Float64("total", payment.TotalAmount))

	return s.Get(ctx, payment.ID)
}

// Revert undoes a payment's ledger effects while keeping the record as an
// audit trail. Reverting twice fails without touching the ledgers.
func (s *PaymentService) Revert(ctx context.Context, id int64, req RevertPaymentRequest) (*models.PaymentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid revert payload")
	}

	if err := s.repo.Revert(ctx, id, req.Reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		if errors.Is(err, repository.ErrPaymentAlreadyReverted) {
			return nil, appErrors.Clone(appErrors.ErrPaymentReverted, "payment has already been reverted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revert payment")
	}

	s.logger.Info("payment reverted", zap.Int64("payment_id", id), zap.String("reason", req.Reason))
	return s.Get(ctx, id)
}

// Delete removes a payment and its items entirely, rolling back ledger
// effects when the payment was still live.
func (s *PaymentService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}
	s.logger.Info("payment deleted", zap.Int64("payment_id", id))
	return nil
}
