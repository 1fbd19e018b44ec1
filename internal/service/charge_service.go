package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/emsd/school-billing-api/internal/models"
	appErrors "github.com/emsd/school-billing-api/pkg/errors"
)

type chargeRepository interface {
	List(ctx context.Context, filter models.ChargeFilter) ([]models.Charge, int, error)
	ListByGrade(ctx context.Context, gradeLevel int) ([]models.Charge, error)
	FindByID(ctx context.Context, id int64) (*models.Charge, error)
	Create(ctx context.Context, charge *models.Charge) error
	Update(ctx context.Context, charge *models.Charge) error
	InUse(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

type summaryRepository interface {
	StudentSummaries(ctx context.Context, gradeLevel *int) ([]models.StudentBalanceSummary, error)
	BreakdownTotals(ctx context.Context, studentID int64, gradeLevel int) (*models.BreakdownSummary, error)
	StudentPayments(ctx context.Context, studentID int64) ([]models.Payment, error)
}

// CreateChargeRequest holds payload for creating charges.
type CreateChargeRequest struct {
	Name        string            `json:"name" validate:"required"`
	Description *string           `json:"description"`
	Amount      float64           `json:"amount" validate:"required,gt=0"`
	ChargeType  models.ChargeType `json:"charge_type" validate:"required,oneof=tuition books uniform activities other"`
	GradeLevel  *int              `json:"grade_level" validate:"omitempty,min=1"`
	IsMandatory bool              `json:"is_mandatory"`
	IsActive    *bool             `json:"is_active"`
}

// UpdateChargeRequest holds payload for updating charges.
type UpdateChargeRequest struct {
	Name        string            `json:"name" validate:"required"`
	Description *string           `json:"description"`
	Amount      float64           `json:"amount" validate:"required,gt=0"`
	ChargeType  models.ChargeType `json:"charge_type" validate:"required,oneof=tuition books uniform activities other"`
	GradeLevel  *int              `json:"grade_level" validate:"omitempty,min=1"`
	IsMandatory bool              `json:"is_mandatory"`
	IsActive    bool              `json:"is_active"`
}

// ChargeService handles the charge catalog and the balance summaries
// derived from it.
type ChargeService struct {
	repo         chargeRepository
	summaries    summaryRepository
	students     studentRepository
	backPayments backPaymentRepository
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewChargeService constructs the charge service.
func NewChargeService(repo chargeRepository, summaries summaryRepository, students studentRepository, backPayments backPaymentRepository, validate *validator.Validate, logger *zap.Logger) *ChargeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChargeService{
		repo:         repo,
		summaries:    summaries,
		students:     students,
		backPayments: backPayments,
		validator:    validate,
		logger:       logger,
	}
}

// List returns charges matching the filter with pagination metadata.
func (s *ChargeService) List(ctx context.Context, filter models.ChargeFilter) ([]models.Charge, *models.Pagination, error) {
	charges, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list charges")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return charges, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListByGrade returns the active charges applicable to a grade level.
func (s *ChargeService) ListByGrade(ctx context.Context, gradeLevel int) ([]models.Charge, error) {
	charges, err := s.repo.ListByGrade(ctx, gradeLevel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list charges by grade")
	}
	return charges, nil
}

// Get returns one charge.
func (s *ChargeService) Get(ctx context.Context, id int64) (*models.Charge, error) {
	charge, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "charge not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load charge")
	}
	return charge, nil
}

// Create adds a charge to the catalog.
func (s *ChargeService) Create(ctx context.Context, req CreateChargeRequest) (*models.Charge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid charge payload")
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	charge := &models.Charge{
		Name:        req.Name,
		Description: req.Description,
		Amount:      req.Amount,
		ChargeType:  req.ChargeType,
		GradeLevel:  req.GradeLevel,
		IsMandatory: req.IsMandatory,
		IsActive:    active,
	}
	if err := s.repo.Create(ctx, charge); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create charge")
	}
	return charge, nil
}

// Update rewrites a charge definition.
func (s *ChargeService) Update(ctx context.Context, id int64, req UpdateChargeRequest) (*models.Charge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid charge payload")
	}

	charge, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	charge.Name = req.Name
	charge.Description = req.Description
	charge.Amount = req.Amount
	charge.ChargeType = req.ChargeType
	charge.GradeLevel = req.GradeLevel
	charge.IsMandatory = req.IsMandatory
	charge.IsActive = req.IsActive

	if err := s.repo.Update(ctx, charge); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "charge not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update charge")
	}
	return charge, nil
}

// Delete removes a charge. Charges referenced by payment items are
// protected so payment history stays interpretable.
func (s *ChargeService) Delete(ctx context.Context, id int64) error {
	inUse, err := s.repo.InUse(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check charge usage")
	}
	if inUse {
		return appErrors.Clone(appErrors.ErrChargeInUse, "charge has payment history and cannot be deleted")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "charge not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete charge")
	}
	return nil
}

// StudentSummaries returns the per-student balance listing, optionally
// limited to one grade.
func (s *ChargeService) StudentSummaries(ctx context.Context, gradeLevel *int) ([]models.StudentBalanceSummary, error) {
	summaries, err := s.summaries.StudentSummaries(ctx, gradeLevel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute student summaries")
	}
	return summaries, nil
}

// StudentBreakdown assembles the full billing picture of one student:
// applicable charges, payments, back payments and the computed totals.
func (s *ChargeService) StudentBreakdown(ctx context.Context, studentID int64) (*models.StudentChargeBreakdown, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	charges, err := s.repo.ListByGrade(ctx, student.GradeLevel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list charges")
	}
	payments, err := s.summaries.StudentPayments(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	backPayments, err := s.backPayments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list back payments")
	}
	totals, err := s.summaries.BreakdownTotals(ctx, studentID, student.GradeLevel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute totals")
	}

	return &models.StudentChargeBreakdown{
		Student:      *student,
		Charges:      charges,
		Payments:     payments,
		BackPayments: backPayments,
		Summary:      *totals,
	}, nil
}
