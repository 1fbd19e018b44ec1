package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/emsd/school-billing-api/internal/models"
	appErrors "github.com/emsd/school-billing-api/pkg/errors"
)

type assessmentRepository interface {
	StudentIDsByGrade(ctx context.Context, gradeLevel int) ([]int64, error)
	ListBatches(ctx context.Context) ([]models.AssessmentBatch, error)
	BatchByID(ctx context.Context, id int64) (*models.BatchDetail, error)
	CreateBatch(ctx context.Context, batch *models.AssessmentBatch, studentIDs []int64) error
	FindAssessment(ctx context.Context, id int64) (*models.Assessment, error)
	UpdateAssessment(ctx context.Context, assessment *models.Assessment) error
	DeleteBatch(ctx context.Context, id int64) error
	ClearAll(ctx context.Context) (int64, error)
}

// CreateBatchRequest snapshots a set of students. Either an explicit
// student list or a whole grade can be targeted.
type CreateBatchRequest struct {
	BatchName      string    `json:"batch_name" validate:"required"`
	AssessmentDate time.Time `json:"assessment_date" validate:"required"`
	DueDate        time.Time `json:"due_date" validate:"required"`
	StudentIDs     []int64   `json:"student_ids"`
	GradeLevel     *int      `json:"grade_level" validate:"omitempty,min=1"`
}

// UpdateAssessmentRequest overwrites one snapshot row's stored figures.
type UpdateAssessmentRequest struct {
	AssessmentDate time.Time `json:"assessment_date" validate:"required"`
	DueDate        time.Time `json:"due_date" validate:"required"`
	TotalCharges   float64   `json:"total_charges" validate:"min=0"`
	TotalPaid      float64   `json:"total_paid" validate:"min=0"`
	CurrentDue     float64   `json:"current_due"`
}

// AssessmentService handles snapshot batches for printing and record
// keeping.
type AssessmentService struct {
	repo      assessmentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssessmentService constructs the assessment service.
func NewAssessmentService(repo assessmentRepository, validate *validator.Validate, logger *zap.Logger) *AssessmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentService{repo: repo, validator: validate, logger: logger}
}

// ListBatches returns all snapshot batches newest first.
func (s *AssessmentService) ListBatches(ctx context.Context) ([]models.AssessmentBatch, error) {
	batches, err := s.repo.ListBatches(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
	}
	return batches, nil
}

// GetBatch returns one batch with its member assessments.
func (s *AssessmentService) GetBatch(ctx context.Context, id int64) (*models.BatchDetail, error) {
	batch, err := s.repo.BatchByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	return batch, nil
}

// CreateBatch snapshots the current balance of the targeted students into
// a new batch. The totals are frozen at creation time.
func (s *AssessmentService) CreateBatch(ctx context.Context, createdBy int64, req CreateBatchRequest) (*models.BatchDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	if req.DueDate.Before(req.AssessmentDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due_date must not precede assessment_date")
	}

	studentIDs := req.StudentIDs
	if len(studentIDs) == 0 {
		if req.GradeLevel == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "either student_ids or grade_level is required")
		}
		ids, err := s.repo.StudentIDsByGrade(ctx, *req.GradeLevel)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve students")
		}
		studentIDs = ids
	}
	if len(studentIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no students matched the batch selection")
	}

	batch := &models.AssessmentBatch{
		BatchName:      req.BatchName,
		AssessmentDate: req.AssessmentDate,
		DueDate:        req.DueDate,
		CreatedBy:      createdBy,
	}
	if err := s.repo.CreateBatch(ctx, batch, studentIDs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch references an unknown student")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create batch")
	}

	s.logger.Info("assessment batch created",
		zap.Int64("batch_id", batch.ID),
		zap.String("name", batch.BatchName),
		zap.Int("students", len(studentIDs)))

	return s.GetBatch(ctx, batch.ID)
}

// UpdateAssessment overwrites one snapshot row.
func (s *AssessmentService) UpdateAssessment(ctx context.Context, id int64, req UpdateAssessmentRequest) (*models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}

	assessment, err := s.repo.FindAssessment(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}

	assessment.AssessmentDate = req.AssessmentDate
	assessment.DueDate = req.DueDate
	assessment.TotalCharges = req.TotalCharges
	assessment.TotalPaid = req.TotalPaid
	assessment.CurrentDue = req.CurrentDue

	if err := s.repo.UpdateAssessment(ctx, assessment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assessment")
	}
	return assessment, nil
}

// DeleteBatch removes a batch with its assessments.
func (s *AssessmentService) DeleteBatch(ctx context.Context, id int64) error {
	if err := s.repo.DeleteBatch(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assessment batch not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete batch")
	}
	return nil
}

// ClearAll removes every batch. Destructive, admin only.
func (s *AssessmentService) ClearAll(ctx context.Context) (int64, error) {
	removed, err := s.repo.ClearAll(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear batches")
	}
	s.logger.Info("assessment batches cleared", zap.Int64("removed", removed))
	return removed, nil
}
