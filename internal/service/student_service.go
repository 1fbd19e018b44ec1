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

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	ExistsByNumber(ctx context.Context, studentNumber string, excludeID int64) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id int64) error
	BatchUpgrade(ctx context.Context, fromGrade, toGrade int, studentIDs []int64) (int64, error)
}

type backPaymentRepository interface {
	ListByStudent(ctx context.Context, studentID int64) ([]models.BackPayment, error)
	UnpaidCharges(ctx context.Context, studentID int64, gradeLevel int) ([]models.UnpaidCharge, error)
	CarryOver(ctx context.Context, studentID int64, fromGrade, toGrade int, newStatus models.StudentStatus) (int, float64, error)
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	StudentNumber  string     `json:"student_number" validate:"required"`
	FirstName      string     `json:"first_name" validate:"required"`
	MiddleName     *string    `json:"middle_name"`
	LastName       string     `json:"last_name" validate:"required"`
	GradeLevel     int        `json:"grade_level" validate:"required,min=1"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	Address        *string    `json:"address"`
	ParentName     *string    `json:"parent_name"`
	ParentContact  *string    `json:"parent_contact"`
	ParentEmail    *string    `json:"parent_email" validate:"omitempty,email"`
	EnrollmentDate *time.Time `json:"enrollment_date"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	StudentNumber  string               `json:"student_number" validate:"required"`
	FirstName      string               `json:"first_name" validate:"required"`
	MiddleName     *string              `json:"middle_name"`
	LastName       string               `json:"last_name" validate:"required"`
	GradeLevel     int                  `json:"grade_level" validate:"required,min=1"`
	DateOfBirth    *time.Time           `json:"date_of_birth"`
	Address        *string              `json:"address"`
	ParentName     *string              `json:"parent_name"`
	ParentContact  *string              `json:"parent_contact"`
	ParentEmail    *string              `json:"parent_email" validate:"omitempty,email"`
	EnrollmentDate *time.Time           `json:"enrollment_date"`
	Status         models.StudentStatus `json:"status" validate:"required,oneof=active inactive graduated"`
}

// BatchUpgradeRequest promotes active students of one grade. StudentIDs
// optionally restricts the move to a subset of that grade.
type BatchUpgradeRequest struct {
	FromGrade  int     `json:"from_grade" validate:"required,min=1"`
	ToGrade    int     `json:"to_grade" validate:"required,min=1"`
	StudentIDs []int64 `json:"student_ids" validate:"omitempty,dive,min=1"`
}

// UpgradeStudentRequest promotes one student, carrying unpaid charges over.
type UpgradeStudentRequest struct {
	ToGrade int `json:"to_grade" validate:"required,min=1"`
}

// StudentService handles student use-cases including the grade-promotion
// workflow.
type StudentService struct {
	repo         studentRepository
	backPayments backPaymentRepository
	validator    *validator.Validate
	logger       *zap.Logger
	minGrade     int
	maxGrade     int
}

// NewStudentService constructs the student service. minGrade and maxGrade
// bound the school's grade range; promoting past maxGrade graduates the
// student.
func NewStudentService(repo studentRepository, backPayments backPaymentRepository, validate *validator.Validate, logger *zap.Logger, minGrade, maxGrade int) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if minGrade < 1 {
		minGrade = 1
	}
	if maxGrade < minGrade {
		maxGrade = minGrade
	}
	return &StudentService{
		repo:         repo,
		backPayments: backPayments,
		validator:    validate,
		logger:       logger,
		minGrade:     minGrade,
		maxGrade:     maxGrade,
	}
}

// List returns students matching the filter with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, id int64) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student. Student numbers are unique.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if req.GradeLevel < s.minGrade || req.GradeLevel > s.maxGrade {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade level out of range")
	}

	taken, err := s.repo.ExistsByNumber(ctx, req.StudentNumber, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student number")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student number already registered")
	}

	enrollment := time.Now().UTC()
	if req.EnrollmentDate != nil {
		enrollment = *req.EnrollmentDate
	}
	student := &models.Student{
		StudentNumber:  req.StudentNumber,
		FirstName:      req.FirstName,
		MiddleName:     req.MiddleName,
		LastName:       req.LastName,
		GradeLevel:     req.GradeLevel,
		DateOfBirth:    req.DateOfBirth,
		Address:        req.Address,
		ParentName:     req.ParentName,
		ParentContact:  req.ParentContact,
		ParentEmail:    req.ParentEmail,
		EnrollmentDate: enrollment,
		Status:         models.StudentStatusActive,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update rewrites a student record.
func (s *StudentService) Update(ctx context.Context, id int64, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if req.GradeLevel < s.minGrade || req.GradeLevel > s.maxGrade {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade level out of range")
	}

	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByNumber(ctx, req.StudentNumber, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student number")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student number already registered")
	}

	student.StudentNumber = req.StudentNumber
	student.FirstName = req.FirstName
	student.MiddleName = req.MiddleName
	student.LastName = req.LastName
	student.GradeLevel = req.GradeLevel
	student.DateOfBirth = req.DateOfBirth
	student.Address = req.Address
	student.ParentName = req.ParentName
	student.ParentContact = req.ParentContact
	student.ParentEmail = req.ParentEmail
	if req.EnrollmentDate != nil {
		student.EnrollmentDate = *req.EnrollmentDate
	}
	student.Status = req.Status

	if err := s.repo.Update(ctx, student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete removes a student record.
func (s *StudentService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

// BatchUpgrade moves every active student of one grade to another.
func (s *StudentService) BatchUpgrade(ctx context.Context, req BatchUpgradeRequest) (*models.BatchUpgradeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch upgrade payload")
	}
	if req.FromGrade < s.minGrade || req.FromGrade > s.maxGrade {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from_grade out of range")
	}
	if req.ToGrade < s.minGrade || req.ToGrade > s.maxGrade {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to_grade out of range")
	}
	if req.ToGrade == req.FromGrade {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to_grade must differ from from_grade")
	}

	updated, err := s.repo.BatchUpgrade(ctx, req.FromGrade, req.ToGrade, req.StudentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to batch upgrade students")
	}
	s.logger.Info("batch grade upgrade",
		zap.Int("from_grade", req.FromGrade),
		zap.Int("to_grade", req.ToGrade),
		zap.Int("requested_students", len(req.StudentIDs)),
		zap.Int64("updated", updated))
	return &models.BatchUpgradeResult{FromGrade: req.FromGrade, ToGrade: req.ToGrade, UpdatedCount: updated}, nil
}

// CheckBackPayments reports what a promotion would carry over without
// changing anything.
func (s *StudentService) CheckBackPayments(ctx context.Context, id int64) (*models.BackPaymentCheck, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unpaid, err := s.backPayments.UnpaidCharges(ctx, id, student.GradeLevel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute unpaid charges")
	}

	var total float64
	for _, charge := range unpaid {
		total += charge.Unpaid
	}
	return &models.BackPaymentCheck{
		StudentID:     id,
		GradeLevel:    student.GradeLevel,
		UnpaidCharges: unpaid,
		TotalUnpaid:   total,
	}, nil
}

// UpgradeWithBackPayments promotes one student and converts outstanding
// charges into back payments atomically. Promoting past the last grade
// graduates the student.
func (s *StudentService) UpgradeWithBackPayments(ctx context.Context, id int64, req UpgradeStudentRequest) (*models.UpgradeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upgrade payload")
	}
	if req.ToGrade < s.minGrade || req.ToGrade > s.maxGrade+1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to_grade out of range")
	}

	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if student.Status != models.StudentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only active students can be promoted")
	}
	if req.ToGrade <= student.GradeLevel {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to_grade must be above the current grade")
	}

	newStatus := models.StudentStatusActive
	if req.ToGrade > s.maxGrade {
		newStatus = models.StudentStatusGraduated
	}

	created, carried, err := s.backPayments.CarryOver(ctx, id, student.GradeLevel, req.ToGrade, newStatus)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote student")
	}

	s.logger.Info("student promoted",
		zap.Int64("student_id", id),
		zap.Int("from_grade", student.GradeLevel),
		zap.Int("to_grade", req.ToGrade),
		zap.Int("back_payments", created),
		zap.Float64("carried", carried))

	return &models.UpgradeResult{
		StudentID:           id,
		FromGrade:           student.GradeLevel,
		ToGrade:             req.ToGrade,
		Status:              newStatus,
		BackPaymentsCreated: created,
		CarriedAmount:       carried,
	}, nil
}
