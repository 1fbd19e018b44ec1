package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/emsd/school-billing-api/internal/models"
)

// AssessmentRepository manages snapshot batches and their member
// assessments.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs an AssessmentRepository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// StudentIDsByGrade returns the ids of active students in one grade, used
// when a batch is created for a whole grade instead of an explicit list.
func (r *AssessmentRepository) StudentIDsByGrade(ctx context.Context, gradeLevel int) ([]int64, error) {
	const query = `SELECT id FROM students WHERE status = 'active' AND grade_level = $1 ORDER BY id ASC`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, gradeLevel); err != nil {
		return nil, fmt.Errorf("student ids by grade: %w", err)
	}
	return ids, nil
}

// ListBatches returns all batches, newest first, with their member counts.
func (r *AssessmentRepository) ListBatches(ctx context.Context) ([]models.AssessmentBatch, error) {
	const query = `SELECT b.id, b.batch_name, b.assessment_date, b.due_date, b.created_by, b.created_at, b.updated_at,
        COUNT(a.id) AS assessment_count
        FROM assessment_batches b
        LEFT JOIN assessments a ON a.batch_id = b.id
        GROUP BY b.id ORDER BY b.created_at DESC`
	var batches []models.AssessmentBatch
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, fmt.Errorf("list assessment batches: %w", err)
	}
	return batches, nil
}

// BatchByID returns a batch with its assessments joined to student
// identity.
func (r *AssessmentRepository) BatchByID(ctx context.Context, id int64) (*models.BatchDetail, error) {
	const batchQuery = `SELECT b.id, b.batch_name, b.assessment_date, b.due_date, b.created_by, b.created_at, b.updated_at,
        COUNT(a.id) AS assessment_count
        FROM assessment_batches b
        LEFT JOIN assessments a ON a.batch_id = b.id
        WHERE b.id = $1 GROUP BY b.id`
	var batch models.AssessmentBatch
	if err := r.db.GetContext(ctx, &batch, batchQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assessment batch: %w", err)
	}

	const membersQuery = `SELECT a.id, a.batch_id, a.student_id, a.assessment_date, a.due_date,
        a.total_charges, a.total_paid, a.current_due, a.created_by, a.created_at, a.updated_at,
        s.student_number, s.first_name, s.middle_name, s.last_name, s.grade_level, s.status
        FROM assessments a
        JOIN students s ON s.id = a.student_id
        WHERE a.batch_id = $1
        ORDER BY s.grade_level ASC, s.last_name ASC, s.first_name ASC`
	var members []models.AssessmentDetail
	if err := r.db.SelectContext(ctx, &members, membersQuery, id); err != nil {
		return nil, fmt.Errorf("list batch assessments: %w", err)
	}
	return &models.BatchDetail{AssessmentBatch: batch, Assessments: members}, nil
}

// CreateBatch stores a batch and snapshots the current balance of every
// listed student in one transaction. Totals are computed from the live
// tables at insert time and never change afterwards.
func (r *AssessmentRepository) CreateBatch(ctx context.Context, batch *models.AssessmentBatch, studentIDs []int64) error {
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create batch: %w", err)
	}

	const insertBatch = `INSERT INTO assessment_batches (batch_name, assessment_date, due_date, created_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := tx.QueryRowxContext(ctx, insertBatch,
		batch.BatchName, batch.AssessmentDate, batch.DueDate, batch.CreatedBy, batch.CreatedAt, batch.UpdatedAt,
	).Scan(&batch.ID); err != nil {
		tx.Rollback()
		return fmt.Errorf("create assessment batch: %w", err)
	}

	// Snapshot the balance formula per student: applicable charges plus
	// outstanding back payments, minus non-reverted payments.
	const insertAssessment = `INSERT INTO assessments (batch_id, student_id, assessment_date, due_date,
        total_charges, total_paid, current_due, created_by, created_at, updated_at)
        SELECT $1, s.id, $3, $4,
            COALESCE(ch.total, 0) + COALESCE(bp.due, 0),
            COALESCE(pay.total, 0),
            COALESCE(ch.total, 0) + COALESCE(bp.due, 0) - COALESCE(pay.total, 0),
            $5, $6, $6
        FROM students s
        LEFT JOIN LATERAL (
            SELECT SUM(amount) AS total FROM charges
            WHERE is_active = TRUE AND (grade_level = s.grade_level OR grade_level IS NULL)
        ) ch ON TRUE
        LEFT JOIN LATERAL (
            SELECT SUM(amount_due - amount_paid) AS due FROM back_payments
            WHERE student_id = s.id AND status <> 'paid'
        ) bp ON TRUE
        LEFT JOIN LATERAL (
            SELECT SUM(total_amount) AS total FROM payments
            WHERE student_id = s.id AND reverted = FALSE
        ) pay ON TRUE
        WHERE s.id = $2`
	for _, studentID := range studentIDs {
		result, err := tx.ExecContext(ctx, insertAssessment,
			batch.ID, studentID, batch.AssessmentDate, batch.DueDate, batch.CreatedBy, now)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("create assessment: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("create assessment rows: %w", err)
		}
		if rows == 0 {
			tx.Rollback()
			return sql.ErrNoRows
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create batch: %w", err)
	}
	return nil
}

// UpdateAssessment overwrites the stored totals of one snapshot row.
func (r *AssessmentRepository) UpdateAssessment(ctx context.Context, assessment *models.Assessment) error {
	assessment.UpdatedAt = time.Now().UTC()

	const query = `UPDATE assessments SET assessment_date = :assessment_date, due_date = :due_date,
        total_charges = :total_charges, total_paid = :total_paid, current_due = :current_due,
        updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, assessment)
	if err != nil {
		return fmt.Errorf("update assessment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update assessment rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindAssessment returns one snapshot row.
func (r *AssessmentRepository) FindAssessment(ctx context.Context, id int64) (*models.Assessment, error) {
	const query = `SELECT id, batch_id, student_id, assessment_date, due_date, total_charges, total_paid,
        current_due, created_by, created_at, updated_at FROM assessments WHERE id = $1 LIMIT 1`
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assessment: %w", err)
	}
	return &assessment, nil
}

// DeleteBatch removes a batch and its assessments.
func (r *AssessmentRepository) DeleteBatch(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete batch: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM assessments WHERE batch_id = $1`, id); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete batch assessments: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM assessment_batches WHERE id = $1`, id)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("delete assessment batch: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("delete batch rows: %w", err)
	}
	if rows == 0 {
		tx.Rollback()
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete batch: %w", err)
	}
	return nil
}

// ClearAll removes every batch and assessment.
func (r *AssessmentRepository) ClearAll(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin clear assessments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM assessments`); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("clear assessments: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM assessment_batches`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("clear assessment batches: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("clear batches rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear assessments: %w", err)
	}
	return rows, nil
}
