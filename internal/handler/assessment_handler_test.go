package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsd/school-billing-api/internal/models"
	"github.com/emsd/school-billing-api/internal/service"
)

type assessmentRepoStub struct {
	batches     map[int64]models.BatchDetail
	assessments map[int64]models.Assessment
	deleted     []int64
}

func (s *assessmentRepoStub) StudentIDsByGrade(ctx context.Context, gradeLevel int) ([]int64, error) {
	return nil, nil
}

func (s *assessmentRepoStub) ListBatches(ctx context.Context) ([]models.AssessmentBatch, error) {
	out := make([]models.AssessmentBatch, 0, len(s.batches))
	for _, b := range s.batches {
		out = append(out, b.AssessmentBatch)
	}
	return out, nil
}

func (s *assessmentRepoStub) BatchByID(ctx context.Context, id int64) (*models.BatchDetail, error) {
	b, ok := s.batches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (s *assessmentRepoStub) CreateBatch(ctx context.Context, batch *models.AssessmentBatch, studentIDs []int64) error {
	return nil
}

func (s *assessmentRepoStub) FindAssessment(ctx context.Context, id int64) (*models.Assessment, error) {
	a, ok := s.assessments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (s *assessmentRepoStub) UpdateAssessment(ctx context.Context, assessment *models.Assessment) error {
	if _, ok := s.assessments[assessment.ID]; !ok {
		return sql.ErrNoRows
	}
	s.assessments[assessment.ID] = *assessment
	return nil
}

func (s *assessmentRepoStub) DeleteBatch(ctx context.Context, id int64) error {
	if _, ok := s.batches[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.batches, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *assessmentRepoStub) ClearAll(ctx context.Context) (int64, error) {
	removed := int64(len(s.batches))
	s.batches = nil
	return removed, nil
}

func newAssessmentHandlerForTest(repo *assessmentRepoStub) *AssessmentHandler {
	svc := service.NewAssessmentService(repo, nil, nil)
	return NewAssessmentHandler(svc, nil)
}

func TestAssessmentHandlerGetBatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &assessmentRepoStub{batches: map[int64]models.BatchDetail{
		3: {AssessmentBatch: models.AssessmentBatch{ID: 3, BatchName: "March Assessment"}},
	}}
	handler := newAssessmentHandlerForTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/assessments/batch/3", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "batchId", Value: "3"}}

	handler.GetBatch(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "March Assessment")
}

func TestAssessmentHandlerDeleteBatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &assessmentRepoStub{batches: map[int64]models.BatchDetail{
		3: {AssessmentBatch: models.AssessmentBatch{ID: 3, BatchName: "March Assessment"}},
	}}
	handler := newAssessmentHandlerForTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/assessments/batch/3", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "batchId", Value: "3"}}

	handler.DeleteBatch(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []int64{3}, repo.deleted)
}

func TestAssessmentHandlerUpdateAssessment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &assessmentRepoStub{assessments: map[int64]models.Assessment{
		11: {ID: 11, BatchID: 3, StudentID: 4, TotalCharges: 500, TotalPaid: 200, CurrentDue: 300},
	}}
	handler := newAssessmentHandlerForTest(repo)

	payload := `{"assessment_date":"2026-03-01T00:00:00Z","due_date":"2026-03-31T00:00:00Z","total_charges":500,"total_paid":350,"current_due":150}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/assessments/11", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "assessmentId", Value: "11"}}

	handler.UpdateAssessment(c)
	require.Equal(t, http.StatusOK, w.Code)
	updated := repo.assessments[11]
	assert.Equal(t, 150.0, updated.CurrentDue)
	assert.True(t, updated.DueDate.Equal(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)))
}
