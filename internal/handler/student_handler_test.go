package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsd/school-billing-api/internal/models"
	"github.com/emsd/school-billing-api/internal/service"
)

type studentRepoStub struct {
	students   map[int64]models.Student
	nextID     int64
	lastFilter models.StudentFilter
}

func (s *studentRepoStub) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	s.lastFilter = filter
	out := make([]models.Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, st)
	}
	return out, len(out), nil
}

func (s *studentRepoStub) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	st, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

func (s *studentRepoStub) ExistsByNumber(ctx context.Context, studentNumber string, excludeID int64) (bool, error) {
	for id, st := range s.students {
		if st.StudentNumber == studentNumber && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *studentRepoStub) Create(ctx context.Context, student *models.Student) error {
	s.nextID++
	student.ID = s.nextID
	if s.students == nil {
		s.students = make(map[int64]models.Student)
	}
	s.students[student.ID] = *student
	return nil
}

func (s *studentRepoStub) Update(ctx context.Context, student *models.Student) error {
	if _, ok := s.students[student.ID]; !ok {
		return sql.ErrNoRows
	}
	s.students[student.ID] = *student
	return nil
}

func (s *studentRepoStub) Delete(ctx context.Context, id int64) error {
	if _, ok := s.students[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.students, id)
	return nil
}

func (s *studentRepoStub) BatchUpgrade(ctx context.Context, fromGrade, toGrade int, studentIDs []int64) (int64, error) {
	return 0, nil
}

type backPaymentRepoStub struct {
	unpaid []models.UnpaidCharge
}

func (s *backPaymentRepoStub) ListByStudent(ctx context.Context, studentID int64) ([]models.BackPayment, error) {
	return nil, nil
}

func (s *backPaymentRepoStub) UnpaidCharges(ctx context.Context, studentID int64, gradeLevel int) ([]models.UnpaidCharge, error) {
	return s.unpaid, nil
}

func (s *backPaymentRepoStub) CarryOver(ctx context.Context, studentID int64, fromGrade, toGrade int, newStatus models.StudentStatus) (int, float64, error) {
	return len(s.unpaid), 0, nil
}

func newStudentHandlerForTest(repo *studentRepoStub) *StudentHandler {
	svc := service.NewStudentService(repo, &backPaymentRepoStub{}, nil, nil, 1, 6)
	return NewStudentHandler(svc)
}

func TestStudentHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &studentRepoStub{students: map[int64]models.Student{
		4: {ID: 4, StudentNumber: "S-0004", FirstName: "Dina", LastName: "Putri", GradeLevel: 3, Status: models.StudentStatusActive},
	}}
	handler := newStudentHandlerForTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students/4", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "4"}}

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "S-0004")
}

func TestStudentHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newStudentHandlerForTest(&studentRepoStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students/99", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "99"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudentHandlerGetInvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newStudentHandlerForTest(&studentRepoStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students/abc", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	handler.Get(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentHandlerListPassesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &studentRepoStub{}
	handler := newStudentHandlerForTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students?search=dina&grade=3&page=2", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dina", repo.lastFilter.Search)
	require.NotNil(t, repo.lastFilter.GradeLevel)
	assert.Equal(t, 3, *repo.lastFilter.GradeLevel)
	assert.Equal(t, 2, repo.lastFilter.Page)
}

func TestStudentHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &studentRepoStub{}
	handler := newStudentHandlerForTest(repo)

	payload, _ := json.Marshal(service.CreateStudentRequest{
		StudentNumber: "S-0100",
		FirstName:     "Agus",
		LastName:      "Wibowo",
		GradeLevel:    1,
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/students", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, repo.students, 1)
}

func TestStudentHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newStudentHandlerForTest(&studentRepoStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/students", bytes.NewBufferString(`{"student_number":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentHandlerCheckBackPayments(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &studentRepoStub{students: map[int64]models.Student{
		4: {ID: 4, StudentNumber: "S-0004", GradeLevel: 3, Status: models.StudentStatusActive},
	}}
	svc := service.NewStudentService(repo, &backPaymentRepoStub{unpaid: []models.UnpaidCharge{
		{ChargeID: 1, ChargeName: "Tuition Fee", AmountDue: 300, Unpaid: 300, Billed: true},
	}}, nil, nil, 1, 6)
	handler := NewStudentHandler(svc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/students/4/check-back-payments", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "4"}}

	handler.CheckBackPayments(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Tuition Fee")
}
