package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emsd/school-billing-api/internal/service"
	appErrors "github.com/emsd/school-billing-api/pkg/errors"
	"github.com/emsd/school-billing-api/pkg/response"
)

// AssessmentHandler exposes snapshot batch endpoints.
type AssessmentHandler struct {
	assessments *service.AssessmentService
	exports     *service.ExportService
}

// NewAssessmentHandler constructs AssessmentHandler.
func NewAssessmentHandler(assessments *service.AssessmentService, exports *service.ExportService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments, exports: exports}
}

// ListBatches godoc
// @Summary List assessment batches
// @Tags Assessments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assessments/batches [get]
func (h *AssessmentHandler) ListBatches(c *gin.Context) {
	batches, err := h.assessments.ListBatches(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, nil)
}

// GetBatch godoc
// @Summary Get batch detail
// @Tags Assessments
// @Produce json
// @Param batchId path int true "Batch ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assessments/batch/{batchId} [get]
func (h *AssessmentHandler) GetBatch(c *gin.Context) {
	id, ok := pathID(c, "batchId")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid batch id"))
		return
	}
	batch, err := h.assessments.GetBatch(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// CreateBatch godoc
// @Summary Create assessment batch
// @Description Snapshot the current balances of the targeted students
// @Tags Assessments
// @Accept json
// @Produce json
// @Param payload body service.CreateBatchRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /assessments/batch [post]
func (h *AssessmentHandler) CreateBatch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	batch, err := h.assessments.CreateBatch(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, batch)
}

// UpdateAssessment godoc
// @Summary Update one assessment row
// @Tags Assessments
// @Accept json
// @Produce json
// @Param assessmentId path int true "Assessment ID"
// @Param payload body service.UpdateAssessmentRequest true "Assessment payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assessments/{assessmentId} [put]
func (h *AssessmentHandler) UpdateAssessment(c *gin.Context) {
	id, ok := pathID(c, "assessmentId")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assessment id"))
		return
	}
	var req service.UpdateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assessment payload"))
		return
	}
	assessment, err := h.assessments.UpdateAssessment(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment, nil)
}

// DeleteBatch godoc
// @Summary Delete assessment batch
// @Tags Assessments
// @Produce json
// @Param batchId path int true "Batch ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assessments/batch/{batchId} [delete]
func (h *AssessmentHandler) DeleteBatch(c *gin.Context) {
	id, ok := pathID(c, "batchId")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid batch id"))
		return
	}
	if err := h.assessments.DeleteBatch(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ClearAll godoc
// @Summary Clear all assessment batches
// @Description Remove every batch and assessment (admin only)
// @Tags Assessments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assessments/clear-all [delete]
func (h *AssessmentHandler) ClearAll(c *gin.Context) {
	removed, err := h.assessments.ClearAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed_batches": removed}, nil)
}

// Export godoc
// @Summary Export assessment batch
// @Description Download one batch as CSV or PDF
// @Tags Assessments
// @Produce application/pdf
// @Param batchId path int true "Batch ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /assessments/batch/{batchId}/export [get]
func (h *AssessmentHandler) Export(c *gin.Context) {
	id, ok := pathID(c, "batchId")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid batch id"))
		return
	}
	format := c.DefaultQuery("format", "pdf")
	payload, filename, err := h.exports.AssessmentSheet(c.Request.Context(), id, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	contentType := "application/pdf"
	if format == "csv" {
		contentType = "text/csv"
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, payload)
}
