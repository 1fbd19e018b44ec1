package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emsd/school-billing-api/internal/models"
	"github.com/emsd/school-billing-api/internal/service"
	appErrors "github.com/emsd/school-billing-api/pkg/errors"
	"github.com/emsd/school-billing-api/pkg/response"
)

// ChargeHandler exposes the charge catalog and balance summary endpoints.
type ChargeHandler struct {
	charges *service.ChargeService
}

// NewChargeHandler constructs ChargeHandler.
func NewChargeHandler(charges *service.ChargeService) *ChargeHandler {
	return &ChargeHandler{charges: charges}
}

// List godoc
// @Summary List charges
// @Tags Charges
// @Produce json
// @Param search query string false "Search by name"
// @Param type query string false "Filter by charge type"
// @Param grade query int false "Filter by grade level"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /charges [get]
func (h *ChargeHandler) List(c *gin.Context) {
	var filter models.ChargeFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.ChargeType = models.ChargeType(c.Query("type"))
	if grade := c.Query("grade"); grade != "" {
		if v, err := strconv.Atoi(grade); err == nil {
			filter.GradeLevel = &v
		}
	}
	if active := c.Query("active"); active != "" {
		if active == "true" {
			v := true
			filter.Active = &v
		} else if active == "false" {
			v := false
			filter.Active = &v
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	charges, pagination, err := h.charges.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, charges, pagination)
}

// ListByGrade godoc
// @Summary List charges for a grade
// @Tags Charges
// @Produce json
// @Param grade path int true "Grade level"
// @Success 200 {object} response.Envelope
// @Router /charges/grade/{grade} [get]
func (h *ChargeHandler) ListByGrade(c *gin.Context) {
	grade, err := strconv.Atoi(c.Param("grade"))
	if err != nil || grade < 1 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid grade level"))
		return
	}
	charges, svcErr := h.charges.ListByGrade(c.Request.Context(), grade)
	if svcErr != nil {
		response.Error(c, svcErr)
		return
	}
	response.JSON(c, http.StatusOK, charges, nil)
}

// Get godoc
// @Summary Get charge detail
// @Tags Charges
// @Produce json
// @Param id path int true "Charge ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /charges/{id} [get]
func (h *ChargeHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid charge id"))
		return
	}
	charge, err := h.charges.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, charge, nil)
}

// Create godoc
// @Summary Create charge
// @Tags Charges
// @Accept json
// @Produce json
// @Param payload body service.CreateChargeRequest true "Charge payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /charges [post]
func (h *ChargeHandler) Create(c *gin.Context) {
	var req service.CreateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid charge payload"))
		return
	}
	charge, err := h.charges.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, charge)
}

// Update godoc
// @Summary Update charge
// @Tags Charges
// @Accept json
// @Produce json
// @Param id path int true "Charge ID"
// @Param payload body service.UpdateChargeRequest true "Charge payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /charges/{id} [put]
func (h *ChargeHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid charge id"))
		return
	}
	var req service.UpdateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid charge payload"))
		return
	}
	charge, err := h.charges.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, charge, nil)
}

// Delete godoc
// @Summary Delete charge
// @Description Remove a charge without payment history
// @Tags Charges
// @Produce json
// @Param id path int true "Charge ID"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /charges/{id} [delete]
func (h *ChargeHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid charge id"))
		return
	}
	if err := h.charges.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// StudentSummaries godoc
// @Summary Per-student balance summaries
// @Description Balance summary per active student, optionally limited to one grade
// @Tags Charges
// @Produce json
// @Param grade query int false "Filter by grade level"
// @Success 200 {object} response.Envelope
// @Router /charges/students/summary [get]
func (h *ChargeHandler) StudentSummaries(c *gin.Context) {
	var gradeLevel *int
	if grade := c.Query("grade"); grade != "" {
		if v, err := strconv.Atoi(grade); err == nil {
			gradeLevel = &v
		}
	}
	summaries, err := h.charges.StudentSummaries(c.Request.Context(), gradeLevel)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// StudentBreakdown godoc
// @Summary Student charge breakdown
// @Description Charges, payments, back payments and totals for one student
// @Tags Charges
// @Produce json
// @Param studentId path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /charges/students/{studentId}/breakdown [get]
func (h *ChargeHandler) StudentBreakdown(c *gin.Context) {
	id, ok := pathID(c, "studentId")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student id"))
		return
	}
	breakdown, err := h.charges.StudentBreakdown(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, breakdown, nil)
}
