package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emsd/school-billing-api/internal/models"
	"github.com/emsd/school-billing-api/internal/service"
	appErrors "github.com/emsd/school-billing-api/pkg/errors"
	"github.com/emsd/school-billing-api/pkg/response"
)

// PaymentHandler exposes payment endpoints.
type PaymentHandler struct {
	payments  *service.PaymentService
	exports   *service.ExportService
	dashboard *service.DashboardService
	archive   *service.ArchiveService
	metrics   *service.MetricsService
}

// NewPaymentHandler constructs PaymentHandler. dashboard, archive and
// metrics may be nil when those subsystems are disabled.
func NewPaymentHandler(payments *service.PaymentService, exports *service.ExportService, dashboard *service.DashboardService, archive *service.ArchiveService, metrics *service.MetricsService) *PaymentHandler {
	return &PaymentHandler{payments: payments, exports: exports, dashboard: dashboard, archive: archive, metrics: metrics}
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param student_id query int false "Filter by student"
// @Param start_date query string false "Payments on or after (YYYY-MM-DD)"
// @Param end_date query string false "Payments on or before (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	var filter models.PaymentFilter
	if studentID := c.Query("student_id"); studentID != "" {
		if v, err := strconv.ParseInt(studentID, 10, 64); err == nil {
			filter.StudentID = &v
		}
	}
	if start := c.Query("start_date"); start != "" {
		if t, err := time.Parse("2006-01-02", start); err == nil {
			filter.StartDate = &t
		}
	}
	if end := c.Query("end_date"); end != "" {
		if t, err := time.Parse("2006-01-02", end); err == nil {
			eod := t.Add(24*time.Hour - time.Nanosecond)
			filter.EndDate = &eod
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	payments, pagination, err := h.payments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}

// Get godoc
// @Summary Get payment detail
// @Tags Payments
// @Produce json
// @Param id path int true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payment id"))
		return
	}
	payment, err := h.payments.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// StudentHistory godoc
// @Summary Student payment history
// @Tags Payments
// @Produce json
// @Param studentId path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/student/{studentId} [get]
func (h *PaymentHandler) StudentHistory(c *gin.Context) {
	id, ok := pathID(c, "studentId")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student id"))
		return
	}
	history, err := h.payments.StudentHistory(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Create godoc
// @Summary Record payment
// @Description Record a payment and apply it to the student's ledgers atomically
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.CreatePaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}

	payment, err := h.payments.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordPaymentOperation("create")
	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}
	if h.archive != nil {
		h.archive.EnqueueReceipt(payment.ID)
	}
	response.Created(c, payment)
}

// Revert godoc
// @Summary Revert payment
// @Description Roll a payment's ledger effects back while keeping the record
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path int true "Payment ID"
// @Param payload body service.RevertPaymentRequest false "Revert payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/revert [post]
func (h *PaymentHandler) Revert(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payment id"))
		return
	}
	// The reason is optional and so is the body itself.
	var req service.RevertPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid revert payload"))
		return
	}
	payment, err := h.payments.Revert(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordPaymentOperation("revert")
	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Delete godoc
// @Summary Delete payment
// @Description Remove a payment and its items entirely (admin only)
// @Tags Payments
// @Produce json
// @Param id path int true "Payment ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payment id"))
		return
	}
	if err := h.payments.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordPaymentOperation("delete")
	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}
	response.NoContent(c)
}

// Receipt godoc
// @Summary Download payment receipt
// @Tags Payments
// @Produce application/pdf
// @Param id path int true "Payment ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/receipt [get]
func (h *PaymentHandler) Receipt(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payment id"))
		return
	}
	payload, filename, err := h.exports.PaymentReceipt(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/pdf", payload)
}

// ReceiptLink godoc
// @Summary Signed receipt download link
// @Description Return a short-lived token for downloading the archived receipt
// @Tags Payments
// @Produce json
// @Param id path int true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/receipt-link [get]
func (h *PaymentHandler) ReceiptLink(c *gin.Context) {
	if h.archive == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "receipt archive is disabled"))
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payment id"))
		return
	}
	token, expiresAt, err := h.archive.ReceiptLink(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"url":        "/files/" + token,
		"expires_at": expiresAt,
	}, nil)
}
