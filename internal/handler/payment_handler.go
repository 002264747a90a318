package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-api/internal/models"
	"github.com/noah-isme/institute-api/internal/service"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
	"github.com/noah-isme/institute-api/pkg/response"
)

// PaymentHandler exposes payment and ledger endpoints.
type PaymentHandler struct {
	payments *service.PaymentService
	export   *service.ExportService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService, export *service.ExportService) *PaymentHandler {
	return &PaymentHandler{payments: payments, export: export}
}

// PayRegistration godoc
// @Summary Pay the registration fee for a pending enrollment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.PaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/payments/registration [post]
func (h *PaymentHandler) PayRegistration(c *gin.Context) {
	var req service.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.payments.PayRegistration(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Replayed {
		response.JSON(c, http.StatusOK, result, nil)
		return
	}
	response.Created(c, result)
}

// PayRecurring godoc
// @Summary Pay a recurring unit (monthly fee or installment)
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.RecurringPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/payments/recurring [post]
func (h *PaymentHandler) PayRecurring(c *gin.Context) {
	var req service.RecurringPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.payments.PayRecurring(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Replayed {
		response.JSON(c, http.StatusOK, result, nil)
		return
	}
	response.Created(c, result)
}

// Get godoc
// @Summary Get a payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.payments.Find(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Void godoc
// @Summary Void a completed payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body service.VoidPaymentRequest true "Void reason"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/void [post]
func (h *PaymentHandler) Void(c *gin.Context) {
	var req service.VoidPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.payments.Void(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param enrollment_id query string false "Filter by enrollment"
// @Param kind query string false "REGISTRATION or RECURRING"
// @Param state query string false "COMPLETED or VOIDED"
// @Param from query string false "Created from (YYYY-MM-DD)"
// @Param to query string false "Created to (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	var filter models.PaymentFilter
	filter.EnrollmentID = c.Query("enrollment_id")
	filter.Kind = models.PaymentKind(strings.ToUpper(c.Query("kind")))
	filter.State = models.PaymentState(strings.ToUpper(c.Query("state")))
	var err error
	if filter.From, filter.To, err = dateRange(c); err != nil {
		response.Error(c, err)
		return
	}
	filter.Page, filter.PageSize = pageParams(c)

	payments, total, err := h.payments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination(filter.Page, filter.PageSize, total))
}

// ExportLedger godoc
// @Summary Export completed payments as a CSV ledger
// @Tags Payments
// @Produce text/csv
// @Param from query string false "Created from (YYYY-MM-DD)"
// @Param to query string false "Created to (YYYY-MM-DD)"
// @Success 200 {string} string "CSV file"
// @Router /payments/export [get]
func (h *PaymentHandler) ExportLedger(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, filename, err := h.export.LedgerCSV(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}

// dateRange parses the optional from/to query parameters. The upper
// bound is exclusive and shifted by one day so a date range covers the
// whole final day.
func dateRange(c *gin.Context) (from, to *time.Time, err error) {
	if raw := c.Query("from"); raw != "" {
		parsed, parseErr := time.Parse("2006-01-02", raw)
		if parseErr != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "from must be formatted as YYYY-MM-DD")
		}
		from = &parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, parseErr := time.Parse("2006-01-02", raw)
		if parseErr != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "to must be formatted as YYYY-MM-DD")
		}
		end := parsed.AddDate(0, 0, 1)
		to = &end
	}
	return from, to, nil
}
