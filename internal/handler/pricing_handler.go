package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-api/internal/models"
	"github.com/noah-isme/institute-api/internal/service"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
	"github.com/noah-isme/institute-api/pkg/response"
)

// PricingHandler exposes price resolution endpoints.
type PricingHandler struct {
	pricing  *service.PricingService
	students *service.StudentService
}

// NewPricingHandler constructs PricingHandler.
func NewPricingHandler(pricing *service.PricingService, students *service.StudentService) *PricingHandler {
	return &PricingHandler{pricing: pricing, students: students}
}

// Resolve godoc
// @Summary Resolve the price for a fee kind and category
// @Description When student_id is given the quote applies the student's
// @Description role rule and scholarship discount.
// @Tags Pricing
// @Produce json
// @Param fee_kind query string true "REGISTRATION or RECURRING"
// @Param category_id query string true "Pricing category"
// @Param student_id query string false "Student to quote for"
// @Success 200 {object} response.Envelope
// @Router /pricing/resolve [get]
func (h *PricingHandler) Resolve(c *gin.Context) {
	feeKind := models.FeeKind(strings.ToUpper(c.Query("fee_kind")))
	if feeKind != models.FeeKindRegistration && feeKind != models.FeeKindRecurring {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "fee_kind must be REGISTRATION or RECURRING"))
		return
	}
	categoryID := c.Query("category_id")
	if categoryID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "category_id is required"))
		return
	}

	var student *models.Student
	if studentID := c.Query("student_id"); studentID != "" {
		found, err := h.students.Get(c.Request.Context(), studentID)
		if err != nil {
			response.Error(c, err)
			return
		}
		student = found
	}

	quote, err := h.pricing.Quote(c.Request.Context(), feeKind, categoryID, student)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quote, nil)
}

// Rules godoc
// @Summary List price rules
// @Tags Pricing
// @Produce json
// @Param fee_kind query string false "Filter by fee kind"
// @Param category_id query string false "Filter by category"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /pricing/rules [get]
func (h *PricingHandler) Rules(c *gin.Context) {
	var filter models.PriceRuleFilter
	filter.FeeKind = models.FeeKind(strings.ToUpper(c.Query("fee_kind")))
	filter.CategoryID = c.Query("category_id")
	if v, err := strconv.ParseBool(c.Query("active")); err == nil {
		filter.Active = &v
	}
	filter.Page, filter.PageSize = pageParams(c)

	rules, total, err := h.pricing.ListRules(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, pagination(filter.Page, filter.PageSize, total))
}
