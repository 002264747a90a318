package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-api/internal/middleware"
	"github.com/noah-isme/institute-api/internal/service"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
	"github.com/noah-isme/institute-api/pkg/response"
)

// RateHandler exposes exchange rate endpoints.
type RateHandler struct {
	rates *service.RateService
}

// NewRateHandler constructs RateHandler.
func NewRateHandler(rates *service.RateService) *RateHandler {
	return &RateHandler{rates: rates}
}

// Current godoc
// @Summary Get the current exchange rate
// @Tags Rates
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rates/current [get]
func (h *RateHandler) Current(c *gin.Context) {
	rate, err := h.rates.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rate, nil)
}

// Set godoc
// @Summary Publish a new exchange rate
// @Description The new rate supersedes the current one; the previous row
// @Description is closed at the moment the new rate becomes valid.
// @Tags Rates
// @Accept json
// @Produce json
// @Param payload body service.SetRateRequest true "Rate payload"
// @Success 201 {object} response.Envelope
// @Router /rates [post]
func (h *RateHandler) Set(c *gin.Context) {
	var req service.SetRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims, ok := middleware.CurrentUser(c); ok {
		req.CreatedBy = claims.UserID
	}
	rate, err := h.rates.Set(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rate)
}

// History godoc
// @Summary List recent exchange rates, newest first
// @Tags Rates
// @Produce json
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Envelope
// @Router /rates/history [get]
func (h *RateHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	rates, err := h.rates.History(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rates, nil)
}
