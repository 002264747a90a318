package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-api/internal/service"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
	"github.com/noah-isme/institute-api/pkg/response"
)

// EvaluationHandler exposes grading endpoints.
type EvaluationHandler struct {
	evaluations *service.EvaluationService
}

// NewEvaluationHandler constructs EvaluationHandler.
func NewEvaluationHandler(evaluations *service.EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{evaluations: evaluations}
}

// SubmitGrade godoc
// @Summary Record a grade for an evaluation component
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.SubmitGradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/grades [post]
func (h *EvaluationHandler) SubmitGrade(c *gin.Context) {
	var req service.SubmitGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.evaluations.SubmitGrade(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// FinalGrade godoc
// @Summary Compute the weighted final grade for an enrollment
// @Description Returns a partial report while components are missing;
// @Description once complete it includes the final score and verdict.
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/final-grade [get]
func (h *EvaluationHandler) FinalGrade(c *gin.Context) {
	report, err := h.evaluations.ComputeFinalGrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// FinalizeGrade godoc
// @Summary Finalize the grade, approving passing completed courses
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/final-grade [post]
func (h *EvaluationHandler) FinalizeGrade(c *gin.Context) {
	report, err := h.evaluations.FinalizeGrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// WeightsCheck godoc
// @Summary Check whether an evaluation type's weights sum to 100
// @Tags Grades
// @Produce json
// @Param id path string true "Evaluation type ID"
// @Success 200 {object} response.Envelope
// @Router /evaluation-types/{id}/weights-check [get]
func (h *EvaluationHandler) WeightsCheck(c *gin.Context) {
	check, err := h.evaluations.CheckWeights(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, check, nil)
}
