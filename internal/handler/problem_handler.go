package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codearena/codearena-backend/internal/contest"
	"github.com/codearena/codearena-backend/internal/response"
	"github.com/codearena/codearena-backend/internal/service"
)

// ProblemHandler serves problem statements.
type ProblemHandler struct {
	contestService *service.ContestService
}

// NewProblemHandler creates a new ProblemHandler.
func NewProblemHandler(contestService *service.ContestService) *ProblemHandler {
	return &ProblemHandler{contestService: contestService}
}

// GetProblem godoc
// GET /api/v1/problems/:short_id
// Returns a problem statement by its URL-friendly short ID.
func (h *ProblemHandler) GetProblem(c *gin.Context) {
	shortID := c.Param("short_id")
	if shortID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	problem, err := h.contestService.GetProblem(c.Request.Context(), shortID)
	if err != nil {
		if errors.Is(err, contest.ErrProblemNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrProblemNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"problem": problem})
}
