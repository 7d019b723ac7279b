package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codearena/codearena-backend/internal/contest"
	"github.com/codearena/codearena-backend/internal/middleware"
	"github.com/codearena/codearena-backend/internal/model"
	"github.com/codearena/codearena-backend/internal/response"
	"github.com/codearena/codearena-backend/internal/service"
	"github.com/codearena/codearena-backend/internal/validator"
)

// ContestHandler handles contest lifecycle endpoints.
type ContestHandler struct {
	contestService *service.ContestService
}

// NewContestHandler creates a new ContestHandler.
func NewContestHandler(contestService *service.ContestService) *ContestHandler {
	return &ContestHandler{contestService: contestService}
}

// GetContest godoc
// GET /api/v1/contests/:contest_id
// Returns the authoritative contest document.
func (h *ContestHandler) GetContest(c *gin.Context) {
	contestID, err := uuid.Parse(c.Param("contest_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	doc, err := h.contestService.GetContest(c.Request.Context(), contestID)
	if err != nil {
		if errors.Is(err, contest.ErrContestNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrContestNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"contest": doc})
}

// JoinContest godoc
// POST /api/v1/contests/:contest_id/join
// Validates the entry code and registers the caller as a participant.
func (h *ContestHandler) JoinContest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	contestID, err := uuid.Parse(c.Param("contest_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.JoinContestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = claims.DisplayName
	}

	doc, err := h.contestService.Join(c.Request.Context(), contestID, claims.UserID, displayName, req.EntryCode)
	if err != nil {
		switch {
		case errors.Is(err, contest.ErrContestNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrContestNotFound)
		case errors.Is(err, service.ErrInvalidEntryCode):
			response.Fail(c, http.StatusForbidden, response.ErrInvalidEntryCode)
		case errors.Is(err, service.ErrContestNotJoinable):
			response.Fail(c, http.StatusConflict, response.ErrContestNotJoinable)
		case errors.Is(err, service.ErrNoProblems):
			response.Fail(c, http.StatusConflict, response.ErrNoProblems)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"contest": doc})
}

// SubmitContest godoc
// POST /api/v1/contests/:contest_id/submit
// Ends the contest for the caller. Idempotent fallback for clients that
// lost their proctor stream.
func (h *ContestHandler) SubmitContest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	contestID, err := uuid.Parse(c.Param("contest_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.contestService.SubmitContest(c.Request.Context(), contestID, claims.UserID); err != nil {
		switch {
		case errors.Is(err, contest.ErrContestNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrContestNotFound)
		case errors.Is(err, contest.ErrNotParticipant):
			response.Fail(c, http.StatusForbidden, response.ErrNotParticipant)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "submitted"})
}

// GetLeaderboard godoc
// GET /api/v1/contests/:contest_id/leaderboard
// Returns the ranked standings. Served from a short-lived cache.
func (h *ContestHandler) GetLeaderboard(c *gin.Context) {
	contestID, err := uuid.Parse(c.Param("contest_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	entries, err := h.contestService.Leaderboard(c.Request.Context(), contestID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"leaderboard": entries})
}

// GetTimeRemaining godoc
// GET /api/v1/contests/:contest_id/remaining
// Returns the countdown in seconds and HH:MM:SS form. Polling fallback
// for clients without a live proctor stream.
func (h *ContestHandler) GetTimeRemaining(c *gin.Context) {
	contestID, err := uuid.Parse(c.Param("contest_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	remaining, err := h.contestService.TimeRemaining(c.Request.Context(), contestID)
	if err != nil {
		if errors.Is(err, contest.ErrContestNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrContestNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"remaining_seconds": int64(remaining.Seconds()),
		"formatted":         contest.FormatCountdown(remaining),
	})
}

// DisqualifyParticipant godoc
// POST /api/v1/host/contests/:contest_id/participants/:user_id/disqualify
// Host action: removes a participant from ranked play.
func (h *ContestHandler) DisqualifyParticipant(c *gin.Context) {
	contestID, err := uuid.Parse(c.Param("contest_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	userID := c.Param("user_id")
	if userID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.contestService.Disqualify(c.Request.Context(), contestID, userID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "disqualified"})
}
