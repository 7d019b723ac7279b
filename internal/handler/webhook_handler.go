package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-backend/internal/contest"
	"github.com/codearena/codearena-backend/internal/response"
	"github.com/codearena/codearena-backend/internal/service"
	"github.com/codearena/codearena-backend/internal/validator"
)

// judgeResultRequest is the judge's callback payload for an accepted
// submission.
type judgeResultRequest struct {
	ContestID string `json:"contest_id" binding:"required,uuid"`
	UserID    string `json:"user_id" binding:"required,max=64"`
	ProblemID string `json:"problem_id" binding:"required,uuid"`
	Verdict   string `json:"verdict" binding:"required,oneof=accepted rejected"`
}

// WebhookHandler receives callbacks from the external judge.
type WebhookHandler struct {
	contestService *service.ContestService
	webhookToken   string
	log            zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(contestService *service.ContestService, webhookToken string, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		contestService: contestService,
		webhookToken:   webhookToken,
		log:            log.With().Str("component", "webhook_handler").Logger(),
	}
}

// JudgeResult godoc
// POST /api/v1/webhooks/judge
// Records an accepted submission and awards points. Authenticated by a
// shared token, not a user JWT — the judge is a machine peer.
func (h *WebhookHandler) JudgeResult(c *gin.Context) {
	token := c.GetHeader("X-Webhook-Token")
	if h.webhookToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookToken)) != 1 {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	var req judgeResultRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	// Only accepted verdicts change state. Rejections are acknowledged
	// so the judge does not retry them.
	if req.Verdict != "accepted" {
		response.Success(c, http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	contestID, _ := uuid.Parse(req.ContestID)
	problemID, _ := uuid.Parse(req.ProblemID)

	newSolve, err := h.contestService.MarkSolved(c.Request.Context(), contestID, req.UserID, problemID)
	if err != nil {
		switch {
		case errors.Is(err, contest.ErrContestNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrContestNotFound)
		case errors.Is(err, contest.ErrNotParticipant):
			response.Fail(c, http.StatusConflict, response.ErrNotParticipant)
		case errors.Is(err, service.ErrProblemNotInContest):
			response.Fail(c, http.StatusConflict, response.ErrProblemNotInContest)
		default:
			h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Judge result processing failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	h.log.Info().
		Str("user_id", req.UserID).
		Str("problem_id", req.ProblemID).
		Bool("new_solve", newSolve).
		Msg("Judge result recorded")

	response.Success(c, http.StatusOK, gin.H{"status": "recorded", "new_solve": newSolve})
}
