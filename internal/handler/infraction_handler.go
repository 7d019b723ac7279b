package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-backend/internal/middleware"
	"github.com/codearena/codearena-backend/internal/model"
	"github.com/codearena/codearena-backend/internal/response"
	"github.com/codearena/codearena-backend/internal/service"
	"github.com/codearena/codearena-backend/internal/validator"
)

// InfractionHandler is the REST fallback for proctoring telemetry from
// clients without a live proctor stream. Everything here is
// fire-and-forget: the client never waits on persistence.
type InfractionHandler struct {
	proctorService *service.ProctorService
	log            zerolog.Logger
}

// NewInfractionHandler creates a new InfractionHandler.
func NewInfractionHandler(proctorService *service.ProctorService, log zerolog.Logger) *InfractionHandler {
	return &InfractionHandler{
		proctorService: proctorService,
		log:            log.With().Str("component", "infraction_handler").Logger(),
	}
}

// LogSnapshot godoc
// POST /api/v1/proctor/snapshots
// Accepts a monitoring snapshot URL and queues it for persistence.
func (h *InfractionHandler) LogSnapshot(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SnapshotLogRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	contestID, err := uuid.Parse(req.ContestID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.proctorService.LogSnapshot(c.Request.Context(), contestID, claims.UserID, req.ProblemID, req.ImageURL); err != nil {
		h.log.Error().Err(err).Str("user_id", claims.UserID).Msg("Snapshot enqueue failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"status": "accepted"})
}

// LogPracticeInfraction godoc
// POST /api/v1/proctor/infractions
// Records a practice-mode infraction. Practice enforcement is local to
// the client; the server only keeps a telemetry trace in its logs.
func (h *InfractionHandler) LogPracticeInfraction(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.InfractionLogRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if !req.Kind.Valid() {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	h.log.Info().
		Str("user_id", claims.UserID).
		Str("problem_id", req.ProblemID).
		Str("kind", string(req.Kind)).
		Msg("Practice infraction reported")

	response.Success(c, http.StatusAccepted, gin.H{"status": "accepted"})
}
