package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-backend/internal/config"
	"github.com/codearena/codearena-backend/internal/middleware"
	"github.com/codearena/codearena-backend/internal/model"
	"github.com/codearena/codearena-backend/internal/response"
	"github.com/codearena/codearena-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams live proctoring data to host dashboards over SSE.
type MonitorHandler struct {
	rdb            *redis.Client
	contestService *service.ContestService
	monitorService *service.MonitorService
	log            zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	rdb *redis.Client,
	contestService *service.ContestService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		contestService: contestService,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorContestSSE godoc
// GET /api/v1/host/contests/:contest_id/monitor
// Streams an initial snapshot, then live monitor events from Redis
// Pub/Sub plus periodic progress refreshes.
func (h *MonitorHandler) MonitorContestSSE(c *gin.Context) {
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

	doc, err := h.contestService.GetContest(c.Request.Context(), contestID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrContestNotFound)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendInitialSnapshot(c, reqCtx, contestID, doc)

	channelName := config.CacheKey.ContestMonitorChannel(contestID.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Str("contest_id", contestID.String()).Msg("Host attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("contest_id", contestID.String()).Msg("Host disconnected from live monitor SSE")
			return

		case msg := <-ch:
			// Forward the raw monitor event JSON directly.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-refreshTicker.C:
			h.sendRefresh(c, reqCtx, contestID)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendInitialSnapshot writes the first SSE event: the participant roster
// decorated with solved/infraction/snapshot counters.
func (h *MonitorHandler) sendInitialSnapshot(c *gin.Context, ctx context.Context, contestID uuid.UUID, doc *model.Contest) {
	totalProblems := len(doc.Problems)

	participantsSnapshot := make([]map[string]interface{}, 0, len(doc.Participants))
	totalDisqualified := 0
	totalSubmitted := 0

	for _, p := range doc.Participants {
		if p.Disqualified {
			totalDisqualified++
		}
		if p.Submitted {
			totalSubmitted++
		}
		participantsSnapshot = append(participantsSnapshot, map[string]interface{}{
			"user_id":          p.UserID,
			"display_name":     p.DisplayName,
			"score":            p.Score,
			"disqualified":     p.Disqualified,
			"submitted":        p.Submitted,
			"solved_count":     int64(len(p.ProblemsSolved)),
			"infraction_count": int64(0),
			"snapshot_count":   int64(0),
		})
	}

	// Fetch counters with a timeout so a slow query doesn't block the connection.
	var totalInfractions int64
	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	if progress, err := h.monitorService.GetParticipantProgress(fetchCtx, contestID); err == nil {
		totalInfractions = progress.TotalInfractions
		for i, p := range participantsSnapshot {
			uid, ok := p["user_id"].(string)
			if !ok {
				continue
			}
			if count, found := progress.InfractionCounts[uid]; found {
				participantsSnapshot[i]["infraction_count"] = count
			}
			if count, found := progress.SnapshotCounts[uid]; found {
				participantsSnapshot[i]["snapshot_count"] = count
			}
		}
	}

	c.SSEvent("message", map[string]interface{}{
		"type": "snapshot",
		"data": map[string]interface{}{
			"contest": map[string]interface{}{
				"id":             contestID.String(),
				"name":           doc.Name,
				"status":         doc.Status,
				"duration":       doc.DurationMinutes,
				"total_problems": totalProblems,
			},
			"stats": map[string]interface{}{
				"total_joined":       len(doc.Participants),
				"total_submitted":    totalSubmitted,
				"total_disqualified": totalDisqualified,
				"total_infractions":  totalInfractions,
			},
			"participants": participantsSnapshot,
		},
	})
	c.Writer.Flush()
}

// sendRefresh polls for current progress and sends a compact refresh event.
func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, contestID uuid.UUID) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	progress, err := h.monitorService.GetParticipantProgress(ctx, contestID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to fetch participant progress for refresh")
		return
	}

	progressData := make([]map[string]interface{}, 0, len(progress.SolvedCounts)+len(progress.InfractionCounts))

	for uid, solved := range progress.SolvedCounts {
		progressData = append(progressData, map[string]interface{}{
			"user_id":          uid,
			"solved_count":     solved,
			"infraction_count": progress.InfractionCounts[uid], // 0 if missing
			"snapshot_count":   progress.SnapshotCounts[uid],
		})
		delete(progress.InfractionCounts, uid) // mark as handled
	}

	// Remaining infraction-only participants (no solves yet).
	for uid, infractions := range progress.InfractionCounts {
		progressData = append(progressData, map[string]interface{}{
			"user_id":          uid,
			"solved_count":     int64(0),
			"infraction_count": infractions,
			"snapshot_count":   progress.SnapshotCounts[uid],
		})
	}

	c.SSEvent("message", map[string]interface{}{
		"type":              "refresh",
		"total_infractions": progress.TotalInfractions,
		"participants":      progressData,
	})
	c.Writer.Flush()
}
