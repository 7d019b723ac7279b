package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-backend/internal/config"
	"github.com/codearena/codearena-backend/internal/contest"
	"github.com/codearena/codearena-backend/internal/middleware"
	"github.com/codearena/codearena-backend/internal/model"
	"github.com/codearena/codearena-backend/internal/proctor"
	"github.com/codearena/codearena-backend/internal/service"
	ws "github.com/codearena/codearena-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow-list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs the proctor stream: one WebSocket connection per
// participant, carrying raw platform events in and proctoring state,
// countdown, leaderboard and navigation events out.
type WSHandler struct {
	cfg            *config.Config
	contestService *service.ContestService
	proctorService *service.ProctorService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(cfg *config.Config, contestService *service.ContestService, proctorService *service.ProctorService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		cfg:            cfg,
		contestService: contestService,
		proctorService: proctorService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(cfg.AllowedOrigins),
	}
}

// stream holds the per-connection machinery created by the start action.
type stream struct {
	session     *proctor.Session
	coordinator *contest.Coordinator
	snapshots   *streamSnapshotSource
	cancel      context.CancelFunc
}

// ProctorStream godoc
// WS /ws/v1/proctor/stream
// Upgrades to WebSocket for real-time proctoring and contest coordination.
func (h *WSHandler) ProctorStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewSafeConn(rawConn)
	defer conn.Close()

	wsLog := h.log.With().Str("user_id", claims.UserID).Logger()
	wsLog.Info().Msg("Participant connected")

	var st *stream
	defer func() {
		if st != nil {
			st.session.Stop()
			st.cancel()
		}
	}()

	for {
		var raw json.RawMessage
		if err := conn.ReadJSON(&raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			conn.WriteError("malformed message")
			continue
		}

		switch envelope.Action {
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})

		case ws.ActionStart:
			if st != nil {
				conn.WriteError("session already started")
				continue
			}
			st, err = h.handleStart(conn, wsLog, claims, raw)
			if err != nil {
				conn.WriteError(err.Error())
			}

		case ws.ActionVisibility:
			if st == nil {
				conn.WriteError("session not started")
				continue
			}
			var msg ws.VisibilityRequest
			if err := json.Unmarshal(raw, &msg); err != nil {
				conn.WriteError("malformed message")
				continue
			}
			st.session.ReportVisibility(msg.Hidden)

		case ws.ActionFullscreen:
			if st == nil {
				conn.WriteError("session not started")
				continue
			}
			var msg ws.FullscreenRequest
			if err := json.Unmarshal(raw, &msg); err != nil {
				conn.WriteError("malformed message")
				continue
			}
			st.session.ReportFullscreen(msg.Active)

		case ws.ActionFullscreenDeny:
			if st == nil {
				conn.WriteError("session not started")
				continue
			}
			st.session.FullscreenDenied("request rejected by the browser")

		case ws.ActionPaste:
			if st == nil {
				conn.WriteError("session not started")
				continue
			}
			var msg ws.PasteRequest
			if err := json.Unmarshal(raw, &msg); err != nil {
				conn.WriteError("malformed message")
				continue
			}
			st.session.HandlePaste(msg.Text)

		case ws.ActionSnapshot:
			if st == nil || st.snapshots == nil {
				continue
			}
			var msg ws.SnapshotRequest
			if err := json.Unmarshal(raw, &msg); err != nil {
				conn.WriteError("malformed message")
				continue
			}
			st.snapshots.deliver(msg.ImageURL)

		case ws.ActionSolved:
			if st == nil || st.coordinator == nil {
				conn.WriteError("no contest session")
				continue
			}
			var msg ws.SolvedRequest
			if err := json.Unmarshal(raw, &msg); err != nil {
				conn.WriteError("malformed message")
				continue
			}
			problemID, err := uuid.Parse(msg.ProblemID)
			if err != nil {
				conn.WriteError("invalid problem_id format")
				continue
			}
			if err := st.coordinator.OnSubmissionAccepted(c.Request.Context(), problemID); err != nil {
				wsLog.Error().Err(err).Msg("Post-submission navigation failed")
			}

		case ws.ActionSubmitContest:
			if st == nil || st.coordinator == nil {
				conn.WriteError("no contest session")
				continue
			}
			if err := st.coordinator.SubmitContest(c.Request.Context()); err != nil {
				wsLog.Error().Err(err).Msg("Contest submission failed")
				conn.WriteError("submission failed, please retry")
			}

		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(envelope.Action))
		}
	}
}

// handleStart builds the proctoring session (and, in contest mode, the
// coordinator) for this connection.
func (h *WSHandler) handleStart(conn *ws.SafeConn, wsLog zerolog.Logger, claims *service.Claims, raw json.RawMessage) (*stream, error) {
	var msg ws.StartRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.New("malformed start message")
	}
	if msg.ProblemID == "" {
		return nil, errors.New("problem_id is required")
	}

	contestID := uuid.Nil
	if msg.ContestID != "" {
		var err error
		contestID, err = uuid.Parse(msg.ContestID)
		if err != nil {
			return nil, errors.New("invalid contest_id format")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	var snapshots *streamSnapshotSource
	var source proctor.SnapshotSource
	if contestID != uuid.Nil {
		snapshots = &streamSnapshotSource{conn: conn}
		source = snapshots
	}

	session := proctor.NewSession(
		proctor.Config{
			MaxInfractions:   h.cfg.MaxInfractions,
			SnapshotInterval: h.cfg.SnapshotInterval,
			PasteThreshold:   h.cfg.PasteThreshold,
		},
		h.proctorService,
		source,
		claims.UserID,
		msg.ProblemID,
		contestID,
		wsLog,
	)
	session.OnChange(func(state proctor.State) {
		conn.WriteTyped(ws.StateResponse{Event: ws.EventState, State: state})
		if state.Disqualified {
			conn.WriteTyped(ws.DisqualifiedResponse{Event: ws.EventDisqualified, Message: state.WarningText})
			// The session is over: stop the countdown and leaderboard
			// tickers too, not just the proctoring timers.
			cancel()
		} else if state.WarningText != "" {
			conn.WriteTyped(ws.WarningResponse{Event: ws.EventWarning, Message: state.WarningText})
		}
	})

	st := &stream{session: session, snapshots: snapshots, cancel: cancel}

	if contestID != uuid.Nil {
		coordinator := contest.NewCoordinator(
			h.contestService,
			&streamSink{conn: conn},
			contestID,
			claims.UserID,
			contest.Config{LeaderboardRefresh: h.cfg.LeaderboardRefresh},
			wsLog,
		)

		doc, err := coordinator.LoadContest(ctx)
		if err != nil {
			cancel()
			if errors.Is(err, contest.ErrContestNotFound) {
				return nil, errors.New("contest not found")
			}
			return nil, errors.New("contest load failed")
		}
		participant := doc.FindParticipant(claims.UserID)
		if participant == nil {
			cancel()
			return nil, errors.New("you are not a participant of this contest")
		}
		if participant.Disqualified {
			cancel()
			return nil, errors.New("you have been disqualified from this contest")
		}

		st.coordinator = coordinator
		go coordinator.Run(ctx)
	}

	session.Start(ctx)
	wsLog.Info().
		Str("problem_id", msg.ProblemID).
		Bool("contest", contestID != uuid.Nil).
		Msg("Proctoring session started")
	return st, nil
}

// streamSink forwards coordinator events to the WebSocket client.
type streamSink struct {
	conn *ws.SafeConn
}

func (s *streamSink) Countdown(remaining time.Duration, formatted string) {
	s.conn.WriteTyped(ws.CountdownResponse{
		Event:     ws.EventCountdown,
		Remaining: int64(remaining.Seconds()),
		Formatted: formatted,
	})
}

func (s *streamSink) Leaderboard(entries []model.LeaderboardEntry) {
	s.conn.WriteTyped(ws.LeaderboardResponse{Event: ws.EventLeaderboard, Entries: entries})
}

func (s *streamSink) NavigateProblem(p model.ProblemRef) {
	s.conn.WriteTyped(ws.NavigateResponse{Event: ws.EventNavigate, ProblemID: p.ShortID})
}

func (s *streamSink) NavigateResults() {
	s.conn.WriteTyped(ws.ResultsResponse{Event: ws.EventResults})
}

func (s *streamSink) ContestSubmitted(forced bool) {
	s.conn.WriteTyped(ws.SubmittedResponse{Event: ws.EventSubmitted, Forced: forced})
}

func (s *streamSink) Warn(message string) {
	s.conn.WriteTyped(ws.WarningResponse{Event: ws.EventWarning, Message: message})
}

// streamSnapshotSource round-trips a snapshot request to the client's
// webcam: Capture asks the client for a frame and blocks until the
// uploaded image URL comes back on the same connection.
type streamSnapshotSource struct {
	conn    *ws.SafeConn
	mu      sync.Mutex
	pending chan string
}

func (s *streamSnapshotSource) Capture(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return "", errors.New("capture already in flight")
	}
	ch := make(chan string, 1)
	s.pending = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
	}()

	if err := s.conn.WriteTyped(ws.SnapshotRequestResponse{Event: ws.EventSnapshotRequest}); err != nil {
		return "", err
	}

	select {
	case url := <-ch:
		return url, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// deliver hands a client-uploaded frame URL to the waiting Capture call.
// Unsolicited frames are dropped.
func (s *streamSnapshotSource) deliver(url string) {
	s.mu.Lock()
	ch := s.pending
	s.mu.Unlock()

	if ch != nil {
		select {
		case ch <- url:
		default:
		}
	}
}
