package websocket

import "github.com/codearena/codearena-backend/internal/model"

// Actions (Client → Server)

type Action string

const (
	ActionStart          Action = "start"
	ActionVisibility     Action = "visibility"
	ActionFullscreen     Action = "fullscreen"
	ActionFullscreenDeny Action = "fullscreen_denied"
	ActionPaste          Action = "paste"
	ActionSnapshot       Action = "snapshot"
	ActionSolved         Action = "solved"
	ActionSubmitContest  Action = "submit_contest"
	ActionPing           Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// StartRequest activates proctoring for the connection. ContestID is
// empty for practice sessions.
type StartRequest struct {
	Action    Action `json:"action"`
	ContestID string `json:"contest_id,omitempty"`
	ProblemID string `json:"problem_id"`
}

// VisibilityRequest reports a browser tab visibility change.
type VisibilityRequest struct {
	Action Action `json:"action"`
	Hidden bool   `json:"hidden"`
}

// FullscreenRequest reports a fullscreen state change.
type FullscreenRequest struct {
	Action Action `json:"action"`
	Active bool   `json:"active"`
}

// PasteRequest reports a paste of the given text into the editor.
type PasteRequest struct {
	Action Action `json:"action"`
	Text   string `json:"text"`
}

// SnapshotRequest carries the uploaded webcam frame URL in reply to a
// snapshot_request event.
type SnapshotRequest struct {
	Action   Action `json:"action"`
	ImageURL string `json:"image_url"`
}

// SolvedRequest notifies the session that the judge accepted a
// submission for the given problem.
type SolvedRequest struct {
	Action    Action `json:"action"`
	ProblemID string `json:"problem_id"`
}

// SubmitContestRequest ends the contest for this participant.
type SubmitContestRequest struct {
	Action Action `json:"action"`
}

// Events (Server → Client)

type Event string

const (
	EventState           Event = "state"
	EventWarning         Event = "warning"
	EventDisqualified    Event = "disqualified"
	EventCountdown       Event = "countdown"
	EventLeaderboard     Event = "leaderboard"
	EventNavigate        Event = "navigate"
	EventResults         Event = "results"
	EventSnapshotRequest Event = "snapshot_request"
	EventSubmitted       Event = "submitted"
	EventError           Event = "error"
	EventPong            Event = "pong"
)

// StateResponse pushes the full proctoring state after a change.
type StateResponse struct {
	Event Event       `json:"event"`
	State interface{} `json:"state"`
}

// WarningResponse carries the warning banner text.
type WarningResponse struct {
	Event   Event  `json:"event"`
	Message string `json:"message"`
}

// DisqualifiedResponse is terminal for the session.
type DisqualifiedResponse struct {
	Event   Event  `json:"event"`
	Message string `json:"message"`
}

// CountdownResponse is pushed every tick while the contest runs.
type CountdownResponse struct {
	Event     Event  `json:"event"`
	Remaining int64  `json:"remaining_seconds"`
	Formatted string `json:"formatted"`
}

// LeaderboardResponse pushes the current standings.
type LeaderboardResponse struct {
	Event   Event                    `json:"event"`
	Entries []model.LeaderboardEntry `json:"entries"`
}

// NavigateResponse directs the client to the next unsolved problem.
type NavigateResponse struct {
	Event     Event  `json:"event"`
	ProblemID string `json:"problem_id"`
}

// ResultsResponse directs the client to the results page.
type ResultsResponse struct {
	Event Event `json:"event"`
}

// SnapshotRequestResponse asks the client to capture a webcam frame.
type SnapshotRequestResponse struct {
	Event Event `json:"event"`
}

// SubmittedResponse confirms contest submission. Forced is true when
// the server submitted on the participant's behalf at time expiry.
type SubmittedResponse struct {
	Event  Event `json:"event"`
	Forced bool  `json:"forced"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
