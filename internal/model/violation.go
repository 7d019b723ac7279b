package model

import (
	"time"
)

// ViolationKind enumerates detectable integrity violations during a
// proctored session.
type ViolationKind string

const (
	ViolationTabSwitch      ViolationKind = "tab_switch"
	ViolationFullscreenExit ViolationKind = "fullscreen_exit"
	ViolationPasteAbuse     ViolationKind = "paste_abuse"
)

// Reason returns the human-readable reason fragment used in warning and
// disqualification messages.
func (k ViolationKind) Reason() string {
	switch k {
	case ViolationTabSwitch:
		return "switching tabs"
	case ViolationFullscreenExit:
		return "exiting fullscreen"
	case ViolationPasteAbuse:
		return "excessive pasting"
	default:
		return "a rule violation"
	}
}

// Valid reports whether the kind is one of the known violations.
func (k ViolationKind) Valid() bool {
	switch k {
	case ViolationTabSwitch, ViolationFullscreenExit, ViolationPasteAbuse:
		return true
	}
	return false
}

// Violation is a tagged violation event. Ephemeral: it is input to the
// infraction policy and a telemetry side effect, never a stored entity.
type Violation struct {
	Kind      ViolationKind `json:"kind"`
	Timestamp time.Time     `json:"timestamp"`
}

// SnapshotLogRequest is the payload for the periodic monitoring snapshot
// log. Fire-and-forget on the server side.
type SnapshotLogRequest struct {
	ProblemID string `json:"problemId" binding:"omitempty,max=64"`
	ContestID string `json:"contestId" binding:"required,uuid"`
	ImageURL  string `json:"imageUrl" binding:"required,max=2048"`
}

// InfractionLogRequest is the payload for practice-mode infraction logging.
type InfractionLogRequest struct {
	ProblemID string        `json:"problemId" binding:"required,max=64"`
	Kind      ViolationKind `json:"kind" binding:"required"`
}
