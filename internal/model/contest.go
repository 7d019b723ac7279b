package model

import (
	"time"

	"github.com/google/uuid"
)

// ContestStatus enumerates the lifecycle states of a contest.
type ContestStatus string

const (
	ContestStatusUpcoming ContestStatus = "upcoming"
	ContestStatusLive     ContestStatus = "live"
	ContestStatusFinished ContestStatus = "finished"
)

// ProblemRef is a contest problem as listed in the contest document.
// Problem order is fixed at contest creation and drives navigation.
type ProblemRef struct {
	ID      uuid.UUID `json:"_id"`
	ShortID string    `json:"id"`
	Title   string    `json:"title"`
}

// SolvedProblem is one entry of a participant's solved set.
type SolvedProblem struct {
	ProblemID uuid.UUID  `json:"problemId"`
	SolvedAt  *time.Time `json:"solvedAt,omitempty"`
}

// Participant is a user registered in a contest.
type Participant struct {
	UserID         string          `json:"userId"`
	DisplayName    string          `json:"displayName"`
	Score          int             `json:"score"`
	ProblemsSolved []SolvedProblem `json:"problemsSolved"`
	Disqualified   bool            `json:"disqualified"`
	Submitted      bool            `json:"submitted"`
}

// SolvedSet returns the participant's solved problem IDs as a lookup set.
func (p *Participant) SolvedSet() map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(p.ProblemsSolved))
	for _, s := range p.ProblemsSolved {
		set[s.ProblemID] = struct{}{}
	}
	return set
}

// Contest is the authoritative contest document. The database copy is the
// single source of truth; clients always reconcile against a fresh fetch
// after any state-changing action.
type Contest struct {
	ContestID       uuid.UUID     `json:"contestId"`
	Name            string        `json:"name"`
	Status          ContestStatus `json:"status"`
	StartTime       *time.Time    `json:"startTime,omitempty"`
	DurationMinutes int           `json:"duration"`
	Problems        []ProblemRef  `json:"problems"`
	Participants    []Participant `json:"participants"`
}

// EndTime derives the contest deadline from start time and duration.
// Returns the zero time when the contest has not started.
func (c *Contest) EndTime() time.Time {
	if c.StartTime == nil {
		return time.Time{}
	}
	return c.StartTime.Add(time.Duration(c.DurationMinutes) * time.Minute)
}

// TimeRemaining returns the milliseconds until the contest deadline at
// the given instant, clamped at 0. Derived, never stored.
func (c *Contest) TimeRemaining(now time.Time) time.Duration {
	if c.Status != ContestStatusLive || c.StartTime == nil {
		return 0
	}
	remaining := c.EndTime().Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FindParticipant returns the participant entry for the given user, or nil.
func (c *Contest) FindParticipant(userID string) *Participant {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return &c.Participants[i]
		}
	}
	return nil
}

// UnsolvedProblems returns the contest problems the participant has not
// solved yet, preserving contest-defined order.
func (c *Contest) UnsolvedProblems(userID string) []ProblemRef {
	solved := map[uuid.UUID]struct{}{}
	if p := c.FindParticipant(userID); p != nil {
		solved = p.SolvedSet()
	}

	var unsolved []ProblemRef
	for _, pr := range c.Problems {
		if _, ok := solved[pr.ID]; !ok {
			unsolved = append(unsolved, pr)
		}
	}
	return unsolved
}

// LeaderboardEntry is one ranked row of a contest leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// JoinContestRequest is the payload for a participant joining a contest.
type JoinContestRequest struct {
	EntryCode   string `json:"entry_code" binding:"required,min=4,max=20"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=64"`
}
