package contest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-backend/internal/model"
)

// Boundary errors surfaced to the UI as distinct terminal states, as
// opposed to transient network failures.
var (
	ErrContestNotFound = errors.New("contest not found")
	ErrProblemNotFound = errors.New("problem not found")
	ErrNotParticipant  = errors.New("user is not a contest participant")
)

// Store is the authoritative contest backend the coordinator talks to.
// The contest document is the single source of truth: the coordinator
// never mutates its cached copy, it re-fetches after every
// state-changing action.
type Store interface {
	GetContest(ctx context.Context, contestID uuid.UUID) (*model.Contest, error)
	GetProblem(ctx context.Context, shortID string) (*model.Problem, error)
	SubmitContest(ctx context.Context, contestID uuid.UUID, userID string) error
	Leaderboard(ctx context.Context, contestID uuid.UUID) ([]model.LeaderboardEntry, error)
}

// Sink receives coordinator events destined for the participant's UI.
type Sink interface {
	Countdown(remaining time.Duration, formatted string)
	Leaderboard(entries []model.LeaderboardEntry)
	NavigateProblem(p model.ProblemRef)
	NavigateResults()
	ContestSubmitted(forced bool)
	Warn(message string)
}

// LoadState tracks the current-problem pointer independently of the
// contest document refresh cadence: a slow problem fetch must not block
// the already-loaded sidebar and timer.
type LoadState string

const (
	LoadIdle    LoadState = "idle"
	LoadLoading LoadState = "loading"
	LoadLoaded  LoadState = "loaded"
	LoadError   LoadState = "error"
)

// Config holds the coordinator's timer cadences.
type Config struct {
	Tick               time.Duration // countdown recompute interval
	LeaderboardRefresh time.Duration
}

// Coordinator orchestrates one participant's contest session: contest
// and problem loading, the live countdown, navigation after accepted
// submissions and forced submission at expiry.
type Coordinator struct {
	store Store
	sink  Sink
	log   zerolog.Logger
	cfg   Config
	now   func() time.Time

	contestID uuid.UUID
	userID    string

	mu           sync.Mutex
	contest      *model.Contest
	problem      *model.Problem
	problemState LoadState
	submitted    bool
}

// NewCoordinator creates a coordinator for one participant in one contest.
func NewCoordinator(store Store, sink Sink, contestID uuid.UUID, userID string, cfg Config, log zerolog.Logger) *Coordinator {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.LeaderboardRefresh <= 0 {
		cfg.LeaderboardRefresh = 10 * time.Second
	}
	return &Coordinator{
		store:        store,
		sink:         sink,
		cfg:          cfg,
		now:          time.Now,
		contestID:    contestID,
		userID:       userID,
		problemState: LoadIdle,
		log: log.With().
			Str("component", "contest_coordinator").
			Str("contest_id", contestID.String()).
			Str("user_id", userID).
			Logger(),
	}
}

// SetNow overrides the clock. Test hook.
func (c *Coordinator) SetNow(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// LoadContest fetches the authoritative contest document. A missing
// contest is a blocking error state, not a partial UI.
func (c *Coordinator) LoadContest(ctx context.Context) (*model.Contest, error) {
	contest, err := c.store.GetContest(ctx, c.contestID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.contest = contest
	c.mu.Unlock()
	return contest, nil
}

// LoadProblem fetches the current problem independently of the contest
// document.
func (c *Coordinator) LoadProblem(ctx context.Context, shortID string) (*model.Problem, error) {
	c.mu.Lock()
	c.problemState = LoadLoading
	c.mu.Unlock()

	problem, err := c.store.GetProblem(ctx, shortID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.problemState = LoadError
		return nil, err
	}
	c.problem = problem
	c.problemState = LoadLoaded
	return problem, nil
}

// CurrentProblem returns the problem pointer and its loading state.
func (c *Coordinator) CurrentProblem() (*model.Problem, LoadState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.problem, c.problemState
}

// Contest returns the cached contest document.
func (c *Coordinator) Contest() *model.Contest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contest
}

// TimeRemaining derives the countdown from the cached contest document,
// clamped at zero.
func (c *Coordinator) TimeRemaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.contest == nil {
		return 0
	}
	return c.contest.TimeRemaining(c.now())
}

// OnSubmissionAccepted reacts to an accepted submission: re-fetch the
// contest (scoring is server-side), then navigate to the first unsolved
// problem in contest order, or to results when everything is solved.
// When the refresh itself fails the participant gets a manual-navigation
// fallback instead of a silent stall.
func (c *Coordinator) OnSubmissionAccepted(ctx context.Context, solvedProblemID uuid.UUID) error {
	fresh, err := c.store.GetContest(ctx, c.contestID)
	if err != nil {
		c.sink.Warn("Your solution was submitted, but refreshing contest progress failed. Please select the next problem manually.")
		return fmt.Errorf("refresh contest after submission: %w", err)
	}

	c.mu.Lock()
	c.contest = fresh
	c.mu.Unlock()

	unsolved := fresh.UnsolvedProblems(c.userID)
	if len(unsolved) > 0 {
		c.log.Info().
			Str("solved", solvedProblemID.String()).
			Str("next", unsolved[0].ShortID).
			Msg("Advancing to next unsolved problem")
		c.sink.NavigateProblem(unsolved[0])
		return nil
	}

	c.log.Info().Msg("All problems solved, moving to results")
	c.sink.NavigateResults()
	return nil
}

// SubmitContest ends the contest for this participant. Idempotent: a
// second call after success changes nothing. On failure the error is
// surfaced and the session stays active for retry.
func (c *Coordinator) SubmitContest(ctx context.Context) error {
	return c.submit(ctx, false)
}

func (c *Coordinator) submit(ctx context.Context, forced bool) error {
	c.mu.Lock()
	if c.submitted {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.store.SubmitContest(ctx, c.contestID, c.userID); err != nil {
		return fmt.Errorf("submit contest: %w", err)
	}

	c.mu.Lock()
	c.submitted = true
	c.mu.Unlock()

	c.log.Info().Bool("forced", forced).Msg("Contest submitted")
	c.sink.ContestSubmitted(forced)
	c.sink.NavigateResults()
	return nil
}

// Submitted reports whether this participant's contest run has ended.
func (c *Coordinator) Submitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitted
}

// Run drives the session timers until ctx is cancelled: one ticker
// recomputes the countdown every Tick and forces submission at expiry,
// a second one re-pushes the leaderboard. Cancelling ctx stops both —
// the countdown is the one timer that must never outlive the session.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()
	lbTicker := time.NewTicker(c.cfg.LeaderboardRefresh)
	defer lbTicker.Stop()

	c.pushLeaderboard(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-lbTicker.C:
			c.pushLeaderboard(ctx)
		case <-ticker.C:
			if expired := c.tick(ctx); expired {
				return
			}
		}
	}
}

// tick recomputes the countdown and, once it hits zero on a live
// contest, force-submits. Returns true when the session is over. A
// failed forced submit is retried on the next tick.
func (c *Coordinator) tick(ctx context.Context) bool {
	c.mu.Lock()
	contest := c.contest
	submitted := c.submitted
	now := c.now()
	c.mu.Unlock()

	if contest == nil {
		return false
	}
	if submitted {
		return true
	}

	remaining := contest.TimeRemaining(now)
	c.sink.Countdown(remaining, FormatCountdown(remaining))

	if remaining > 0 || contest.Status != model.ContestStatusLive || contest.StartTime == nil {
		return false
	}

	if err := c.submit(ctx, true); err != nil {
		c.log.Error().Err(err).Msg("Forced contest submission failed, will retry")
		return false
	}
	return true
}

func (c *Coordinator) pushLeaderboard(ctx context.Context) {
	entries, err := c.store.Leaderboard(ctx, c.contestID)
	if err != nil {
		c.log.Warn().Err(err).Msg("Leaderboard fetch failed")
		return
	}
	c.sink.Leaderboard(entries)
}

// FormatCountdown renders a duration as HH:MM:SS, floored at whole
// seconds.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
