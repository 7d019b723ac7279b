package contest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-backend/internal/model"
)

type fakeStore struct {
	mu         sync.Mutex
	contest    *model.Contest
	contestErr error
	submitErr  error
	submits    int
	entries    []model.LeaderboardEntry
}

func (f *fakeStore) GetContest(ctx context.Context, contestID uuid.UUID) (*model.Contest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contestErr != nil {
		return nil, f.contestErr
	}
	return f.contest, nil
}

func (f *fakeStore) GetProblem(ctx context.Context, shortID string) (*model.Problem, error) {
	return &model.Problem{ShortID: shortID, Title: shortID}, nil
}

func (f *fakeStore) SubmitContest(ctx context.Context, contestID uuid.UUID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submits++
	return nil
}

func (f *fakeStore) Leaderboard(ctx context.Context, contestID uuid.UUID) ([]model.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, nil
}

func (f *fakeStore) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

type recordingSink struct {
	mu         sync.Mutex
	countdowns []string
	navigated  []string
	results    int
	warns      []string
	submitted  []bool
	done       chan struct{}
	doneOnce   sync.Once
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{})}
}

func (s *recordingSink) Countdown(remaining time.Duration, formatted string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countdowns = append(s.countdowns, formatted)
}

func (s *recordingSink) Leaderboard(entries []model.LeaderboardEntry) {}

func (s *recordingSink) NavigateProblem(p model.ProblemRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigated = append(s.navigated, p.ShortID)
}

func (s *recordingSink) NavigateResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results++
}

func (s *recordingSink) ContestSubmitted(forced bool) {
	s.mu.Lock()
	s.submitted = append(s.submitted, forced)
	s.mu.Unlock()
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *recordingSink) Warn(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warns = append(s.warns, message)
}

func liveContest(userID string) (*model.Contest, []model.ProblemRef) {
	problems := []model.ProblemRef{
		{ID: uuid.New(), ShortID: "alpha", Title: "Alpha"},
		{ID: uuid.New(), ShortID: "beta", Title: "Beta"},
		{ID: uuid.New(), ShortID: "gamma", Title: "Gamma"},
	}
	start := time.Now().Add(-10 * time.Minute)
	contest := &model.Contest{
		ContestID:       uuid.New(),
		Name:            "Weekly Sprint",
		Status:          model.ContestStatusLive,
		StartTime:       &start,
		DurationMinutes: 60,
		Problems:        problems,
		Participants: []model.Participant{
			{UserID: userID, DisplayName: "Alice"},
		},
	}
	return contest, problems
}

func newTestCoordinator(store *fakeStore, sink Sink) *Coordinator {
	return NewCoordinator(store, sink, store.contest.ContestID, "u1", Config{}, zerolog.Nop())
}

func TestOnSubmissionAcceptedNavigatesToFirstUnsolved(t *testing.T) {
	contest, _ := liveContest("u1")
	store := &fakeStore{contest: contest}
	sink := newRecordingSink()
	c := newTestCoordinator(store, sink)

	// Solved: {alpha}. Expect navigation to beta.
	contest.Participants[0].ProblemsSolved = []model.SolvedProblem{{ProblemID: contest.Problems[0].ID}}

	if err := c.OnSubmissionAccepted(context.Background(), contest.Problems[0].ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.navigated) != 1 || sink.navigated[0] != "beta" {
		t.Fatalf("expected navigation to beta, got %v", sink.navigated)
	}
}

func TestOnSubmissionAcceptedAllSolvedGoesToResults(t *testing.T) {
	contest, _ := liveContest("u1")
	for _, p := range contest.Problems {
		contest.Participants[0].ProblemsSolved = append(contest.Participants[0].ProblemsSolved, model.SolvedProblem{ProblemID: p.ID})
	}
	store := &fakeStore{contest: contest}
	sink := newRecordingSink()
	c := newTestCoordinator(store, sink)

	if err := c.OnSubmissionAccepted(context.Background(), contest.Problems[2].ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.results != 1 {
		t.Fatalf("expected results navigation, got %d", sink.results)
	}
	if len(sink.navigated) != 0 {
		t.Fatalf("unexpected problem navigation: %v", sink.navigated)
	}
}

func TestOnSubmissionAcceptedRefreshFailureWarns(t *testing.T) {
	contest, _ := liveContest("u1")
	store := &fakeStore{contest: contest}
	sink := newRecordingSink()
	c := newTestCoordinator(store, sink)

	store.contestErr = errors.New("boom")
	if err := c.OnSubmissionAccepted(context.Background(), contest.Problems[0].ID); err == nil {
		t.Fatalf("expected error")
	}
	if len(sink.warns) != 1 {
		t.Fatalf("expected manual-navigation fallback warning, got %v", sink.warns)
	}
}

func TestTimeRemainingClampedAtZero(t *testing.T) {
	contest, _ := liveContest("u1")
	store := &fakeStore{contest: contest}
	sink := newRecordingSink()
	c := newTestCoordinator(store, sink)

	if _, err := c.LoadContest(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Clock far past the contest end.
	c.SetNow(func() time.Time { return contest.EndTime().Add(time.Hour) })
	if got := c.TimeRemaining(); got != 0 {
		t.Fatalf("expected 0 remaining, got %v", got)
	}
}

func TestSubmitContestIsIdempotent(t *testing.T) {
	contest, _ := liveContest("u1")
	store := &fakeStore{contest: contest}
	sink := newRecordingSink()
	c := newTestCoordinator(store, sink)

	if err := c.SubmitContest(context.Background()); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := c.SubmitContest(context.Background()); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if store.submitCount() != 1 {
		t.Fatalf("expected 1 store submit, got %d", store.submitCount())
	}
	if sink.results != 1 {
		t.Fatalf("expected a single results navigation, got %d", sink.results)
	}
}

func TestSubmitContestFailureLeavesSessionActive(t *testing.T) {
	contest, _ := liveContest("u1")
	store := &fakeStore{contest: contest, submitErr: errors.New("network")}
	sink := newRecordingSink()
	c := newTestCoordinator(store, sink)

	if err := c.SubmitContest(context.Background()); err == nil {
		t.Fatalf("expected submit error")
	}
	if c.Submitted() {
		t.Fatalf("failed submit must not mark the session submitted")
	}

	// Retry works once the store recovers.
	store.submitErr = nil
	if err := c.SubmitContest(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !c.Submitted() {
		t.Fatalf("expected submitted after retry")
	}
}

func TestRunForcesSubmissionAtExpiry(t *testing.T) {
	contest, _ := liveContest("u1")
	store := &fakeStore{contest: contest}
	sink := newRecordingSink()
	c := NewCoordinator(store, sink, contest.ContestID, "u1", Config{Tick: 5 * time.Millisecond}, zerolog.Nop())

	if _, err := c.LoadContest(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	c.SetNow(func() time.Time { return contest.EndTime().Add(time.Second) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case <-sink.done:
	case <-time.After(time.Second):
		t.Fatalf("forced submission never happened")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.submitted) != 1 || !sink.submitted[0] {
		t.Fatalf("expected one forced submission, got %v", sink.submitted)
	}
	if len(sink.countdowns) == 0 || sink.countdowns[len(sink.countdowns)-1] != "00:00:00" {
		t.Fatalf("expected countdown floored at zero, got %v", sink.countdowns)
	}
}

func TestFormatCountdown(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{-time.Minute, "00:00:00"},
		{90 * time.Second, "00:01:30"},
		{2*time.Hour + 5*time.Minute + 9*time.Second, "02:05:09"},
		{1500 * time.Millisecond, "00:00:01"},
	}
	for _, tc := range cases {
		if got := FormatCountdown(tc.d); got != tc.want {
			t.Fatalf("FormatCountdown(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
