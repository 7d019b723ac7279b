package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/codearena/codearena-backend/internal/config"
	"github.com/codearena/codearena-backend/internal/contest"
	"github.com/codearena/codearena-backend/internal/model"
	"github.com/codearena/codearena-backend/internal/repository"
)

type fakeContestStore struct {
	mu           sync.Mutex
	contest      *model.Contest
	entryHash    string
	getCalls     int
	participants map[string]string
	solves       map[uuid.UUID]bool
	submitted    map[string]bool
	disqualified map[string]bool
	board        []model.LeaderboardEntry
	boardCalls   int
	getErr       error
}

func newFakeContestStore(doc *model.Contest) *fakeContestStore {
	return &fakeContestStore{
		contest:      doc,
		participants: make(map[string]string),
		solves:       make(map[uuid.UUID]bool),
		submitted:    make(map[string]bool),
		disqualified: make(map[string]bool),
	}
}

func (f *fakeContestStore) GetByID(ctx context.Context, contestID uuid.UUID) (*model.Contest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.contest == nil || f.contest.ContestID != contestID {
		return nil, repository.ErrNotFound
	}
	doc := *f.contest
	return &doc, nil
}

func (f *fakeContestStore) EntryCodeHash(ctx context.Context, contestID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entryHash == "" {
		return "", repository.ErrNotFound
	}
	return f.entryHash, nil
}

func (f *fakeContestStore) AddParticipant(ctx context.Context, contestID uuid.UUID, userID, displayName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.participants[userID] = displayName
	return nil
}

func (f *fakeContestStore) MarkDisqualified(ctx context.Context, contestID uuid.UUID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disqualified[userID] = true
	return nil
}

func (f *fakeContestStore) MarkSubmitted(ctx context.Context, contestID uuid.UUID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted[userID] = true
	return nil
}

func (f *fakeContestStore) MarkSolved(ctx context.Context, contestID uuid.UUID, userID string, problemID uuid.UUID, points int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.solves[problemID] {
		return false, nil
	}
	f.solves[problemID] = true
	return true, nil
}

func (f *fakeContestStore) Leaderboard(ctx context.Context, contestID uuid.UUID) ([]model.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boardCalls++
	return f.board, nil
}

type fakeProblemStore struct {
	mu       sync.Mutex
	problems map[string]*model.Problem
	getCalls int
}

func (f *fakeProblemStore) GetByShortID(ctx context.Context, shortID string) (*model.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	p, ok := f.problems[shortID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	doc := *p
	return &doc, nil
}

func testRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func liveContestDoc(userID string) *model.Contest {
	start := time.Now().Add(-10 * time.Minute)
	return &model.Contest{
		ContestID:       uuid.New(),
		Name:            "Weekly Sprint",
		Status:          model.ContestStatusLive,
		StartTime:       &start,
		DurationMinutes: 60,
		Problems: []model.ProblemRef{
			{ID: uuid.New(), ShortID: "two-sum", Title: "Two Sum"},
			{ID: uuid.New(), ShortID: "lru-cache", Title: "LRU Cache"},
		},
		Participants: []model.Participant{
			{UserID: userID, DisplayName: "Casey", Score: 100},
		},
	}
}

func TestGetContestCachesDocument(t *testing.T) {
	_, rdb := testRedis(t)
	doc := liveContestDoc("u1")
	store := newFakeContestStore(doc)
	svc := NewContestService(store, &fakeProblemStore{}, rdb, zerolog.Nop())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := svc.GetContest(ctx, doc.ContestID)
		if err != nil {
			t.Fatalf("GetContest: %v", err)
		}
		if got.Name != doc.Name {
			t.Fatalf("got name %q, want %q", got.Name, doc.Name)
		}
	}

	if store.getCalls != 1 {
		t.Fatalf("expected 1 repository call, got %d", store.getCalls)
	}
}

func TestGetContestSelfHealsCorruptCache(t *testing.T) {
	mr, rdb := testRedis(t)
	doc := liveContestDoc("u1")
	store := newFakeContestStore(doc)
	svc := NewContestService(store, &fakeProblemStore{}, rdb, zerolog.Nop())

	key := config.CacheKey.ContestPayloadKey(doc.ContestID.String())
	mr.Set(key, "{not json")

	got, err := svc.GetContest(context.Background(), doc.ContestID)
	if err != nil {
		t.Fatalf("GetContest: %v", err)
	}
	if got.Name != doc.Name {
		t.Fatalf("got name %q, want %q", got.Name, doc.Name)
	}
	if store.getCalls != 1 {
		t.Fatalf("expected DB fallback, got %d calls", store.getCalls)
	}
	if raw, err := mr.Get(key); err != nil || raw == "{not json" {
		t.Fatalf("expected cache to be rewritten, got %q err %v", raw, err)
	}
}

func TestGetContestNotFound(t *testing.T) {
	_, rdb := testRedis(t)
	store := newFakeContestStore(nil)
	svc := NewContestService(store, &fakeProblemStore{}, rdb, zerolog.Nop())

	_, err := svc.GetContest(context.Background(), uuid.New())
	if !errors.Is(err, contest.ErrContestNotFound) {
		t.Fatalf("expected ErrContestNotFound, got %v", err)
	}
}

func TestGetProblemCaches(t *testing.T) {
	_, rdb := testRedis(t)
	problems := &fakeProblemStore{problems: map[string]*model.Problem{
		"two-sum": {ID: uuid.New(), ShortID: "two-sum", Title: "Two Sum", Difficulty: model.DifficultyEasy},
	}}
	svc := NewContestService(newFakeContestStore(nil), problems, rdb, zerolog.Nop())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		p, err := svc.GetProblem(ctx, "two-sum")
		if err != nil {
			t.Fatalf("GetProblem: %v", err)
		}
		if p.Title != "Two Sum" {
			t.Fatalf("got title %q", p.Title)
		}
	}
	if problems.getCalls != 1 {
		t.Fatalf("expected 1 repository call, got %d", problems.getCalls)
	}

	if _, err := svc.GetProblem(ctx, "missing"); !errors.Is(err, contest.ErrProblemNotFound) {
		t.Fatalf("expected ErrProblemNotFound, got %v", err)
	}
}

func TestJoinValidatesEntryCode(t *testing.T) {
	_, rdb := testRedis(t)
	doc := liveContestDoc("u1")
	store := newFakeContestStore(doc)
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	store.entryHash = string(hash)
	svc := NewContestService(store, &fakeProblemStore{}, rdb, zerolog.Nop())

	ctx := context.Background()

	if _, err := svc.Join(ctx, doc.ContestID, "u2", "Riley", "wrong-code"); !errors.Is(err, ErrInvalidEntryCode) {
		t.Fatalf("expected ErrInvalidEntryCode, got %v", err)
	}
	if _, ok := store.participants["u2"]; ok {
		t.Fatal("participant added despite invalid code")
	}

	if _, err := svc.Join(ctx, doc.ContestID, "u2", "Riley", "open-sesame"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if store.participants["u2"] != "Riley" {
		t.Fatalf("participant not registered: %v", store.participants)
	}
}

func TestJoinRejectsFinishedAndEmptyContests(t *testing.T) {
	_, rdb := testRedis(t)
	doc := liveContestDoc("u1")
	doc.Status = model.ContestStatusFinished
	store := newFakeContestStore(doc)
	svc := NewContestService(store, &fakeProblemStore{}, rdb, zerolog.Nop())

	if _, err := svc.Join(context.Background(), doc.ContestID, "u2", "Riley", "x"); !errors.Is(err, ErrContestNotJoinable) {
		t.Fatalf("expected ErrContestNotJoinable, got %v", err)
	}

	_, rdb2 := testRedis(t)
	doc2 := liveContestDoc("u1")
	doc2.Problems = nil
	store2 := newFakeContestStore(doc2)
	svc2 := NewContestService(store2, &fakeProblemStore{}, rdb2, zerolog.Nop())

	if _, err := svc2.Join(context.Background(), doc2.ContestID, "u2", "Riley", "x"); !errors.Is(err, ErrNoProblems) {
		t.Fatalf("expected ErrNoProblems, got %v", err)
	}
}

func TestTimeRemainingFromCache(t *testing.T) {
	mr, rdb := testRedis(t)
	doc := liveContestDoc("u1")
	store := newFakeContestStore(doc)
	svc := NewContestService(store, &fakeProblemStore{}, rdb, zerolog.Nop())

	id := doc.ContestID.String()
	start := time.Now().Add(-30 * time.Minute)
	mr.Set(config.CacheKey.ContestStartKey(id), formatUnix(start))
	mr.Set(config.CacheKey.ContestDurationKey(id), "60")

	remaining, err := svc.TimeRemaining(context.Background(), doc.ContestID)
	if err != nil {
		t.Fatalf("TimeRemaining: %v", err)
	}
	if remaining < 29*time.Minute || remaining > 30*time.Minute {
		t.Fatalf("remaining %v, want ~30m", remaining)
	}
	if store.getCalls != 0 {
		t.Fatalf("expected cache hit, DB called %d times", store.getCalls)
	}
}

func TestTimeRemainingFallsBackAndSelfHeals(t *testing.T) {
	mr, rdb := testRedis(t)
	doc := liveContestDoc("u1")
	store := newFakeContestStore(doc)
	svc := NewContestService(store, &fakeProblemStore{}, rdb, zerolog.Nop())

	remaining, err := svc.TimeRemaining(context.Background(), doc.ContestID)
	if err != nil {
		t.Fatalf("TimeRemaining: %v", err)
	}
	if remaining < 49*time.Minute || remaining > 50*time.Minute {
		t.Fatalf("remaining %v, want ~50m", remaining)
	}
	if store.getCalls != 1 {
		t.Fatalf("expected 1 DB call, got %d", store.getCalls)
	}

	// The countdown inputs are now cached for the next call.
	id := doc.ContestID.String()
	if !mr.Exists(config.CacheKey.ContestStartKey(id)) || !mr.Exists(config.CacheKey.ContestDurationKey(id)) {
		t.Fatal("expected countdown keys to be self-healed")
	}

	if _, err := svc.TimeRemaining(context.Background(), doc.ContestID); err != nil {
		t.Fatalf("second TimeRemaining: %v", err)
	}
	if store.getCalls != 1 {
		t.Fatalf("expected cache to serve second call, got %d DB calls", store.getCalls)
	}
}

func TestTimeRemainingClampsExpiredContest(t *testing.T) {
	_, rdb := testRedis(t)
	doc := liveContestDoc("u1")
	start := time.Now().Add(-2 * time.Hour)
	doc.StartTime = &start
	store := newFakeContestStore(doc)
	svc := NewContestService(store, &fakeProblemStore{}, rdb, zerolog.Nop())

	remaining, err := svc.TimeRemaining(context.Background(), doc.ContestID)
	if err != nil {
		t.Fatalf("TimeRemaining: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("remaining %v, want 0", remaining)
	}
}

func TestSubmitContestRequiresParticipant(t *testing.T) {
	_, rdb := testRedis(t)
	doc := liveContestDoc("u1")
	store := newFakeContestStore(doc)
	svc := NewContestService(store, &fakeProblemStore{}, rdb, zerolog.Nop())

	ctx := context.Background()
	if err := svc.SubmitContest(ctx, doc.ContestID, "stranger"); !errors.Is(err, contest.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}

	if err := svc.SubmitContest(ctx, doc.ContestID, "u1"); err != nil {
		t.Fatalf("SubmitContest: %v", err)
	}
	if !store.submitted["u1"] {
		t.Fatal("participant not marked submitted")
	}
}

func TestMarkSolvedValidatesProblemMembership(t *testing.T) {
	_, rdb := testRedis(t)
	doc := liveContestDoc("u1")
	store := newFakeContestStore(doc)
	svc := NewContestService(store, &fakeProblemStore{}, rdb, zerolog.Nop())

	ctx := context.Background()

	if _, err := svc.MarkSolved(ctx, doc.ContestID, "u1", uuid.New()); !errors.Is(err, ErrProblemNotInContest) {
		t.Fatalf("expected ErrProblemNotInContest, got %v", err)
	}

	newSolve, err := svc.MarkSolved(ctx, doc.ContestID, "u1", doc.Problems[0].ID)
	if err != nil {
		t.Fatalf("MarkSolved: %v", err)
	}
	if !newSolve {
		t.Fatal("expected new solve")
	}

	// Duplicate accept is a no-op.
	newSolve, err = svc.MarkSolved(ctx, doc.ContestID, "u1", doc.Problems[0].ID)
	if err != nil {
		t.Fatalf("MarkSolved repeat: %v", err)
	}
	if newSolve {
		t.Fatal("duplicate accept reported as new solve")
	}
}

func TestLeaderboardCaches(t *testing.T) {
	_, rdb := testRedis(t)
	doc := liveContestDoc("u1")
	store := newFakeContestStore(doc)
	store.board = []model.LeaderboardEntry{
		{Rank: 1, UserID: "u1", DisplayName: "Casey", Score: 100},
	}
	svc := NewContestService(store, &fakeProblemStore{}, rdb, zerolog.Nop())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		entries, err := svc.Leaderboard(ctx, doc.ContestID)
		if err != nil {
			t.Fatalf("Leaderboard: %v", err)
		}
		if len(entries) != 1 || entries[0].UserID != "u1" {
			t.Fatalf("unexpected entries: %+v", entries)
		}
	}
	if store.boardCalls != 1 {
		t.Fatalf("expected 1 repository call, got %d", store.boardCalls)
	}
}

func TestDisqualifyInvalidatesContestCache(t *testing.T) {
	mr, rdb := testRedis(t)
	doc := liveContestDoc("u1")
	store := newFakeContestStore(doc)
	svc := NewContestService(store, &fakeProblemStore{}, rdb, zerolog.Nop())

	ctx := context.Background()
	if _, err := svc.GetContest(ctx, doc.ContestID); err != nil {
		t.Fatalf("GetContest: %v", err)
	}
	key := config.CacheKey.ContestPayloadKey(doc.ContestID.String())
	if !mr.Exists(key) {
		t.Fatal("expected contest cached")
	}

	if err := svc.Disqualify(ctx, doc.ContestID, "u1"); err != nil {
		t.Fatalf("Disqualify: %v", err)
	}
	if mr.Exists(key) {
		t.Fatal("expected contest cache invalidated")
	}
	if !store.disqualified["u1"] {
		t.Fatal("participant not marked disqualified")
	}
}

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
