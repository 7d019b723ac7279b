package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/codearena/codearena-backend/internal/config"
	"github.com/codearena/codearena-backend/internal/contest"
	"github.com/codearena/codearena-backend/internal/model"
	"github.com/codearena/codearena-backend/internal/repository"
)

// Service-level errors mapped to API error codes by the handlers.
var (
	ErrInvalidEntryCode    = errors.New("invalid entry code")
	ErrContestNotJoinable  = errors.New("contest is not available for joining")
	ErrNoProblems          = errors.New("contest has no problems")
	ErrProblemNotInContest = errors.New("problem is not part of the contest")
)

const (
	contestCacheTTL     = 30 * time.Second
	problemCacheTTL     = 5 * time.Minute
	leaderboardCacheTTL = 10 * time.Second
	pointsPerSolve      = 100
)

// contestStore is the slice of ContestRepository the service needs.
type contestStore interface {
	GetByID(ctx context.Context, contestID uuid.UUID) (*model.Contest, error)
	EntryCodeHash(ctx context.Context, contestID uuid.UUID) (string, error)
	AddParticipant(ctx context.Context, contestID uuid.UUID, userID, displayName string) error
	MarkDisqualified(ctx context.Context, contestID uuid.UUID, userID string) error
	MarkSubmitted(ctx context.Context, contestID uuid.UUID, userID string) error
	MarkSolved(ctx context.Context, contestID uuid.UUID, userID string, problemID uuid.UUID, points int) (bool, error)
	Leaderboard(ctx context.Context, contestID uuid.UUID) ([]model.LeaderboardEntry, error)
}

// problemStore is the slice of ProblemRepository the service needs.
type problemStore interface {
	GetByShortID(ctx context.Context, shortID string) (*model.Problem, error)
}

// ContestService is the authoritative contest backend: PostgreSQL is the
// source of truth, Redis carries short-lived caches that are dropped on
// every mutating action so readers always reconcile against fresh state.
// It implements contest.Store for the session coordinator.
type ContestService struct {
	contests contestStore
	problems problemStore
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewContestService creates a new ContestService.
func NewContestService(contests contestStore, problems problemStore, rdb *redis.Client, log zerolog.Logger) *ContestService {
	return &ContestService{
		contests: contests,
		problems: problems,
		rdb:      rdb,
		log:      log.With().Str("component", "contest_service").Logger(),
	}
}

// GetContest returns the contest document, cache-first with database
// fallback and self-heal.
func (s *ContestService) GetContest(ctx context.Context, contestID uuid.UUID) (*model.Contest, error) {
	key := config.CacheKey.ContestPayloadKey(contestID.String())

	if raw, err := s.rdb.Get(ctx, key).Result(); err == nil {
		var cached model.Contest
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return &cached, nil
		}
		// Corrupt cache entry: drop it and fall through to the DB.
		_ = s.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		s.log.Warn().Err(err).Msg("Contest cache read failed, falling back to DB")
	}

	doc, err := s.contests.GetByID(ctx, contestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, contest.ErrContestNotFound
		}
		return nil, err
	}

	if raw, err := json.Marshal(doc); err == nil {
		_ = s.rdb.Set(ctx, key, raw, contestCacheTTL).Err()
	}
	return doc, nil
}

// GetProblem returns a problem document, cache-first.
func (s *ContestService) GetProblem(ctx context.Context, shortID string) (*model.Problem, error) {
	key := config.CacheKey.ProblemPayloadKey(shortID)

	if raw, err := s.rdb.Get(ctx, key).Result(); err == nil {
		var cached model.Problem
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return &cached, nil
		}
		_ = s.rdb.Del(ctx, key)
	}

	p, err := s.problems.GetByShortID(ctx, shortID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, contest.ErrProblemNotFound
		}
		return nil, err
	}

	if raw, err := json.Marshal(p); err == nil {
		_ = s.rdb.Set(ctx, key, raw, problemCacheTTL).Err()
	}
	return p, nil
}

// Join validates the entry code and registers the participant.
// Idempotent: joining twice is a no-op. A contest with an empty problem
// list cannot be entered — the inconsistency is refused here instead of
// failing later mid-session.
func (s *ContestService) Join(ctx context.Context, contestID uuid.UUID, userID, displayName, entryCode string) (*model.Contest, error) {
	doc, err := s.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}

	if doc.Status == model.ContestStatusFinished {
		return nil, ErrContestNotJoinable
	}
	if len(doc.Problems) == 0 {
		return nil, ErrNoProblems
	}

	hash, err := s.contests.EntryCodeHash(ctx, contestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, contest.ErrContestNotFound
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(entryCode)) != nil {
		return nil, ErrInvalidEntryCode
	}

	if err := s.contests.AddParticipant(ctx, contestID, userID, displayName); err != nil {
		return nil, err
	}

	// Prime the countdown inputs so TimeRemaining stays cheap for the
	// whole field of participants.
	if doc.StartTime != nil {
		_ = s.rdb.Set(ctx, config.CacheKey.ContestStartKey(contestID.String()), doc.StartTime.Unix(), 0).Err()
		_ = s.rdb.Set(ctx, config.CacheKey.ContestDurationKey(contestID.String()), doc.DurationMinutes, 0).Err()
	}

	s.invalidate(ctx, contestID)
	return s.GetContest(ctx, contestID)
}

// TimeRemaining computes the countdown for a contest from the cached
// start time and duration, falling back to the database on a cache miss
// (with self-heal). The result is clamped at zero.
func (s *ContestService) TimeRemaining(ctx context.Context, contestID uuid.UUID) (time.Duration, error) {
	startKey := config.CacheKey.ContestStartKey(contestID.String())
	durationKey := config.CacheKey.ContestDurationKey(contestID.String())

	startRaw, startErr := s.rdb.Get(ctx, startKey).Result()
	durationRaw, durationErr := s.rdb.Get(ctx, durationKey).Result()

	var startUnix int64
	var durationMinutes int

	if startErr == nil && durationErr == nil {
		var parseErr error
		startUnix, parseErr = strconv.ParseInt(startRaw, 10, 64)
		if parseErr == nil {
			durationMinutes, parseErr = strconv.Atoi(durationRaw)
		}
		if parseErr != nil {
			startErr = parseErr // fall through to the DB path
		}
	}

	if startErr != nil || durationErr != nil {
		// Cache miss or garbage: PostgreSQL is the source of truth.
		doc, err := s.contests.GetByID(ctx, contestID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return 0, contest.ErrContestNotFound
			}
			return 0, err
		}
		if doc.Status != model.ContestStatusLive || doc.StartTime == nil {
			return 0, nil
		}
		startUnix = doc.StartTime.Unix()
		durationMinutes = doc.DurationMinutes

		// Self-heal so the next request is served from cache.
		_ = s.rdb.Set(ctx, startKey, startUnix, 0).Err()
		_ = s.rdb.Set(ctx, durationKey, durationMinutes, 0).Err()
	}

	endTime := time.Unix(startUnix, 0).Add(time.Duration(durationMinutes) * time.Minute)
	remaining := time.Until(endTime)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// SubmitContest ends the contest for the participant. Idempotent
// terminal action.
func (s *ContestService) SubmitContest(ctx context.Context, contestID uuid.UUID, userID string) error {
	doc, err := s.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	if doc.FindParticipant(userID) == nil {
		return contest.ErrNotParticipant
	}

	if err := s.contests.MarkSubmitted(ctx, contestID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, contestID)
	return nil
}

// Disqualify marks the participant disqualified. Idempotent.
func (s *ContestService) Disqualify(ctx context.Context, contestID uuid.UUID, userID string) error {
	if err := s.contests.MarkDisqualified(ctx, contestID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, contestID)
	return nil
}

// MarkSolved records an accepted submission reported by the judge and
// awards points. Returns false for duplicate accepts.
func (s *ContestService) MarkSolved(ctx context.Context, contestID uuid.UUID, userID string, problemID uuid.UUID) (bool, error) {
	doc, err := s.GetContest(ctx, contestID)
	if err != nil {
		return false, err
	}
	if doc.FindParticipant(userID) == nil {
		return false, contest.ErrNotParticipant
	}

	inContest := false
	for _, p := range doc.Problems {
		if p.ID == problemID {
			inContest = true
			break
		}
	}
	if !inContest {
		return false, ErrProblemNotInContest
	}

	newSolve, err := s.contests.MarkSolved(ctx, contestID, userID, problemID, pointsPerSolve)
	if err != nil {
		return false, err
	}
	if newSolve {
		s.invalidate(ctx, contestID)
	}
	return newSolve, nil
}

// Leaderboard returns the ranked list, cached for one poll interval.
func (s *ContestService) Leaderboard(ctx context.Context, contestID uuid.UUID) ([]model.LeaderboardEntry, error) {
	key := config.CacheKey.ContestLeaderboardKey(contestID.String())

	if raw, err := s.rdb.Get(ctx, key).Result(); err == nil {
		var cached []model.LeaderboardEntry
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return cached, nil
		}
		_ = s.rdb.Del(ctx, key)
	}

	entries, err := s.contests.Leaderboard(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}

	if raw, err := json.Marshal(entries); err == nil {
		_ = s.rdb.Set(ctx, key, raw, leaderboardCacheTTL).Err()
	}
	return entries, nil
}

// invalidate drops the contest-scoped caches after a mutating action so
// every reader reconciles against fresh authoritative state.
func (s *ContestService) invalidate(ctx context.Context, contestID uuid.UUID) {
	id := contestID.String()
	if err := s.rdb.Del(ctx,
		config.CacheKey.ContestPayloadKey(id),
		config.CacheKey.ContestLeaderboardKey(id),
	).Err(); err != nil {
		s.log.Warn().Err(err).Str("contest_id", id).Msg("Cache invalidation failed")
	}
}
