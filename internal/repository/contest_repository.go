package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codearena/codearena-backend/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ContestRepository provides data access for contest documents.
type ContestRepository struct {
	pool *pgxpool.Pool
}

// NewContestRepository creates a new ContestRepository.
func NewContestRepository(pool *pgxpool.Pool) *ContestRepository {
	return &ContestRepository{pool: pool}
}

// GetByID assembles the full contest document: contest row, problems in
// contest-defined order, participants with their solved sets.
func (r *ContestRepository) GetByID(ctx context.Context, contestID uuid.UUID) (*model.Contest, error) {
	contest := &model.Contest{ContestID: contestID}

	err := r.pool.QueryRow(ctx,
		`SELECT name, status, start_time, duration_minutes
		 FROM contests WHERE id = $1`,
		contestID,
	).Scan(&contest.Name, &contest.Status, &contest.StartTime, &contest.DurationMinutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get contest: %w", err)
	}

	problems, err := r.listProblems(ctx, contestID)
	if err != nil {
		return nil, err
	}
	contest.Problems = problems

	participants, err := r.listParticipants(ctx, contestID)
	if err != nil {
		return nil, err
	}
	contest.Participants = participants

	return contest, nil
}

// EntryCodeHash returns the bcrypt hash of the contest entry code.
func (r *ContestRepository) EntryCodeHash(ctx context.Context, contestID uuid.UUID) (string, error) {
	var hash string
	err := r.pool.QueryRow(ctx,
		`SELECT entry_code_hash FROM contests WHERE id = $1`, contestID,
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get entry code hash: %w", err)
	}
	return hash, nil
}

func (r *ContestRepository) listProblems(ctx context.Context, contestID uuid.UUID) ([]model.ProblemRef, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.short_id, p.title
		 FROM contest_problems cp
		 JOIN problems p ON p.id = cp.problem_id
		 WHERE cp.contest_id = $1
		 ORDER BY cp.position ASC`,
		contestID,
	)
	if err != nil {
		return nil, fmt.Errorf("list contest problems: %w", err)
	}
	defer rows.Close()

	var problems []model.ProblemRef
	for rows.Next() {
		var p model.ProblemRef
		if err := rows.Scan(&p.ID, &p.ShortID, &p.Title); err != nil {
			return nil, err
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}

func (r *ContestRepository) listParticipants(ctx context.Context, contestID uuid.UUID) ([]model.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, display_name, score, disqualified, submitted
		 FROM contest_participants
		 WHERE contest_id = $1
		 ORDER BY joined_at ASC`,
		contestID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []model.Participant
	index := make(map[string]int)
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.Score, &p.Disqualified, &p.Submitted); err != nil {
			return nil, err
		}
		index[p.UserID] = len(participants)
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	solveRows, err := r.pool.Query(ctx,
		`SELECT user_id, problem_id, solved_at
		 FROM contest_solves
		 WHERE contest_id = $1
		 ORDER BY solved_at ASC`,
		contestID,
	)
	if err != nil {
		return nil, fmt.Errorf("list solves: %w", err)
	}
	defer solveRows.Close()

	for solveRows.Next() {
		var userID string
		var solve model.SolvedProblem
		if err := solveRows.Scan(&userID, &solve.ProblemID, &solve.SolvedAt); err != nil {
			return nil, err
		}
		if i, ok := index[userID]; ok {
			participants[i].ProblemsSolved = append(participants[i].ProblemsSolved, solve)
		}
	}
	return participants, solveRows.Err()
}

// AddParticipant registers a user in a contest. Idempotent: a repeated
// join is a no-op.
func (r *ContestRepository) AddParticipant(ctx context.Context, contestID uuid.UUID, userID, displayName string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO contest_participants (contest_id, user_id, display_name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (contest_id, user_id) DO NOTHING`,
		contestID, userID, displayName,
	)
	if err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

// MarkDisqualified flags a participant as disqualified. Idempotent:
// repeated calls after the first are safe no-ops.
func (r *ContestRepository) MarkDisqualified(ctx context.Context, contestID uuid.UUID, userID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE contest_participants SET disqualified = TRUE
		 WHERE contest_id = $1 AND user_id = $2`,
		contestID, userID,
	)
	if err != nil {
		return fmt.Errorf("mark disqualified: %w", err)
	}
	return nil
}

// MarkSubmitted ends the contest for a participant. Idempotent terminal
// action.
func (r *ContestRepository) MarkSubmitted(ctx context.Context, contestID uuid.UUID, userID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE contest_participants SET submitted = TRUE
		 WHERE contest_id = $1 AND user_id = $2`,
		contestID, userID,
	)
	if err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	return nil
}

// MarkSolved records an accepted submission and awards points. The solve
// insert is the idempotency gate: a duplicate accept changes nothing.
// Returns true when the solve was new.
func (r *ContestRepository) MarkSolved(ctx context.Context, contestID uuid.UUID, userID string, problemID uuid.UUID, points int) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO contest_solves (contest_id, user_id, problem_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (contest_id, user_id, problem_id) DO NOTHING`,
		contestID, userID, problemID,
	)
	if err != nil {
		return false, fmt.Errorf("insert solve: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE contest_participants SET score = score + $3
		 WHERE contest_id = $1 AND user_id = $2`,
		contestID, userID, points,
	)
	if err != nil {
		return false, fmt.Errorf("update score: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// Leaderboard returns participants ranked by score. Ties break by join
// time so ranks stay stable between polls.
func (r *ContestRepository) Leaderboard(ctx context.Context, contestID uuid.UUID) ([]model.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, display_name, score
		 FROM contest_participants
		 WHERE contest_id = $1
		 ORDER BY score DESC, joined_at ASC`,
		contestID,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Score); err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
