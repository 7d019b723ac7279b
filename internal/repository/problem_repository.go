package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codearena/codearena-backend/internal/model"
)

// ProblemRepository provides data access for problem documents.
type ProblemRepository struct {
	pool *pgxpool.Pool
}

// NewProblemRepository creates a new ProblemRepository.
func NewProblemRepository(pool *pgxpool.Pool) *ProblemRepository {
	return &ProblemRepository{pool: pool}
}

// GetByShortID fetches a problem by its URL-facing short identifier.
func (r *ProblemRepository) GetByShortID(ctx context.Context, shortID string) (*model.Problem, error) {
	p := &model.Problem{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, short_id, title, difficulty, description, created_at
		 FROM problems WHERE short_id = $1`,
		shortID,
	).Scan(&p.ID, &p.ShortID, &p.Title, &p.Difficulty, &p.Description, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get problem: %w", err)
	}
	return p, nil
}
