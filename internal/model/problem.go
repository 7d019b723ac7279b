package model

import (
	"time"

	"github.com/google/uuid"
)

// ProblemDifficulty enumerates problem difficulty tiers.
type ProblemDifficulty string

const (
	DifficultyEasy   ProblemDifficulty = "easy"
	DifficultyMedium ProblemDifficulty = "medium"
	DifficultyHard   ProblemDifficulty = "hard"
)

// Problem is a coding problem document. Rendering, judging and the
// editor are external concerns; the engine only needs identity and
// display fields.
type Problem struct {
	ID          uuid.UUID         `json:"_id"`
	ShortID     string            `json:"id"`
	Title       string            `json:"title"`
	Difficulty  ProblemDifficulty `json:"difficulty"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
}
