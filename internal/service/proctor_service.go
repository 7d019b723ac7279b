package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-backend/internal/config"
	"github.com/codearena/codearena-backend/internal/model"
)

// MonitorEvent is published on the contest monitor channel whenever a
// participant's proctoring status changes, so host dashboards update
// without polling.
type MonitorEvent struct {
	Type      string `json:"type"` // "disqualified" | "infraction" | "snapshot"
	ContestID string `json:"contest_id"`
	UserID    string `json:"user_id"`
	ProblemID string `json:"problem_id,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// InfractionQueueItem is the wire format of the infraction persistence
// queue. Consumed by worker.InfractionWorker.
type InfractionQueueItem struct {
	ContestID string `json:"contest_id"`
	UserID    string `json:"user_id"`
	ProblemID string `json:"problem_id"`
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
}

// SnapshotQueueItem is the wire format of the snapshot persistence
// queue. Consumed by worker.SnapshotWorker.
type SnapshotQueueItem struct {
	ContestID string `json:"contest_id"`
	UserID    string `json:"user_id"`
	ProblemID string `json:"problem_id"`
	ImageURL  string `json:"image_url"`
	Timestamp int64  `json:"timestamp"`
}

// disqualifier is the slice of ContestService the proctor backend needs.
type disqualifier interface {
	Disqualify(ctx context.Context, contestID uuid.UUID, userID string) error
}

// ProctorService is the server-side authority behind proctoring
// sessions. Status mutations hit PostgreSQL synchronously; the evidence
// trail (infractions, snapshots) goes through Redis queues and is
// persisted by background workers so the hot path never waits on an
// insert.
type ProctorService struct {
	contests disqualifier
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewProctorService creates a new ProctorService.
func NewProctorService(contests disqualifier, rdb *redis.Client, log zerolog.Logger) *ProctorService {
	return &ProctorService{
		contests: contests,
		rdb:      rdb,
		log:      log.With().Str("component", "proctor_service").Logger(),
	}
}

// Disqualify removes the participant from ranked play and notifies
// monitoring dashboards.
func (s *ProctorService) Disqualify(ctx context.Context, contestID uuid.UUID, userID string) error {
	if err := s.contests.Disqualify(ctx, contestID, userID); err != nil {
		return fmt.Errorf("disqualify participant: %w", err)
	}

	s.publish(ctx, contestID, MonitorEvent{
		Type:      "disqualified",
		ContestID: contestID.String(),
		UserID:    userID,
		Timestamp: time.Now().Unix(),
	})
	return nil
}

// LogInfraction queues an infraction record for persistence. Practice
// sessions carry no contest ID and leave no server-side trail.
func (s *ProctorService) LogInfraction(ctx context.Context, contestID uuid.UUID, userID, problemID string, kind model.ViolationKind) error {
	if contestID == uuid.Nil {
		return nil
	}
	item := InfractionQueueItem{
		ContestID: contestID.String(),
		UserID:    userID,
		ProblemID: problemID,
		Kind:      string(kind),
		Timestamp: time.Now().Unix(),
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal infraction: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistInfractionsQueue, data).Err(); err != nil {
		return fmt.Errorf("queue infraction: %w", err)
	}

	s.publish(ctx, contestID, MonitorEvent{
		Type:      "infraction",
		ContestID: contestID.String(),
		UserID:    userID,
		ProblemID: problemID,
		Kind:      string(kind),
		Timestamp: item.Timestamp,
	})
	return nil
}

// LogSnapshot queues a webcam snapshot record for persistence.
func (s *ProctorService) LogSnapshot(ctx context.Context, contestID uuid.UUID, userID, problemID, imageURL string) error {
	if contestID == uuid.Nil {
		return nil
	}
	item := SnapshotQueueItem{
		ContestID: contestID.String(),
		UserID:    userID,
		ProblemID: problemID,
		ImageURL:  imageURL,
		Timestamp: time.Now().Unix(),
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, data).Err(); err != nil {
		return fmt.Errorf("queue snapshot: %w", err)
	}

	s.publish(ctx, contestID, MonitorEvent{
		Type:      "snapshot",
		ContestID: contestID.String(),
		UserID:    userID,
		ProblemID: problemID,
		Timestamp: item.Timestamp,
	})
	return nil
}

// publish is best-effort: a lost monitor event only delays the host
// dashboard until its next full refresh.
func (s *ProctorService) publish(ctx context.Context, contestID uuid.UUID, event MonitorEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	channel := config.CacheKey.ContestMonitorChannel(contestID.String())
	if err := s.rdb.Publish(ctx, channel, data).Err(); err != nil {
		s.log.Warn().Err(err).Str("channel", channel).Msg("Monitor publish failed")
	}
}
