package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/codearena/codearena-backend/internal/repository"
)

// MonitorService aggregates live proctoring data for host dashboards.
type MonitorService struct {
	monitorRepo *repository.MonitorRepository
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitorRepo *repository.MonitorRepository) *MonitorService {
	return &MonitorService{monitorRepo: monitorRepo}
}

// ParticipantProgressSnapshot holds per-participant counters for one contest.
type ParticipantProgressSnapshot struct {
	SolvedCounts     map[string]int64 // user_id → problems solved
	InfractionCounts map[string]int64 // user_id → infractions recorded
	SnapshotCounts   map[string]int64 // user_id → webcam snapshots captured
	TotalInfractions int64
}

// GetParticipantProgress returns solved, infraction, and snapshot counts
// for every participant. The three fetches run concurrently; solved
// counts are critical, the proctoring counters are best-effort.
func (s *MonitorService) GetParticipantProgress(ctx context.Context, contestID uuid.UUID) (*ParticipantProgressSnapshot, error) {
	snapshot := &ParticipantProgressSnapshot{
		SolvedCounts:     make(map[string]int64),
		InfractionCounts: make(map[string]int64),
		SnapshotCounts:   make(map[string]int64),
	}

	var (
		solvedCounts     map[string]int64
		infractionCounts map[string]int64
		snapshotCounts   map[string]int64
		solvedErr        error
		infractionErr    error
		snapshotErr      error
		wg               sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		solvedCounts, solvedErr = s.monitorRepo.GetSolvedCounts(ctx, contestID)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		infractionCounts, infractionErr = s.monitorRepo.GetInfractionCounts(ctx, contestID)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		snapshotCounts, snapshotErr = s.monitorRepo.GetSnapshotCounts(ctx, contestID)
	}()

	wg.Wait()

	if solvedErr != nil {
		return nil, solvedErr
	}
	if solvedCounts != nil {
		snapshot.SolvedCounts = solvedCounts
	}

	if infractionErr == nil && infractionCounts != nil {
		snapshot.InfractionCounts = infractionCounts
		for _, count := range infractionCounts {
			snapshot.TotalInfractions += count
		}
	}

	if snapshotErr == nil && snapshotCounts != nil {
		snapshot.SnapshotCounts = snapshotCounts
	}

	return snapshot, nil
}
