package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MonitorRepository provides data access for the host-facing live
// contest monitor: infraction and snapshot tallies per participant.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// GetInfractionCounts returns the number of recorded infractions for
// each participant of the given contest.
func (r *MonitorRepository) GetInfractionCounts(ctx context.Context, contestID uuid.UUID) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, COUNT(*)
		 FROM contest_infractions
		 WHERE contest_id = $1
		 GROUP BY user_id`,
		contestID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var uid string
		var count int64
		if err := rows.Scan(&uid, &count); err != nil {
			return nil, err
		}
		counts[uid] = count
	}
	return counts, rows.Err()
}

// GetSnapshotCounts returns the number of monitoring snapshots stored
// for each participant of the given contest.
func (r *MonitorRepository) GetSnapshotCounts(ctx context.Context, contestID uuid.UUID) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, COUNT(*)
		 FROM monitoring_snapshots
		 WHERE contest_id = $1
		 GROUP BY user_id`,
		contestID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var uid string
		var count int64
		if err := rows.Scan(&uid, &count); err != nil {
			return nil, err
		}
		counts[uid] = count
	}
	return counts, rows.Err()
}

// GetSolvedCounts returns how many problems each participant has solved.
func (r *MonitorRepository) GetSolvedCounts(ctx context.Context, contestID uuid.UUID) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, COUNT(*)
		 FROM contest_solves
		 WHERE contest_id = $1
		 GROUP BY user_id`,
		contestID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var uid string
		var count int64
		if err := rows.Scan(&uid, &count); err != nil {
			return nil, err
		}
		counts[uid] = count
	}
	return counts, rows.Err()
}
