package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-backend/internal/config"
	"github.com/codearena/codearena-backend/internal/service"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// InfractionWorker consumes the infraction persistence queue and writes
// records to PostgreSQL in batches. Infractions arrive in bursts when a
// contest starts, so the fast path is a COPY of up to BatchSize rows.
type InfractionWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewInfractionWorker creates a new InfractionWorker.
func NewInfractionWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *InfractionWorker {
	return &InfractionWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "infraction_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *InfractionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("InfractionWorker started")

	buffer := make([]*service.InfractionQueueItem, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// Flush on size or age.
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistInfractionsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // queue empty, loop back to check the flush timer
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var item service.InfractionQueueItem
		if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &item)
	}
}

// flushSafe attempts a bulk insert, then row-by-row recovery, then requeue.
func (w *InfractionWorker) flushSafe(ctx context.Context, batch []*service.InfractionQueueItem) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *InfractionWorker) bulkInsert(ctx context.Context, batch []*service.InfractionQueueItem) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, item := range batch {
		contestID, err := uuid.Parse(item.ContestID)
		if err != nil {
			// Trigger fallback, which handles the bad UUID individually.
			return err
		}
		rows = append(rows, []interface{}{
			contestID, item.UserID, item.ProblemID, item.Kind, time.Unix(item.Timestamp, 0),
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"contest_infractions"},
		[]string{"contest_id", "user_id", "problem_id", "kind", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *InfractionWorker) fallbackInsert(ctx context.Context, batch []*service.InfractionQueueItem) {
	requeueList := make([]*service.InfractionQueueItem, 0)

	for _, item := range batch {
		contestID, err := uuid.Parse(item.ContestID)
		if err != nil {
			w.log.Error().Str("contest_id", item.ContestID).Msg("Dropping infraction with invalid UUID")
			continue
		}

		_, err = w.pool.Exec(ctx,
			`INSERT INTO contest_infractions (contest_id, user_id, problem_id, kind, recorded_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			contestID, item.UserID, item.ProblemID, item.Kind, time.Unix(item.Timestamp, 0),
		)
		if err != nil {
			w.log.Error().Err(err).Str("user_id", item.UserID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, item)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *InfractionWorker) requeue(ctx context.Context, items []*service.InfractionQueueItem) {
	pipe := w.rdb.Pipeline()
	for _, item := range items {
		data, _ := json.Marshal(item)
		pipe.RPush(ctx, config.WorkerKey.PersistInfractionsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
		// Avoid thrashing while the DB is down.
		time.Sleep(2 * time.Second)
	}
}

func (w *InfractionWorker) shutdown(buffer []*service.InfractionQueueItem) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
