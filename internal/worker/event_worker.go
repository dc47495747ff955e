package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lumora/proctor-backend/internal/config"
	"github.com/lumora/proctor-backend/internal/model"
	"github.com/lumora/proctor-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// EventWorker drains persist_events_queue into PostgreSQL. Security
// events arrive in bursts (a student alt-tabbing fires several per
// second across the cohort), so inserts are batched through COPY with a
// row-by-row fallback and a requeue path when the database is down.
type EventWorker struct {
	eventRepo *repository.SecurityEventRepository
	rdb       *redis.Client
	log       zerolog.Logger
}

// NewEventWorker creates a new EventWorker.
func NewEventWorker(eventRepo *repository.SecurityEventRepository, rdb *redis.Client, log zerolog.Logger) *EventWorker {
	return &EventWorker{
		eventRepo: eventRepo,
		rdb:       rdb,
		log:       log.With().Str("component", "event_worker").Logger(),
	}
}

func (w *EventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("EventWorker started")

	buffer := make([]*model.SecurityEvent, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check flush conditions (time or size)
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0] // Clear buffer, keep capacity
				lastFlushTime = time.Now()
			}
		}

		// 2. Check context (graceful shutdown)
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch from Redis. BLPop blocks for 1 second and returns
		// immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistEventsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Queue empty, loop back to check flush timer
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

		var event model.SecurityEvent
		if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &event)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue.
func (w *EventWorker) flushSafe(ctx context.Context, batch []*model.SecurityEvent) {
	if err := w.eventRepo.BulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *EventWorker) fallbackInsert(ctx context.Context, batch []*model.SecurityEvent) {
	requeueList := make([]*model.SecurityEvent, 0)

	for _, e := range batch {
		if err := w.eventRepo.Insert(ctx, e); err != nil {
			w.log.Error().Err(err).Str("session_id", e.SessionID.String()).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, e)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *EventWorker) requeue(ctx context.Context, items []*model.SecurityEvent) {
	pipe := w.rdb.Pipeline()
	for _, e := range items {
		data, _ := json.Marshal(e)
		pipe.RPush(ctx, config.WorkerKey.PersistEventsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue events to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed events back to Redis")
	// Avoid thrashing while the DB is down hard.
	time.Sleep(2 * time.Second)
}

func (w *EventWorker) shutdown(buffer []*model.SecurityEvent) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
