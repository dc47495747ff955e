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
	attemptBatchSize    = 50
	attemptBatchTimeout = 2 * time.Second
	attemptPollTimeout  = 1 * time.Second
)

// AttemptWorker consumes finalize_attempts_queue: it makes each terminal
// attempt record durable and then retires the session's Redis buffers.
// The insert is idempotent (one attempt per session), so a crash between
// insert and cleanup only re-runs the cleanup.
type AttemptWorker struct {
	attemptRepo *repository.AttemptRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewAttemptWorker creates a new AttemptWorker.
func NewAttemptWorker(attemptRepo *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *AttemptWorker {
	return &AttemptWorker{
		attemptRepo: attemptRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "attempt_worker").Logger(),
	}
}

func (w *AttemptWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AttemptWorker started")

	batch := make([]*model.AssessmentAttempt, 0, attemptBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= attemptBatchSize || time.Since(lastFlush) >= attemptBatchTimeout) {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.flushSafe(shutdownCtx, batch)
			cancel()
			return

		default:
			item, err := w.rdb.BLPop(ctx, attemptPollTimeout, config.WorkerKey.FinalizeAttemptsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(3 * time.Second)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var attempt model.AssessmentAttempt
			if err := json.Unmarshal([]byte(item[1]), &attempt); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &attempt)
		}
	}
}

// flushSafe persists each attempt and requeues the ones that fail; the
// buffers of successfully persisted sessions are cleared in one pipeline.
func (w *AttemptWorker) flushSafe(ctx context.Context, batch []*model.AssessmentAttempt) {
	if len(batch) == 0 {
		return
	}

	persisted := make([]*model.AssessmentAttempt, 0, len(batch))
	requeueList := make([]*model.AssessmentAttempt, 0)

	for _, a := range batch {
		if err := w.attemptRepo.Insert(ctx, a); err != nil {
			w.log.Error().Err(err).Str("session_id", a.SessionID.String()).Msg("Attempt insert failed, requeueing")
			requeueList = append(requeueList, a)
			continue
		}
		persisted = append(persisted, a)
	}

	if len(persisted) > 0 {
		w.clearSessionBuffers(ctx, persisted)
	}

	if len(requeueList) > 0 {
		pipe := w.rdb.Pipeline()
		for _, a := range requeueList {
			raw, _ := json.Marshal(a)
			pipe.RPush(ctx, config.WorkerKey.FinalizeAttemptsQueue, raw)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue attempts to Redis. Data loss occurred.")
			return
		}
		w.log.Info().Int("count", len(requeueList)).Msg("Requeued failed attempts back to Redis")
		time.Sleep(2 * time.Second)
	}
}

// clearSessionBuffers drops the hot-path keys of finished sessions.
func (w *AttemptWorker) clearSessionBuffers(ctx context.Context, attempts []*model.AssessmentAttempt) {
	pipe := w.rdb.Pipeline()
	for _, a := range attempts {
		sid := a.SessionID.String()
		pipe.Del(ctx,
			config.CacheKey.SessionAnswersKey(sid),
			config.CacheKey.SessionStateKey(sid),
			config.CacheKey.SessionLastBeatKey(sid),
		)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Failed to clear session buffers")
	}
}
