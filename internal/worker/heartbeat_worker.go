package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumora/proctor-backend/internal/config"
	"github.com/lumora/proctor-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	beatBatchSize    = 100
	beatBatchTimeout = 3 * time.Second
	beatPollTimeout  = 1 * time.Second
)

// HeartbeatWorker drains persist_heartbeats_queue into PostgreSQL. This
// is the highest-volume queue (every live student, every 20 seconds), so
// the batch is wider and a failed batch is dropped rather than requeued:
// each beat loses its value within a minute and the miss detector works
// off Redis, not this table.
type HeartbeatWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewHeartbeatWorker creates a new HeartbeatWorker.
func NewHeartbeatWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *HeartbeatWorker {
	return &HeartbeatWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "heartbeat_worker").Logger(),
	}
}

func (w *HeartbeatWorker) Start(ctx context.Context) {
	w.log.Info().Msg("HeartbeatWorker started")

	batch := make([]*model.Heartbeat, 0, beatBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= beatBatchSize || time.Since(lastFlush) >= beatBatchTimeout) {
			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.flush(shutdownCtx, batch)
			cancel()
			return

		default:
			item, err := w.rdb.BLPop(ctx, beatPollTimeout, config.WorkerKey.PersistHeartbeatsQueue).Result()
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

			var beat model.Heartbeat
			if err := json.Unmarshal([]byte(item[1]), &beat); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &beat)
		}
	}
}

func (w *HeartbeatWorker) flush(ctx context.Context, batch []*model.Heartbeat) {
	if len(batch) == 0 {
		return
	}

	rows := make([][]interface{}, 0, len(batch))
	for _, b := range batch {
		rows = append(rows, []interface{}{
			b.SessionID, b.BeatAt, b.IsActive, b.WindowFocused,
			b.FullscreenActive, b.TabSwitchCount, b.MouseMovements, b.Keystrokes,
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"session_heartbeats"},
		[]string{"session_id", "beat_at", "is_active", "window_focused",
			"fullscreen_active", "tab_switch_count", "mouse_movements", "keystrokes"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Dropping heartbeat batch after failed insert")
	}
}
