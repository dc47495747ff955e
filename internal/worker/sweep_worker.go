package worker

import (
	"context"
	"time"

	"github.com/lumora/proctor-backend/internal/engine"
	"github.com/lumora/proctor-backend/internal/repository"
	"github.com/lumora/proctor-backend/internal/service"
	"github.com/rs/zerolog"
)

// SweepWorker is the server-side clock. Clients tick their own timers for
// display, but expiry is enforced here: every interval the sweep walks
// the live limited sessions, fires overdue threshold notifications and
// times out sessions whose limit has passed — whether or not the client
// is still connected. It also force-resumes sessions paused beyond their
// assessment's allowance, so a pause cannot stop the clock forever.
type SweepWorker struct {
	sessionService *service.SessionService
	sessionRepo    *repository.SessionRepository
	interval       time.Duration
	log            zerolog.Logger
}

// NewSweepWorker creates a new SweepWorker.
func NewSweepWorker(
	sessionService *service.SessionService,
	sessionRepo *repository.SessionRepository,
	interval time.Duration,
	log zerolog.Logger,
) *SweepWorker {
	return &SweepWorker{
		sessionService: sessionService,
		sessionRepo:    sessionRepo,
		interval:       interval,
		log:            log.With().Str("component", "sweep_worker").Logger(),
	}
}

func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("SweepWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("SweepWorker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) {
	w.sweepRunning(ctx)
	w.sweepPaused(ctx)
}

// sweepRunning ticks every live limited session against the wall clock.
func (w *SweepWorker) sweepRunning(ctx context.Context) {
	running, err := w.sessionService.ListRunning(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to list running sessions")
		return
	}

	now := time.Now()
	expired := 0

	for i := range running {
		rs := &running[i]
		session := &rs.Session

		timer := engine.RestoreTimer(rs.TimeLimitMinutes, session.WarningFired, session.CriticalFired)
		res := timer.Tick(session.ActiveTimeSpent(now))

		hasExpired := false
		for _, e := range res.Events {
			if e == engine.TimerEventExpired {
				hasExpired = true
			}
		}

		if len(res.Events) > 0 {
			w.sessionService.MarkTimerLatches(ctx, session, res.Events)
		}

		if hasExpired {
			limitSecs := 0
			if rs.TimeLimitMinutes != nil {
				limitSecs = *rs.TimeLimitMinutes * 60
			}
			if _, err := w.sessionService.TimeOut(ctx, session, limitSecs, rs.AutoSubmit); err != nil {
				w.log.Error().Err(err).Str("session_id", session.ID.String()).Msg("Failed to time out session")
				continue
			}
			expired++
		}
	}

	if expired > 0 {
		w.log.Info().Int("count", expired).Msg("Timed out expired sessions")
	}
}

// sweepPaused force-resumes sessions paused beyond their allowance.
func (w *SweepWorker) sweepPaused(ctx context.Context) {
	overdue, err := w.sessionRepo.ListOverduePaused(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to list overdue paused sessions")
		return
	}

	for _, s := range overdue {
		ok, err := w.sessionRepo.Resume(ctx, s.ID, s.Revision)
		if err != nil {
			w.log.Error().Err(err).Str("session_id", s.ID.String()).Msg("Failed to force-resume session")
			continue
		}
		if ok {
			w.log.Info().Str("session_id", s.ID.String()).Msg("Force-resumed session past pause allowance")
		}
	}
}
