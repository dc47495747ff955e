package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lumora/proctor-backend/internal/config"
	"github.com/lumora/proctor-backend/internal/engine"
	"github.com/lumora/proctor-backend/internal/model"
	"github.com/lumora/proctor-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrUnknownEventType is returned for event types outside the known taxonomy.
var ErrUnknownEventType = errors.New("unknown security event type")

// lastBeatTTL keeps heartbeat bookkeeping from outliving its session.
const lastBeatTTL = 24 * time.Hour

// ProctorService ingests the high-frequency proctoring stream: heartbeats
// and security events. Everything here is write-heavy and best-effort
// beyond the Redis buffer; durable persistence happens in the workers.
type ProctorService struct {
	sessionRepo       *repository.SessionRepository
	sessionService    *SessionService
	assessmentService *AssessmentService
	rdb               *redis.Client
	heartbeatInterval time.Duration
	eventDebounce     time.Duration
	log               zerolog.Logger
}

// NewProctorService creates a new ProctorService.
func NewProctorService(
	sessionRepo *repository.SessionRepository,
	sessionService *SessionService,
	assessmentService *AssessmentService,
	rdb *redis.Client,
	heartbeatInterval time.Duration,
	eventDebounce time.Duration,
	log zerolog.Logger,
) *ProctorService {
	return &ProctorService{
		sessionRepo:       sessionRepo,
		sessionService:    sessionService,
		assessmentService: assessmentService,
		rdb:               rdb,
		heartbeatInterval: heartbeatInterval,
		eventDebounce:     eventDebounce,
		log:               log.With().Str("component", "proctor_service").Logger(),
	}
}

// getLive loads a session, checks ownership and that the proctoring
// stream is still open (any non-terminal state).
func (s *ProctorService) getLive(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.AssessmentSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if studentID != 0 && session.StudentID != studentID {
		return nil, ErrSessionNotFound
	}
	if session.Status.Terminal() {
		return nil, engine.ErrInvalidTransition
	}
	return session, nil
}

// HeartbeatResult tells the client how the beat landed and doubles as a
// timer tick: every beat carries the remaining clock back.
type HeartbeatResult struct {
	MissedBeats      int    `json:"missed_beats"`
	RemainingSecs    *int   `json:"remaining_secs,omitempty"` // nil when unlimited
	RemainingDisplay string `json:"remaining_display,omitempty"`
	Tier             string `json:"tier,omitempty"`
}

// Heartbeat records one liveness report. The beat itself is buffered and
// persisted asynchronously; a long silence before this beat is scored as
// missed heartbeats. Connectivity gaps never fail the request.
func (s *ProctorService) Heartbeat(ctx context.Context, sessionID uuid.UUID, studentID int, req *model.HeartbeatRequest) (*HeartbeatResult, error) {
	session, err := s.getLive(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	beatAt := now
	if req.Timestamp != nil && !req.Timestamp.After(now) {
		beatAt = *req.Timestamp
	}

	beatKey := config.CacheKey.SessionLastBeatKey(sessionID.String())
	var missed int
	if raw, err := s.rdb.GetSet(ctx, beatKey, beatAt.UnixMilli()).Result(); err == nil {
		var lastMilli int64
		if _, scanErr := fmt.Sscanf(raw, "%d", &lastMilli); scanErr == nil {
			missed = engine.MissedBeats(time.UnixMilli(lastMilli), beatAt, s.heartbeatInterval)
		}
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Heartbeat bookkeeping unavailable")
	}
	s.rdb.Expire(ctx, beatKey, lastBeatTTL)

	beat := &model.Heartbeat{
		SessionID:        sessionID,
		BeatAt:           beatAt,
		IsActive:         req.IsActive,
		WindowFocused:    req.WindowFocused,
		FullscreenActive: req.FullscreenActive,
		TabSwitchCount:   req.TabSwitchCount,
		MouseMovements:   req.MouseMovements,
		Keystrokes:       req.Keystrokes,
	}
	if raw, err := json.Marshal(beat); err == nil {
		if err := s.rdb.RPush(ctx, config.WorkerKey.PersistHeartbeatsQueue, raw).Err(); err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Failed to buffer heartbeat")
		}
	}

	if missed > 0 {
		stateKey := config.CacheKey.SessionStateKey(sessionID.String())
		s.rdb.HIncrBy(ctx, stateKey, "missed_beats", int64(missed))
		s.addSuspicion(ctx, session, missed*engine.WeightMissedHeartbeat,
			fmt.Sprintf("connectivity gap: %d missed heartbeats", missed), model.SeverityMedium)
	}

	result := &HeartbeatResult{MissedBeats: missed}
	if a, err := s.assessmentService.GetByID(ctx, session.AssessmentID); err == nil {
		timer := engine.RestoreTimer(a.TimeLimitMinutes, session.WarningFired, session.CriticalFired)
		tick := timer.Tick(session.ActiveTimeSpent(now))
		result.RemainingDisplay = tick.Display
		result.Tier = string(tick.Tier)
		if tick.Limited {
			remaining := tick.RemainingSecs
			result.RemainingSecs = &remaining
		}
	}
	return result, nil
}

// ReportEvent validates, classifies and buffers one security event. The
// returned event is nil when the detector is off for this assessment or
// the occurrence fell inside the debounce window of the previous one —
// both are accepted silently so clients need no special handling.
func (s *ProctorService) ReportEvent(ctx context.Context, sessionID uuid.UUID, studentID int, req *model.ReportEventRequest) (*model.SecurityEvent, error) {
	eventType := model.SecurityEventType(req.Type)
	if !eventType.Valid() {
		return nil, ErrUnknownEventType
	}

	session, err := s.getLive(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}

	settings, err := s.assessmentService.GetSettings(ctx, session.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if !engine.DetectorEnabled(eventType, settings) {
		return nil, nil
	}

	now := time.Now()
	occurredAt := now
	if req.OccurredAt != nil && !req.OccurredAt.After(now) {
		occurredAt = *req.OccurredAt
	}

	// Flicker collapse across requests: only the first occurrence of a type
	// inside the window is recorded.
	debounceKey := config.CacheKey.SessionLastEventKey(sessionID.String(), string(eventType))
	if s.eventDebounce > 0 {
		admitted, err := s.rdb.SetNX(ctx, debounceKey, occurredAt.UnixMilli(), s.eventDebounce).Result()
		if err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Event debounce unavailable, admitting")
		} else if !admitted {
			return nil, nil
		}
	}

	stateKey := config.CacheKey.SessionStateKey(sessionID.String())
	prior := int64(0)
	if n, err := s.rdb.HIncrBy(ctx, stateKey, "count:"+string(eventType), 1).Result(); err == nil {
		prior = n - 1
	}

	event := &model.SecurityEvent{
		ID:           uuid.New(),
		SessionID:    sessionID,
		Type:         eventType,
		Severity:     engine.ClassifySeverity(eventType, settings, int(prior)),
		AutoDetected: true,
		OccurredAt:   occurredAt,
		Metadata:     req.Metadata,
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistEventsQueue, raw).Err(); err != nil {
		return nil, fmt.Errorf("buffer event: %w", err)
	}

	notice, _ := json.Marshal(map[string]interface{}{
		"type":       "security_event",
		"session_id": sessionID.String(),
		"student_id": session.StudentID,
		"event_type": eventType,
		"severity":   event.Severity,
	})
	s.rdb.Publish(ctx, config.CacheKey.AssessmentMonitorChannel(session.AssessmentID.String()), notice)

	s.addSuspicion(ctx, session, engine.SeverityWeight(event.Severity),
		fmt.Sprintf("suspicion threshold reached after %s", eventType), event.Severity)

	return event, nil
}

// addSuspicion applies one score increment against the shared Redis score
// and flags the session when the assessment threshold is crossed. The
// Redis counter is the concurrency point: many requests can increment at
// once but HSetNX hands the flag trigger to exactly one of them.
// Failures here are logged, never surfaced: scoring must not break the
// proctoring stream.
func (s *ProctorService) addSuspicion(ctx context.Context, session *model.AssessmentSession, delta int, reason string, severity model.Severity) {
	if delta <= 0 {
		return
	}

	stateKey := config.CacheKey.SessionStateKey(session.ID.String())
	score, err := s.rdb.HIncrBy(ctx, stateKey, "score", int64(delta)).Result()
	if err != nil {
		s.log.Error().Err(err).Str("session_id", session.ID.String()).Msg("Failed to update suspicion score")
		return
	}

	if err := s.sessionRepo.UpdateSuspicion(ctx, session.ID, int(score)); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Failed to persist suspicion score")
	}

	settings, err := s.assessmentService.GetSettings(ctx, session.AssessmentID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Settings unavailable for threshold check")
		return
	}
	// Replay this increment against the pre-increment score; the engine
	// decides whether it was the crossing one.
	agg := engine.RestoreSuspicion(settings.SuspiciousActivityThreshold, int(score)-delta, model.SeverityCounts{}, 0, false)
	if !agg.Add(delta) {
		return
	}

	// Concurrent increments can both see a crossing; HSetNX hands the
	// flag trigger to exactly one of them.
	first, err := s.rdb.HSetNX(ctx, stateKey, "flagged", 1).Result()
	if err != nil || !first {
		return
	}

	if err := s.sessionService.Flag(ctx, session.ID, reason, severity); err != nil {
		s.log.Error().Err(err).Str("session_id", session.ID.String()).Msg("Failed to flag session on threshold crossing")
	}
}
