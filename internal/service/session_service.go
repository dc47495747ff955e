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

// ErrSessionNotFound is returned when a session id does not exist or is
// owned by another student.
var ErrSessionNotFound = errors.New("session not found")

// SessionService owns the authoritative session lifecycle. Every mutation
// of an AssessmentSession goes through here; handlers and workers never
// touch the repository directly.
type SessionService struct {
	sessionRepo       *repository.SessionRepository
	attemptRepo       *repository.AttemptRepository
	eventRepo         *repository.SecurityEventRepository
	assessmentService *AssessmentService
	rdb               *redis.Client
	log               zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessionRepo *repository.SessionRepository,
	attemptRepo *repository.AttemptRepository,
	eventRepo *repository.SecurityEventRepository,
	assessmentService *AssessmentService,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo:       sessionRepo,
		attemptRepo:       attemptRepo,
		eventRepo:         eventRepo,
		assessmentService: assessmentService,
		rdb:               rdb,
		log:               log.With().Str("component", "session_service").Logger(),
	}
}

// Start opens a session for a student. Network context is captured once
// here. A second start while a session is live is rejected, never
// merged; the client that holds the session re-fetches it instead.
func (s *SessionService) Start(ctx context.Context, assessmentID uuid.UUID, studentID int, ipAddress, userAgent string) (*model.AssessmentSession, error) {
	a, err := s.assessmentService.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, engine.ErrNotAvailable
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	existing, err := s.sessionRepo.GetActive(ctx, assessmentID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		// A second tab must not get a fresh handle to the same attempt.
		return nil, engine.ErrAlreadyStarted
	}

	attempts, err := s.sessionRepo.CountAttempts(ctx, assessmentID, studentID)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	if err := s.assessmentService.CheckAvailability(ctx, a, attempts, time.Now()); err != nil {
		return nil, err
	}

	session := &model.AssessmentSession{
		AssessmentID: assessmentID,
		StudentID:    studentID,
		Status:       model.SessionStatusInProgress,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent start: the unique index made one of us lose.
			return nil, engine.ErrAlreadyStarted
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	return session, nil
}

// getOwned loads a session and verifies student ownership. studentID 0
// skips the ownership check (reviewer and worker paths).
func (s *SessionService) getOwned(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.AssessmentSession, error) {
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
	return session, nil
}

// VerifyActive checks that the student holds a live session for the
// assessment. Used to gate payload delivery so a student cannot download
// questions for an assessment they never started.
func (s *SessionService) VerifyActive(ctx context.Context, assessmentID uuid.UUID, studentID int) error {
	_, err := s.sessionRepo.GetActive(ctx, assessmentID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("verify session: %w", err)
	}
	return nil
}

// GetSnapshot returns the reconnect snapshot: the session record, derived
// timer state and the buffered answers. Read-only — reading a snapshot
// never mutates the session.
func (s *SessionService) GetSnapshot(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.SessionSnapshot, error) {
	session, err := s.getOwned(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}

	a, err := s.assessmentService.GetByID(ctx, session.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	answers, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(sessionID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}

	counts, err := s.eventRepo.CountsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	snapshot := &model.SessionSnapshot{
		Session:     *session,
		Answers:     answers,
		EventCounts: counts,
	}

	timer := engine.RestoreTimer(a.TimeLimitMinutes, session.WarningFired, session.CriticalFired)
	res := timer.Tick(session.ActiveTimeSpent(time.Now()))
	snapshot.RemainingDisplay = res.Display
	if res.Limited {
		remaining := res.RemainingSecs
		snapshot.RemainingSecs = &remaining
	}

	return snapshot, nil
}

// SubmitAnswer validates and stores one answer. Storage is last write
// wins in the Redis hash plus a durable UPSERT through the answer queue;
// navigation rules come from the lifecycle table.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessionID uuid.UUID, studentID int, req *model.SubmitAnswerRequest) (*model.SubmitAnswerResult, error) {
	session, err := s.getOwned(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}

	settings, err := s.assessmentService.GetSettings(ctx, session.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	if err := engine.CheckAnswer(session.Status, settings, session.CurrentQuestionIndex, req.QuestionIndex); err != nil {
		return nil, err
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("parse question id: %w", err)
	}

	answersKey := config.CacheKey.SessionAnswersKey(sessionID.String())
	if err := s.rdb.HSet(ctx, answersKey, req.QuestionID, req.Answer).Err(); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"session_id":      sessionID.String(),
		"question_id":     req.QuestionID,
		"answer":          req.Answer,
		"time_spent_secs": req.TimeSpentSecs,
	})
	s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)

	if err := s.sessionRepo.UpdateProgress(ctx, sessionID, req.QuestionIndex, questionID); err != nil {
		// The answer itself is saved; a stale cursor only loosens the
		// sequence check, so log and carry on.
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Failed to advance question cursor")
	}

	result := &model.SubmitAnswerResult{Saved: true}
	if next := s.nextQuestionID(ctx, session.AssessmentID, req.QuestionIndex); next != "" {
		result.NextQuestionID = &next
	}
	if hint := engine.AdaptiveHint(req.Confidence); hint != "" {
		result.AdaptiveAdjustment = &hint
	}
	return result, nil
}

// nextQuestionID resolves the following question from the cached payload
// order. Best-effort: an empty string means the client keeps its own order.
func (s *SessionService) nextQuestionID(ctx context.Context, assessmentID uuid.UUID, index int) string {
	payload, err := s.assessmentService.GetPayload(ctx, assessmentID)
	if err != nil {
		return ""
	}
	next := index + 1
	if next < 0 || next >= len(payload.Questions) {
		return ""
	}
	return payload.Questions[next].ID.String()
}

// Pause freezes the timer. The running active interval is folded into
// time_spent_secs so remaining time stops moving while paused.
func (s *SessionService) Pause(ctx context.Context, sessionID uuid.UUID, studentID int, reason string) error {
	session, err := s.getOwned(ctx, sessionID, studentID)
	if err != nil {
		return err
	}

	settings, err := s.assessmentService.GetSettings(ctx, session.AssessmentID)
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}

	if err := engine.CheckPause(session.Status, settings); err != nil {
		return err
	}

	timeSpent := session.ActiveTimeSpent(time.Now())
	ok, err := s.sessionRepo.Pause(ctx, sessionID, session.Status, timeSpent, session.Revision)
	if err != nil {
		return fmt.Errorf("pause session: %w", err)
	}
	if !ok {
		// Revision guard failed: the session moved underneath this request.
		return engine.ErrInvalidTransition
	}

	if reason != "" {
		s.log.Info().Str("session_id", sessionID.String()).Str("reason", reason).Msg("Session paused")
	}
	return nil
}

// Resume restarts the timer from the captured time_spent.
func (s *SessionService) Resume(ctx context.Context, sessionID uuid.UUID, studentID int) error {
	session, err := s.getOwned(ctx, sessionID, studentID)
	if err != nil {
		return err
	}

	if err := engine.CheckTransition(session.Status, model.SessionStatusInProgress); err != nil {
		return err
	}

	ok, err := s.sessionRepo.Resume(ctx, sessionID, session.Revision)
	if err != nil {
		return fmt.Errorf("resume session: %w", err)
	}
	if !ok {
		return engine.ErrInvalidTransition
	}
	return nil
}

// Submit is the student's explicit terminal submission. The attempt
// record is assembled synchronously and returned; durable persistence and
// buffer cleanup run through the finalize queue.
func (s *SessionService) Submit(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.AssessmentAttempt, error) {
	session, err := s.getOwned(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}

	if err := engine.CheckSubmit(session.Status); err != nil {
		return nil, err
	}

	timeSpent := session.ActiveTimeSpent(time.Now())
	ok, err := s.sessionRepo.Finish(ctx, sessionID, model.SessionStatusCompleted, timeSpent)
	if err != nil {
		return nil, fmt.Errorf("finish session: %w", err)
	}
	if !ok {
		return nil, engine.ErrInvalidTransition
	}

	return s.buildAttempt(ctx, session, model.AttemptOutcomeCompleted, timeSpent)
}

// TimeOut transitions an expired session, invoked only by the sweep.
// When the assessment auto-submits, the answers that existed at expiry
// ride along into the attempt.
func (s *SessionService) TimeOut(ctx context.Context, session *model.AssessmentSession, limitSecs int, autoSubmit bool) (*model.AssessmentAttempt, error) {
	ok, err := s.sessionRepo.Finish(ctx, session.ID, model.SessionStatusTimedOut, limitSecs)
	if err != nil {
		return nil, fmt.Errorf("finish session: %w", err)
	}
	if !ok {
		// Lost the race against a concurrent submit; nothing to do.
		return nil, nil
	}

	if !autoSubmit {
		// The attempt record is still produced — the grading boundary gets
		// whatever the student managed to answer.
		s.log.Info().Str("session_id", session.ID.String()).Msg("Session timed out without auto-submit")
	}
	return s.buildAttempt(ctx, session, model.AttemptOutcomeTimedOut, limitSecs)
}

// buildAttempt freezes the answers and integrity block into the terminal
// record and queues it for durable persistence.
func (s *SessionService) buildAttempt(ctx context.Context, session *model.AssessmentSession, outcome model.AttemptOutcome, timeSpent int) (*model.AssessmentAttempt, error) {
	answers, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(session.ID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("freeze answers: %w", err)
	}
	if answers == nil {
		answers = map[string]string{}
	}

	counts, err := s.eventRepo.CountsBySession(ctx, session.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Event counts unavailable at finalize")
	}

	missed := s.missedHeartbeatTotal(ctx, session.ID)

	attempt := &model.AssessmentAttempt{
		SessionID:     session.ID,
		AssessmentID:  session.AssessmentID,
		StudentID:     session.StudentID,
		Outcome:       outcome,
		Answers:       answers,
		TimeSpentSecs: timeSpent,
		Integrity: model.IntegrityBlock{
			SuspicionScore:   s.currentScore(ctx, session),
			EventCounts:      counts,
			MissedHeartbeats: missed,
			FlaggedForReview: session.FlaggedForReview,
			FlagReason:       session.FlagReason,
		},
		CompletedAt: time.Now(),
	}

	raw, err := json.Marshal(attempt)
	if err != nil {
		return nil, fmt.Errorf("encode attempt: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.FinalizeAttemptsQueue, raw).Err(); err != nil {
		// Queue push failed: persist inline rather than lose the attempt.
		s.log.Error().Err(err).Str("session_id", session.ID.String()).Msg("Finalize queue unavailable, persisting inline")
		if err := s.attemptRepo.Insert(ctx, attempt); err != nil {
			return nil, fmt.Errorf("persist attempt: %w", err)
		}
	}

	return attempt, nil
}

// currentScore prefers the live Redis score over the possibly stale row.
func (s *SessionService) currentScore(ctx context.Context, session *model.AssessmentSession) int {
	stateKey := config.CacheKey.SessionStateKey(session.ID.String())
	score, err := s.rdb.HGet(ctx, stateKey, "score").Int()
	if err != nil || score < session.SuspicionScore {
		return session.SuspicionScore
	}
	return score
}

// missedHeartbeatTotal reads the accumulated miss counter from Redis.
func (s *SessionService) missedHeartbeatTotal(ctx context.Context, sessionID uuid.UUID) int {
	stateKey := config.CacheKey.SessionStateKey(sessionID.String())
	missed, err := s.rdb.HGet(ctx, stateKey, "missed_beats").Int()
	if err != nil {
		return 0
	}
	return missed
}

// Flag marks a session for manual review and notifies the reviewer queue
// and the live monitor. Callable by the suspicion aggregator and by a
// human reviewer; repeated calls are harmless, the first reason sticks.
func (s *SessionService) Flag(ctx context.Context, sessionID uuid.UUID, reason string, severity model.Severity) error {
	session, err := s.getOwned(ctx, sessionID, 0)
	if err != nil {
		return err
	}

	if err := s.sessionRepo.Flag(ctx, sessionID, reason); err != nil {
		return fmt.Errorf("flag session: %w", err)
	}

	notice, _ := json.Marshal(map[string]interface{}{
		"type":       "flagged",
		"session_id": sessionID.String(),
		"student_id": session.StudentID,
		"reason":     reason,
		"severity":   severity,
	})
	// Both channels are best-effort: a missed notification is recovered by
	// the monitor's periodic refresh.
	s.rdb.Publish(ctx, config.CacheKey.ReviewQueueChannel(), notice)
	s.rdb.Publish(ctx, config.CacheKey.AssessmentMonitorChannel(session.AssessmentID.String()), notice)

	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("reason", reason).
		Str("severity", string(severity)).
		Msg("Session flagged for review")
	return nil
}

// ListFlagged serves the reviewer queue.
func (s *SessionService) ListFlagged(ctx context.Context, page, perPage int) ([]model.AssessmentSession, int64, error) {
	return s.sessionRepo.ListFlagged(ctx, page, perPage)
}

// ListRunning exposes live limited sessions for the timeout sweep.
func (s *SessionService) ListRunning(ctx context.Context) ([]repository.RunningSession, error) {
	return s.sessionRepo.ListRunning(ctx)
}

// MarkTimerLatches persists newly fired timer thresholds and announces
// them on the monitor channel.
func (s *SessionService) MarkTimerLatches(ctx context.Context, session *model.AssessmentSession, events []engine.TimerEvent) {
	warning, critical := false, false
	for _, e := range events {
		switch e {
		case engine.TimerEventWarning:
			warning = true
		case engine.TimerEventCritical:
			critical = true
		}
	}
	if !warning && !critical {
		return
	}

	if err := s.sessionRepo.SetTimerLatches(ctx, session.ID, warning, critical); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Failed to persist timer latches")
		return
	}

	for _, e := range events {
		notice, _ := json.Marshal(map[string]interface{}{
			"type":       "timer",
			"event":      e,
			"session_id": session.ID.String(),
			"student_id": session.StudentID,
		})
		s.rdb.Publish(ctx, config.CacheKey.AssessmentMonitorChannel(session.AssessmentID.String()), notice)
	}
}

// GetAttempt returns the terminal record for a finished session.
func (s *SessionService) GetAttempt(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.AssessmentAttempt, error) {
	if _, err := s.getOwned(ctx, sessionID, studentID); err != nil {
		return nil, err
	}
	attempt, err := s.attemptRepo.GetBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}
