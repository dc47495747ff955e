package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumora/proctor-backend/internal/model"
)

const sessionColumns = `id, assessment_id, student_id, status, started_at, paused_at,
	submitted_at, time_spent_secs, last_resumed_at, current_question_index,
	current_question_id, suspicion_score, flagged_for_review, flag_reason,
	warning_fired, critical_fired, ip_address, user_agent, revision`

// SessionRepository handles assessment session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.AssessmentSession, error) {
	s := &model.AssessmentSession{}
	err := row.Scan(
		&s.ID, &s.AssessmentID, &s.StudentID, &s.Status, &s.StartedAt, &s.PausedAt,
		&s.SubmittedAt, &s.TimeSpentSecs, &s.LastResumedAt, &s.CurrentQuestionIndex,
		&s.CurrentQuestionID, &s.SuspicionScore, &s.FlaggedForReview, &s.FlagReason,
		&s.WarningFired, &s.CriticalFired, &s.IPAddress, &s.UserAgent, &s.Revision,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new session in IN_PROGRESS. The partial unique index on
// (assessment_id, student_id) WHERE status NOT IN terminal states means a
// concurrent start hits ON CONFLICT and returns pgx.ErrNoRows; the caller
// then fetches the winner, so a second start is never merged into a new row.
func (r *SessionRepository) Create(ctx context.Context, s *model.AssessmentSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO assessment_sessions
		   (assessment_id, student_id, status, last_resumed_at, ip_address, user_agent)
		 VALUES ($1, $2, $3, NOW(), $4, $5)
		 ON CONFLICT (assessment_id, student_id) WHERE status IN ('IN_PROGRESS','PAUSED','FLAGGED') DO NOTHING
		 RETURNING id, started_at, last_resumed_at, revision`,
		s.AssessmentID, s.StudentID, model.SessionStatusInProgress, s.IPAddress, s.UserAgent,
	).Scan(&s.ID, &s.StartedAt, &s.LastResumedAt, &s.Revision)
}

// GetByID retrieves a session by its id.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AssessmentSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM assessment_sessions WHERE id = $1`, id))
}

// GetActive retrieves the live (non-terminal) session for an
// assessment-student pair, if any.
func (r *SessionRepository) GetActive(ctx context.Context, assessmentID uuid.UUID, studentID int) (*model.AssessmentSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM assessment_sessions
		 WHERE assessment_id = $1 AND student_id = $2
		   AND status IN ('IN_PROGRESS','PAUSED','FLAGGED')`,
		assessmentID, studentID))
}

// CountAttempts returns how many sessions the student has opened for the
// assessment, live or finished.
func (r *SessionRepository) CountAttempts(ctx context.Context, assessmentID uuid.UUID, studentID int) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM assessment_sessions
		 WHERE assessment_id = $1 AND student_id = $2`,
		assessmentID, studentID).Scan(&n)
	return n, err
}

// Pause records a pause: accumulates the running interval into
// time_spent_secs and clears last_resumed_at. The status and revision
// guard rejects a session that changed underneath the caller (stale
// tab, concurrent request); the caller maps false to a transition
// error, never a merge.
func (r *SessionRepository) Pause(ctx context.Context, id uuid.UUID, from model.SessionStatus, timeSpentSecs int, revision int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE assessment_sessions
		 SET status = 'PAUSED', paused_at = NOW(), time_spent_secs = $1,
		     last_resumed_at = NULL, revision = revision + 1
		 WHERE id = $2 AND status = $3 AND revision = $4`,
		timeSpentSecs, id, from, revision)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Resume restarts the active interval clock for a paused session.
func (r *SessionRepository) Resume(ctx context.Context, id uuid.UUID, revision int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE assessment_sessions
		 SET status = 'IN_PROGRESS', paused_at = NULL, last_resumed_at = NOW(),
		     revision = revision + 1
		 WHERE id = $1 AND status = 'PAUSED' AND revision = $2`,
		id, revision)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Finish closes a session into COMPLETED or TIMED_OUT with its final
// accumulated time. The status guard keeps a double submit idempotent at
// the caller level: the second update simply matches zero rows.
func (r *SessionRepository) Finish(ctx context.Context, id uuid.UUID, to model.SessionStatus, timeSpentSecs int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE assessment_sessions
		 SET status = $1, submitted_at = NOW(), time_spent_secs = $2,
		     last_resumed_at = NULL, revision = revision + 1
		 WHERE id = $3 AND status IN ('IN_PROGRESS','FLAGGED')`,
		to, timeSpentSecs, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateProgress advances the navigation cursor after an accepted answer.
func (r *SessionRepository) UpdateProgress(ctx context.Context, id uuid.UUID, questionIndex int, questionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assessment_sessions
		 SET current_question_index = GREATEST(current_question_index, $1),
		     current_question_id = $2
		 WHERE id = $3`,
		questionIndex, questionID, id)
	return err
}

// UpdateSuspicion persists the aggregator state. The GREATEST guard keeps
// the stored score monotone even if updates land out of order.
func (r *SessionRepository) UpdateSuspicion(ctx context.Context, id uuid.UUID, score int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assessment_sessions
		 SET suspicion_score = GREATEST(suspicion_score, $1)
		 WHERE id = $2`,
		score, id)
	return err
}

// Flag marks a session for manual review. The flagged_for_review bit and
// reason stick even when the lifecycle status cannot move to FLAGGED
// anymore (e.g. reviewer flags a completed attempt).
func (r *SessionRepository) Flag(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assessment_sessions
		 SET flagged_for_review = TRUE,
		     flag_reason = COALESCE(flag_reason, $1),
		     status = CASE WHEN status = 'IN_PROGRESS' THEN 'FLAGGED' ELSE status END,
		     revision = revision + 1
		 WHERE id = $2`,
		reason, id)
	return err
}

// SetTimerLatches persists the fired flags so threshold notifications
// survive a server restart without re-firing.
func (r *SessionRepository) SetTimerLatches(ctx context.Context, id uuid.UUID, warning, critical bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assessment_sessions
		 SET warning_fired = warning_fired OR $1,
		     critical_fired = critical_fired OR $2
		 WHERE id = $3`,
		warning, critical, id)
	return err
}

// ListRunning returns all live sessions for the timeout sweep, joined
// with their assessment's time limit and auto-submit setting.
type RunningSession struct {
	Session          model.AssessmentSession
	TimeLimitMinutes *int
	AutoSubmit       bool
}

// ListRunning fetches every IN_PROGRESS or FLAGGED session of
// assessments that carry a time limit.
func (r *SessionRepository) ListRunning(ctx context.Context) ([]RunningSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.assessment_id, s.student_id, s.status, s.started_at, s.paused_at,
		        s.submitted_at, s.time_spent_secs, s.last_resumed_at, s.current_question_index,
		        s.current_question_id, s.suspicion_score, s.flagged_for_review, s.flag_reason,
		        s.warning_fired, s.critical_fired, s.ip_address, s.user_agent, s.revision,
		        a.time_limit_minutes,
		        COALESCE((a.anti_cheat->>'auto_submit_on_time_up')::boolean, TRUE)
		 FROM assessment_sessions s
		 JOIN assessments a ON a.id = s.assessment_id
		 WHERE s.status IN ('IN_PROGRESS','FLAGGED')
		   AND a.time_limit_minutes IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunningSession
	for rows.Next() {
		var rs RunningSession
		s := &rs.Session
		if err := rows.Scan(
			&s.ID, &s.AssessmentID, &s.StudentID, &s.Status, &s.StartedAt, &s.PausedAt,
			&s.SubmittedAt, &s.TimeSpentSecs, &s.LastResumedAt, &s.CurrentQuestionIndex,
			&s.CurrentQuestionID, &s.SuspicionScore, &s.FlaggedForReview, &s.FlagReason,
			&s.WarningFired, &s.CriticalFired, &s.IPAddress, &s.UserAgent, &s.Revision,
			&rs.TimeLimitMinutes, &rs.AutoSubmit,
		); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// ListOverduePaused returns paused sessions that have exceeded their
// assessment's pause allowance and must be force-resumed.
func (r *SessionRepository) ListOverduePaused(ctx context.Context) ([]model.AssessmentSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.assessment_id, s.student_id, s.status, s.started_at, s.paused_at,
		        s.submitted_at, s.time_spent_secs, s.last_resumed_at, s.current_question_index,
		        s.current_question_id, s.suspicion_score, s.flagged_for_review, s.flag_reason,
		        s.warning_fired, s.critical_fired, s.ip_address, s.user_agent, s.revision
		 FROM assessment_sessions s
		 JOIN assessments a ON a.id = s.assessment_id
		 WHERE s.status = 'PAUSED'
		   AND COALESCE((a.anti_cheat->>'max_pause_minutes')::int, 0) > 0
		   AND s.paused_at < NOW() - make_interval(mins => (a.anti_cheat->>'max_pause_minutes')::int)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AssessmentSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// ListFlagged returns flagged sessions for the reviewer queue, newest first.
func (r *SessionRepository) ListFlagged(ctx context.Context, page, perPage int) ([]model.AssessmentSession, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM assessment_sessions WHERE flagged_for_review`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM assessment_sessions
		 WHERE flagged_for_review
		 ORDER BY started_at DESC
		 LIMIT $1 OFFSET $2`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []model.AssessmentSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, total, rows.Err()
}
