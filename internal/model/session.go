package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates assessment session lifecycle states.
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "NOT_STARTED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusPaused     SessionStatus = "PAUSED"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusTimedOut   SessionStatus = "TIMED_OUT"
	SessionStatusFlagged    SessionStatus = "FLAGGED"
)

// Terminal reports whether no further lifecycle transition is possible.
// FLAGGED is deliberately not terminal: a flagged session keeps running
// for the student and is finished by submit or the timeout sweep.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusTimedOut
}

// AssessmentSession is the authoritative record of one student's attempt.
type AssessmentSession struct {
	ID           uuid.UUID     `json:"id"`
	AssessmentID uuid.UUID     `json:"assessment_id"`
	StudentID    int           `json:"student_id"`
	Status       SessionStatus `json:"status"`

	StartedAt   time.Time  `json:"started_at"`
	PausedAt    *time.Time `json:"paused_at,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`

	// TimeSpentSecs accumulates completed active intervals; the interval
	// currently running is measured from LastResumedAt. It never decreases.
	TimeSpentSecs int        `json:"time_spent_secs"`
	LastResumedAt *time.Time `json:"last_resumed_at,omitempty"`

	CurrentQuestionIndex int        `json:"current_question_index"`
	CurrentQuestionID    *uuid.UUID `json:"current_question_id,omitempty"`

	SuspicionScore   int     `json:"suspicion_score"`
	FlaggedForReview bool    `json:"flagged_for_review"`
	FlagReason       *string `json:"flag_reason,omitempty"`

	// Timer latches: each threshold notification fires once per session.
	WarningFired  bool `json:"warning_fired"`
	CriticalFired bool `json:"critical_fired"`

	// Captured once at start.
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`

	// Revision guards transitions with optimistic concurrency. A request
	// carrying a stale revision is rejected, never merged.
	Revision int `json:"revision"`
}

// ActiveTimeSpent returns accumulated plus in-flight active seconds as of now.
func (s *AssessmentSession) ActiveTimeSpent(now time.Time) int {
	total := s.TimeSpentSecs
	if (s.Status == SessionStatusInProgress || s.Status == SessionStatusFlagged) && s.LastResumedAt != nil {
		if d := int(now.Sub(*s.LastResumedAt).Seconds()); d > 0 {
			total += d
		}
	}
	return total
}

// SessionSnapshot is what the client reconciles against on reconnect:
// the session record plus derived timer state and buffered answers.
type SessionSnapshot struct {
	Session          AssessmentSession `json:"session"`
	RemainingSecs    *int              `json:"remaining_secs,omitempty"` // nil when unlimited
	RemainingDisplay string            `json:"remaining_display,omitempty"`
	Answers          map[string]string `json:"answers"`
	EventCounts      SeverityCounts    `json:"event_counts"`
}

// SubmitAnswerRequest is the payload for one answer submission.
type SubmitAnswerRequest struct {
	QuestionID    string  `json:"question_id" binding:"required,uuid"`
	QuestionIndex int     `json:"question_index" binding:"min=0"`
	Answer        string  `json:"answer" binding:"required"`
	TimeSpentSecs int     `json:"time_spent_secs" binding:"min=0"`
	Confidence    *int    `json:"confidence" binding:"omitempty,min=0,max=100"`
}

// SubmitAnswerResult optionally carries adaptive feedback back to the client.
type SubmitAnswerResult struct {
	Saved              bool    `json:"saved"`
	NextQuestionID     *string `json:"next_question_id,omitempty"`
	AdaptiveAdjustment *string `json:"adaptive_adjustment,omitempty"` // "easier" | "harder"
}

// PauseSessionRequest carries the optional pause reason.
type PauseSessionRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=255"`
}

// SubmitSessionRequest requires explicit confirmation so a stray call
// cannot terminate an attempt.
type SubmitSessionRequest struct {
	ConfirmSubmission bool `json:"confirm_submission" binding:"required"`
}

// FlagSessionRequest is used by reviewers (and the aggregator) to flag a session.
type FlagSessionRequest struct {
	Reason   string `json:"reason" binding:"required,min=3,max=500"`
	Severity string `json:"severity" binding:"required,oneof=low medium high"`
}
