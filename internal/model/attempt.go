package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptOutcome distinguishes how an attempt ended.
type AttemptOutcome string

const (
	AttemptOutcomeCompleted AttemptOutcome = "COMPLETED"
	AttemptOutcomeTimedOut  AttemptOutcome = "TIMED_OUT"
)

// AssessmentAttempt is the immutable terminal record handed to the
// grading boundary when a session completes or times out.
type AssessmentAttempt struct {
	ID            uuid.UUID         `json:"id"`
	SessionID     uuid.UUID         `json:"session_id"`
	AssessmentID  uuid.UUID         `json:"assessment_id"`
	StudentID     int               `json:"student_id"`
	Outcome       AttemptOutcome    `json:"outcome"`
	Answers       map[string]string `json:"answers"` // question id → answer, frozen at submission
	TimeSpentSecs int               `json:"time_spent_secs"`
	Integrity     IntegrityBlock    `json:"integrity"`
	CompletedAt   time.Time         `json:"completed_at"`
}

// IntegrityBlock summarizes the security trace of an attempt.
type IntegrityBlock struct {
	SuspicionScore   int            `json:"suspicion_score"`
	EventCounts      SeverityCounts `json:"event_counts"`
	MissedHeartbeats int            `json:"missed_heartbeats"`
	FlaggedForReview bool           `json:"flagged_for_review"`
	FlagReason       *string        `json:"flag_reason,omitempty"`
}
