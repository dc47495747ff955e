package engine

import (
	"github.com/lumora/proctor-backend/internal/model"
)

// transitions is the authoritative lifecycle table. Anything absent here
// is an invalid transition.
//
//	NOT_STARTED → IN_PROGRESS
//	IN_PROGRESS ⇄ PAUSED
//	IN_PROGRESS → COMPLETED | TIMED_OUT | FLAGGED
//	FLAGGED     → COMPLETED | TIMED_OUT   (flagging does not end the attempt)
var transitions = map[model.SessionStatus][]model.SessionStatus{
	model.SessionStatusNotStarted: {model.SessionStatusInProgress},
	model.SessionStatusInProgress: {
		model.SessionStatusPaused,
		model.SessionStatusCompleted,
		model.SessionStatusTimedOut,
		model.SessionStatusFlagged,
	},
	model.SessionStatusPaused:  {model.SessionStatusInProgress},
	model.SessionStatusFlagged: {model.SessionStatusCompleted, model.SessionStatusTimedOut},
}

// CanTransition reports whether from → to is in the lifecycle table.
func CanTransition(from, to model.SessionStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition when from → to is illegal.
func CheckTransition(from, to model.SessionStatus) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	return nil
}

// CheckPause validates a pause request against state and settings.
func CheckPause(status model.SessionStatus, settings model.AntiCheatSettings) error {
	if !settings.PauseAllowed {
		return ErrInvalidTransition
	}
	return CheckTransition(status, model.SessionStatusPaused)
}

// AcceptsAnswers reports whether answer submissions are allowed in the
// given status. A flagged session keeps accepting answers unless the
// assessment locks it: stopping an attempt on a false positive is worse
// than letting a human review afterward.
func AcceptsAnswers(status model.SessionStatus, settings model.AntiCheatSettings) bool {
	switch status {
	case model.SessionStatusInProgress:
		return true
	case model.SessionStatusFlagged:
		return !settings.FlagLocksSession
	default:
		return false
	}
}

// CheckAnswer validates one answer submission against the session state
// and navigation settings. currentIndex is the furthest question the
// student has reached; submitIndex is the question being answered.
func CheckAnswer(status model.SessionStatus, settings model.AntiCheatSettings, currentIndex, submitIndex int) error {
	if !AcceptsAnswers(status, settings) {
		return ErrInvalidTransition
	}
	// Resubmitting an already-passed question is a sequence violation when
	// back navigation is off; with it on, last write wins.
	if !settings.AllowBackNavigation && submitIndex < currentIndex {
		return ErrSequenceViolation
	}
	return nil
}

// CheckSubmit validates an explicit final submission.
func CheckSubmit(status model.SessionStatus) error {
	if status == model.SessionStatusFlagged {
		return nil
	}
	return CheckTransition(status, model.SessionStatusCompleted)
}
