package engine

import (
	"errors"
	"testing"

	"github.com/lumora/proctor-backend/internal/model"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to model.SessionStatus
		ok       bool
	}{
		{model.SessionStatusNotStarted, model.SessionStatusInProgress, true},
		{model.SessionStatusInProgress, model.SessionStatusPaused, true},
		{model.SessionStatusPaused, model.SessionStatusInProgress, true},
		{model.SessionStatusInProgress, model.SessionStatusCompleted, true},
		{model.SessionStatusInProgress, model.SessionStatusTimedOut, true},
		{model.SessionStatusInProgress, model.SessionStatusFlagged, true},
		{model.SessionStatusFlagged, model.SessionStatusCompleted, true},
		{model.SessionStatusFlagged, model.SessionStatusTimedOut, true},

		// Illegal requests.
		{model.SessionStatusNotStarted, model.SessionStatusPaused, false},
		{model.SessionStatusNotStarted, model.SessionStatusCompleted, false},
		{model.SessionStatusPaused, model.SessionStatusCompleted, false}, // submit from paused
		{model.SessionStatusPaused, model.SessionStatusPaused, false},    // pause while paused
		{model.SessionStatusCompleted, model.SessionStatusInProgress, false},
		{model.SessionStatusTimedOut, model.SessionStatusInProgress, false},
		{model.SessionStatusCompleted, model.SessionStatusFlagged, false},
	}

	for _, c := range cases {
		err := CheckTransition(c.from, c.to)
		if c.ok && err != nil {
			t.Errorf("%s → %s: unexpected error %v", c.from, c.to, err)
		}
		if !c.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s → %s: expected ErrInvalidTransition, got %v", c.from, c.to, err)
		}
	}
}

func TestCheckPause(t *testing.T) {
	allowed := model.AntiCheatSettings{PauseAllowed: true}
	denied := model.AntiCheatSettings{PauseAllowed: false}

	if err := CheckPause(model.SessionStatusInProgress, allowed); err != nil {
		t.Fatalf("pause while in progress: %v", err)
	}
	// pauseAllowed=false → InvalidTransition even from a legal state.
	if err := CheckPause(model.SessionStatusInProgress, denied); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pause with pauseAllowed=false: got %v", err)
	}
	// Pause while already paused → InvalidTransition.
	if err := CheckPause(model.SessionStatusPaused, allowed); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pause while paused: got %v", err)
	}
}

func TestCheckAnswerNavigation(t *testing.T) {
	forward := model.AntiCheatSettings{AllowBackNavigation: false}
	free := model.AntiCheatSettings{AllowBackNavigation: true}

	// Re-answering a passed question with back navigation off fails.
	err := CheckAnswer(model.SessionStatusInProgress, forward, 4, 2)
	if !errors.Is(err, ErrSequenceViolation) {
		t.Fatalf("expected ErrSequenceViolation, got %v", err)
	}

	// Same resubmission succeeds with back navigation on (last write wins).
	if err := CheckAnswer(model.SessionStatusInProgress, free, 4, 2); err != nil {
		t.Fatalf("back navigation allowed: %v", err)
	}

	// Answering the current question is always fine.
	if err := CheckAnswer(model.SessionStatusInProgress, forward, 4, 4); err != nil {
		t.Fatalf("current question: %v", err)
	}

	// Answers are only accepted while in progress.
	err = CheckAnswer(model.SessionStatusPaused, free, 0, 0)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("answer while paused: got %v", err)
	}
}

func TestFlaggedSessionKeepsAnswering(t *testing.T) {
	open := model.AntiCheatSettings{AllowBackNavigation: true}
	locked := model.AntiCheatSettings{AllowBackNavigation: true, FlagLocksSession: true}

	if !AcceptsAnswers(model.SessionStatusFlagged, open) {
		t.Fatal("flagged session should keep accepting answers by default")
	}
	if AcceptsAnswers(model.SessionStatusFlagged, locked) {
		t.Fatal("flag_locks_session should stop answers")
	}
	if err := CheckSubmit(model.SessionStatusFlagged); err != nil {
		t.Fatalf("flagged session should be submittable: %v", err)
	}
}
