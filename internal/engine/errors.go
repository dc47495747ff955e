// Package engine holds the pure core of the assessment session engine:
// the countdown timer, the lifecycle transition table, security event
// classification, and suspicion scoring. Nothing in this package touches
// the network or a database, which keeps every rule unit-testable.
package engine

import "errors"

var (
	// ErrInvalidTransition is returned when a requested lifecycle change
	// is illegal from the current state. State is left untouched; the
	// engine never coerces an illegal request into a legal one.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrSequenceViolation is returned when an answer submission violates
	// the assessment's navigation settings (re-answering a passed question
	// with back navigation disabled).
	ErrSequenceViolation = errors.New("answer sequence violation")

	// ErrNotAvailable is returned when a start request falls outside the
	// assessment's availability window or the attempt count is exhausted.
	ErrNotAvailable = errors.New("assessment not available")

	// ErrAlreadyStarted is returned when a start request arrives while a
	// live session already exists for the same assessment and student.
	// The duplicate is rejected, never merged; reconnecting clients
	// re-fetch the session they hold instead of starting again.
	ErrAlreadyStarted = errors.New("session already started")
)
