package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SecurityEventType enumerates the discrete tamper/attention signals.
type SecurityEventType string

const (
	EventTabSwitch          SecurityEventType = "tab_switch"
	EventWindowBlur         SecurityEventType = "window_blur"
	EventFullscreenExit     SecurityEventType = "fullscreen_exit"
	EventCopyAttempt        SecurityEventType = "copy_attempt"
	EventPasteAttempt       SecurityEventType = "paste_attempt"
	EventRightClick         SecurityEventType = "right_click"
	EventKeyCombination     SecurityEventType = "key_combination"
	EventSuspiciousBehavior SecurityEventType = "suspicious_behavior"
	EventFaceNotDetected    SecurityEventType = "face_not_detected"
	EventMultipleFaces      SecurityEventType = "multiple_faces"
	EventNoiseDetected      SecurityEventType = "noise_detected"
)

// Valid reports whether t is a known event type.
func (t SecurityEventType) Valid() bool {
	switch t {
	case EventTabSwitch, EventWindowBlur, EventFullscreenExit,
		EventCopyAttempt, EventPasteAttempt, EventRightClick,
		EventKeyCombination, EventSuspiciousBehavior,
		EventFaceNotDetected, EventMultipleFaces, EventNoiseDetected:
		return true
	}
	return false
}

// Severity classifies how damning a security event is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityCounts buckets recorded events for the review screen, so a
// reviewer never re-derives anything from the raw trace.
type SeverityCounts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Total returns the number of events across all severities.
func (c SeverityCounts) Total() int { return c.Low + c.Medium + c.High }

// SecurityEvent is one recorded tamper/attention signal. Immutable once
// recorded, except for the reviewer annotation fields.
type SecurityEvent struct {
	ID           uuid.UUID         `json:"id"`
	SessionID    uuid.UUID         `json:"session_id"`
	Type         SecurityEventType `json:"type"`
	Severity     Severity          `json:"severity"`
	AutoDetected bool              `json:"auto_detected"`
	OccurredAt   time.Time         `json:"occurred_at"`
	Metadata     json.RawMessage   `json:"metadata,omitempty"`

	// Reviewer annotation, applied post-hoc.
	Reviewed   bool       `json:"reviewed"`
	ReviewedBy *int       `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

// ReportEventRequest is the client payload for reportSecurityEvent.
type ReportEventRequest struct {
	Type       string          `json:"type" binding:"required"`
	OccurredAt *time.Time      `json:"occurred_at" binding:"omitempty"`
	Metadata   json.RawMessage `json:"metadata" binding:"omitempty"`
}

// ReviewEventRequest annotates a recorded event.
type ReviewEventRequest struct {
	Notes string `json:"notes" binding:"required,min=1,max=1000"`
}
