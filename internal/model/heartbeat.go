package model

import (
	"time"

	"github.com/google/uuid"
)

// Heartbeat is one periodic liveness/environment report for a session.
type Heartbeat struct {
	SessionID        uuid.UUID `json:"session_id"`
	BeatAt           time.Time `json:"beat_at"`
	IsActive         bool      `json:"is_active"`
	WindowFocused    bool      `json:"window_focused"`
	FullscreenActive bool      `json:"fullscreen_active"`
	TabSwitchCount   int       `json:"tab_switch_count"`
	MouseMovements   int       `json:"mouse_movements"`
	Keystrokes       int       `json:"keystrokes"`
}

// HeartbeatRequest is the client payload for sessionHeartbeat.
type HeartbeatRequest struct {
	Timestamp        *time.Time `json:"timestamp" binding:"omitempty"`
	IsActive         bool       `json:"is_active"`
	WindowFocused    bool       `json:"window_focused"`
	FullscreenActive bool       `json:"fullscreen_active"`
	TabSwitchCount   int        `json:"tab_switch_count" binding:"min=0"`
	MouseMovements   int        `json:"mouse_movements" binding:"min=0"`
	Keystrokes       int        `json:"keystrokes" binding:"min=0"`
}
