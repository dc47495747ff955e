package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AssessmentStatus enumerates the possible states of an assessment.
type AssessmentStatus string

const (
	AssessmentStatusDraft     AssessmentStatus = "DRAFT"
	AssessmentStatusPublished AssessmentStatus = "PUBLISHED"
	AssessmentStatusClosed    AssessmentStatus = "CLOSED"
	AssessmentStatusArchived  AssessmentStatus = "ARCHIVED"
)

// Assessment represents a timed, proctored assessment definition.
type Assessment struct {
	ID               uuid.UUID         `json:"id"`
	Title            string            `json:"title"`
	OpensAt          *time.Time        `json:"opens_at,omitempty"`
	ClosesAt         *time.Time        `json:"closes_at,omitempty"`
	TimeLimitMinutes *int              `json:"time_limit_minutes,omitempty"` // nil means unlimited
	MaxAttempts      int               `json:"max_attempts"`
	QuestionCount    int               `json:"question_count"`
	AntiCheat        AntiCheatSettings `json:"anti_cheat"`
	Status           AssessmentStatus  `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// AntiCheatSettings configures detectors, thresholds and enforcement for
// one assessment. Read-only input to the engine; the engine never mutates it.
type AntiCheatSettings struct {
	// Detector toggles
	TabSwitchDetection bool `json:"tab_switch_detection"`
	CopyPasteBlock     bool `json:"copy_paste_block"`
	RightClickBlock    bool `json:"right_click_block"`
	FullscreenRequired bool `json:"fullscreen_required"`
	FaceDetection      bool `json:"face_detection"`

	// Thresholds
	MaxTabSwitches              int `json:"max_tab_switches"`
	MaxWindowBlurEvents         int `json:"max_window_blur_events"`
	SuspiciousActivityThreshold int `json:"suspicious_activity_threshold"`

	// Enforcement
	LockdownBrowser     bool `json:"lockdown_browser"`
	AutoSubmitOnTimeUp  bool `json:"auto_submit_on_time_up"`
	PauseAllowed        bool `json:"pause_allowed"`
	MaxPauseMinutes     int  `json:"max_pause_minutes"`
	AllowBackNavigation bool `json:"allow_back_navigation"`
	// FlagLocksSession makes a flagged session stop accepting answers.
	// Off by default: flagging is an annotation for reviewers, not a lock.
	FlagLocksSession bool `json:"flag_locks_session"`
}

// DefaultAntiCheatSettings returns the settings applied when an
// assessment carries no explicit configuration.
func DefaultAntiCheatSettings() AntiCheatSettings {
	return AntiCheatSettings{
		TabSwitchDetection:          true,
		CopyPasteBlock:              true,
		RightClickBlock:             true,
		MaxTabSwitches:              5,
		MaxWindowBlurEvents:         8,
		SuspiciousActivityThreshold: 10,
		AutoSubmitOnTimeUp:          true,
		AllowBackNavigation:         true,
	}
}

// AssessmentPayload is the Redis-cached payload delivered to students
// at session start (question text only, no answer keys).
type AssessmentPayload struct {
	AssessmentID     uuid.UUID            `json:"assessment_id"`
	Title            string               `json:"title"`
	TimeLimitMinutes *int                 `json:"time_limit_minutes,omitempty"`
	Questions        []QuestionForStudent `json:"questions"`
}

// QuestionForStudent is a question as shown to the student.
type QuestionForStudent struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	Options      json.RawMessage `json:"options"`
	OrderNum     int             `json:"order_num"`
}
