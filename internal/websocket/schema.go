package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer    Action = "answer"
	ActionHeartbeat Action = "heartbeat"
	ActionEvent     Action = "event"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest is sent by the client to save a single answer.
type AnswerRequest struct {
	Action        Action `json:"action"`
	QuestionID    string `json:"question_id"`
	QuestionIndex int    `json:"question_index"`
	Answer        string `json:"answer"`
}

// HeartbeatMessage is the periodic liveness report.
type HeartbeatMessage struct {
	Action           Action `json:"action"`
	IsActive         bool   `json:"is_active"`
	WindowFocused    bool   `json:"window_focused"`
	FullscreenActive bool   `json:"fullscreen_active"`
	TabSwitchCount   int    `json:"tab_switch_count"`
	MouseMovements   int    `json:"mouse_movements"`
	Keystrokes       int    `json:"keystrokes"`
}

// EventRequest reports one detected security event.
type EventRequest struct {
	Action   Action `json:"action"`
	Type     string `json:"type"`
	Metadata string `json:"metadata"` // Receives the JSON string directly
}

// SubmitRequest is sent by the client to finish the session; confirmation
// is explicit so a stray frame cannot end the attempt.
type SubmitRequest struct {
	Action  Action `json:"action"`
	Confirm bool   `json:"confirm"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventSaved     Event = "saved"
	EventRecorded  Event = "recorded"
	EventBeat      Event = "beat"
	EventSubmitted Event = "submitted"
	EventPong      Event = "pong"
)

type SavedResponse struct {
	Event          Event   `json:"event"`
	Status         string  `json:"status"`
	NextQuestionID *string `json:"next_question_id,omitempty"`
}

type RecordedResponse struct {
	Event    Event  `json:"event"`
	Severity string `json:"severity,omitempty"`
}

// BeatResponse acknowledges a heartbeat and carries the remaining clock
// back, so connected clients get a timer tick with every beat.
type BeatResponse struct {
	Event            Event  `json:"event"`
	MissedBeats      int    `json:"missed_beats"`
	RemainingSecs    *int   `json:"remaining_secs,omitempty"`
	RemainingDisplay string `json:"remaining_display,omitempty"`
	Tier             string `json:"tier,omitempty"`
}

type SubmittedResponse struct {
	Event         Event  `json:"event"`
	Status        string `json:"status"`
	Outcome       string `json:"outcome"`
	TimeSpentSecs int    `json:"time_spent_secs"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
