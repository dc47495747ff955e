package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lumora/proctor-backend/internal/engine"
	"github.com/lumora/proctor-backend/internal/middleware"
	"github.com/lumora/proctor-backend/internal/model"
	"github.com/lumora/proctor-backend/internal/service"
	ws "github.com/lumora/proctor-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the WebSocket session stream: answers, heartbeats and
// security events over one connection.
type WSHandler struct {
	sessionService *service.SessionService
	proctorService *service.ProctorService
	eventDebounce  time.Duration
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	sessionService *service.SessionService,
	proctorService *service.ProctorService,
	eventDebounce time.Duration,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		proctorService: proctorService,
		eventDebounce:  eventDebounce,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/sessions/:session_id/stream
// Upgrades to WebSocket for real-time answer saving, heartbeats and
// security event reporting.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sid, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	studentID := claims.UserID

	// SECURITY: Verify ownership before streaming anything.
	if _, err := h.sessionService.GetSnapshot(c.Request.Context(), sid, studentID); err != nil {
		ws.WriteError(conn, "no live session")
		return
	}

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("session_id", sid.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	// Connection-local flicker collapse. The service layer debounces again
	// across connections; this one just keeps chatty clients off Redis.
	debouncer := engine.NewDebouncer(h.eventDebounce)

	for {
		data, err := ws.ReadRaw(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			ws.WriteError(conn, "malformed message")
			continue
		}

		switch envelope.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, sid, studentID, data)
		case ws.ActionHeartbeat:
			h.handleHeartbeat(conn, sid, studentID, data)
		case ws.ActionEvent:
			h.handleEvent(conn, wsLog, debouncer, sid, studentID, data)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, sid, studentID, data)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(envelope.Action))
		}
	}
}

func (h *WSHandler) handleAnswer(conn *websocket.Conn, sid uuid.UUID, studentID int, data []byte) {
	var msg ws.AnswerRequest
	if err := json.Unmarshal(data, &msg); err != nil || msg.QuestionID == "" || msg.Answer == "" {
		ws.WriteError(conn, "question_id and answer are required")
		return
	}

	// SECURITY: Validate the id is a well-formed UUID to prevent Redis key injection.
	if _, err := uuid.Parse(msg.QuestionID); err != nil {
		ws.WriteError(conn, "invalid question_id format")
		return
	}

	result, err := h.sessionService.SubmitAnswer(context.Background(), sid, studentID, &model.SubmitAnswerRequest{
		QuestionID:    msg.QuestionID,
		QuestionIndex: msg.QuestionIndex,
		Answer:        msg.Answer,
	})
	if err != nil {
		ws.WriteError(conn, err.Error())
		return
	}

	ws.WriteTyped(conn, ws.SavedResponse{
		Event:          ws.EventSaved,
		Status:         "saved",
		NextQuestionID: result.NextQuestionID,
	})
}

func (h *WSHandler) handleHeartbeat(conn *websocket.Conn, sid uuid.UUID, studentID int, data []byte) {
	var msg ws.HeartbeatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		ws.WriteError(conn, "malformed heartbeat")
		return
	}

	result, err := h.proctorService.Heartbeat(context.Background(), sid, studentID, &model.HeartbeatRequest{
		IsActive:         msg.IsActive,
		WindowFocused:    msg.WindowFocused,
		FullscreenActive: msg.FullscreenActive,
		TabSwitchCount:   msg.TabSwitchCount,
		MouseMovements:   msg.MouseMovements,
		Keystrokes:       msg.Keystrokes,
	})
	if err != nil {
		ws.WriteError(conn, err.Error())
		return
	}

	ws.WriteTyped(conn, ws.BeatResponse{
		Event:            ws.EventBeat,
		MissedBeats:      result.MissedBeats,
		RemainingSecs:    result.RemainingSecs,
		RemainingDisplay: result.RemainingDisplay,
		Tier:             result.Tier,
	})
}

func (h *WSHandler) handleEvent(conn *websocket.Conn, wsLog zerolog.Logger, debouncer *engine.Debouncer, sid uuid.UUID, studentID int, data []byte) {
	var msg ws.EventRequest
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		ws.WriteError(conn, "type is required")
		return
	}

	if !debouncer.Admit(model.SecurityEventType(msg.Type), time.Now()) {
		ws.WriteTyped(conn, ws.RecordedResponse{Event: ws.EventRecorded})
		return
	}

	var metadata json.RawMessage
	if msg.Metadata != "" && json.Valid([]byte(msg.Metadata)) {
		metadata = json.RawMessage(msg.Metadata)
	}

	event, err := h.proctorService.ReportEvent(context.Background(), sid, studentID, &model.ReportEventRequest{
		Type:     msg.Type,
		Metadata: metadata,
	})
	if err != nil {
		ws.WriteError(conn, err.Error())
		return
	}

	resp := ws.RecordedResponse{Event: ws.EventRecorded}
	if event != nil {
		resp.Severity = string(event.Severity)
		wsLog.Debug().Str("type", msg.Type).Str("severity", resp.Severity).Msg("Security event recorded")
	}
	ws.WriteTyped(conn, resp)
}

func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, sid uuid.UUID, studentID int, data []byte) {
	var msg ws.SubmitRequest
	if err := json.Unmarshal(data, &msg); err != nil || !msg.Confirm {
		ws.WriteError(conn, "submission requires confirm: true")
		return
	}

	attempt, err := h.sessionService.Submit(context.Background(), sid, studentID)
	if err != nil {
		ws.WriteError(conn, err.Error())
		return
	}

	wsLog.Info().
		Int("answers", len(attempt.Answers)).
		Int("time_spent_secs", attempt.TimeSpentSecs).
		Msg("Session submitted over WebSocket")

	ws.WriteTyped(conn, ws.SubmittedResponse{
		Event:         ws.EventSubmitted,
		Status:        "completed",
		Outcome:       string(attempt.Outcome),
		TimeSpentSecs: attempt.TimeSpentSecs,
	})
}
