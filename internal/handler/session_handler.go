package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lumora/proctor-backend/internal/engine"
	"github.com/lumora/proctor-backend/internal/middleware"
	"github.com/lumora/proctor-backend/internal/model"
	"github.com/lumora/proctor-backend/internal/response"
	"github.com/lumora/proctor-backend/internal/service"
	"github.com/lumora/proctor-backend/internal/validator"
)

// SessionHandler handles the student-facing session lifecycle endpoints.
type SessionHandler struct {
	sessionService    *service.SessionService
	assessmentService *service.AssessmentService
	proctorService    *service.ProctorService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	sessionService *service.SessionService,
	assessmentService *service.AssessmentService,
	proctorService *service.ProctorService,
) *SessionHandler {
	return &SessionHandler{
		sessionService:    sessionService,
		assessmentService: assessmentService,
		proctorService:    proctorService,
	}
}

// failSessionError maps engine errors to their API codes.
func failSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrNotAvailable):
		response.Fail(c, http.StatusConflict, response.ErrNotAvailable)
	case errors.Is(err, engine.ErrAlreadyStarted):
		response.Fail(c, http.StatusConflict, response.ErrSessionInProgress)
	case errors.Is(err, engine.ErrInvalidTransition):
		response.Fail(c, http.StatusConflict, response.ErrInvalidTransition)
	case errors.Is(err, engine.ErrSequenceViolation):
		response.Fail(c, http.StatusConflict, response.ErrSequenceViolation)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrUnknownEventType):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownEventType)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// ListAssessments godoc
// GET /api/v1/student/assessments
// Returns assessments currently published to students.
func (h *SessionHandler) ListAssessments(c *gin.Context) {
	assessments, err := h.assessmentService.ListPublished(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if assessments == nil {
		assessments = []model.Assessment{}
	}
	response.Success(c, http.StatusOK, gin.H{"assessments": assessments})
}

// StartSession godoc
// POST /api/v1/student/assessments/:assessment_id/sessions
// Opens a session. A start while one is already live is rejected;
// the client re-fetches the session it holds instead.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.Start(c.Request.Context(), assessmentID, claims.UserID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// GetPayload godoc
// GET /api/v1/student/assessments/:assessment_id/payload
// Returns the question payload from Redis (bypasses PostgreSQL).
// SECURITY: Requires a live session for this assessment — prevents IDOR.
func (h *SessionHandler) GetPayload(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.sessionService.VerifyActive(c.Request.Context(), assessmentID, claims.UserID); err != nil {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	payload, err := h.assessmentService.GetPayload(c.Request.Context(), assessmentID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, payload)
}

// sessionID parses the :session_id route param.
func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// GetSession godoc
// GET /api/v1/student/sessions/:session_id
// Returns the reconnect snapshot: session record, remaining time, buffered
// answers. Covers page reloads; reading it never mutates the session.
func (h *SessionHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := sessionID(c)
	if !ok {
		return
	}

	snapshot, err := h.sessionService.GetSnapshot(c.Request.Context(), id, claims.UserID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, snapshot)
}

// SubmitAnswer godoc
// POST /api/v1/student/sessions/:session_id/answers
// Saves one answer (last write wins under allowed back navigation).
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.SubmitAnswer(c.Request.Context(), id, claims.UserID, &req)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// PauseSession godoc
// POST /api/v1/student/sessions/:session_id/pause
func (h *SessionHandler) PauseSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.PauseSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.Pause(c.Request.Context(), id, claims.UserID, req.Reason); err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": model.SessionStatusPaused})
}

// ResumeSession godoc
// POST /api/v1/student/sessions/:session_id/resume
func (h *SessionHandler) ResumeSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := sessionID(c)
	if !ok {
		return
	}

	if err := h.sessionService.Resume(c.Request.Context(), id, claims.UserID); err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": model.SessionStatusInProgress})
}

// SubmitSession godoc
// POST /api/v1/student/sessions/:session_id/submit
// Terminal submission. Requires confirm_submission: a stray call without
// it never ends the attempt.
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.SubmitSessionRequest
	if fields := validator.Bind(c, &req); fields != nil || !req.ConfirmSubmission {
		response.Fail(c, http.StatusBadRequest, response.ErrConfirmationMissing)
		return
	}

	attempt, err := h.sessionService.Submit(c.Request.Context(), id, claims.UserID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// GetResult godoc
// GET /api/v1/student/sessions/:session_id/result
// Returns the terminal attempt record once the session is finished.
func (h *SessionHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := sessionID(c)
	if !ok {
		return
	}

	attempt, err := h.sessionService.GetAttempt(c.Request.Context(), id, claims.UserID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// Heartbeat godoc
// POST /api/v1/student/sessions/:session_id/heartbeat
// Records one liveness report; long silences before it are scored.
func (h *SessionHandler) Heartbeat(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.HeartbeatRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.proctorService.Heartbeat(c.Request.Context(), id, claims.UserID, &req)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ReportEvent godoc
// POST /api/v1/student/sessions/:session_id/events
// Records one detected security event. Disabled detectors and debounced
// duplicates are accepted silently.
func (h *SessionHandler) ReportEvent(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.ReportEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	event, err := h.proctorService.ReportEvent(c.Request.Context(), id, claims.UserID, &req)
	if err != nil {
		failSessionError(c, err)
		return
	}

	if event == nil {
		response.Success(c, http.StatusOK, gin.H{"recorded": false})
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"recorded": true, "event": event})
}
