package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lumora/proctor-backend/internal/middleware"
	"github.com/lumora/proctor-backend/internal/model"
	"github.com/lumora/proctor-backend/internal/repository"
	"github.com/lumora/proctor-backend/internal/response"
	"github.com/lumora/proctor-backend/internal/service"
	"github.com/lumora/proctor-backend/internal/validator"
)

// ReviewHandler handles the reviewer-facing flagged-session queue.
type ReviewHandler struct {
	sessionService *service.SessionService
	eventRepo      *repository.SecurityEventRepository
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(sessionService *service.SessionService, eventRepo *repository.SecurityEventRepository) *ReviewHandler {
	return &ReviewHandler{
		sessionService: sessionService,
		eventRepo:      eventRepo,
	}
}

// ListFlagged godoc
// GET /api/v1/review/sessions/flagged?page=&per_page=
// Returns flagged sessions, newest first.
func (h *ReviewHandler) ListFlagged(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	sessions, total, err := h.sessionService.ListFlagged(c.Request.Context(), page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if sessions == nil {
		sessions = []model.AssessmentSession{}
	}

	totalPages := int(total) / perPage
	if int(total)%perPage != 0 {
		totalPages++
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"sessions": sessions}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}

// GetSessionDetail godoc
// GET /api/v1/review/sessions/:session_id
// Returns the session, its full event trace and the severity counts.
func (h *ReviewHandler) GetSessionDetail(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	snapshot, err := h.sessionService.GetSnapshot(c.Request.Context(), id, 0)
	if err != nil {
		failSessionError(c, err)
		return
	}

	events, err := h.eventRepo.ListBySession(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if events == nil {
		events = []model.SecurityEvent{}
	}

	response.Success(c, http.StatusOK, gin.H{
		"session":      snapshot.Session,
		"event_counts": snapshot.EventCounts,
		"events":       events,
	})
}

// FlagSession godoc
// POST /api/v1/review/sessions/:session_id/flag
// Manually flags a session. Idempotent: the first reason sticks.
func (h *ReviewHandler) FlagSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.FlagSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.Flag(c.Request.Context(), id, req.Reason, model.Severity(req.Severity)); err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"flagged": true})
}

// ReviewEvent godoc
// POST /api/v1/review/events/:event_id/review
// Annotates one security event with reviewer notes.
func (h *ReviewHandler) ReviewEvent(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	eventID, err := uuid.Parse(c.Param("event_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ReviewEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	found, err := h.eventRepo.Annotate(c.Request.Context(), eventID, claims.UserID, req.Notes)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if !found {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reviewed": true})
}
