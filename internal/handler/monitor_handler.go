package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lumora/proctor-backend/internal/config"
	"github.com/lumora/proctor-backend/internal/middleware"
	"github.com/lumora/proctor-backend/internal/response"
	"github.com/lumora/proctor-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams the live proctoring view to reviewers.
type MonitorHandler struct {
	rdb               *redis.Client
	assessmentService *service.AssessmentService
	monitorService    *service.MonitorService
	log               zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	rdb *redis.Client,
	assessmentService *service.AssessmentService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:               rdb,
		assessmentService: assessmentService,
		monitorService:    monitorService,
		log:               log.With().Str("component", "monitor_handler").Logger(),
	}
}

// GetMonitorSnapshot godoc
// GET /api/v1/review/assessments/:assessment_id/monitor/snapshot
// One-shot snapshot for clients that cannot hold an SSE connection.
func (h *MonitorHandler) GetMonitorSnapshot(c *gin.Context) {
	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	snapshot, err := h.monitorService.GetSnapshot(c.Request.Context(), assessmentID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, snapshot)
}

// MonitorAssessmentSSE godoc
// GET /api/v1/review/assessments/:assessment_id/monitor
// Live monitor stream: initial snapshot, then security events, flags and
// timer notices forwarded from Redis Pub/Sub, with periodic full refreshes.
func (h *MonitorHandler) MonitorAssessmentSSE(c *gin.Context) {
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

	assessment, err := h.assessmentService.GetByID(c.Request.Context(), assessmentID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")

	h.sendSnapshot(c, reqCtx, assessmentID, "snapshot", gin.H{
		"id":             assessmentID.String(),
		"title":          assessment.Title,
		"time_limit":     assessment.TimeLimitMinutes,
		"question_count": assessment.QuestionCount,
	})

	channelName := config.CacheKey.AssessmentMonitorChannel(assessmentID.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Skip refresh queries until the stream has shown any activity.
	hasActivity := false

	h.log.Info().Str("assessment_id", assessmentID.String()).Int("reviewer_id", claims.UserID).Msg("Reviewer attached to live monitor SSE")

	// Pre-allocate a reusable ping payload (never changes)
	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("assessment_id", assessmentID.String()).Msg("Reviewer disconnected from live monitor SSE")
			return

		case msg := <-ch:
			// Forward raw JSON directly — no deserialization needed
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

			hasActivity = true

		case <-refreshTicker.C:
			if !hasActivity {
				continue
			}
			h.sendSnapshot(c, reqCtx, assessmentID, "refresh", nil)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendSnapshot gathers the live view and writes one SSE event. A scoped
// timeout keeps a slow query from stalling the loop.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, parentCtx context.Context, assessmentID uuid.UUID, eventType string, assessmentInfo gin.H) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	snapshot, err := h.monitorService.GetSnapshot(ctx, assessmentID)
	if err != nil {
		h.log.Warn().Err(err).Str("assessment_id", assessmentID.String()).Msg("Failed to build monitor snapshot")
		return
	}

	payload := gin.H{
		"type":     eventType,
		"totals":   snapshot.Totals,
		"sessions": snapshot.Sessions,
	}
	if assessmentInfo != nil {
		payload["assessment"] = assessmentInfo
	}

	c.SSEvent("message", payload)
	c.Writer.Flush()
}
