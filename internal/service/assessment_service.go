package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lumora/proctor-backend/internal/config"
	"github.com/lumora/proctor-backend/internal/engine"
	"github.com/lumora/proctor-backend/internal/model"
	"github.com/lumora/proctor-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AssessmentService serves assessment definitions and their Redis-cached
// delivery payloads.
type AssessmentService struct {
	assessmentRepo *repository.AssessmentRepository
	rdb            *redis.Client
	log            zerolog.Logger
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(assessmentRepo *repository.AssessmentRepository, rdb *redis.Client, log zerolog.Logger) *AssessmentService {
	return &AssessmentService{
		assessmentRepo: assessmentRepo,
		rdb:            rdb,
		log:            log.With().Str("component", "assessment_service").Logger(),
	}
}

// GetByID returns the assessment row, anti-cheat settings decoded.
func (s *AssessmentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	return s.assessmentRepo.GetByID(ctx, id)
}

// ListPublished returns assessments students may currently see.
func (s *AssessmentService) ListPublished(ctx context.Context) ([]model.Assessment, error) {
	return s.assessmentRepo.ListPublished(ctx)
}

// CheckAvailability validates the assessment window and attempt count for
// a start request. All failure modes map to NotAvailable: the student only
// learns the assessment cannot be started, not why.
func (s *AssessmentService) CheckAvailability(ctx context.Context, a *model.Assessment, priorAttempts int, now time.Time) error {
	if a.Status != model.AssessmentStatusPublished {
		return engine.ErrNotAvailable
	}
	if a.OpensAt != nil && now.Before(*a.OpensAt) {
		return engine.ErrNotAvailable
	}
	if a.ClosesAt != nil && now.After(*a.ClosesAt) {
		return engine.ErrNotAvailable
	}
	if a.MaxAttempts > 0 && priorAttempts >= a.MaxAttempts {
		return engine.ErrNotAvailable
	}
	return nil
}

// GetPayload returns the student-facing question payload from Redis,
// falling back to PostgreSQL on a cache miss and re-priming the cache.
func (s *AssessmentService) GetPayload(ctx context.Context, assessmentID uuid.UUID) (*model.AssessmentPayload, error) {
	key := config.CacheKey.AssessmentPayloadKey(assessmentID.String())

	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		payload := &model.AssessmentPayload{}
		if err := json.Unmarshal([]byte(raw), payload); err == nil {
			return payload, nil
		}
		// Corrupt cache entry: fall through and rebuild.
		s.log.Warn().Str("assessment_id", assessmentID.String()).Msg("Corrupt payload cache entry, rebuilding")
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get payload cache: %w", err)
	}

	return s.primePayload(ctx, assessmentID)
}

// primePayload builds the payload from PostgreSQL and stores it in Redis.
func (s *AssessmentService) primePayload(ctx context.Context, assessmentID uuid.UUID) (*model.AssessmentPayload, error) {
	a, err := s.assessmentRepo.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	questions, err := s.assessmentRepo.GetQuestions(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}

	payload := &model.AssessmentPayload{
		AssessmentID:     a.ID,
		Title:            a.Title,
		TimeLimitMinutes: a.TimeLimitMinutes,
		Questions:        questions,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	key := config.CacheKey.AssessmentPayloadKey(assessmentID.String())
	if err := s.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		// Cache write failure is not fatal; the next request rebuilds again.
		s.log.Warn().Err(err).Str("assessment_id", assessmentID.String()).Msg("Failed to cache payload")
	}

	return payload, nil
}

// GetSettings returns the assessment's anti-cheat settings through the
// Redis cache, falling back to PostgreSQL and self-healing on a miss.
func (s *AssessmentService) GetSettings(ctx context.Context, assessmentID uuid.UUID) (model.AntiCheatSettings, error) {
	key := config.CacheKey.AssessmentSettingsKey(assessmentID.String())

	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		settings := model.DefaultAntiCheatSettings()
		if err := json.Unmarshal([]byte(raw), &settings); err == nil {
			return settings, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return model.AntiCheatSettings{}, fmt.Errorf("get settings cache: %w", err)
	}

	a, err := s.assessmentRepo.GetByID(ctx, assessmentID)
	if err != nil {
		return model.AntiCheatSettings{}, fmt.Errorf("get assessment: %w", err)
	}

	if encoded, err := json.Marshal(a.AntiCheat); err == nil {
		_ = s.rdb.Set(ctx, key, encoded, 0)
	}
	return a.AntiCheat, nil
}

// PrewarmAllCaches loads every published assessment's payload and
// settings into Redis before the server accepts traffic, avoiding lazy
// loading under a thundering herd at exam start.
func (s *AssessmentService) PrewarmAllCaches(ctx context.Context) error {
	assessments, err := s.assessmentRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published: %w", err)
	}

	for i := range assessments {
		a := &assessments[i]
		if _, err := s.primePayload(ctx, a.ID); err != nil {
			s.log.Warn().Err(err).Str("assessment_id", a.ID.String()).Msg("Payload prewarm failed")
			continue
		}

		settings, err := json.Marshal(a.AntiCheat)
		if err != nil {
			continue
		}
		key := config.CacheKey.AssessmentSettingsKey(a.ID.String())
		if err := s.rdb.Set(ctx, key, settings, 0).Err(); err != nil {
			s.log.Warn().Err(err).Str("assessment_id", a.ID.String()).Msg("Settings prewarm failed")
		}
	}

	s.log.Info().Int("count", len(assessments)).Msg("Assessment caches prewarmed")
	return nil
}
