package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumora/proctor-backend/internal/model"
)

// AssessmentRepository handles assessment definition data access.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

// GetByID retrieves an assessment including its anti-cheat settings.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	a := &model.Assessment{}
	var antiCheat []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, opens_at, closes_at, time_limit_minutes, max_attempts,
		        question_count, anti_cheat, status, created_at, updated_at
		 FROM assessments WHERE id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.OpensAt, &a.ClosesAt, &a.TimeLimitMinutes, &a.MaxAttempts,
		&a.QuestionCount, &antiCheat, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.AntiCheat = model.DefaultAntiCheatSettings()
	if len(antiCheat) > 0 {
		if err := json.Unmarshal(antiCheat, &a.AntiCheat); err != nil {
			return nil, fmt.Errorf("decode anti_cheat settings: %w", err)
		}
	}
	return a, nil
}

// ListPublished returns all currently published assessments, used for
// cache prewarming at startup.
func (r *AssessmentRepository) ListPublished(ctx context.Context) ([]model.Assessment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, opens_at, closes_at, time_limit_minutes, max_attempts,
		        question_count, anti_cheat, status, created_at, updated_at
		 FROM assessments WHERE status = 'PUBLISHED'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Assessment
	for rows.Next() {
		var a model.Assessment
		var antiCheat []byte
		if err := rows.Scan(&a.ID, &a.Title, &a.OpensAt, &a.ClosesAt, &a.TimeLimitMinutes,
			&a.MaxAttempts, &a.QuestionCount, &antiCheat, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.AntiCheat = model.DefaultAntiCheatSettings()
		if len(antiCheat) > 0 {
			if err := json.Unmarshal(antiCheat, &a.AntiCheat); err != nil {
				return nil, fmt.Errorf("decode anti_cheat settings: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetQuestions returns the student-facing question payload in order.
func (r *AssessmentRepository) GetQuestions(ctx context.Context, assessmentID uuid.UUID) ([]model.QuestionForStudent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_text, options, order_num
		 FROM questions
		 WHERE assessment_id = $1
		 ORDER BY order_num ASC`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.QuestionForStudent
	for rows.Next() {
		var q model.QuestionForStudent
		if err := rows.Scan(&q.ID, &q.QuestionText, &q.Options, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
