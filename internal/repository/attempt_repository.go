package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumora/proctor-backend/internal/model"
)

// AttemptRepository handles terminal attempt records.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Insert writes an immutable attempt. ON CONFLICT keeps finalization
// idempotent: the worker may retry and the sweep may race a submit, but
// one session only ever yields one attempt.
func (r *AttemptRepository) Insert(ctx context.Context, a *model.AssessmentAttempt) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	integrity, err := json.Marshal(a.Integrity)
	if err != nil {
		return fmt.Errorf("encode integrity: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO assessment_attempts
		   (session_id, assessment_id, student_id, outcome, answers, time_spent_secs, integrity, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (session_id) DO NOTHING`,
		a.SessionID, a.AssessmentID, a.StudentID, a.Outcome, answers, a.TimeSpentSecs, integrity, a.CompletedAt)
	return err
}

// GetBySession fetches the attempt produced by one session.
func (r *AttemptRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.AssessmentAttempt, error) {
	a := &model.AssessmentAttempt{}
	var answers, integrity []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, session_id, assessment_id, student_id, outcome, answers, time_spent_secs, integrity, completed_at
		 FROM assessment_attempts WHERE session_id = $1`, sessionID,
	).Scan(&a.ID, &a.SessionID, &a.AssessmentID, &a.StudentID, &a.Outcome, &answers,
		&a.TimeSpentSecs, &integrity, &a.CompletedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(answers, &a.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	if err := json.Unmarshal(integrity, &a.Integrity); err != nil {
		return nil, fmt.Errorf("decode integrity: %w", err)
	}
	return a, nil
}
