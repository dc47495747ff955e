package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumora/proctor-backend/internal/model"
)

// UserRepository handles student and reviewer account access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetStudentByEmail retrieves a student account for login.
func (r *UserRepository) GetStudentByEmail(ctx context.Context, email string) (*model.Student, error) {
	s := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM students WHERE email = $1`, email,
	).Scan(&s.ID, &s.Name, &s.Email, &s.PasswordHash, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetStudentByID retrieves a student account by id.
func (r *UserRepository) GetStudentByID(ctx context.Context, id int) (*model.Student, error) {
	s := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM students WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Email, &s.PasswordHash, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetReviewerByEmail retrieves a reviewer account for login.
func (r *UserRepository) GetReviewerByEmail(ctx context.Context, email string) (*model.Reviewer, error) {
	rv := &model.Reviewer{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM reviewers WHERE email = $1`, email,
	).Scan(&rv.ID, &rv.Name, &rv.Email, &rv.PasswordHash, &rv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rv, nil
}

// GetReviewerByID retrieves a reviewer account by id.
func (r *UserRepository) GetReviewerByID(ctx context.Context, id int) (*model.Reviewer, error) {
	rv := &model.Reviewer{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM reviewers WHERE id = $1`, id,
	).Scan(&rv.ID, &rv.Name, &rv.Email, &rv.PasswordHash, &rv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rv, nil
}

// CreateReviewer inserts a reviewer account (bootstrap tooling).
func (r *UserRepository) CreateReviewer(ctx context.Context, rv *model.Reviewer) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO reviewers (name, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		rv.Name, rv.Email, rv.PasswordHash,
	).Scan(&rv.ID, &rv.CreatedAt)
}
