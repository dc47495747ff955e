package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumora/proctor-backend/internal/model"
)

// SecurityEventRepository handles the append-only security event trace.
type SecurityEventRepository struct {
	pool *pgxpool.Pool
}

// NewSecurityEventRepository creates a new SecurityEventRepository.
func NewSecurityEventRepository(pool *pgxpool.Pool) *SecurityEventRepository {
	return &SecurityEventRepository{pool: pool}
}

// BulkInsert writes a batch of events with CopyFrom. The id assigned
// at ingest time is persisted as-is so the trace can be annotated by
// the id the client was given. Client-side detection order is
// preserved through occurred_at plus the serial ordering column
// assigned on insert.
func (r *SecurityEventRepository) BulkInsert(ctx context.Context, events []*model.SecurityEvent) error {
	rows := make([][]interface{}, 0, len(events))
	for _, e := range events {
		rows = append(rows, []interface{}{
			e.ID, e.SessionID, string(e.Type), string(e.Severity), e.AutoDetected, e.OccurredAt, e.Metadata,
		})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"security_events"},
		[]string{"id", "session_id", "type", "severity", "auto_detected", "occurred_at", "metadata"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// Insert writes a single event, used as the row-by-row fallback path.
func (r *SecurityEventRepository) Insert(ctx context.Context, e *model.SecurityEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO security_events (id, session_id, type, severity, auto_detected, occurred_at, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.SessionID, string(e.Type), string(e.Severity), e.AutoDetected, e.OccurredAt, e.Metadata)
	return err
}

// ListBySession returns the full trace for one session in detection order.
func (r *SecurityEventRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.SecurityEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, type, severity, auto_detected, occurred_at, metadata,
		        reviewed, reviewed_by, reviewed_at, notes
		 FROM security_events
		 WHERE session_id = $1
		 ORDER BY occurred_at ASC, seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.SecurityEvent
	for rows.Next() {
		var e model.SecurityEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Type, &e.Severity, &e.AutoDetected,
			&e.OccurredAt, &e.Metadata, &e.Reviewed, &e.ReviewedBy, &e.ReviewedAt, &e.Notes); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountsBySession buckets the persisted trace by severity.
func (r *SecurityEventRepository) CountsBySession(ctx context.Context, sessionID uuid.UUID) (model.SeverityCounts, error) {
	var c model.SeverityCounts
	err := r.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE severity = 'low'),
		   COUNT(*) FILTER (WHERE severity = 'medium'),
		   COUNT(*) FILTER (WHERE severity = 'high')
		 FROM security_events WHERE session_id = $1`, sessionID,
	).Scan(&c.Low, &c.Medium, &c.High)
	return c, err
}

// Annotate applies a reviewer note to a recorded event. The event itself
// stays immutable; only the review fields change.
func (r *SecurityEventRepository) Annotate(ctx context.Context, eventID uuid.UUID, reviewerID int, notes string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE security_events
		 SET reviewed = TRUE, reviewed_by = $1, reviewed_at = NOW(), notes = $2
		 WHERE id = $3`,
		reviewerID, notes, eventID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
