package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MonitorRepository serves aggregate queries for the live reviewer monitor.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// MonitorRow is one student line on the live monitor.
type MonitorRow struct {
	SessionID      uuid.UUID `json:"session_id"`
	StudentID      int       `json:"student_id"`
	StudentName    string    `json:"student_name"`
	Status         string    `json:"status"`
	TimeSpentSecs  int       `json:"time_spent_secs"`
	SuspicionScore int       `json:"suspicion_score"`
	Flagged        bool      `json:"flagged"`
	EventCount     int64     `json:"event_count"`
	AnsweredCount  int64     `json:"answered_count"`
}

// GetAssessmentSnapshot returns one row per session of the assessment
// with event and answer counts folded in.
func (r *MonitorRepository) GetAssessmentSnapshot(ctx context.Context, assessmentID uuid.UUID) ([]MonitorRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.student_id, st.name, s.status, s.time_spent_secs,
		        s.suspicion_score, s.flagged_for_review,
		        COALESCE(e.cnt, 0), COALESCE(a.cnt, 0)
		 FROM assessment_sessions s
		 JOIN students st ON st.id = s.student_id
		 LEFT JOIN (SELECT session_id, COUNT(*) cnt FROM security_events GROUP BY session_id) e
		   ON e.session_id = s.id
		 LEFT JOIN (SELECT session_id, COUNT(*) cnt FROM session_answers GROUP BY session_id) a
		   ON a.session_id = s.id
		 WHERE s.assessment_id = $1
		 ORDER BY st.name ASC`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonitorRow
	for rows.Next() {
		var m MonitorRow
		if err := rows.Scan(&m.SessionID, &m.StudentID, &m.StudentName, &m.Status,
			&m.TimeSpentSecs, &m.SuspicionScore, &m.Flagged, &m.EventCount, &m.AnsweredCount); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountTotals returns assessment-wide counters for the monitor header.
type MonitorTotals struct {
	TotalSessions int64 `json:"total_sessions"`
	TotalLive     int64 `json:"total_live"`
	TotalFinished int64 `json:"total_finished"`
	TotalFlagged  int64 `json:"total_flagged"`
	TotalEvents   int64 `json:"total_events"`
}

// CountTotals aggregates header counters in a single query.
func (r *MonitorRepository) CountTotals(ctx context.Context, assessmentID uuid.UUID) (*MonitorTotals, error) {
	t := &MonitorTotals{}
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status IN ('IN_PROGRESS','PAUSED','FLAGGED')),
		        COUNT(*) FILTER (WHERE status IN ('COMPLETED','TIMED_OUT')),
		        COUNT(*) FILTER (WHERE flagged_for_review),
		        COALESCE((SELECT COUNT(*) FROM security_events e
		                  JOIN assessment_sessions s2 ON s2.id = e.session_id
		                  WHERE s2.assessment_id = $1), 0)
		 FROM assessment_sessions WHERE assessment_id = $1`, assessmentID,
	).Scan(&t.TotalSessions, &t.TotalLive, &t.TotalFinished, &t.TotalFlagged, &t.TotalEvents)
	if err != nil {
		return nil, err
	}
	return t, nil
}
