package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lumora/proctor-backend/internal/repository"
	"github.com/rs/zerolog"
)

// MonitorSnapshot is the reviewer's live view of one assessment.
type MonitorSnapshot struct {
	Totals   *repository.MonitorTotals `json:"totals"`
	Sessions []repository.MonitorRow   `json:"sessions"`
}

// MonitorService serves the reviewer-side live monitor. It only reads;
// all mutation goes through SessionService.
type MonitorService struct {
	monitorRepo *repository.MonitorRepository
	log         zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitorRepo *repository.MonitorRepository, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		monitorRepo: monitorRepo,
		log:         log.With().Str("component", "monitor_service").Logger(),
	}
}

// GetSnapshot assembles the live view for one assessment. Totals and row
// data are independent queries, fetched concurrently.
func (s *MonitorService) GetSnapshot(ctx context.Context, assessmentID uuid.UUID) (*MonitorSnapshot, error) {
	var (
		wg        sync.WaitGroup
		totals    *repository.MonitorTotals
		sessions  []repository.MonitorRow
		totalsErr error
		rowsErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		totals, totalsErr = s.monitorRepo.CountTotals(ctx, assessmentID)
	}()
	go func() {
		defer wg.Done()
		sessions, rowsErr = s.monitorRepo.GetAssessmentSnapshot(ctx, assessmentID)
	}()
	wg.Wait()

	if totalsErr != nil {
		return nil, fmt.Errorf("count totals: %w", totalsErr)
	}
	if rowsErr != nil {
		return nil, fmt.Errorf("load sessions: %w", rowsErr)
	}
	if sessions == nil {
		sessions = []repository.MonitorRow{}
	}

	return &MonitorSnapshot{Totals: totals, Sessions: sessions}, nil
}
