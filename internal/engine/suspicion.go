package engine

import (
	"github.com/lumora/proctor-backend/internal/model"
)

// Severity weights for the suspicion score. The legacy system only
// exposed a configurable threshold, so the concrete increments are our
// choice; what matters is low < medium < high and that the score never
// decreases within a session.
const (
	WeightLow             = 1
	WeightMedium          = 3
	WeightHigh            = 6
	WeightMissedHeartbeat = 2
)

// SeverityWeight returns the score increment for one event of the given severity.
func SeverityWeight(sev model.Severity) int {
	switch sev {
	case model.SeverityHigh:
		return WeightHigh
	case model.SeverityMedium:
		return WeightMedium
	default:
		return WeightLow
	}
}

// Suspicion folds the event stream and heartbeat anomalies into one
// monotonically non-decreasing score and a latched flag decision.
// Suspicion is not forgiven mid-attempt: nothing ever subtracts.
type Suspicion struct {
	threshold int // 0 disables flagging
	score     int
	counts    model.SeverityCounts
	missed    int
	flagged   bool
}

// NewSuspicion creates an aggregator with the assessment's configured
// threshold.
func NewSuspicion(threshold int) *Suspicion {
	return &Suspicion{threshold: threshold}
}

// RestoreSuspicion rebuilds an aggregator from persisted state so a
// reloaded session cannot re-trigger the flag request.
func RestoreSuspicion(threshold, score int, counts model.SeverityCounts, missed int, flagged bool) *Suspicion {
	return &Suspicion{
		threshold: threshold,
		score:     score,
		counts:    counts,
		missed:    missed,
		flagged:   flagged,
	}
}

// RecordEvent accumulates one security event and reports whether this
// event crossed the threshold. The crossing reports true exactly once per
// session; later qualifying events still accumulate but never re-trigger.
func (a *Suspicion) RecordEvent(sev model.Severity) (crossed bool) {
	a.score += SeverityWeight(sev)
	switch sev {
	case model.SeverityHigh:
		a.counts.High++
	case model.SeverityMedium:
		a.counts.Medium++
	default:
		a.counts.Low++
	}
	return a.latch()
}

// Add accumulates a pre-weighted increment and reports whether it
// crossed the threshold. Callers that hold the weighted delta already
// (the shared Redis counter path) use this instead of RecordEvent.
func (a *Suspicion) Add(delta int) (crossed bool) {
	if delta <= 0 {
		return false
	}
	a.score += delta
	return a.latch()
}

// RecordMissedHeartbeats accumulates n consecutive missed heartbeats and
// reports whether they crossed the threshold.
func (a *Suspicion) RecordMissedHeartbeats(n int) (crossed bool) {
	if n <= 0 {
		return false
	}
	a.missed += n
	a.score += n * WeightMissedHeartbeat
	return a.latch()
}

func (a *Suspicion) latch() bool {
	if a.flagged || a.threshold <= 0 || a.score < a.threshold {
		return false
	}
	a.flagged = true
	return true
}

// Score returns the current running score.
func (a *Suspicion) Score() int { return a.score }

// Counts returns the per-severity event counts.
func (a *Suspicion) Counts() model.SeverityCounts { return a.counts }

// MissedHeartbeats returns the accumulated missed heartbeat count.
func (a *Suspicion) MissedHeartbeats() int { return a.missed }

// Flagged reports whether the threshold has been crossed.
func (a *Suspicion) Flagged() bool { return a.flagged }
