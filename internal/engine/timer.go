package engine

import "fmt"

// Threshold tiers for remaining time. Warning covers (5, 10] minutes
// remaining, critical covers (0, 5].
const (
	warningThresholdSecs  = 10 * 60
	criticalThresholdSecs = 5 * 60
)

// Tier labels the urgency of the remaining time.
type Tier string

const (
	TierNormal   Tier = "normal"
	TierWarning  Tier = "warning"
	TierCritical Tier = "critical"
)

// TimerEvent is a threshold crossing raised by a tick. Each fires at most
// once per session, in strictly increasing severity order.
type TimerEvent string

const (
	TimerEventWarning  TimerEvent = "warning"
	TimerEventCritical TimerEvent = "critical"
	TimerEventExpired  TimerEvent = "expired"
)

// Timer converts a configured time limit and an externally supplied
// elapsed-time value into remaining time and threshold events. It owns no
// wall clock: the host calls Tick with the current time spent, so the
// timer stays correct across suspend/resume of the host.
//
// The fired latches guarantee each callback fires exactly once even when
// the tick interval is much shorter than a minute.
type Timer struct {
	limitSecs     int // 0 means no limit
	warningFired  bool
	criticalFired bool
	expiredFired  bool
}

// NewTimer creates a timer for the given limit in minutes. A nil limit
// means unlimited time: the timer reports elapsed time only and never
// fires warnings or expiry.
func NewTimer(limitMinutes *int) *Timer {
	t := &Timer{}
	if limitMinutes != nil && *limitMinutes > 0 {
		t.limitSecs = *limitMinutes * 60
	}
	return t
}

// RestoreTimer rebuilds a timer from persisted latch state, so a session
// reloaded mid-attempt does not re-fire notifications already sent.
func RestoreTimer(limitMinutes *int, warningFired, criticalFired bool) *Timer {
	t := NewTimer(limitMinutes)
	t.warningFired = warningFired
	t.criticalFired = criticalFired
	return t
}

// TickResult is the output of one timer tick.
type TickResult struct {
	Limited       bool
	RemainingSecs int
	Display       string
	Tier          Tier
	Events        []TimerEvent
}

// Tick computes remaining time for the supplied monotonic timeSpent value
// and returns any newly crossed threshold events. Events come back in
// severity order; it is on the caller to dispatch them in that order.
func (t *Timer) Tick(timeSpentSecs int) TickResult {
	if t.limitSecs == 0 {
		return TickResult{
			Limited: false,
			Display: FormatClock(timeSpentSecs),
			Tier:    TierNormal,
		}
	}

	remaining := t.limitSecs - timeSpentSecs
	if remaining < 0 {
		remaining = 0
	}

	res := TickResult{
		Limited:       true,
		RemainingSecs: remaining,
		Display:       FormatClock(remaining),
		Tier:          tierFor(remaining),
	}

	// Latched threshold crossings. A tick that jumps several thresholds at
	// once (e.g. after a long suspend) still raises every skipped event,
	// preserving warning→critical→expired ordering.
	if !t.warningFired && remaining <= warningThresholdSecs {
		t.warningFired = true
		res.Events = append(res.Events, TimerEventWarning)
	}
	if !t.criticalFired && remaining <= criticalThresholdSecs {
		t.criticalFired = true
		res.Events = append(res.Events, TimerEventCritical)
	}
	if !t.expiredFired && remaining == 0 {
		t.expiredFired = true
		res.Events = append(res.Events, TimerEventExpired)
	}

	return res
}

// Latches exposes the fired flags for persistence.
func (t *Timer) Latches() (warningFired, criticalFired bool) {
	return t.warningFired, t.criticalFired
}

func tierFor(remainingSecs int) Tier {
	switch {
	case remainingSecs <= criticalThresholdSecs:
		return TierCritical
	case remainingSecs <= warningThresholdSecs:
		return TierWarning
	default:
		return TierNormal
	}
}

// FormatClock renders seconds as hh:mm:ss when at least one hour, else mm:ss.
func FormatClock(secs int) string {
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
