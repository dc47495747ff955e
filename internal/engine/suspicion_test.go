package engine

import (
	"testing"

	"github.com/lumora/proctor-backend/internal/model"
)

func TestSuspicionMonotone(t *testing.T) {
	a := NewSuspicion(100)

	prev := 0
	record := func(f func()) {
		f()
		if a.Score() < prev {
			t.Fatalf("score decreased: %d → %d", prev, a.Score())
		}
		prev = a.Score()
	}

	record(func() { a.RecordEvent(model.SeverityLow) })
	record(func() { a.RecordEvent(model.SeverityHigh) })
	record(func() { a.RecordMissedHeartbeats(3) })
	record(func() { a.RecordEvent(model.SeverityMedium) })
	record(func() { a.RecordMissedHeartbeats(0) }) // no-op, never subtracts

	want := WeightLow + WeightHigh + 3*WeightMissedHeartbeat + WeightMedium
	if a.Score() != want {
		t.Fatalf("score = %d, want %d", a.Score(), want)
	}
}

func TestSuspicionSingleFlagTrigger(t *testing.T) {
	// Threshold at the equivalent of 6 low events.
	a := NewSuspicion(6 * WeightLow)

	// 5 low tab-switch events → below threshold, not flagged.
	for i := 0; i < 5; i++ {
		if a.RecordEvent(model.SeverityLow) {
			t.Fatalf("flag requested below threshold at event %d", i+1)
		}
	}
	if a.Flagged() {
		t.Fatal("flagged below threshold")
	}

	// 6th event crosses it → exactly one flag request.
	if !a.RecordEvent(model.SeverityLow) {
		t.Fatal("threshold crossing did not request flag")
	}
	if !a.Flagged() {
		t.Fatal("aggregator not flagged after crossing")
	}

	// Further qualifying events accumulate but never re-trigger.
	for i := 0; i < 4; i++ {
		if a.RecordEvent(model.SeverityHigh) {
			t.Fatal("flag re-triggered after crossing")
		}
	}
	if a.Score() != 6*WeightLow+4*WeightHigh {
		t.Fatalf("score stopped accumulating: %d", a.Score())
	}
}

func TestSuspicionCounts(t *testing.T) {
	a := NewSuspicion(0) // threshold disabled

	a.RecordEvent(model.SeverityLow)
	a.RecordEvent(model.SeverityLow)
	a.RecordEvent(model.SeverityMedium)
	a.RecordEvent(model.SeverityHigh)

	c := a.Counts()
	if c.Low != 2 || c.Medium != 1 || c.High != 1 || c.Total() != 4 {
		t.Fatalf("counts = %+v", c)
	}
	if a.Flagged() {
		t.Fatal("disabled threshold must never flag")
	}
}

func TestSuspicionMissedHeartbeatCrossing(t *testing.T) {
	a := NewSuspicion(2 * WeightMissedHeartbeat)

	if a.RecordMissedHeartbeats(1) {
		t.Fatal("single miss crossed early")
	}
	if !a.RecordMissedHeartbeats(1) {
		t.Fatal("second miss should cross threshold")
	}
	if a.RecordMissedHeartbeats(5) {
		t.Fatal("flag re-triggered by later misses")
	}
	if a.MissedHeartbeats() != 7 {
		t.Fatalf("missed = %d, want 7", a.MissedHeartbeats())
	}
}

func TestRestoreSuspicionKeepsLatch(t *testing.T) {
	a := RestoreSuspicion(10, 12, model.SeverityCounts{Medium: 4}, 0, true)

	// Already flagged before restore: no re-trigger, score keeps moving.
	if a.RecordEvent(model.SeverityHigh) {
		t.Fatal("restored aggregator re-triggered flag")
	}
	if a.Score() != 12+WeightHigh {
		t.Fatalf("score = %d", a.Score())
	}
}

func TestSuspicionAdd(t *testing.T) {
	a := RestoreSuspicion(10, 8, model.SeverityCounts{}, 0, false)

	if a.Add(0) {
		t.Fatal("zero delta crossed")
	}
	if !a.Add(3) {
		t.Fatal("crossing increment not reported")
	}
	if a.Add(5) {
		t.Fatal("post-crossing increment re-triggered")
	}
	if a.Score() != 16 {
		t.Fatalf("score = %d, want 16", a.Score())
	}
}
