package engine

import "testing"

func intPtr(n int) *int { return &n }

func TestTimerConservation(t *testing.T) {
	// timeSpent + remaining == limit*60 at every tick until expiry.
	limit := 30
	tm := NewTimer(&limit)

	for spent := 0; spent <= limit*60; spent += 17 {
		res := tm.Tick(spent)
		if !res.Limited {
			t.Fatal("expected limited timer")
		}
		if spent+res.RemainingSecs != limit*60 {
			t.Fatalf("conservation broken at spent=%d: remaining=%d", spent, res.RemainingSecs)
		}
	}
}

func TestTimerThirtyMinuteScenario(t *testing.T) {
	tm := NewTimer(intPtr(30))

	var fired []TimerEvent
	tick := func(spent int) TickResult {
		res := tm.Tick(spent)
		fired = append(fired, res.Events...)
		return res
	}

	// 20:00 spent → 10:00 remaining → warning fires once.
	res := tick(20 * 60)
	if res.RemainingSecs != 10*60 || res.Display != "10:00" {
		t.Fatalf("at 20:00 spent: remaining=%d display=%q", res.RemainingSecs, res.Display)
	}
	if len(fired) != 1 || fired[0] != TimerEventWarning {
		t.Fatalf("expected single warning, got %v", fired)
	}
	if res.Tier != TierWarning {
		t.Fatalf("expected warning tier, got %s", res.Tier)
	}

	// Subsequent ticks inside the warning band stay silent.
	tick(21 * 60)
	tick(22 * 60)
	if len(fired) != 1 {
		t.Fatalf("warning re-fired: %v", fired)
	}

	// 25:00 spent → 5:00 remaining → critical fires once.
	res = tick(25 * 60)
	if res.Tier != TierCritical {
		t.Fatalf("expected critical tier, got %s", res.Tier)
	}
	if len(fired) != 2 || fired[1] != TimerEventCritical {
		t.Fatalf("expected warning,critical, got %v", fired)
	}
	tick(26 * 60)
	if len(fired) != 2 {
		t.Fatalf("critical re-fired: %v", fired)
	}

	// 30:00 spent → 0 remaining → expiry fires once.
	res = tick(30 * 60)
	if res.RemainingSecs != 0 {
		t.Fatalf("expected 0 remaining, got %d", res.RemainingSecs)
	}
	if len(fired) != 3 || fired[2] != TimerEventExpired {
		t.Fatalf("expected warning,critical,expired, got %v", fired)
	}
	tick(31 * 60)
	if len(fired) != 3 {
		t.Fatalf("expiry re-fired: %v", fired)
	}
}

func TestTimerEventsOrderedAfterLongSuspend(t *testing.T) {
	// A single tick that jumps past every threshold still raises all
	// events, in severity order.
	tm := NewTimer(intPtr(30))
	res := tm.Tick(30 * 60)

	want := []TimerEvent{TimerEventWarning, TimerEventCritical, TimerEventExpired}
	if len(res.Events) != len(want) {
		t.Fatalf("expected %v, got %v", want, res.Events)
	}
	for i := range want {
		if res.Events[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, res.Events)
		}
	}
}

func TestTimerUnlimited(t *testing.T) {
	tm := NewTimer(nil)

	for spent := 0; spent < 10*3600; spent += 600 {
		res := tm.Tick(spent)
		if res.Limited {
			t.Fatal("unlimited timer reported a limit")
		}
		if len(res.Events) != 0 {
			t.Fatalf("unlimited timer fired events: %v", res.Events)
		}
	}

	// Unlimited display shows elapsed time.
	if got := tm.Tick(3661).Display; got != "01:01:01" {
		t.Fatalf("elapsed display = %q", got)
	}
}

func TestRestoreTimerKeepsLatches(t *testing.T) {
	tm := RestoreTimer(intPtr(30), true, false)

	// Warning band tick must stay silent, critical must still fire.
	if events := tm.Tick(21 * 60).Events; len(events) != 0 {
		t.Fatalf("restored warning latch re-fired: %v", events)
	}
	events := tm.Tick(26 * 60).Events
	if len(events) != 1 || events[0] != TimerEventCritical {
		t.Fatalf("expected critical after restore, got %v", events)
	}
}

func TestFormatClock(t *testing.T) {
	cases := []struct {
		secs int
		want string
	}{
		{0, "00:00"},
		{59, "00:59"},
		{600, "10:00"},
		{3599, "59:59"},
		{3600, "01:00:00"},
		{5025, "01:23:45"},
		{-5, "00:00"},
	}
	for _, c := range cases {
		if got := FormatClock(c.secs); got != c.want {
			t.Errorf("FormatClock(%d) = %q, want %q", c.secs, got, c.want)
		}
	}
}
