package engine

import (
	"testing"
	"time"
)

func TestMissedBeats(t *testing.T) {
	interval := 20 * time.Second
	base := time.Now()

	cases := []struct {
		gap  time.Duration
		want int
	}{
		{10 * time.Second, 0},  // fresh
		{40 * time.Second, 0},  // exactly 2× interval is still tolerated
		{41 * time.Second, 1},  // just past the grace window
		{60 * time.Second, 2},  // one further interval of silence
		{100 * time.Second, 4}, // three further intervals
	}
	for _, c := range cases {
		if got := MissedBeats(base, base.Add(c.gap), interval); got != c.want {
			t.Errorf("MissedBeats(gap=%s) = %d, want %d", c.gap, got, c.want)
		}
	}
}

func TestMissedBeatsZeroInterval(t *testing.T) {
	base := time.Now()
	if got := MissedBeats(base, base.Add(time.Hour), 0); got != 0 {
		t.Fatalf("zero interval should disable detection, got %d", got)
	}
}
