package engine

import "time"

// MissedBeats reports how many heartbeat intervals have elapsed without a
// beat, beyond the tolerated gap. A heartbeat is "missed" once no beat
// arrives for more than twice the configured interval; each further full
// interval of silence counts as another miss. What a miss escalates to
// (auto-pause, flag) is the host's decision, not this unit's.
func MissedBeats(lastBeat, now time.Time, interval time.Duration) int {
	if interval <= 0 {
		return 0
	}
	gap := now.Sub(lastBeat)
	grace := 2 * interval
	if gap <= grace {
		return 0
	}
	return 1 + int((gap-grace)/interval)
}
