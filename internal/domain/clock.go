package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via
// SetClock. Production code uses the real clock; tests inject a fake for
// deterministic backup names and date ranges.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current instant from the injected clock, in UTC.
func Now() time.Time {
	return clock.Now().UTC()
}

// Today returns the current day at UTC midnight.
func Today() time.Time {
	return Day(Now())
}

// Yesterday returns the day before Today. It is the default end of update
// ranges, since today's near-real-time grid is usually not yet published.
func Yesterday() time.Time {
	return Today().AddDate(0, 0, -1)
}

// Timestamp returns the current time formatted for backup file suffixes.
func Timestamp() string {
	return Now().Format("20060102150405")
}
