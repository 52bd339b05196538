package clock

import "time"

// Clock abstracts the current time so that period expiry, grace windows,
// and trial deadlines can be evaluated deterministically in tests.
// Production code must never call time.Now directly in billing logic.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// System returns a Clock backed by the system wall clock.
// All times are normalized to UTC.
func System() Clock {
	return systemClock{}
}
