package clock

import (
	"sync"
	"time"
)

// Mock is a controllable Clock for tests and scenario replay.
// All readers observe the same instant: advancing the clock is guarded by
// a mutex, so no consumer can see a half-advanced value.
type Mock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewMock returns a Mock frozen at the given instant (normalized to UTC).
func NewMock(now time.Time) *Mock {
	return &Mock{now: now.UTC()}
}

func (m *Mock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Advance moves the clock forward by d. Panics on negative d because the
// billing engine assumes time is monotonic.
func (m *Mock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance backwards")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// AdvanceTo moves the clock to t. Panics if t is before the current instant.
func (m *Mock) AdvanceTo(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Before(m.now) {
		panic("clock: cannot advance backwards")
	}
	m.now = t.UTC()
}

// AdvanceDays is a convenience for scenario fixtures expressed in days.
func (m *Mock) AdvanceDays(days int) {
	if days < 0 {
		panic("clock: cannot advance backwards")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.AddDate(0, 0, days)
}
