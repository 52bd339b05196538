package subscription

import (
	"sync"

	"github.com/google/uuid"
)

// keyLock serializes all state mutations for a single account while letting
// different accounts proceed fully in parallel. Entries are reference-counted
// so the map does not grow with the number of accounts ever seen.
type keyLock struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{entries: make(map[uuid.UUID]*keyLockEntry)}
}

// Lock acquires the per-account writer lock and returns its release func.
func (l *keyLock) Lock(accountID uuid.UUID) func() {
	l.mu.Lock()
	entry, exists := l.entries[accountID]
	if !exists {
		entry = &keyLockEntry{}
		l.entries[accountID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, accountID)
		}
		l.mu.Unlock()
	}
}
