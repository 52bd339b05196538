package subscription

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKeyLockSerializesSameKey(t *testing.T) {
	t.Parallel()

	l := newKeyLock()
	accountID := uuid.New()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(accountID)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestKeyLockReleasesEntries(t *testing.T) {
	t.Parallel()

	l := newKeyLock()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(uuid.New())
			unlock()
		}()
	}
	wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.entries, "released keys must not leak map entries")
}

func TestKeyLockIndependentKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	l := newKeyLock()
	unlockA := l.Lock(uuid.New())
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := l.Lock(uuid.New())
		unlockB()
		close(done)
	}()

	<-done
}
