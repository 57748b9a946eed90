package tatas

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockUnlockRoundTrip(t *testing.T) {
	var l Lock
	assert.False(t, l.IsLocked())

	l.Lock()
	assert.True(t, l.IsLocked())

	l.Unlock()
	assert.False(t, l.IsLocked())
}

func TestTryLock(t *testing.T) {
	var l Lock

	assert.True(t, l.TryLock(), "uncontended TryLock should succeed")
	assert.False(t, l.TryLock(), "TryLock while held should fail")

	l.Unlock()
	assert.True(t, l.TryLock(), "TryLock should succeed again once released")
}

func TestMutualExclusion(t *testing.T) {
	var l Lock
	var counter int
	var wg sync.WaitGroup

	const goroutines = 16
	const iterations = 2000

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*iterations, counter)
}
