package mrqd

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Scenario 1: single-threaded sanity (spec §8).
func TestSingleThreadedSanity(t *testing.T) {
	l := New()

	l.Lock()
	assert.True(t, l.IsLocked())
	l.Unlock()
	assert.False(t, l.IsLocked())
	assert.EqualValues(t, 0, l.ri.Sum())

	l.RLock()
	assert.False(t, l.IsLocked())
	l.RUnlock()
	assert.EqualValues(t, 0, l.ri.Sum())

	l.Lock()
	assert.True(t, l.IsLocked())
	l.Unlock()
	assert.False(t, l.IsLocked())
}

// Scenario 2: concurrent readers with no writers (spec §8).
func TestConcurrentReadersNoWriters(t *testing.T) {
	l := New()

	const readers = 8
	const iterations = 10_000
	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				l.RLock()
				l.RUnlock()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 0, l.ri.Sum())
	assert.EqualValues(t, 0, l.writeBarrier.Load())
}

// Scenario 3: a writer increments a shared counter monotonically while
// readers snapshot it; no reader should ever observe it going backwards
// (spec §8).
func TestReaderWriterExclusionMonotonicCounter(t *testing.T) {
	l := New()
	var counter uint64

	const target = 100_000
	const readers = 4

	done := make(chan struct{})
	var readerWg sync.WaitGroup
	readerWg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer readerWg.Done()
			var last uint64
			for {
				select {
				case <-done:
					return
				default:
				}
				l.RLock()
				snapshot := atomic.LoadUint64(&counter)
				l.RUnlock()
				assert.GreaterOrEqual(t, snapshot, last, "reader observed counter go backwards")
				last = snapshot
			}
		}()
	}

	for i := 0; i < target; i++ {
		l.Lock()
		atomic.AddUint64(&counter, 1)
		l.Unlock()
	}
	close(done)
	readerWg.Wait()

	assert.EqualValues(t, target, counter)
}

// Scenario 4: barrier activation. A low-patience reader contending
// against a long-held writer should raise the write barrier, and the
// barrier should fall back to zero once the reader gets in (spec §8).
func TestBarrierActivation(t *testing.T) {
	l := New(WithPatience(50))

	l.Lock()
	writerDone := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		l.Unlock()
		close(writerDone)
	}()

	readerDone := make(chan struct{})
	go func() {
		l.RLock()
		l.RUnlock()
		close(readerDone)
	}()

	assert.Eventually(t, func() bool { return l.writeBarrier.Load() == 1 },
		40*time.Millisecond, time.Millisecond, "reader never raised the write barrier")

	select {
	case <-readerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("reader never acquired the read permit")
	}
	<-writerDone

	assert.EqualValues(t, 0, l.writeBarrier.Load())
}

// Scenario 5 & 6: delegation fast path and its no-contention equivalence
// to Lock; fn(); Unlock (spec §8).
func TestDelegationFastPath(t *testing.T) {
	l := New()

	holderIn := make(chan struct{})
	holderDone := make(chan struct{})
	var holderDelta int64 = 7
	var counter int64

	// The holder takes the lock through Delegate, which opens the
	// delegation queue for the duration of its own critical section.
	go func() {
		l.Delegate(func() {
			close(holderIn)
			time.Sleep(50 * time.Millisecond)
			atomic.AddInt64(&counter, holderDelta)
		})
		close(holderDone)
	}()
	<-holderIn

	const delegators = 100
	var wg sync.WaitGroup
	wg.Add(delegators)
	start := time.Now()
	for i := 0; i < delegators; i++ {
		go func() {
			defer wg.Done()
			l.Delegate(func() { atomic.AddInt64(&counter, 1) })
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 50*time.Millisecond, "delegators should return well before the holder's critical section ends")

	<-holderDone
	assert.EqualValues(t, delegators+holderDelta, atomic.LoadInt64(&counter))
}

func TestDelegateEquivalentToLockUnlockUncontended(t *testing.T) {
	l := New()
	var counter int

	l.Delegate(func() { counter++ })
	assert.Equal(t, 1, counter)

	l.Lock()
	counter++
	l.Unlock()
	assert.Equal(t, 2, counter)
}

func TestDelegateRunsExactlyOnce(t *testing.T) {
	l := New()
	l.Lock()

	var runs int32
	done := make(chan struct{})
	go func() {
		l.Delegate(func() { atomic.AddInt32(&runs, 1) })
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	l.Unlock()
	<-done

	assert.EqualValues(t, 1, runs)
}

func TestTryLockFailsWhileHeld(t *testing.T) {
	l := New()
	l.Lock()
	assert.False(t, l.TryLock())
	l.Unlock()
	assert.True(t, l.TryLock())
	l.Unlock()
}

func TestWriterExcludesReader(t *testing.T) {
	l := New()
	l.Lock()

	readerEntered := make(chan struct{})
	go func() {
		l.RLock()
		close(readerEntered)
		l.RUnlock()
	}()

	select {
	case <-readerEntered:
		t.Fatal("reader entered while writer held the lock")
	case <-time.After(30 * time.Millisecond):
	}

	l.Unlock()
	select {
	case <-readerEntered:
	case <-time.After(time.Second):
		t.Fatal("reader never entered after writer released the lock")
	}
}

func TestImplementsLockInterface(t *testing.T) {
	var _ Lock = New()
}
