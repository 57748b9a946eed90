package mrqd

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/nbtaylor/mrqd/delegation"
	"github.com/nbtaylor/mrqd/readindicator"
	"github.com/nbtaylor/mrqd/tatas"
)

// MRQDLock is a Multiple-Reader Queue-Delegation lock. The zero value is
// not usable; construct one with New. Once any operation has begun, an
// MRQDLock must not be copied — its address is captured by atomic
// operations and by any goroutine spinning on its write barrier.
type MRQDLock struct {
	noCopy noCopy

	mutex tatas.Lock
	queue delegation.Queue
	ri    *readindicator.Indicator

	// writeBarrier throttles writers/delegators while a stalled reader
	// has raised it. It is never consulted by RLock/RUnlock themselves.
	writeBarrier atomic.Int64

	patience int
}

// New returns a ready-to-use MRQDLock. With no options it uses the
// reference implementation's defaults: 4 reader groups and a patience
// limit of 1000 yield cycles.
func New(opts ...Option) *MRQDLock {
	cfg := newConfig(opts...)
	return &MRQDLock{
		queue:    delegation.NewRingQueue(cfg.queueCapacity),
		ri:       readindicator.New(cfg.groups),
		patience: cfg.patience,
	}
}

// NewMRQDLock is an alias for New, kept for readers coming from the
// reference implementation's plain_mrqd_create naming.
func NewMRQDLock(opts ...Option) *MRQDLock {
	return New(opts...)
}

// Free is a no-op: Go's garbage collector reclaims the lock once it is
// no longer referenced. It exists only to satisfy the Lock interface.
func (l *MRQDLock) Free() {}

// Lock blocks until the caller holds the lock exclusively: no reader is
// inside a read critical section, and no other writer holds the inner
// mutex.
func (l *MRQDLock) Lock() {
	l.waitOutBarrier()
	l.mutex.Lock()
	l.ri.WaitEmpty(context.Background())
}

// Unlock releases an exclusive hold acquired by Lock or TryLock.
func (l *MRQDLock) Unlock() {
	l.mutex.Unlock()
}

// IsLocked reports a snapshot of whether the inner mutex is currently
// held. Advisory only.
func (l *MRQDLock) IsLocked() bool {
	return l.mutex.IsLocked()
}

// TryLock attempts to acquire the lock without blocking. On success it
// still drains the read indicator, exactly as Lock does, before
// returning true. It still spins on the write barrier before attempting
// the inner mutex.
func (l *MRQDLock) TryLock() bool {
	l.waitOutBarrier()
	if l.mutex.TryLock() {
		l.ri.WaitEmpty(context.Background())
		return true
	}
	return false
}

// RLock blocks until the caller holds a shared read permit. The reader
// arrives before it checks the mutex, and departs and retries if the
// mutex is held, mirroring a writer that takes the mutex before it
// drains the read indicator; a plain "wait until unlocked, then arrive"
// would let a writer slip in between the check and the arrival.
func (l *MRQDLock) RLock() {
	raised := false
	waited := 0

	for {
		slot := l.ri.Arrive()
		if l.mutex.IsLocked() {
			l.ri.Depart(slot)
			for l.mutex.IsLocked() {
				runtime.Gosched()
				if waited == l.patience && !raised {
					l.writeBarrier.Add(1)
					raised = true
				}
				waited++
			}
			continue
		}
		if raised {
			l.writeBarrier.Add(-1)
		}
		return
	}
}

// RUnlock releases a read permit acquired by RLock.
func (l *MRQDLock) RUnlock() {
	l.ri.Depart(l.ri.CurrentSlot())
}

// Delegate hands fn to the current (or a future) lock holder to run
// under the lock. It returns once fn has either been accepted into the
// delegation queue of a concurrently-held lock, or has been run directly
// by the calling goroutine after it acquired the mutex itself. fn must
// be total and must not recursively call back into l.
func (l *MRQDLock) Delegate(fn func()) {
	l.waitOutBarrier()
	msg := delegation.Message{Fn: fn}
	for {
		if l.mutex.TryLock() {
			l.queue.Open()
			l.ri.WaitEmpty(context.Background())
			fn()
			l.queue.Flush()
			l.mutex.Unlock()
			return
		}
		if l.queue.Enqueue(msg) {
			return
		}
		runtime.Gosched()
	}
}

func (l *MRQDLock) waitOutBarrier() {
	for l.writeBarrier.Load() > 0 {
		runtime.Gosched()
	}
}
