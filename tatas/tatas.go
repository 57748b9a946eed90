// Copyright 2020 Nathan Taylor (nbtaylor@gmail.com)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package tatas implements the inner mutex that the MRQD lock builds on
// top of: a plain test-and-test-and-set spinlock.
//
// A TATAS lock is the textbook fix for the "dumb" test-and-set spinlock,
// whose CAS retry storm saturates the cache-coherence bus under
// contention: before attempting the CAS, a thread first spins on a plain
// load, only retrying the CAS once that load observes the lock free. This
// confines the CAS traffic to the moment the lock is actually up for
// grabs instead of every spin iteration.
//
// MRQD never looks inside a Lock's state beyond Lock/Unlock/TryLock/
// IsLocked; it is kept as its own package so that an alternative inner
// mutex (e.g. a ticket lock) could be substituted without touching the
// reader or delegation logic.
package tatas

import (
	"runtime"
	"sync/atomic"
	"time"
)

const (
	startingBackoff = 50 * time.Microsecond
	maxBackoff      = 500 * time.Millisecond
	backoffFactor   = 2
)

// Lock is a test-and-test-and-set spinlock. The zero value is an unlocked
// lock, ready to use.
type Lock struct {
	held atomic.Bool
}

// Lock blocks until the calling goroutine holds the lock exclusively.
func (l *Lock) Lock() {
	backoff := startingBackoff
	for {
		// The "test" half: spin on a plain load so contending
		// goroutines don't all hammer the same cache line with CAS
		// traffic while the lock is held.
		for l.held.Load() {
			runtime.Gosched()
		}
		// The "test-and-set" half: only one of the goroutines that
		// observed the lock free will win this CAS.
		if l.held.CompareAndSwap(false, true) {
			return
		}
		time.Sleep(backoff)
		backoff *= backoffFactor
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// TryLock attempts to acquire the lock without blocking. It reports
// whether the acquisition succeeded.
func (l *Lock) TryLock() bool {
	return l.held.CompareAndSwap(false, true)
}

// Unlock releases the lock. Unlock on a lock not held by the caller is
// undefined behavior (see spec §7); ownership is not checked.
func (l *Lock) Unlock() {
	l.held.Store(false)
}

// IsLocked returns a snapshot of whether the lock is currently held. It
// is advisory only: by the time the caller observes the result, the
// state may already have changed.
func (l *Lock) IsLocked() bool {
	return l.held.Load()
}
