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

// Package mrqd implements a Multiple-Reader Queue-Delegation (MRQD) lock:
// a reader-writer mutual exclusion primitive augmented with a delegation
// fast path for writers.
//
// ## Overview
//
// A plain reader-writer lock forces every writer to wait for the mutex
// and then for every in-flight reader to leave. MRQD keeps that shape but
// adds an escape hatch: a writer that only wants to run a short critical
// section may instead *delegate* it as a closure. If some other
// goroutine presently holds the lock through its own Delegate call, that
// holder will run the delegated closure on the delegator's behalf before
// it releases, and the delegator never has to acquire the mutex itself.
// A holder that took the lock with Lock or TryLock does not open the
// queue; a delegator then retries until it gets the mutex or finds an
// open queue. This turns a
// convoy of small writes into a single lock acquisition that drains a
// batch of queued work.
//
// Three collaborators make this work:
//
//  1. A striped read indicator (package readindicator) lets readers
//     announce their presence without all contending on one cache line,
//     while still letting a writer observe "no readers present" by
//     scanning every stripe to zero.
//
//  2. A bounded delegation queue (package delegation) is opened by a
//     delegator that wins the mutex; other delegators attempt to enqueue
//     a closure against it instead of blocking on the mutex themselves.
//
//  3. A test-and-test-and-set inner mutex (package tatas) provides plain
//     mutual exclusion for whichever writer is actually running.
//
// A single "write barrier" counter ties the three together: a reader
// that has spun past its patience limit waiting for a writer raises the
// barrier, and writers/delegators spin-wait on the barrier before even
// attempting acquisition. This keeps a steady stream of short
// delegated writes from starving readers indefinitely. The barrier is
// advisory only — it never blocks a writer already holding the mutex,
// and it is never consulted by RLock/RUnlock themselves (only by writers
// and delegators).
//
// ## What this package does not guarantee
//
// MRQD makes no fairness guarantee between writers, no starvation
// freedom under an adversarial stream of readers, no priority
// inheritance, and does not support recursive acquisition by the same
// goroutine. A goroutine holding the write lock must not call RLock or
// re-enter Lock; a goroutine inside RLock must not call Lock. Misuse
// (an unmatched RUnlock, Unlock without holding the lock) is undefined
// behavior, consistent with the standard library's own sync.Mutex.
package mrqd
