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

// Package delegation implements the bounded multi-producer*,
// single-consumer delegation queue (DQ) that the MRQD lock's
// Delegate path hands messages to.
//
// (*) "producer" here is every goroutine calling Enqueue; the queue has at
// most one consumer at a time: the current mutex holder, who Opens the
// queue for its critical section and Flushes it before releasing the
// mutex. A message is a plain closure rather than the reference
// implementation's (fn pointer, size, payload) triple — see the MRQD
// package's Delegate for why.
package delegation

import "sync"

// Message is a unit of deferred work submitted through Enqueue and run to
// completion by the opener's Flush. Fn must be total: it must not panic,
// and must not recursively acquire the lock it is running under.
type Message struct {
	Fn func()
}

// Queue is the DQ contract required by the MRQD lock:
//
//   - Open is called once by the mutex holder at the start of its
//     critical section. Only one opener at a time, guaranteed by the
//     caller already holding the inner mutex.
//   - Enqueue is attempted by goroutines that do not hold the mutex. It
//     reports whether the message was accepted by the current opener;
//     it returns false if the queue is closed, full, or the opener has
//     begun flushing. A successful Enqueue strictly precedes the
//     corresponding execution inside Flush.
//   - Flush, called by the opener, executes every successfully enqueued
//     message to completion and then closes the session: no further
//     Enqueue may succeed against it.
type Queue interface {
	Open()
	Enqueue(msg Message) bool
	Flush()
}

// RingQueue is a concrete bounded Queue. Its capacity is fixed at
// construction; each Open allocates a fresh buffered channel of that
// capacity, which Flush closes and drains, so a channel is never reused
// across open/flush sessions.
type RingQueue struct {
	capacity int

	mu       sync.RWMutex
	ch       chan Message
	inflight sync.WaitGroup
}

// NewRingQueue returns a RingQueue that accepts up to capacity pending
// messages per open session.
func NewRingQueue(capacity int) *RingQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingQueue{capacity: capacity}
}

// DefaultCapacity is the pending-message capacity used when a capacity of
// zero or less is requested.
const DefaultCapacity = 256

// Open begins accepting messages for a new session.
func (q *RingQueue) Open() {
	q.mu.Lock()
	q.ch = make(chan Message, q.capacity)
	q.mu.Unlock()
}

// Enqueue attempts to submit msg against the currently open session.
func (q *RingQueue) Enqueue(msg Message) bool {
	q.mu.RLock()
	ch := q.ch
	if ch == nil {
		q.mu.RUnlock()
		return false
	}
	q.inflight.Add(1)
	q.mu.RUnlock()
	defer q.inflight.Done()

	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}

// Flush runs every message accepted by the current session to completion
// and then closes the session. Flush must only be called by the opener.
func (q *RingQueue) Flush() {
	q.mu.Lock()
	ch := q.ch
	q.ch = nil
	q.mu.Unlock()

	if ch == nil {
		return
	}

	// Let any Enqueue that already captured ch before the swap above
	// finish its send attempt before we close the channel out from
	// under it.
	q.inflight.Wait()

	close(ch)
	for msg := range ch {
		msg.Fn()
	}
}
