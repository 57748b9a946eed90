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

// Package readindicator implements a scalable distributed read indicator:
// a counter striped across G independent, cache-line-padded groups so that
// readers arriving and departing a shared critical section don't all
// contend on the same cache line, while still letting a writer observe
// "no readers present" by scanning each group to zero in turn.
//
// Group selection is a stable, sticky per-goroutine assignment (handed out
// round-robin the first time a goroutine arrives) rather than a hash of a
// raw thread identifier, since Go goroutines have no OS thread identity to
// hash in the first place. Correctness never depends on how groups are
// assigned, only on a goroutine consistently landing in the same group
// across its own Arrive/Depart pairs.
package readindicator

import (
	"bytes"
	"context"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"unsafe"
)

// DefaultGroups is the default stripe count, matching the reference
// implementation's MRQD_LOCK_NUMBER_OF_READER_GROUPS.
const DefaultGroups = 4

const cacheLineSize = 64

// paddedCounter holds one group's reader count, padded out to its own
// cache line so that adjacent groups never false-share.
type paddedCounter struct {
	value atomic.Int64
	_     [cacheLineSize - unsafe.Sizeof(atomic.Int64{})]byte
}

// Indicator is a striped read indicator with G groups.
type Indicator struct {
	groups []paddedCounter
	assign sync.Map // goroutine id (uint64) -> group index (int)
	next   atomic.Uint64
}

// New returns an Indicator with the given number of groups. groups <= 0
// is coerced to DefaultGroups.
func New(groups int) *Indicator {
	if groups <= 0 {
		groups = DefaultGroups
	}
	return &Indicator{groups: make([]paddedCounter, groups)}
}

// Groups reports the number of stripes this indicator was constructed with.
func (ri *Indicator) Groups() int {
	return len(ri.groups)
}

// slotFor returns the sticky group index for the calling goroutine,
// assigning one round-robin on first use.
func (ri *Indicator) slotFor(gid uint64) int {
	if v, ok := ri.assign.Load(gid); ok {
		return v.(int)
	}
	slot := int(ri.next.Add(1)-1) % len(ri.groups)
	actual, _ := ri.assign.LoadOrStore(gid, slot)
	return actual.(int)
}

// Arrive registers the calling goroutine's presence in the indicator and
// returns the group it was recorded in; callers must pass that value back
// to the matching Depart. Arrive/Depart must be paired 1:1 by the caller.
func (ri *Indicator) Arrive() int {
	slot := ri.slotFor(goroutineID())
	ri.groups[slot].value.Add(1)
	return slot
}

// Depart removes the calling goroutine's presence from the group it
// previously Arrive'd into.
func (ri *Indicator) Depart(slot int) {
	ri.groups[slot].value.Add(-1)
}

// CurrentSlot returns the calling goroutine's sticky group assignment
// without registering a new arrival. It lets a later, separate call (such
// as MRQDLock.RUnlock) recover the group an earlier Arrive used, without
// the caller having to carry a token between the two calls.
func (ri *Indicator) CurrentSlot() int {
	return ri.slotFor(goroutineID())
}

// WaitEmpty spins until every group's counter reads zero, scanning groups
// in order. Once a group is observed empty the scan advances even though
// a reader may re-enter that group afterwards; such a reader will observe
// the writer's mutex held and back off (see the MRQD lock's reader path).
//
// If ctx is non-nil and is cancelled before the scan completes, WaitEmpty
// returns ctx.Err() without blocking further.
func (ri *Indicator) WaitEmpty(ctx context.Context) error {
	for i := range ri.groups {
		for ri.groups[i].value.Load() > 0 {
			if ctx != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}
			runtime.Gosched()
		}
	}
	return nil
}

// Sum reports the total reader count across all groups. It is exact only
// at a quiescent moment; used by tests and debug assertions, not by the
// lock's hot path.
func (ri *Indicator) Sum() int64 {
	var sum int64
	for i := range ri.groups {
		sum += ri.groups[i].value.Load()
	}
	return sum
}

// goroutineID extracts the current goroutine's runtime-assigned id from
// its stack trace header ("goroutine 123 [running]:"). It is a
// goroutine-local-storage emulation, not a public runtime API, and exists
// solely to give Arrive/Depart a stable per-goroutine key without
// requiring callers to thread a token through every call site.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
