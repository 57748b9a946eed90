package mrqd

// Lock is the capability set every lock variant in this module exposes.
// It replaces the reference implementation's process-wide vtable of
// function pointers (OOLockMethodTable) with an ordinary interface: a
// caller dispatches through Lock the same way regardless of which
// concrete implementation (MRQDLock, or some future variant) sits behind
// it, and no package-level mutable dispatch table is needed to do it.
type Lock interface {
	// Free releases any resources held by the lock. For *MRQDLock this
	// is a no-op (Go's garbage collector reclaims the struct once
	// unreferenced); it exists so that Lock implementations which do own
	// external resources have somewhere to put teardown.
	Free()

	// Lock blocks until the caller holds the lock exclusively.
	Lock()

	// Unlock releases an exclusive hold acquired by Lock or TryLock.
	// Calling Unlock without holding the lock is undefined behavior.
	Unlock()

	// IsLocked reports a snapshot of whether the lock is currently held
	// exclusively. The result is advisory: it may be stale by the time
	// the caller observes it.
	IsLocked() bool

	// TryLock attempts to acquire the lock without blocking, reporting
	// whether it succeeded.
	TryLock() bool

	// RLock blocks until the caller holds a shared read permit.
	RLock()

	// RUnlock releases a read permit acquired by RLock.
	RUnlock()

	// Delegate hands fn to the current (or a future) lock holder to run
	// under the lock, returning once fn has either been scheduled for
	// execution or has already run. fn must be total: it must not
	// panic, and must not recursively call back into this Lock.
	Delegate(fn func())
}

var _ Lock = (*MRQDLock)(nil)
