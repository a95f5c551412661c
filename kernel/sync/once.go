package sync

import "sync/atomic"

// Once runs an initialization function exactly once. Unlike the standard
// library version it never parks the caller, so it can guard state that is
// first touched from an interrupt handler.
type Once struct {
	done uint32
	lock Spinlock
}

// Do invokes fn if and only if Do is being called for the first time for this
// instance. Concurrent callers spin until the first invocation of fn returns.
// Calling Do from within fn deadlocks.
func (o *Once) Do(fn func()) {
	if atomic.LoadUint32(&o.done) == 1 {
		return
	}

	o.lock.Acquire()
	defer o.lock.Release()

	if o.done == 0 {
		defer atomic.StoreUint32(&o.done, 1)
		fn()
	}
}
