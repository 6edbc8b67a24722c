package service

import "sync/atomic"

// SingleFlight guarantees that at most one job executes at a time.
type SingleFlight struct {
	held atomic.Bool
}

// TryAcquire takes the lock if it is free and reports whether it did.
func (l *SingleFlight) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release frees the lock. Releasing a free lock is a no-op.
func (l *SingleFlight) Release() {
	l.held.Store(false)
}

// Held reports whether a job currently owns the lock.
func (l *SingleFlight) Held() bool {
	return l.held.Load()
}

// Do runs fn while holding the lock and releases it on every exit path,
// including a panic in fn. It returns false without calling fn when the lock is taken.
func (l *SingleFlight) Do(fn func()) bool {
	if !l.TryAcquire() {
		return false
	}
	defer l.Release()
	fn()
	return true
}
