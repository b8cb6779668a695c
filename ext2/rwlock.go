package ext2

import (
	"sync"
	"time"
)

// rwLock is a non-reentrant reader/writer lock with a bounded
// acquisition timeout. Unlike sync.RWMutex, a caller that cannot get
// the lock within the timeout gets ErrLockTimeout back instead of
// blocking forever; a path walk can also attempt a lock only if it is
// immediately available, without waiting at all.
type rwLock struct {
	mu      sync.Mutex
	readers int
	writer  bool
	waitCh  chan struct{}
}

func newRWLock() *rwLock {
	return &rwLock{waitCh: make(chan struct{})}
}

// notifyLocked wakes every goroutine currently waiting on the lock. Must
// be called with mu held.
func (l *rwLock) notifyLocked() {
	close(l.waitCh)
	l.waitCh = make(chan struct{})
}

// LockRead blocks until a read lock is acquired or timeout elapses.
func (l *rwLock) LockRead(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		l.mu.Lock()
		if !l.writer {
			l.readers++
			l.mu.Unlock()
			return nil
		}
		ch := l.waitCh
		l.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrLockTimeout
		}
		select {
		case <-ch:
		case <-time.After(remaining):
			return ErrLockTimeout
		}
	}
}

// TryLockRead acquires a read lock only if immediately available,
// without waiting for any pending writer to finish. Used by path
// resolution, where a write-locked node on the path should abort the
// whole walk rather than stall it.
func (l *rwLock) TryLockRead() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer {
		return false
	}
	l.readers++
	return true
}

// UnlockRead releases a previously acquired read lock.
func (l *rwLock) UnlockRead() {
	l.mu.Lock()
	l.readers--
	l.notifyLocked()
	l.mu.Unlock()
}

// LockWrite blocks until an exclusive write lock is acquired or timeout
// elapses.
func (l *rwLock) LockWrite(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		l.mu.Lock()
		if !l.writer && l.readers == 0 {
			l.writer = true
			l.mu.Unlock()
			return nil
		}
		ch := l.waitCh
		l.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrLockTimeout
		}
		select {
		case <-ch:
		case <-time.After(remaining):
			return ErrLockTimeout
		}
	}
}

// UnlockWrite releases a previously acquired write lock.
func (l *rwLock) UnlockWrite() {
	l.mu.Lock()
	l.writer = false
	l.notifyLocked()
	l.mu.Unlock()
}

// heldLock is a disposable scoped acquisition of a node's lock: it
// guarantees Release is idempotent and safe to call on every exit path,
// including via defer after an early error return.
type heldLock struct {
	mu       sync.Mutex
	lock     *rwLock
	write    bool
	released bool
}

func newHeldLock(lock *rwLock, write bool) *heldLock {
	return &heldLock{lock: lock, write: write}
}

// Release unlocks the underlying rwLock exactly once, regardless of how
// many times Release is called.
func (h *heldLock) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	if h.write {
		h.lock.UnlockWrite()
	} else {
		h.lock.UnlockRead()
	}
}
