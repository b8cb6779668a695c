package ext2

import (
	"testing"
	"time"
)

func TestRWLockMultipleReaders(t *testing.T) {
	l := newRWLock()
	if err := l.LockRead(time.Second); err != nil {
		t.Fatalf("first LockRead: %v", err)
	}
	if err := l.LockRead(time.Second); err != nil {
		t.Fatalf("second concurrent LockRead: %v", err)
	}
	l.UnlockRead()
	l.UnlockRead()
}

func TestRWLockWriterExcludesReaders(t *testing.T) {
	l := newRWLock()
	if err := l.LockWrite(time.Second); err != nil {
		t.Fatalf("LockWrite: %v", err)
	}
	defer l.UnlockWrite()

	if l.TryLockRead() {
		t.Fatalf("TryLockRead succeeded while writer held the lock")
	}
	if err := l.LockRead(50 * time.Millisecond); err == nil {
		t.Fatalf("LockRead should time out while writer holds the lock")
	}
}

func TestRWLockWriteWaitsForReadersToDrain(t *testing.T) {
	l := newRWLock()
	if err := l.LockRead(time.Second); err != nil {
		t.Fatalf("LockRead: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- l.LockWrite(time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	l.UnlockRead()

	if err := <-done; err != nil {
		t.Fatalf("LockWrite after reader drained: %v", err)
	}
	l.UnlockWrite()
}

func TestHeldLockReleaseIsIdempotent(t *testing.T) {
	l := newRWLock()
	if err := l.LockWrite(time.Second); err != nil {
		t.Fatalf("LockWrite: %v", err)
	}
	h := newHeldLock(l, true)
	h.Release()
	h.Release() // must not double-unlock or panic

	if err := l.LockWrite(time.Second); err != nil {
		t.Fatalf("lock should be free after single effective release: %v", err)
	}
}
