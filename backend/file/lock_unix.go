//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris
// +build aix darwin dragonfly freebsd linux netbsd openbsd solaris

package file

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockHostFile takes an advisory flock(2) on f: exclusive for a
// read-write mount, shared for a read-only one. This guards against two
// independent process mounts of the same backing file stepping on each
// other's block-group bitmaps; it is not a substitute for the in-process
// per-node reader/writer locks, which serialise concurrent access within
// one mount.
func lockHostFile(f *os.File, readOnly bool) error {
	how := unix.LOCK_EX
	if readOnly {
		how = unix.LOCK_SH
	}
	return unix.Flock(int(f.Fd()), how|unix.LOCK_NB)
}

// unlockHostFile releases a lock taken by lockHostFile.
func unlockHostFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
