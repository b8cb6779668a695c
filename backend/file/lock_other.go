//go:build !(aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris)
// +build !aix,!darwin,!dragonfly,!freebsd,!linux,!netbsd,!openbsd,!solaris

package file

import "os"

// lockHostFile is a no-op on platforms without flock(2); the in-process
// per-node locks remain the only guard there.
func lockHostFile(f *os.File, readOnly bool) error {
	return nil
}

func unlockHostFile(f *os.File) error {
	return nil
}
