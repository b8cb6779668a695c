package ext2

import "errors"

// Sentinel errors forming the engine's error taxonomy. Lower-level
// components (DiskAccess, bitmaps, block groups) return these, or wrap
// them with fmt.Errorf("...: %w", ...); VFSFacade returns the errors
// of the layers below it unchanged.
var (
	// ErrInvalidPath is returned for a malformed path, a disallowed
	// character in a segment, or a segment length outside 1..255.
	ErrInvalidPath = errors.New("ext2: invalid path")

	// ErrNotFound is returned when a target file or directory is missing.
	ErrNotFound = errors.New("ext2: not found")

	// ErrAlreadyExists is returned when a new entry's name collides,
	// case-insensitively, with a live entry.
	ErrAlreadyExists = errors.New("ext2: already exists")

	// ErrWrongKind is returned when a directory was expected but a file
	// was found, or vice versa.
	ErrWrongKind = errors.New("ext2: wrong node kind")

	// ErrDiskFull is returned when block or node allocation cannot
	// satisfy a request.
	ErrDiskFull = errors.New("ext2: disk full")

	// ErrMaxFileSize is returned when file growth would exceed the
	// maximum number of blocks a node's BlockAddressStorage can address.
	ErrMaxFileSize = errors.New("ext2: maximum file size exceeded")

	// ErrLockTimeout is returned when a node lock could not be acquired
	// within NodeLockTimeout.
	ErrLockTimeout = errors.New("ext2: lock acquisition timed out")

	// ErrCorruption is returned when on-disk structures are internally
	// inconsistent: a directory chain that doesn't match its entry
	// count, a double-freed bitmap bit, a kind-flag mismatch at load.
	ErrCorruption = errors.New("ext2: on-disk structure corrupted")

	// ErrIO is returned when the backing store itself rejects a read or
	// write.
	ErrIO = errors.New("ext2: backing store i/o error")

	// ErrClosed is returned for an operation attempted on a disposed
	// file, node handle, or volume.
	ErrClosed = errors.New("ext2: use of closed handle")
)
