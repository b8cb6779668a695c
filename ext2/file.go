package ext2

import (
	"fmt"
	"sync"
	"time"
)

// SeekWhence selects the reference point SetPosition seeks from.
type SeekWhence int

const (
	SeekStart SeekWhence = iota
	SeekCurrent
	SeekEnd
)

// File is an open handle onto a FileNode's byte stream: a cursor
// position plus the read or write lock that was acquired to open it.
// It is not safe for concurrent use by multiple goroutines.
type File struct {
	mu       sync.Mutex
	node     *FileNode
	lock     *heldLock
	pos      int64
	writable bool
	closed   bool
}

func newFile(n *FileNode, lock *heldLock, writable bool) *File {
	return &File{node: n, lock: lock, writable: writable}
}

// CanWrite reports whether the handle was opened for writing.
func (f *File) CanWrite() bool { return f.writable }

// GetFileSize returns the file's current length in bytes.
func (f *File) GetFileSize() uint64 {
	return f.node.FileSize()
}

// CreationTime returns the file's creation timestamp.
func (f *File) CreationTime() time.Time {
	return f.node.CreationTime()
}

// LastModificationTime returns the file's last-modified timestamp.
func (f *File) LastModificationTime() time.Time {
	return f.node.LastModificationTime()
}

// ReadData reads from the current cursor position, advancing it by the
// number of bytes actually read.
func (f *File) ReadData(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrClosed
	}
	n, err := f.node.ReadData(f.pos, buf)
	f.pos += int64(n)
	return n, err
}

// WriteData writes at the current cursor position, advancing it by
// len(buf). The handle must have been opened writable.
func (f *File) WriteData(buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if !f.writable {
		return fmt.Errorf("%w: file handle is read-only", ErrWrongKind)
	}
	if err := f.node.WriteData(f.pos, buf); err != nil {
		return err
	}
	f.pos += int64(len(buf))
	return nil
}

// SetPosition moves the cursor relative to whence, clamped to
// [0, file_size] rather than erroring: a result left of byte 0 clamps
// to 0, a result past the end clamps to file_size. SeekEnd measures
// backward from file_size.
func (f *File) SetPosition(offset int64, whence SeekWhence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	var newPos int64
	switch whence {
	case SeekStart:
		newPos = offset
	case SeekCurrent:
		newPos = f.pos + offset
	case SeekEnd:
		newPos = int64(f.node.FileSize()) - offset
	default:
		return fmt.Errorf("%w: unknown seek whence %d", ErrInvalidPath, whence)
	}
	fileSize := int64(f.node.FileSize())
	switch {
	case newPos < 0:
		newPos = 0
	case newPos > fileSize:
		newPos = fileSize
	}
	f.pos = newPos
	return nil
}

// SetFileSize grows or truncates the file to n bytes. The cursor is
// clamped to the new end if it now sits past it. The handle must have
// been opened writable.
func (f *File) SetFileSize(n uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if !f.writable {
		return fmt.Errorf("%w: file handle is read-only", ErrWrongKind)
	}
	if err := f.node.SetFileSize(n); err != nil {
		return err
	}
	if f.pos > int64(n) {
		f.pos = int64(n)
	}
	return nil
}

// Position returns the current cursor position.
func (f *File) Position() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// Close releases the node lock backing this handle. It is idempotent.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.lock.Release()
	return nil
}
