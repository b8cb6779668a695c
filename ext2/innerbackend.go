package ext2

import (
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/ascvorcov/vfs/backend"
)

// innerBackend adapts an open File into a backend.Storage, so a file
// inside one mounted volume can itself back a nested volume mount. It
// has no OS file descriptor of its own: Sys always fails, matching how
// a purely virtual backing store tells callers ioctl-level access is
// not available.
type innerBackend struct {
	file *File
}

// newInnerBackend wraps an already-open, already-locked file for use as
// another volume's backing store.
func newInnerBackend(f *File) backend.Storage {
	return &innerBackend{file: f}
}

func (b *innerBackend) Stat() (fs.FileInfo, error) {
	return innerFileInfo{b.file}, nil
}

func (b *innerBackend) Read(p []byte) (int, error) {
	return b.file.ReadData(p)
}

func (b *innerBackend) Close() error {
	return b.file.Close()
}

func (b *innerBackend) ReadAt(p []byte, off int64) (int, error) {
	return b.file.node.ReadData(off, p)
}

func (b *innerBackend) Seek(offset int64, whence int) (int64, error) {
	w, err := seekWhenceFrom(whence)
	if err != nil {
		return -1, err
	}
	if err := b.file.SetPosition(offset, w); err != nil {
		return -1, err
	}
	return b.file.Position(), nil
}

func (b *innerBackend) Sys() (*os.File, error) {
	return nil, backend.ErrNotSuitable
}

func (b *innerBackend) Writable() (backend.WritableFile, error) {
	if !b.file.CanWrite() {
		return nil, backend.ErrIncorrectOpenMode
	}
	return innerWritable{file: b.file}, nil
}

type innerWritable struct {
	file *File
}

func (w innerWritable) Stat() (fs.FileInfo, error) { return innerFileInfo{w.file}, nil }
func (w innerWritable) Read(p []byte) (int, error) { return w.file.ReadData(p) }
func (w innerWritable) Close() error                { return w.file.Close() }
func (w innerWritable) ReadAt(p []byte, off int64) (int, error) {
	return w.file.node.ReadData(off, p)
}
func (w innerWritable) Seek(offset int64, whence int) (int64, error) {
	wh, err := seekWhenceFrom(whence)
	if err != nil {
		return -1, err
	}
	if err := w.file.SetPosition(offset, wh); err != nil {
		return -1, err
	}
	return w.file.Position(), nil
}
func (w innerWritable) WriteAt(p []byte, off int64) (int, error) {
	if err := w.file.node.WriteData(off, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func seekWhenceFrom(whence int) (SeekWhence, error) {
	switch whence {
	case io.SeekStart:
		return SeekStart, nil
	case io.SeekCurrent:
		return SeekCurrent, nil
	case io.SeekEnd:
		return SeekEnd, nil
	default:
		return 0, backend.ErrNotSuitable
	}
}

// innerFileInfo is the minimal fs.FileInfo a nested mount needs to
// discover its backing store's size.
type innerFileInfo struct {
	file *File
}

func (i innerFileInfo) Name() string       { return "" }
func (i innerFileInfo) Size() int64        { return int64(i.file.GetFileSize()) }
func (i innerFileInfo) Mode() fs.FileMode  { return 0 }
func (i innerFileInfo) ModTime() time.Time { return i.file.LastModificationTime() }
func (i innerFileInfo) IsDir() bool        { return false }
func (i innerFileInfo) Sys() any           { return nil }
