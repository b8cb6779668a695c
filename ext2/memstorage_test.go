package ext2

import (
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/ascvorcov/vfs/backend"
)

// memStorage is an in-memory backend.Storage used so tests never touch
// the host filesystem. It grows on WriteAt past the current end, the
// same way a sparse host file does.
type memStorage struct {
	data []byte
	pos  int64
}

func newMemStorage(size int64) backend.Storage {
	return &memStorage{data: make([]byte, size)}
}

func (m *memStorage) Stat() (fs.FileInfo, error) { return memFileInfo{int64(len(m.data))}, nil }

func (m *memStorage) Read(p []byte) (int, error) {
	n, err := m.ReadAt(p, m.pos)
	m.pos += int64(n)
	return n, err
}

func (m *memStorage) Close() error { return nil }

func (m *memStorage) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memStorage) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = m.pos + offset
	case io.SeekEnd:
		abs = int64(len(m.data)) + offset
	}
	m.pos = abs
	return abs, nil
}

func (m *memStorage) Sys() (*os.File, error) { return nil, backend.ErrNotSuitable }

func (m *memStorage) Writable() (backend.WritableFile, error) { return m, nil }

func (m *memStorage) WriteAt(p []byte, off int64) (int, error) {
	end := off + int64(len(p))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[off:end], p)
	return len(p), nil
}

type memFileInfo struct {
	size int64
}

func (i memFileInfo) Name() string       { return "mem" }
func (i memFileInfo) Size() int64        { return i.size }
func (i memFileInfo) Mode() fs.FileMode  { return 0 }
func (i memFileInfo) ModTime() time.Time { return time.Time{} }
func (i memFileInfo) IsDir() bool        { return false }
func (i memFileInfo) Sys() any           { return nil }
