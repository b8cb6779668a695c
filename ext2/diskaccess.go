package ext2

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ascvorcov/vfs/backend"
)

// DiskAccess is a thread-safe, stateless positional read/write interface
// over a byte-addressable backing store. All operations serialise on a
// single mutex, matching the backing store's own single-writer-at-a-time
// contract; callers wanting concurrency batch their own access rather
// than relying on any caching layer here, because there isn't one.
type DiskAccess struct {
	mu      sync.Mutex
	storage backend.Storage
}

// NewDiskAccess wraps storage for little-endian positional access.
func NewDiskAccess(storage backend.Storage) *DiskAccess {
	return &DiskAccess{storage: storage}
}

// ReadByte reads a single byte at offset.
func (d *DiskAccess) ReadByte(offset int64) (byte, error) {
	var buf [1]byte
	n, err := d.readAt(buf[:], offset)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: short read at %d", ErrIO, offset)
	}
	return buf[0], nil
}

// WriteByte writes a single byte at offset.
func (d *DiskAccess) WriteByte(offset int64, b byte) error {
	return d.writeAt([]byte{b}, offset)
}

// ReadUint32 reads a little-endian uint32 at offset.
func (d *DiskAccess) ReadUint32(offset int64) (uint32, error) {
	var buf [4]byte
	if _, err := d.readAt(buf[:], offset); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteUint32 writes v as little-endian at offset.
func (d *DiskAccess) WriteUint32(offset int64, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return d.writeAt(buf[:], offset)
}

// ReadUint64 reads a little-endian uint64 at offset.
func (d *DiskAccess) ReadUint64(offset int64) (uint64, error) {
	var buf [8]byte
	if _, err := d.readAt(buf[:], offset); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteUint64 writes v as little-endian at offset.
func (d *DiskAccess) WriteUint64(offset int64, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return d.writeAt(buf[:], offset)
}

// ReadInt64 reads a little-endian, two's-complement int64 at offset.
func (d *DiskAccess) ReadInt64(offset int64) (int64, error) {
	v, err := d.ReadUint64(offset)
	return int64(v), err
}

// WriteInt64 writes v as little-endian at offset.
func (d *DiskAccess) WriteInt64(offset int64, v int64) error {
	return d.WriteUint64(offset, uint64(v))
}

// ReadBytes reads up to len(buf) bytes starting at offset, returning the
// actual number of bytes read: it may be short at end of store.
func (d *DiskAccess) ReadBytes(offset int64, buf []byte) (int, error) {
	return d.readAt(buf, offset)
}

// WriteBytes writes buf[offset:offset+count] starting at the given store
// position. Writing beyond the current end extends the store if the
// backing surface allows it.
func (d *DiskAccess) WriteBytes(storeOffset int64, buf []byte, offset, count int) error {
	return d.writeAt(buf[offset:offset+count], storeOffset)
}

// Write writes the entirety of buf at storeOffset.
func (d *DiskAccess) Write(storeOffset int64, buf []byte) error {
	return d.writeAt(buf, storeOffset)
}

// Size returns the current size, in bytes, of the backing store.
func (d *DiskAccess) Size() (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fi, err := d.storage.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: stat backing store: %v", ErrIO, err)
	}
	return fi.Size(), nil
}

// Close releases the backing store.
func (d *DiskAccess) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.storage.Close()
}

func (d *DiskAccess) readAt(buf []byte, offset int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.storage.ReadAt(buf, offset)
	if err != nil && n == 0 {
		return n, fmt.Errorf("%w: read at %d: %v", ErrIO, offset, err)
	}
	return n, nil
}

func (d *DiskAccess) writeAt(buf []byte, offset int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, err := d.storage.Writable()
	if err != nil {
		return fmt.Errorf("%w: backing store not writable: %v", ErrIO, err)
	}
	if _, err := w.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("%w: write at %d: %v", ErrIO, offset, err)
	}
	return nil
}
