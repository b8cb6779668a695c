package ext2

import (
	"fmt"

	"github.com/ascvorcov/vfs/util/bitmap"
)

// DataBitmap is a fixed-length bit vector persisted as packed bytes,
// LSB-first within a byte. It tracks allocation of a fixed-size pool of
// resources (blocks, or node-table slots) addressed by a zero-based
// index. It is a thin domain wrapper around bitmap.Bitmap.
type DataBitmap struct {
	bm *bitmap.Bitmap
}

// NewDataBitmap creates a bitmap addressing length bits, all initially
// free. length must be a multiple of 8.
func NewDataBitmap(length int64) (*DataBitmap, error) {
	if length%8 != 0 {
		return nil, fmt.Errorf("ext2: bitmap length %d is not a multiple of 8", length)
	}
	return &DataBitmap{bm: bitmap.NewBits(int(length))}, nil
}

// LoadDataBitmap wraps already-persisted bytes as a bitmap.
func LoadDataBitmap(b []byte) *DataBitmap {
	return &DataBitmap{bm: bitmap.FromBytes(b)}
}

// Save returns the packed bytes ready to be written to disk.
func (bm *DataBitmap) Save() []byte {
	return bm.bm.ToBytes()
}

// Len returns the number of bits the bitmap addresses.
func (bm *DataBitmap) Len() int64 {
	return int64(len(bm.bm.ToBytes())) * 8
}

// IsSet reports whether bit i is allocated.
func (bm *DataBitmap) IsSet(i int64) bool {
	set, _ := bm.bm.IsSet(int(i))
	return set
}

// AllocateFirstFree finds the lowest-indexed free bit, sets it, and
// returns its index, or -1 if the bitmap is full.
func (bm *DataBitmap) AllocateFirstFree() int64 {
	idx := bm.bm.FirstFree(0)
	if idx < 0 {
		return -1
	}
	_ = bm.bm.Set(idx)
	return int64(idx)
}

// Deallocate clears bit i. It returns true iff the bit had been set.
func (bm *DataBitmap) Deallocate(i int64) (bool, error) {
	wasSet, err := bm.bm.IsSet(int(i))
	if err != nil {
		return false, fmt.Errorf("%w: bitmap index %d out of range", ErrCorruption, i)
	}
	if err := bm.bm.Clear(int(i)); err != nil {
		return false, fmt.Errorf("%w: bitmap index %d out of range", ErrCorruption, i)
	}
	return wasSet, nil
}

// ReserveBeginning marks bits [0..k) as allocated, used to carve out the
// bitmap/node-table prefix of a freshly formatted block group.
func (bm *DataBitmap) ReserveBeginning(k int64) {
	for i := int64(0); i < k; i++ {
		_ = bm.bm.Set(int(i))
	}
}

// ReserveFrom marks bits [from..Len()) as permanently allocated, used to
// blank out the tail of a group's bitmap when the group's actual extent
// is shorter than the bitmap's fixed full-group capacity (the last,
// partial group of a volume).
func (bm *DataBitmap) ReserveFrom(from int64) {
	for i, total := from, bm.Len(); i < total; i++ {
		_ = bm.bm.Set(int(i))
	}
}

// CountFree returns the number of unset bits.
func (bm *DataBitmap) CountFree() int64 {
	var free int64
	total := bm.Len()
	for i := int64(0); i < total; i++ {
		if !bm.IsSet(i) {
			free++
		}
	}
	return free
}
