package ext2

// Address is an immutable absolute byte offset into a volume's backing
// store. It carries no knowledge of what lives there.
type Address int64

// InvalidAddress is returned by lookups that found nothing.
const InvalidAddress Address = -1

// IsValid reports whether a is a real, non-negative offset.
func (a Address) IsValid() bool {
	return a >= 0
}

// Int64 returns the raw byte offset.
func (a Address) Int64() int64 {
	return int64(a)
}

// AlignToBlockBoundary rounds a up to the next block boundary. An address
// already on a boundary is returned unchanged.
func (a Address) AlignToBlockBoundary() Address {
	rem := int64(a) % BlockSizeBytes
	if rem == 0 {
		return a
	}
	return a + Address(BlockSizeBytes-rem)
}

// IsBlockAligned reports whether a falls exactly on a block boundary.
func (a Address) IsBlockAligned() bool {
	return int64(a)%BlockSizeBytes == 0
}

// AddBlocks returns the address n whole blocks past a.
func (a Address) AddBlocks(n int64) Address {
	return a + Address(n*BlockSizeBytes)
}

// Add returns the address offset bytes past a.
func (a Address) Add(offset int64) Address {
	return a + Address(offset)
}

// In reports whether a lies in the half-open range [start, start+size).
func (a Address) In(start Address, size int64) bool {
	return a >= start && a < start+Address(size)
}
