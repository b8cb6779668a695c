package ext2

import "fmt"

// SparseWriter splits a byte buffer into head/body/tail ranges and
// writes each part to its corresponding block address, so a single
// logical write can span a sequence of data blocks that need not be
// contiguous on disk.
type SparseWriter struct {
	disk *DiskAccess
}

// NewSparseWriter builds a SparseWriter over disk.
func NewSparseWriter(disk *DiskAccess) *SparseWriter {
	return &SparseWriter{disk: disk}
}

// GetNumberOfBlocksRequired returns how many block addresses a write of
// length bytes starting offset bytes into the first block will touch.
func GetNumberOfBlocksRequired(length int, offset int) int {
	headRoom := int(BlockSizeBytes) - offset
	if length <= headRoom {
		return 1
	}
	remaining := length - headRoom
	bodyBlocks := remaining / int(BlockSizeBytes)
	tail := remaining % int(BlockSizeBytes)
	blocks := 1 + bodyBlocks
	if tail > 0 {
		blocks++
	}
	return blocks
}

// Write splits buf across blocks, starting offset bytes into blocks[0].
// len(blocks) must equal GetNumberOfBlocksRequired(len(buf), offset).
func (w *SparseWriter) Write(buf []byte, blocks []Address, offset int) error {
	need := GetNumberOfBlocksRequired(len(buf), offset)
	if len(blocks) != need {
		return fmt.Errorf("ext2: sparse write needs %d blocks, got %d", need, len(blocks))
	}
	if len(buf) == 0 {
		return nil
	}

	blockSize := int(BlockSizeBytes)
	pos := 0

	// head: bytes 0..min(len, blockSize-offset), at blocks[0]+offset
	headRoom := blockSize - offset
	headLen := len(buf)
	if headLen > headRoom {
		headLen = headRoom
	}
	if err := w.disk.Write(blocks[0].Add(int64(offset)).Int64(), buf[:headLen]); err != nil {
		return fmt.Errorf("sparse write head: %w", err)
	}
	pos += headLen

	// body: zero or more whole-block ranges, each at blocks[1+i]
	remaining := len(buf) - pos
	bodyBlocks := remaining / blockSize
	tailLen := remaining % blockSize

	blockIdx := 1
	for i := 0; i < bodyBlocks; i++ {
		if err := w.disk.Write(blocks[blockIdx].Int64(), buf[pos:pos+blockSize]); err != nil {
			return fmt.Errorf("sparse write body block %d: %w", i, err)
		}
		pos += blockSize
		blockIdx++
	}

	// tail: remaining bytes, at the last block address
	if tailLen > 0 {
		if err := w.disk.Write(blocks[blockIdx].Int64(), buf[pos:pos+tailLen]); err != nil {
			return fmt.Errorf("sparse write tail: %w", err)
		}
	}

	return nil
}
