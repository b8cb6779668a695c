package ext2

import (
	"fmt"
)

// FileNode is a byte-stream payload stored over its BlockAddressStorage.
// It grows or shrinks its backing blocks on write/truncate.
type FileNode struct {
	*node
}

func newFileNode(master *MasterRecord, addr Address) (*FileNode, error) {
	n, err := newNode(master, addr, kindFile)
	if err != nil {
		return nil, err
	}
	return &FileNode{node: n}, nil
}

func loadFileNode(master *MasterRecord, addr Address) (*FileNode, error) {
	n, err := loadNode(master, addr, kindFile)
	if err != nil {
		return nil, err
	}
	return &FileNode{node: n}, nil
}

// FileSize returns the current length of the file in bytes.
func (f *FileNode) FileSize() uint64 {
	return f.size
}

// ReadData reads up to len(buf) bytes starting at byte position pos,
// bounded by FileSize; a short read at end of file is truncation, not
// an error.
func (f *FileNode) ReadData(pos int64, buf []byte) (int, error) {
	if pos < 0 {
		return 0, fmt.Errorf("%w: negative read position %d", ErrInvalidPath, pos)
	}
	fileSize := int64(f.size)
	if pos >= fileSize {
		return 0, nil
	}
	toRead := int64(len(buf))
	if pos+toRead > fileSize {
		toRead = fileSize - pos
	}

	blockSize := BlockSizeBytes
	read := int64(0)
	for read < toRead {
		logicalPos := pos + read
		blockIdx := logicalPos / blockSize
		inBlockOff := logicalPos % blockSize

		addr, err := f.blocks.GetBlockStartAddress(blockIdx)
		if err != nil {
			return int(read), fmt.Errorf("read file data: %w", err)
		}

		chunk := blockSize - inBlockOff
		remaining := toRead - read
		if chunk > remaining {
			chunk = remaining
		}

		n, err := f.master.disk.ReadBytes(addr.Add(inBlockOff).Int64(), buf[read:read+chunk])
		if err != nil {
			return int(read), fmt.Errorf("read file data block %d: %w", blockIdx, err)
		}
		read += int64(n)
		if int64(n) < chunk {
			break
		}
	}
	return int(read), nil
}

// WriteData writes buf at byte position pos, growing the file first if
// the write extends past the current end.
func (f *FileNode) WriteData(pos int64, buf []byte) error {
	if pos < 0 {
		return fmt.Errorf("%w: negative write position %d", ErrInvalidPath, pos)
	}
	if len(buf) == 0 {
		return nil
	}

	endPos := pos + int64(len(buf))
	if uint64(endPos) > f.size {
		if err := f.SetFileSize(uint64(endPos)); err != nil {
			return err
		}
	}

	blockSize := BlockSizeBytes
	firstBlockIdx := pos / blockSize
	inBlockOff := int(pos % blockSize)
	numBlocks := GetNumberOfBlocksRequired(len(buf), inBlockOff)

	addrs := make([]Address, numBlocks)
	for i := 0; i < numBlocks; i++ {
		addr, err := f.blocks.GetBlockStartAddress(firstBlockIdx + int64(i))
		if err != nil {
			return fmt.Errorf("write file data: %w", err)
		}
		addrs[i] = addr
	}

	writer := NewSparseWriter(f.master.disk)
	if err := writer.Write(buf, addrs, inBlockOff); err != nil {
		return fmt.Errorf("write file data: %w", err)
	}

	return f.touchModified()
}

// SetFileSize grows or truncates the file so that ceil(n/BlockSizeBytes)
// blocks back it, updating the size field and modified timestamp.
func (f *FileNode) SetFileSize(n uint64) error {
	blockSize := uint64(BlockSizeBytes)
	wantBlocks := int64((n + blockSize - 1) / blockSize)
	have := f.blocks.NumBlocksAllocated()

	switch {
	case wantBlocks > have:
		if err := f.blocks.AddBlocks(wantBlocks - have); err != nil {
			return fmt.Errorf("grow file: %w", err)
		}
	case wantBlocks < have:
		if err := f.blocks.FreeLastBlocks(have - wantBlocks); err != nil {
			return fmt.Errorf("truncate file: %w", err)
		}
	}

	if err := f.setSize(n); err != nil {
		return err
	}
	return f.touchModified()
}
