package ext2

import "fmt"

// BlockAllocator is the subset of MasterRecord's allocator interface that
// BlockAddressStorage needs: allocate n fresh data blocks in one call, or
// give some back.
type BlockAllocator interface {
	AllocateBlocks(n int64) ([]Address, error)
	FreeBlocks(addrs []Address) error
}

// BlockAddressStorage maps a zero-based logical block index within one
// node to an absolute Address, using 12 direct, 1 indirect, and 1
// double-indirect 32-bit block-index pointers, persisted inside the
// owning node's 128-byte header starting at nodeOffBlockAddrStore.
type BlockAddressStorage struct {
	disk       *DiskAccess
	headerAddr Address // address of the owning node's header
	blocksBase Address // address of the first data block in the volume
	allocator  BlockAllocator

	numBlocksAllocated int64
	direct             [DirectPointers]uint32
	indirect           uint32
	doubleIndirect     uint32
}

// NewBlockAddressStorage builds a fresh, empty BlockAddressStorage for a
// node whose header lives at headerAddr, and persists its initial
// (all-zero) state.
func NewBlockAddressStorage(disk *DiskAccess, headerAddr, blocksBase Address, allocator BlockAllocator) (*BlockAddressStorage, error) {
	bas := &BlockAddressStorage{disk: disk, headerAddr: headerAddr, blocksBase: blocksBase, allocator: allocator}
	if err := bas.persistHeader(); err != nil {
		return nil, err
	}
	return bas, nil
}

// LoadBlockAddressStorage reads an existing BlockAddressStorage from the
// node header at headerAddr.
func LoadBlockAddressStorage(disk *DiskAccess, headerAddr, blocksBase Address, allocator BlockAllocator) (*BlockAddressStorage, error) {
	bas := &BlockAddressStorage{disk: disk, headerAddr: headerAddr, blocksBase: blocksBase, allocator: allocator}

	n, err := disk.ReadUint32(headerAddr.Add(nodeOffNumBlocksAlloc).Int64())
	if err != nil {
		return nil, fmt.Errorf("load block address storage: %w", err)
	}
	bas.numBlocksAllocated = int64(n)

	for i := 0; i < DirectPointers; i++ {
		v, err := disk.ReadUint32(headerAddr.Add(nodeOffDirectPointers + int64(i)*4).Int64())
		if err != nil {
			return nil, fmt.Errorf("load direct pointer %d: %w", i, err)
		}
		bas.direct[i] = v
	}
	ind, err := disk.ReadUint32(headerAddr.Add(nodeOffIndirectPointer).Int64())
	if err != nil {
		return nil, fmt.Errorf("load indirect pointer: %w", err)
	}
	bas.indirect = ind
	dind, err := disk.ReadUint32(headerAddr.Add(nodeOffDoubleIndirect).Int64())
	if err != nil {
		return nil, fmt.Errorf("load double-indirect pointer: %w", err)
	}
	bas.doubleIndirect = dind

	return bas, nil
}

// NumBlocksAllocated returns how many logical data blocks are currently
// backed by real storage.
func (bas *BlockAddressStorage) NumBlocksAllocated() int64 {
	return bas.numBlocksAllocated
}

func (bas *BlockAddressStorage) indexToAddress(idx uint32) Address {
	return bas.blocksBase.AddBlocks(int64(idx))
}

// GetBlockStartAddress returns the absolute address of logical block i.
func (bas *BlockAddressStorage) GetBlockStartAddress(i int64) (Address, error) {
	if i < 0 || i >= bas.numBlocksAllocated {
		return InvalidAddress, fmt.Errorf("%w: block index %d out of range [0,%d)", ErrCorruption, i, bas.numBlocksAllocated)
	}

	d := int64(DirectPointers)
	p := PointersPerBlock

	switch {
	case i < d:
		return bas.indexToAddress(bas.direct[i]), nil
	case i-d < p:
		slot := i - d
		idx, err := bas.readPointer(bas.indirect, slot)
		if err != nil {
			return InvalidAddress, err
		}
		return bas.indexToAddress(idx), nil
	default:
		j := i - d - p
		outerSlot := j / p
		innerSlot := j % p
		indirectPageIdx, err := bas.readPointer(bas.doubleIndirect, outerSlot)
		if err != nil {
			return InvalidAddress, err
		}
		idx, err := bas.readPointer(indirectPageIdx, innerSlot)
		if err != nil {
			return InvalidAddress, err
		}
		return bas.indexToAddress(idx), nil
	}
}

func (bas *BlockAddressStorage) readPointer(pageBlockIdx uint32, slot int64) (uint32, error) {
	addr := bas.indexToAddress(pageBlockIdx).Add(slot * 4)
	return bas.disk.ReadUint32(addr.Int64())
}

func (bas *BlockAddressStorage) writePointer(pageBlockIdx uint32, slot int64, value uint32) error {
	addr := bas.indexToAddress(pageBlockIdx).Add(slot * 4)
	return bas.disk.WriteUint32(addr.Int64(), value)
}

// AddBlocks allocates k new data blocks and appends them to the node's
// logical block list, lazily allocating the indirect and
// double-indirect pages as their capacity is first needed. Every
// pointer mutation is persisted immediately.
func (bas *BlockAddressStorage) AddBlocks(k int64) error {
	if k <= 0 {
		return nil
	}
	if bas.numBlocksAllocated+k > MaxBlocksPerNode {
		return fmt.Errorf("%w: requested %d would exceed max %d blocks", ErrMaxFileSize, bas.numBlocksAllocated+k, MaxBlocksPerNode)
	}

	addrs, err := bas.allocator.AllocateBlocks(k)
	if err != nil {
		return err
	}

	d := int64(DirectPointers)
	p := PointersPerBlock

	for _, addr := range addrs {
		i := bas.numBlocksAllocated
		blockIdx := uint32((addr - bas.blocksBase).Int64() / BlockSizeBytes)

		switch {
		case i < d:
			bas.direct[i] = blockIdx
			if err := bas.persistDirect(int(i)); err != nil {
				return err
			}
		case i-d < p:
			if i == d {
				if err := bas.allocateIndirectPage(); err != nil {
					return err
				}
			}
			slot := i - d
			if err := bas.writePointer(bas.indirect, slot, blockIdx); err != nil {
				return err
			}
		default:
			j := i - d - p
			outerSlot := j / p
			innerSlot := j % p
			if i == d+p {
				if err := bas.allocateDoubleIndirectPage(); err != nil {
					return err
				}
			}
			if innerSlot == 0 {
				if err := bas.allocateIndirectPageInTier(outerSlot); err != nil {
					return err
				}
			}
			indirectPageIdx, err := bas.readPointer(bas.doubleIndirect, outerSlot)
			if err != nil {
				return err
			}
			if err := bas.writePointer(indirectPageIdx, innerSlot, blockIdx); err != nil {
				return err
			}
		}

		bas.numBlocksAllocated++
		if err := bas.persistNumBlocksAllocated(); err != nil {
			return err
		}
	}
	return nil
}

func (bas *BlockAddressStorage) allocateIndirectPage() error {
	addrs, err := bas.allocator.AllocateBlocks(1)
	if err != nil {
		return err
	}
	bas.indirect = uint32((addrs[0] - bas.blocksBase).Int64() / BlockSizeBytes)
	return bas.persistIndirect()
}

func (bas *BlockAddressStorage) allocateDoubleIndirectPage() error {
	addrs, err := bas.allocator.AllocateBlocks(1)
	if err != nil {
		return err
	}
	bas.doubleIndirect = uint32((addrs[0] - bas.blocksBase).Int64() / BlockSizeBytes)
	return bas.persistDoubleIndirect()
}

func (bas *BlockAddressStorage) allocateIndirectPageInTier(outerSlot int64) error {
	addrs, err := bas.allocator.AllocateBlocks(1)
	if err != nil {
		return err
	}
	idx := uint32((addrs[0] - bas.blocksBase).Int64() / BlockSizeBytes)
	return bas.writePointer(bas.doubleIndirect, outerSlot, idx)
}

// FreeLastBlocks releases the last n logical data blocks, freeing the
// indirect and/or double-indirect pages as soon as their last referent
// goes away.
func (bas *BlockAddressStorage) FreeLastBlocks(n int64) error {
	if n <= 0 {
		return nil
	}
	if n > bas.numBlocksAllocated {
		return fmt.Errorf("%w: cannot free %d blocks, only %d allocated", ErrCorruption, n, bas.numBlocksAllocated)
	}

	d := int64(DirectPointers)
	p := PointersPerBlock

	var toFree []Address

	for c := int64(0); c < n; c++ {
		i := bas.numBlocksAllocated - 1

		switch {
		case i < d:
			toFree = append(toFree, bas.indexToAddress(bas.direct[i]))
			bas.direct[i] = 0
			if err := bas.persistDirect(int(i)); err != nil {
				return err
			}
		case i-d < p:
			slot := i - d
			idx, err := bas.readPointer(bas.indirect, slot)
			if err != nil {
				return err
			}
			toFree = append(toFree, bas.indexToAddress(idx))
			if err := bas.writePointer(bas.indirect, slot, 0); err != nil {
				return err
			}
			if slot == 0 {
				toFree = append(toFree, bas.indexToAddress(bas.indirect))
				bas.indirect = 0
				if err := bas.persistIndirect(); err != nil {
					return err
				}
			}
		default:
			j := i - d - p
			outerSlot := j / p
			innerSlot := j % p
			indirectPageIdx, err := bas.readPointer(bas.doubleIndirect, outerSlot)
			if err != nil {
				return err
			}
			idx, err := bas.readPointer(indirectPageIdx, innerSlot)
			if err != nil {
				return err
			}
			toFree = append(toFree, bas.indexToAddress(idx))
			if err := bas.writePointer(indirectPageIdx, innerSlot, 0); err != nil {
				return err
			}
			if innerSlot == 0 {
				toFree = append(toFree, bas.indexToAddress(indirectPageIdx))
				if err := bas.writePointer(bas.doubleIndirect, outerSlot, 0); err != nil {
					return err
				}
				if outerSlot == 0 {
					toFree = append(toFree, bas.indexToAddress(bas.doubleIndirect))
					bas.doubleIndirect = 0
					if err := bas.persistDoubleIndirect(); err != nil {
						return err
					}
				}
			}
		}

		bas.numBlocksAllocated--
		if err := bas.persistNumBlocksAllocated(); err != nil {
			return err
		}
	}

	return bas.allocator.FreeBlocks(toFree)
}

func (bas *BlockAddressStorage) persistHeader() error {
	if err := bas.persistNumBlocksAllocated(); err != nil {
		return err
	}
	for i := 0; i < DirectPointers; i++ {
		if err := bas.persistDirect(i); err != nil {
			return err
		}
	}
	if err := bas.persistIndirect(); err != nil {
		return err
	}
	return bas.persistDoubleIndirect()
}

func (bas *BlockAddressStorage) persistNumBlocksAllocated() error {
	return bas.disk.WriteUint32(bas.headerAddr.Add(nodeOffNumBlocksAlloc).Int64(), uint32(bas.numBlocksAllocated))
}

func (bas *BlockAddressStorage) persistDirect(i int) error {
	return bas.disk.WriteUint32(bas.headerAddr.Add(nodeOffDirectPointers+int64(i)*4).Int64(), bas.direct[i])
}

func (bas *BlockAddressStorage) persistIndirect() error {
	return bas.disk.WriteUint32(bas.headerAddr.Add(nodeOffIndirectPointer).Int64(), bas.indirect)
}

func (bas *BlockAddressStorage) persistDoubleIndirect() error {
	return bas.disk.WriteUint32(bas.headerAddr.Add(nodeOffDoubleIndirect).Int64(), bas.doubleIndirect)
}
