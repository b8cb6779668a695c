package ext2

import (
	"fmt"
	"sync"
)

// BlockGroupDescriptor summarises a BlockGroup for persistence in the
// master record: where its bitmaps start, and how many blocks/nodes in
// the group remain free.
type BlockGroupDescriptor struct {
	BitmapsAddress     Address
	FreeBlocksInGroup  uint32
	FreeNodesInGroup   uint32
}

// BlockGroup owns a contiguous span of blocks: its own block-allocation
// bitmap, node-allocation bitmap, and node table, plus the data blocks
// that follow. A single mutex serialises allocation and deallocation of
// both bitmaps within the group.
type BlockGroup struct {
	mu sync.Mutex

	disk *DiskAccess

	index      int64   // position of this group in the volume's group array
	startAddr  Address // address of the first block owned by this group (its block bitmap)
	sizeBlocks int64    // total blocks owned, including the reserved prefix

	blockBitmapAddr Address
	nodeBitmapAddr  Address
	nodeTableAddr   Address
	dataStartAddr   Address

	blockBitmap *DataBitmap
	nodeBitmap  *DataBitmap

	freeBlocks int64
	freeNodes  int64
}

// NewBlockGroup formats a fresh group of sizeBlocks blocks starting at
// startAddr, reserving the first ReservedBlocks for its own bitmaps and
// node table.
func NewBlockGroup(disk *DiskAccess, index int64, startAddr Address, sizeBlocks int64) (*BlockGroup, error) {
	if sizeBlocks <= ReservedBlocks {
		return nil, fmt.Errorf("ext2: block group %d too small (%d blocks, need > %d reserved)", index, sizeBlocks, ReservedBlocks)
	}

	blockBitmap, err := NewDataBitmap(BlocksPerGroup)
	if err != nil {
		return nil, err
	}
	blockBitmap.ReserveBeginning(ReservedBlocks)
	if sizeBlocks < BlocksPerGroup {
		// Partial last group: blank out the tail so allocation never
		// hands out a block past the volume's physical end.
		blockBitmap.ReserveFrom(sizeBlocks)
	}

	nodeBitmap, err := NewDataBitmap(NodesPerGroup)
	if err != nil {
		return nil, err
	}

	g := &BlockGroup{
		disk:            disk,
		index:           index,
		startAddr:       startAddr,
		sizeBlocks:      sizeBlocks,
		blockBitmapAddr: startAddr,
		nodeBitmapAddr:  startAddr.AddBlocks(1),
		nodeTableAddr:   startAddr.AddBlocks(1 + NodeBitmapSizeBlocks),
		dataStartAddr:   startAddr.AddBlocks(ReservedBlocks),
		blockBitmap:     blockBitmap,
		nodeBitmap:      nodeBitmap,
		freeBlocks:      sizeBlocks - ReservedBlocks,
		freeNodes:       NodesPerGroup,
	}
	if err := g.save(); err != nil {
		return nil, err
	}
	return g, nil
}

// LoadBlockGroup reads an existing group's bitmaps from disk, given its
// descriptor.
func LoadBlockGroup(disk *DiskAccess, index int64, desc BlockGroupDescriptor, sizeBlocks int64) (*BlockGroup, error) {
	g := &BlockGroup{
		disk:            disk,
		index:           index,
		startAddr:       desc.BitmapsAddress,
		sizeBlocks:      sizeBlocks,
		blockBitmapAddr: desc.BitmapsAddress,
		nodeBitmapAddr:  desc.BitmapsAddress.AddBlocks(1),
		nodeTableAddr:   desc.BitmapsAddress.AddBlocks(1 + NodeBitmapSizeBlocks),
		dataStartAddr:   desc.BitmapsAddress.AddBlocks(ReservedBlocks),
		freeBlocks:      int64(desc.FreeBlocksInGroup),
		freeNodes:       int64(desc.FreeNodesInGroup),
	}

	blockBitmapBytes := make([]byte, BlocksPerGroup/8)
	if _, err := disk.ReadBytes(g.blockBitmapAddr.Int64(), blockBitmapBytes); err != nil {
		return nil, fmt.Errorf("load group %d block bitmap: %w", index, err)
	}
	g.blockBitmap = LoadDataBitmap(blockBitmapBytes)

	nodeBitmapBytes := make([]byte, NodeBitmapSizeBytes)
	if _, err := disk.ReadBytes(g.nodeBitmapAddr.Int64(), nodeBitmapBytes); err != nil {
		return nil, fmt.Errorf("load group %d node bitmap: %w", index, err)
	}
	g.nodeBitmap = LoadDataBitmap(nodeBitmapBytes)

	return g, nil
}

// Descriptor returns a copy-out summary suitable for storing in the
// master record.
func (g *BlockGroup) Descriptor() BlockGroupDescriptor {
	g.mu.Lock()
	defer g.mu.Unlock()
	return BlockGroupDescriptor{
		BitmapsAddress:    g.blockBitmapAddr,
		FreeBlocksInGroup: uint32(g.freeBlocks),
		FreeNodesInGroup:  uint32(g.freeNodes),
	}
}

func (g *BlockGroup) save() error {
	if err := g.disk.Write(g.blockBitmapAddr.Int64(), g.blockBitmap.Save()); err != nil {
		return fmt.Errorf("save group %d block bitmap: %w", g.index, err)
	}
	if err := g.disk.Write(g.nodeBitmapAddr.Int64(), g.nodeBitmap.Save()); err != nil {
		return fmt.Errorf("save group %d node bitmap: %w", g.index, err)
	}
	return nil
}

// FreeBlockCount returns how many blocks in the group are unallocated.
func (g *BlockGroup) FreeBlockCount() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.freeBlocks
}

// FreeNodeCount returns how many node-table slots in the group are unallocated.
func (g *BlockGroup) FreeNodeCount() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.freeNodes
}

// AllocateNewBlock reserves and returns the address of the first free
// block in the group, or InvalidAddress if the group is full.
func (g *BlockGroup) AllocateNewBlock() (Address, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := g.blockBitmap.AllocateFirstFree()
	if idx < 0 {
		return InvalidAddress, nil
	}
	g.freeBlocks--
	if err := g.disk.Write(g.blockBitmapAddr.Int64(), g.blockBitmap.Save()); err != nil {
		return InvalidAddress, fmt.Errorf("persist block bitmap for group %d: %w", g.index, err)
	}
	return g.startAddr.AddBlocks(idx), nil
}

// AllocateNewNode reserves and returns the address of the first free
// node-table slot in the group, or InvalidAddress if the group is full.
func (g *BlockGroup) AllocateNewNode() (Address, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := g.nodeBitmap.AllocateFirstFree()
	if idx < 0 {
		return InvalidAddress, nil
	}
	g.freeNodes--
	if err := g.disk.Write(g.nodeBitmapAddr.Int64(), g.nodeBitmap.Save()); err != nil {
		return InvalidAddress, fmt.Errorf("persist node bitmap for group %d: %w", g.index, err)
	}
	return g.nodeTableAddr.Add(idx * NodeSizeBytes), nil
}

// FreeBlock releases a previously allocated block back to the group.
func (g *BlockGroup) FreeBlock(addr Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !addr.In(g.startAddr, g.sizeBlocks*BlockSizeBytes) {
		return fmt.Errorf("%w: address %d not in group %d", ErrCorruption, addr, g.index)
	}
	if !addr.IsBlockAligned() {
		return fmt.Errorf("%w: address %d is not block-aligned", ErrCorruption, addr)
	}
	idx := (addr - g.startAddr).Int64() / BlockSizeBytes
	if idx < ReservedBlocks {
		return fmt.Errorf("%w: address %d falls in group %d's reserved prefix", ErrCorruption, addr, g.index)
	}
	wasSet, err := g.blockBitmap.Deallocate(idx)
	if err != nil {
		return err
	}
	if !wasSet {
		return fmt.Errorf("%w: double free of block %d in group %d", ErrCorruption, addr, g.index)
	}
	g.freeBlocks++
	return g.disk.Write(g.blockBitmapAddr.Int64(), g.blockBitmap.Save())
}

// FreeNode releases a previously allocated node-table slot.
func (g *BlockGroup) FreeNode(addr Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !addr.In(g.nodeTableAddr, BlocksForNodeTable*BlockSizeBytes) {
		return fmt.Errorf("%w: address %d not in group %d's node table", ErrCorruption, addr, g.index)
	}
	rel := (addr - g.nodeTableAddr).Int64()
	if rel%NodeSizeBytes != 0 {
		return fmt.Errorf("%w: address %d is not node-aligned", ErrCorruption, addr)
	}
	idx := rel / NodeSizeBytes
	wasSet, err := g.nodeBitmap.Deallocate(idx)
	if err != nil {
		return err
	}
	if !wasSet {
		return fmt.Errorf("%w: double free of node %d in group %d", ErrCorruption, addr, g.index)
	}
	g.freeNodes++
	return g.disk.Write(g.nodeBitmapAddr.Int64(), g.nodeBitmap.Save())
}
