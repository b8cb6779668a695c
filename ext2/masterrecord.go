package ext2

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ascvorcov/vfs/backend"
)

// MasterRecord owns a volume's on-disk header, its block groups, and the
// live-node cache shared by every path resolution against that volume.
// It is the volume's single BlockAllocator: directory and file nodes
// never talk to a BlockGroup directly.
type MasterRecord struct {
	disk *DiskAccess

	volumeSizeBlocks int64
	rootAddr         Address

	mu          sync.Mutex // guards groups' free-space bookkeeping and round-robin cursor
	groups      []*BlockGroup
	nextGroup   int64

	cacheMu sync.Mutex
	dirs    map[Address]*DirectoryNode
	files   map[Address]*FileNode

	// MountID identifies this open mount for the lifetime of the process;
	// it is never written to disk.
	MountID uuid.UUID
	// VolumeName is an in-memory label assigned at mount time, not
	// persisted in the on-disk format.
	VolumeName string

	log *logrus.Entry
}

// layoutGroups decides how many block groups a volume of sizeBlocksTotal
// blocks is divided into, and the blocks reserved up front for the
// master header and group descriptor table. The split is entirely
// deterministic in sizeBlocksTotal, so Load recomputes it rather than
// storing it.
func layoutGroups(sizeBlocksTotal int64) (metadataBlocks int64, groupSizes []int64, err error) {
	metadataBlocks = 1
	for iter := 0; iter < 3; iter++ {
		remaining := sizeBlocksTotal - metadataBlocks
		if remaining <= ReservedBlocks {
			return 0, nil, fmt.Errorf("%w: volume of %d blocks too small to hold even one group", ErrInvalidPath, sizeBlocksTotal)
		}
		groupCount := (remaining + BlocksPerGroup - 1) / BlocksPerGroup
		needed := (mrHeaderSize + groupCount*groupDescSize + BlockSizeBytes - 1) / BlockSizeBytes
		if needed == metadataBlocks {
			groupSizes = make([]int64, groupCount)
			for i := int64(0); i < groupCount-1; i++ {
				groupSizes[i] = BlocksPerGroup
			}
			groupSizes[groupCount-1] = remaining - (groupCount-1)*BlocksPerGroup
			if groupSizes[groupCount-1] <= ReservedBlocks {
				return 0, nil, fmt.Errorf("%w: last block group of %d blocks too small", ErrInvalidPath, groupSizes[groupCount-1])
			}
			return metadataBlocks, groupSizes, nil
		}
		metadataBlocks = needed
	}
	return 0, nil, fmt.Errorf("%w: group layout did not converge for %d blocks", ErrCorruption, sizeBlocksTotal)
}

func groupDescAddr(i int64) Address {
	return Address(mrHeaderSize + i*groupDescSize)
}

// blocksBaseAddr is the origin every node's stored block-index pointers
// are relative to. Pinning it to zero means a pointer value is simply
// the block's absolute position in the volume.
func (m *MasterRecord) blocksBaseAddr() Address { return Address(0) }

// CreateNewVolume formats a brand new volume of sizeBytes over storage,
// with a fresh empty root directory, and returns it mounted.
func CreateNewVolume(storage backend.Storage, sizeBytes int64, volumeName string) (*MasterRecord, error) {
	disk := NewDiskAccess(storage)

	sizeBlocksTotal := sizeBytes / BlockSizeBytes
	metadataBlocks, groupSizes, err := layoutGroups(sizeBlocksTotal)
	if err != nil {
		return nil, err
	}

	m := &MasterRecord{
		disk:             disk,
		volumeSizeBlocks: sizeBlocksTotal,
		dirs:             make(map[Address]*DirectoryNode),
		files:            make(map[Address]*FileNode),
		MountID:          uuid.New(),
		VolumeName:       volumeName,
	}
	m.log = volumeLogger(m.MountID.String(), volumeName)

	groupStart := Address(0).AddBlocks(metadataBlocks)
	for i, size := range groupSizes {
		g, err := NewBlockGroup(disk, int64(i), groupStart, size)
		if err != nil {
			return nil, fmt.Errorf("format block group %d: %w", i, err)
		}
		m.groups = append(m.groups, g)
		groupStart = groupStart.AddBlocks(size)
	}

	rootAddr, err := m.AllocateNewNode()
	if err != nil {
		return nil, fmt.Errorf("allocate root node: %w", err)
	}
	rootDir, err := newDirectoryNode(m, rootAddr, 0, false)
	if err != nil {
		return nil, fmt.Errorf("format root directory: %w", err)
	}
	m.rootAddr = rootAddr
	m.dirs[rootAddr] = rootDir

	if err := m.persistHeader(); err != nil {
		return nil, err
	}
	for i, g := range m.groups {
		if err := m.persistGroupDescriptor(int64(i), g.Descriptor()); err != nil {
			return nil, err
		}
	}

	m.log.Info("formatted new volume")
	return m, nil
}

// LoadVolume mounts an existing volume from storage.
func LoadVolume(storage backend.Storage, volumeName string) (*MasterRecord, error) {
	disk := NewDiskAccess(storage)

	sizeBlocksTotal, err := disk.ReadInt64(mrOffVolumeSize)
	if err != nil {
		return nil, fmt.Errorf("load master record: %w", err)
	}
	rootRaw, err := disk.ReadInt64(mrOffRootNode)
	if err != nil {
		return nil, fmt.Errorf("load master record: %w", err)
	}
	groupCountRaw, err := disk.ReadInt64(mrOffGroupCount)
	if err != nil {
		return nil, fmt.Errorf("load master record: %w", err)
	}

	_, groupSizes, err := layoutGroups(sizeBlocksTotal)
	if err != nil {
		return nil, err
	}
	if int64(len(groupSizes)) != groupCountRaw {
		return nil, fmt.Errorf("%w: volume header says %d groups, layout computes %d", ErrCorruption, groupCountRaw, len(groupSizes))
	}

	m := &MasterRecord{
		disk:             disk,
		volumeSizeBlocks: sizeBlocksTotal,
		rootAddr:         Address(rootRaw),
		dirs:             make(map[Address]*DirectoryNode),
		files:            make(map[Address]*FileNode),
		MountID:          uuid.New(),
		VolumeName:       volumeName,
	}
	m.log = volumeLogger(m.MountID.String(), volumeName)

	for i, size := range groupSizes {
		var desc BlockGroupDescriptor
		raw, err := disk.ReadUint64(groupDescAddr(int64(i)).Add(gdOffBitmaps).Int64())
		if err != nil {
			return nil, fmt.Errorf("load group %d descriptor: %w", i, err)
		}
		desc.BitmapsAddress = Address(raw)
		fb, err := disk.ReadUint32(groupDescAddr(int64(i)).Add(gdOffFreeBlocks).Int64())
		if err != nil {
			return nil, fmt.Errorf("load group %d descriptor: %w", i, err)
		}
		desc.FreeBlocksInGroup = fb
		fn, err := disk.ReadUint32(groupDescAddr(int64(i)).Add(gdOffFreeNodes).Int64())
		if err != nil {
			return nil, fmt.Errorf("load group %d descriptor: %w", i, err)
		}
		desc.FreeNodesInGroup = fn

		g, err := LoadBlockGroup(disk, int64(i), desc, size)
		if err != nil {
			return nil, fmt.Errorf("load block group %d: %w", i, err)
		}
		m.groups = append(m.groups, g)
	}

	m.log.Info("mounted volume")
	return m, nil
}

func (m *MasterRecord) persistHeader() error {
	if err := m.disk.WriteInt64(mrOffVolumeSize, m.volumeSizeBlocks); err != nil {
		return err
	}
	if err := m.disk.WriteInt64(mrOffFreeBlocks, m.totalFreeBlocks()); err != nil {
		return err
	}
	if err := m.disk.WriteInt64(mrOffRootNode, m.rootAddr.Int64()); err != nil {
		return err
	}
	return m.disk.WriteInt64(mrOffGroupCount, int64(len(m.groups)))
}

func (m *MasterRecord) persistGroupDescriptor(i int64, desc BlockGroupDescriptor) error {
	base := groupDescAddr(i)
	if err := m.disk.WriteUint64(base.Add(gdOffBitmaps).Int64(), uint64(desc.BitmapsAddress)); err != nil {
		return err
	}
	if err := m.disk.WriteUint32(base.Add(gdOffFreeBlocks).Int64(), desc.FreeBlocksInGroup); err != nil {
		return err
	}
	return m.disk.WriteUint32(base.Add(gdOffFreeNodes).Int64(), desc.FreeNodesInGroup)
}

func (m *MasterRecord) totalFreeBlocks() int64 {
	var total int64
	for _, g := range m.groups {
		total += g.FreeBlockCount()
	}
	return total
}

// AllocateBlocks implements BlockAllocator: it round-robins across block
// groups, allocating one block at a time, and gives back whatever it
// already took if the volume runs out partway through.
func (m *MasterRecord) AllocateBlocks(n int64) ([]Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	addrs := make([]Address, 0, n)
	for int64(len(addrs)) < n {
		addr, groupIdx, err := m.allocateOneBlockLocked()
		if err != nil {
			m.releaseLocked(addrs)
			return nil, err
		}
		if !addr.IsValid() {
			m.releaseLocked(addrs)
			return nil, fmt.Errorf("%w: no free blocks left on volume", ErrDiskFull)
		}
		if err := m.persistGroupDescriptor(groupIdx, m.groups[groupIdx].Descriptor()); err != nil {
			m.releaseLocked(addrs)
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func (m *MasterRecord) allocateOneBlockLocked() (Address, int64, error) {
	for tries := int64(0); tries < int64(len(m.groups)); tries++ {
		idx := m.nextGroup
		m.nextGroup = (m.nextGroup + 1) % int64(len(m.groups))
		addr, err := m.groups[idx].AllocateNewBlock()
		if err != nil {
			return InvalidAddress, 0, err
		}
		if addr.IsValid() {
			return addr, idx, nil
		}
	}
	return InvalidAddress, 0, nil
}

// releaseLocked returns partially allocated blocks to their groups; it
// is only called while m.mu is already held, on an AllocateBlocks
// failure, so free_space_blocks bookkeeping never drifts from reality.
func (m *MasterRecord) releaseLocked(addrs []Address) {
	for _, addr := range addrs {
		g := m.findGroupForAddress(addr)
		if g == nil {
			continue
		}
		_ = g.FreeBlock(addr)
	}
}

// FreeBlocks implements BlockAllocator.
func (m *MasterRecord) FreeBlocks(addrs []Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, addr := range addrs {
		g := m.findGroupForAddress(addr)
		if g == nil {
			return fmt.Errorf("%w: address %d does not belong to any block group", ErrCorruption, addr)
		}
		if err := g.FreeBlock(addr); err != nil {
			return err
		}
		if err := m.persistGroupDescriptor(g.index, g.Descriptor()); err != nil {
			return err
		}
	}
	return nil
}

// AllocateNewNode finds a group with a free node-table slot and reserves
// one.
func (m *MasterRecord) AllocateNewNode() (Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, g := range m.groups {
		addr, err := g.AllocateNewNode()
		if err != nil {
			return InvalidAddress, err
		}
		if addr.IsValid() {
			if err := m.persistGroupDescriptor(g.index, g.Descriptor()); err != nil {
				return InvalidAddress, err
			}
			return addr, nil
		}
	}
	return InvalidAddress, fmt.Errorf("%w: no free node slots left on volume", ErrDiskFull)
}

func (m *MasterRecord) freeNode(addr Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.findGroupForAddress(addr)
	if g == nil {
		return fmt.Errorf("%w: node address %d does not belong to any block group", ErrCorruption, addr)
	}
	if err := g.FreeNode(addr); err != nil {
		return err
	}
	return m.persistGroupDescriptor(g.index, g.Descriptor())
}

func (m *MasterRecord) findGroupForAddress(addr Address) *BlockGroup {
	for _, g := range m.groups {
		if addr.In(g.startAddr, g.sizeBlocks*BlockSizeBytes) {
			return g
		}
	}
	return nil
}

// RootAddress returns the volume's root directory node address.
func (m *MasterRecord) RootAddress() Address { return m.rootAddr }

// FreeBlockCount returns the number of unallocated data blocks summed
// across every block group.
func (m *MasterRecord) FreeBlockCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalFreeBlocks()
}

// GetDirectoryNode returns the cached directory node at addr, loading it
// from disk on first access.
func (m *MasterRecord) GetDirectoryNode(addr Address) (*DirectoryNode, error) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	if d, ok := m.dirs[addr]; ok {
		return d, nil
	}
	d, err := loadDirectoryNode(m, addr)
	if err != nil {
		return nil, err
	}
	m.dirs[addr] = d
	return d, nil
}

// GetFileNode returns the cached file node at addr, loading it from disk
// on first access.
func (m *MasterRecord) GetFileNode(addr Address) (*FileNode, error) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	if f, ok := m.files[addr]; ok {
		return f, nil
	}
	f, err := loadFileNode(m, addr)
	if err != nil {
		return nil, err
	}
	m.files[addr] = f
	return f, nil
}

// CreateDirectoryNode allocates and formats a new directory node, with
// ".." pointing at parentAddr, and caches it.
func (m *MasterRecord) CreateDirectoryNode(parentAddr Address) (*DirectoryNode, error) {
	addr, err := m.AllocateNewNode()
	if err != nil {
		return nil, err
	}
	d, err := newDirectoryNode(m, addr, parentAddr, true)
	if err != nil {
		return nil, err
	}
	m.cacheMu.Lock()
	m.dirs[addr] = d
	m.cacheMu.Unlock()
	return d, nil
}

// CreateFileNode allocates and formats a new, empty file node, and
// caches it.
func (m *MasterRecord) CreateFileNode() (*FileNode, error) {
	addr, err := m.AllocateNewNode()
	if err != nil {
		return nil, err
	}
	f, err := newFileNode(m, addr)
	if err != nil {
		return nil, err
	}
	m.cacheMu.Lock()
	m.files[addr] = f
	m.cacheMu.Unlock()
	return f, nil
}

// FreeNodeAndAllAllocatedBlocks releases every data block owned by the
// node at addr and then the node-table slot itself, evicting it from the
// cache.
func (m *MasterRecord) FreeNodeAndAllAllocatedBlocks(addr Address, isDir bool) error {
	m.cacheMu.Lock()
	var blocks *BlockAddressStorage
	if isDir {
		d, ok := m.dirs[addr]
		if !ok {
			loaded, err := loadDirectoryNode(m, addr)
			if err != nil {
				m.cacheMu.Unlock()
				return err
			}
			d = loaded
		}
		blocks = d.blocks
		delete(m.dirs, addr)
	} else {
		f, ok := m.files[addr]
		if !ok {
			loaded, err := loadFileNode(m, addr)
			if err != nil {
				m.cacheMu.Unlock()
				return err
			}
			f = loaded
		}
		blocks = f.blocks
		delete(m.files, addr)
	}
	m.cacheMu.Unlock()

	if err := blocks.FreeLastBlocks(blocks.NumBlocksAllocated()); err != nil {
		return fmt.Errorf("free node %d blocks: %w", addr, err)
	}
	return m.freeNode(addr)
}

// Dispose flushes the latest group descriptors and header and closes
// the backing store.
func (m *MasterRecord) Dispose() error {
	if err := m.persistHeader(); err != nil {
		return err
	}
	for i, g := range m.groups {
		if err := m.persistGroupDescriptor(int64(i), g.Descriptor()); err != nil {
			return err
		}
	}
	m.log.Info("unmounted volume")
	return m.disk.Close()
}
