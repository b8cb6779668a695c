package ext2

import (
	"time"

	"github.com/ascvorcov/vfs/util/timestamp"
)

// Format constants. Changing any of these is a format break: existing
// volumes written with one set of values cannot be mounted with another.
const (
	// BlockSizeBytes is the fixed size, in bytes, of a single allocation
	// unit on a volume.
	BlockSizeBytes int64 = 4096

	// NodeSizeBytes is the fixed size, in bytes, of a single node header
	// slot in a block group's node table.
	NodeSizeBytes int64 = 128

	// NodeRatio is the format's nominal bytes-per-node ratio. Nothing is
	// sized from it: NodesPerGroup below is pinned instead.
	NodeRatio int64 = 8192

	// BlockGroupFactor is how many blocks fit in one group, expressed as
	// a multiple of bits addressable by a single block-sized bitmap.
	BlockGroupFactor int64 = 8

	// BlocksPerGroup is the maximum number of blocks owned by a single
	// block group: BlockGroupFactor * BlockSizeBytes.
	BlocksPerGroup int64 = BlockGroupFactor * BlockSizeBytes

	// NodesPerBlock is how many NodeSizeBytes-sized node slots fit in a
	// single block of the node table.
	NodesPerBlock int64 = BlockSizeBytes / NodeSizeBytes

	// NodesPerGroup is the total number of node-table slots a full-sized
	// group carries. Pinned per the format's fixed-constant table rather
	// than re-derived, since re-deriving it from BlocksPerGroup*BlockSizeBytes/NodeRatio
	// gives a different number than the rest of the pinned table is
	// consistent with (see DESIGN.md).
	NodesPerGroup int64 = 2048

	// NodeBitmapSizeBytes is the persisted size of a group's node bitmap.
	NodeBitmapSizeBytes int64 = NodesPerGroup / 8

	// NodeBitmapSizeBlocks is how many blocks the node-allocation bitmap
	// for a single group occupies.
	NodeBitmapSizeBlocks int64 = (NodeBitmapSizeBytes + BlockSizeBytes - 1) / BlockSizeBytes

	// BlocksForNodeTable is how many blocks the node table of a single
	// full group occupies.
	BlocksForNodeTable int64 = (NodesPerGroup*NodeSizeBytes + BlockSizeBytes - 1) / BlockSizeBytes

	// ReservedBlocks is the number of blocks at the start of every group
	// reserved for the group's own bitmaps and node table: one block
	// bitmap block, NodeBitmapSizeBlocks node-bitmap blocks, and
	// BlocksForNodeTable node-table blocks.
	ReservedBlocks int64 = 1 + NodeBitmapSizeBlocks + BlocksForNodeTable

	// DirectPointers is how many direct block pointers a node carries.
	DirectPointers int = 12

	// PointersPerBlock (P in spec.md) is how many 32-bit block indices
	// fit in a single indirect/double-indirect page.
	PointersPerBlock int64 = BlockSizeBytes / 4

	// MaxBlocksPerNode is the largest number of data blocks a single
	// node's BlockAddressStorage can address.
	MaxBlocksPerNode int64 = int64(DirectPointers) + PointersPerBlock + PointersPerBlock*PointersPerBlock

	// NodeLockTimeout bounds how long a reader or writer waits to
	// acquire a node's lock before giving up with LockTimeout.
	NodeLockTimeout = 1 * time.Second

	// CopyBufferSize is the buffer size used to stream file contents
	// during cross-volume bulk copy/move operations.
	CopyBufferSize int = 40960

	// PathSeparator is the only recognised path segment separator.
	PathSeparator = '\\'
)

// Node header layout offsets, within the fixed NodeSizeBytes header.
const (
	nodeOffIsDirectory     = 0
	nodeOffSize            = 1
	nodeOffCreatedTicks    = 9
	nodeOffModifiedTicks   = 17
	nodeOffBlockAddrStore  = 25 // start of the embedded BlockAddressStorage record
	nodeOffNumBlocksAlloc  = nodeOffBlockAddrStore
	nodeOffDirectPointers  = nodeOffBlockAddrStore + 4
	nodeOffIndirectPointer = nodeOffDirectPointers + 4*int64(DirectPointers)
	nodeOffDoubleIndirect  = nodeOffIndirectPointer + 4
)

// Master record layout offsets.
const (
	mrOffVolumeSize  = 0
	mrOffFreeBlocks  = 8
	mrOffRootNode    = 16
	mrOffGroupCount  = 24
	mrHeaderSize     = 32
	groupDescSize    = 16
	gdOffBitmaps     = 0
	gdOffFreeBlocks  = 8
	gdOffFreeNodes   = 12
)

// ticksEpoch is the reference point for created/modified ticks: 100ns
// intervals since this instant, mirroring the spec's tick counters.
var ticksEpoch = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// nowTicks returns the current time as 100ns ticks since ticksEpoch,
// honoring SOURCE_DATE_EPOCH so a formatted volume's node timestamps
// can be reproduced byte-for-byte across builds.
func nowTicks() int64 {
	return int64(timestamp.GetTime().Sub(ticksEpoch) / 100)
}

// ticksToTime converts a stored tick count back to a time.Time.
func ticksToTime(ticks int64) time.Time {
	return ticksEpoch.Add(time.Duration(ticks) * 100)
}
