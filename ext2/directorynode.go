package ext2

import (
	"fmt"
	"strings"
)

// DirectoryNode holds a variable-length singly-linked list of directory
// entries laid out in the node's own data blocks, walked from the start
// of block 0 via each entry's next pointer. The node header's size field
// carries the number of entries on that chain, deleted ones included;
// Save's compaction brings it down to the live count.
type DirectoryNode struct {
	*node

	entries []*DirectoryEntry // all entries, live and deleted, in physical/insertion order

	lastBlockIdx int64   // logical block index containing the last entry
	lastBlockEnd Address // end-of-block boundary for lastBlockIdx
	tailAddr     Address // address right after the last entry's footprint

	insertsSinceSave int
}

// newDirectoryNode formats a fresh directory at addr, inserting "."
// pointing at itself and, if hasParent, ".." pointing at parent.
func newDirectoryNode(master *MasterRecord, addr Address, parent Address, hasParent bool) (*DirectoryNode, error) {
	n, err := newNode(master, addr, kindDirectory)
	if err != nil {
		return nil, err
	}
	d := &DirectoryNode{node: n}

	if err := d.appendRawEntry(NewDirectoryEntry(".", true, addr)); err != nil {
		return nil, fmt.Errorf("create directory: insert self entry: %w", err)
	}
	if hasParent {
		if err := d.appendRawEntry(NewDirectoryEntry("..", true, parent)); err != nil {
			return nil, fmt.Errorf("create directory: insert parent entry: %w", err)
		}
	}
	if err := d.setSize(uint64(len(d.entries))); err != nil {
		return nil, err
	}
	return d, nil
}

// loadDirectoryNode reads an existing directory, walking its entry
// chain from the start of block 0 and reconstructing each entry's
// frozen footprint from the physical gap to whatever comes next.
func loadDirectoryNode(master *MasterRecord, addr Address) (*DirectoryNode, error) {
	n, err := loadNode(master, addr, kindDirectory)
	if err != nil {
		return nil, err
	}
	d := &DirectoryNode{node: n}

	if n.blocks.NumBlocksAllocated() == 0 {
		if n.size != 0 {
			return nil, fmt.Errorf("%w: directory at %d has size %d but no blocks", ErrCorruption, addr, n.size)
		}
		return d, nil
	}

	blockIdx := int64(0)
	blockStart, err := n.blocks.GetBlockStartAddress(0)
	if err != nil {
		return nil, fmt.Errorf("load directory entries: %w", err)
	}
	blockEnd := blockStart.AddBlocks(1)
	cur := blockStart

	for {
		e, err := LoadDirectoryEntry(master.disk, cur)
		if err != nil {
			return nil, fmt.Errorf("load directory entries: %w", err)
		}
		d.entries = append(d.entries, e)

		if e.NextEntryAddress == 0 {
			e.entrySizeBytes = int(blockEnd.Int64() - cur.Int64())
			d.lastBlockIdx = blockIdx
			d.lastBlockEnd = blockEnd
			d.tailAddr = cur.Add(int64(e.entrySizeBytes))
			break
		}

		next := e.NextEntryAddress
		if next.In(blockStart, BlockSizeBytes) {
			e.entrySizeBytes = int(next.Int64() - cur.Int64())
			cur = next
			continue
		}

		// the next entry lives in a later block: this entry ran to the
		// end of its own block.
		e.entrySizeBytes = int(blockEnd.Int64() - cur.Int64())
		blockIdx++
		blockStart, err = n.blocks.GetBlockStartAddress(blockIdx)
		if err != nil {
			return nil, fmt.Errorf("load directory entries: %w", err)
		}
		blockEnd = blockStart.AddBlocks(1)
		cur = next
	}

	if int64(len(d.entries)) != int64(n.size) {
		return nil, fmt.Errorf("%w: directory at %d chain visits %d entries, size says %d", ErrCorruption, addr, len(d.entries), n.size)
	}

	return d, nil
}

// appendRawEntry places e at the physical tail of the directory,
// allocating a new block first if it would not fit in the current one,
// and patches the previous tail's next pointer. It does not check for
// name collisions or update the live entry count; callers that need
// those do it themselves ("." and ".." bypass both).
func (d *DirectoryNode) appendRawEntry(e *DirectoryEntry) error {
	needed := requiredEntrySize(nameUnits(e.Name))

	if len(d.entries) == 0 {
		if d.blocks.NumBlocksAllocated() == 0 {
			if err := d.blocks.AddBlocks(1); err != nil {
				return err
			}
		}
		addr, err := d.blocks.GetBlockStartAddress(0)
		if err != nil {
			return err
		}
		if err := e.Save(d.master.disk, addr); err != nil {
			return err
		}
		d.lastBlockIdx = 0
		d.lastBlockEnd = addr.AddBlocks(1)
		d.tailAddr = addr.Add(int64(e.EntrySizeBytes()))
		d.entries = append(d.entries, e)
		return nil
	}

	last := d.entries[len(d.entries)-1]
	tailAddr := d.tailAddr
	if tailAddr.Add(int64(needed)).Int64() > d.lastBlockEnd.Int64() {
		if err := d.blocks.AddBlocks(1); err != nil {
			return err
		}
		d.lastBlockIdx++
		newBlockStart, err := d.blocks.GetBlockStartAddress(d.lastBlockIdx)
		if err != nil {
			return err
		}
		tailAddr = newBlockStart
		d.lastBlockEnd = newBlockStart.AddBlocks(1)
	}

	if err := e.Save(d.master.disk, tailAddr); err != nil {
		return err
	}
	last.NextEntryAddress = tailAddr
	if err := last.Save(d.master.disk, last.EntrySelfAddress); err != nil {
		return err
	}
	d.tailAddr = tailAddr.Add(int64(e.EntrySizeBytes()))
	d.entries = append(d.entries, e)
	return nil
}

// AddChildEntry inserts a new child named name. It first tries to
// resurrect a deleted entry whose frozen slot is large enough, and only
// appends a brand new entry if none fits.
func (d *DirectoryNode) AddChildEntry(name string, isDir bool, target Address) error {
	if err := validName(name); err != nil {
		return err
	}
	for _, e := range d.entries {
		if !e.IsDeleted() && strings.EqualFold(e.Name, name) {
			return fmt.Errorf("%w: %q", ErrAlreadyExists, name)
		}
	}

	needed := requiredEntrySize(nameUnits(name))
	for _, e := range d.entries {
		if e.IsDeleted() && e.EntrySizeBytes() >= needed {
			if err := e.Resurrect(name, isDir, target); err != nil {
				continue
			}
			if err := e.Save(d.master.disk, e.EntrySelfAddress); err != nil {
				return err
			}
			return d.afterInsert()
		}
	}

	if err := d.appendRawEntry(NewDirectoryEntry(name, isDir, target)); err != nil {
		return err
	}
	return d.afterInsert()
}

func (d *DirectoryNode) afterInsert() error {
	if err := d.setSize(uint64(len(d.entries))); err != nil {
		return err
	}
	if err := d.touchModified(); err != nil {
		return err
	}
	d.insertsSinceSave++
	if d.insertsSinceSave >= 100 {
		d.insertsSinceSave = 0
		return d.Save()
	}
	return nil
}

func (d *DirectoryNode) liveCount() int {
	n := 0
	for _, e := range d.entries {
		if !e.IsDeleted() {
			n++
		}
	}
	return n
}

// FindChildEntry returns the live entry named name (case-insensitive),
// or nil if there is none. The caller resolves the target node through
// MasterRecord.GetDirectoryNode/GetFileNode, using the entry's kind.
func (d *DirectoryNode) FindChildEntry(name string) *DirectoryEntry {
	for _, e := range d.entries {
		if !e.IsDeleted() && strings.EqualFold(e.Name, name) {
			return e
		}
	}
	return nil
}

// FindAndRemoveChildEntry marks the entry named name deleted in memory
// and on disk, provided it matches the expected kind, and returns it.
func (d *DirectoryNode) FindAndRemoveChildEntry(name string, isDir bool) (*DirectoryEntry, error) {
	e := d.FindChildEntry(name)
	if e == nil {
		return nil, nil
	}
	if e.IsDirectory() != isDir {
		return nil, fmt.Errorf("%w: %q", ErrWrongKind, name)
	}
	e.MarkDeleted()
	if err := e.Save(d.master.disk, e.EntrySelfAddress); err != nil {
		return nil, err
	}
	if err := d.setSize(uint64(len(d.entries))); err != nil {
		return nil, err
	}
	if err := d.touchModified(); err != nil {
		return nil, err
	}
	return e, nil
}

// FindMatchingEntries returns the names of live entries matching
// pattern, excluding "." and "..".
func (d *DirectoryNode) FindMatchingEntries(pattern *SearchPattern) []string {
	var names []string
	for _, e := range d.entries {
		if e.IsDeleted() || e.Name == "." || e.Name == ".." {
			continue
		}
		if pattern.Match(e.Name) {
			names = append(names, e.Name)
		}
	}
	return names
}

// GetAllChildDirectories returns the names of all live child
// directories, excluding "." and "..".
func (d *DirectoryNode) GetAllChildDirectories() []string {
	var names []string
	for _, e := range d.entries {
		if e.IsDeleted() || !e.IsDirectory() || e.Name == "." || e.Name == ".." {
			continue
		}
		names = append(names, e.Name)
	}
	return names
}

// LiveChildEntries returns all live entries, excluding "." and "..".
func (d *DirectoryNode) LiveChildEntries() []*DirectoryEntry {
	var entries []*DirectoryEntry
	for _, e := range d.entries {
		if e.IsDeleted() || e.Name == "." || e.Name == ".." {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// AllChildEntries returns the names of all live entries, excluding "."
// and "..".
func (d *DirectoryNode) AllChildEntries() []string {
	var names []string
	for _, e := range d.entries {
		if e.IsDeleted() || e.Name == "." || e.Name == ".." {
			continue
		}
		names = append(names, e.Name)
	}
	return names
}

// Save rebuilds the entry list from the live entries, re-laying them
// block by block with no gaps between deleted slots, re-linking next
// pointers, freeing trailing data blocks that became unused, and
// updating the stored entry count.
func (d *DirectoryNode) Save() error {
	live := make([]*DirectoryEntry, 0, len(d.entries))
	for _, e := range d.entries {
		if !e.IsDeleted() {
			live = append(live, NewDirectoryEntry(e.Name, e.IsDirectory(), e.TargetNodeAddress))
		}
	}

	if len(live) == 0 {
		if err := d.blocks.FreeLastBlocks(d.blocks.NumBlocksAllocated()); err != nil {
			return err
		}
		d.entries = nil
		d.lastBlockIdx, d.lastBlockEnd, d.tailAddr = 0, 0, 0
		return d.setSize(0)
	}

	if d.blocks.NumBlocksAllocated() == 0 {
		if err := d.blocks.AddBlocks(1); err != nil {
			return err
		}
	}
	blockIdx := int64(0)
	blockStart, err := d.blocks.GetBlockStartAddress(0)
	if err != nil {
		return err
	}
	blockEnd := blockStart.AddBlocks(1)
	cursor := blockStart

	var prev *DirectoryEntry
	for _, e := range live {
		sz := requiredEntrySize(nameUnits(e.Name))
		if cursor.Add(int64(sz)).Int64() > blockEnd.Int64() {
			blockIdx++
			if blockIdx >= d.blocks.NumBlocksAllocated() {
				if err := d.blocks.AddBlocks(1); err != nil {
					return err
				}
			}
			blockStart, err = d.blocks.GetBlockStartAddress(blockIdx)
			if err != nil {
				return err
			}
			blockEnd = blockStart.AddBlocks(1)
			cursor = blockStart
		}
		if err := e.Save(d.master.disk, cursor); err != nil {
			return err
		}
		if prev != nil {
			prev.NextEntryAddress = cursor
			if err := prev.Save(d.master.disk, prev.EntrySelfAddress); err != nil {
				return err
			}
		}
		cursor = cursor.Add(int64(e.EntrySizeBytes()))
		prev = e
	}
	if prev != nil {
		prev.NextEntryAddress = 0
		if err := prev.Save(d.master.disk, prev.EntrySelfAddress); err != nil {
			return err
		}
	}

	usedBlocks := blockIdx + 1
	if have := d.blocks.NumBlocksAllocated(); usedBlocks < have {
		if err := d.blocks.FreeLastBlocks(have - usedBlocks); err != nil {
			return err
		}
	}

	d.entries = live
	d.lastBlockIdx = blockIdx
	d.lastBlockEnd = blockEnd
	d.tailAddr = cursor
	return d.setSize(uint64(len(live)))
}
