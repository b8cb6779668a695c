package ext2

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

const (
	entryFlagDeleted     uint8 = 1 << 0
	entryFlagIsDirectory uint8 = 1 << 1
)

// directoryEntry fixed-offsets within its own variable-length record.
const (
	entryOffFlags    = 0
	entryOffTarget   = 1
	entryOffNext     = 9
	entryOffNameLen  = 17
	entryOffNameData = 18
)

// DirectoryEntry is a serialisable record naming a child node inside a
// directory's data blocks: flags, the child's node address, the next
// entry's address (0 for end-of-list), and a UTF-16 name. Its on-disk
// footprint is 4-byte aligned and frozen the first time it is saved; it
// never shrinks, even if the entry is later resurrected with a shorter
// name.
type DirectoryEntry struct {
	Flags             uint8
	TargetNodeAddress Address
	NextEntryAddress  Address
	Name              string

	// entrySizeBytes is the frozen on-disk footprint of this entry,
	// 4-byte aligned. It is computed once, on first Save, from the name
	// that was live at the time; a later Resurrect may shorten Name but
	// never this.
	entrySizeBytes int

	// EntrySelfAddress is the offset this entry was loaded from, or
	// saved to; DirectoryNode uses it to patch predecessors' next
	// pointers and to compute free space in the last block.
	EntrySelfAddress Address
}

// NewDirectoryEntry builds a live entry for name, not yet assigned an
// on-disk address or frozen size.
func NewDirectoryEntry(name string, isDir bool, target Address) *DirectoryEntry {
	flags := uint8(0)
	if isDir {
		flags |= entryFlagIsDirectory
	}
	return &DirectoryEntry{
		Flags:             flags,
		TargetNodeAddress: target,
		NextEntryAddress:  0,
		Name:              name,
	}
}

// IsDeleted reports whether the entry has been marked deleted.
func (e *DirectoryEntry) IsDeleted() bool {
	return e.Flags&entryFlagDeleted != 0
}

// IsDirectory reports whether the entry names a directory.
func (e *DirectoryEntry) IsDirectory() bool {
	return e.Flags&entryFlagIsDirectory != 0
}

// MarkDeleted flags the entry as deleted in memory; the caller is
// responsible for persisting the flag byte.
func (e *DirectoryEntry) MarkDeleted() {
	e.Flags |= entryFlagDeleted
}

// EntrySizeBytes returns the entry's frozen on-disk footprint; it is
// only meaningful after the entry has been saved at least once.
func (e *DirectoryEntry) EntrySizeBytes() int {
	return e.entrySizeBytes
}

// nameUnits returns how many UTF-16 code units e.Name encodes to.
func nameUnits(name string) int {
	return len(utf16.Encode([]rune(name)))
}

// requiredEntrySize returns the 4-byte-aligned footprint a freshly
// written entry with the given number of UTF-16 name units needs.
func requiredEntrySize(nameUnitsCount int) int {
	raw := 1 + 8 + 8 + 1 + 2*nameUnitsCount
	return (raw + 3) &^ 3
}

// Save writes the entry at addr. On an entry's first save, its
// entrySizeBytes is computed and frozen; later saves of the same
// DirectoryEntry value reuse it.
func (e *DirectoryEntry) Save(disk *DiskAccess, addr Address) error {
	units := utf16.Encode([]rune(e.Name))
	if len(units) < 1 || len(units) > 255 {
		return fmt.Errorf("%w: directory entry name length %d out of range [1,255]", ErrInvalidPath, len(units))
	}
	if e.entrySizeBytes == 0 {
		e.entrySizeBytes = requiredEntrySize(len(units))
	}
	e.EntrySelfAddress = addr

	if err := disk.WriteByte(addr.Add(entryOffFlags).Int64(), e.Flags); err != nil {
		return err
	}
	if err := disk.WriteUint64(addr.Add(entryOffTarget).Int64(), uint64(e.TargetNodeAddress)); err != nil {
		return err
	}
	if err := disk.WriteUint64(addr.Add(entryOffNext).Int64(), uint64(e.NextEntryAddress)); err != nil {
		return err
	}
	if err := disk.WriteByte(addr.Add(entryOffNameLen).Int64(), byte(len(units))); err != nil {
		return err
	}
	nameBytes := make([]byte, len(units)*2)
	for i, u := range units {
		nameBytes[2*i] = byte(u)
		nameBytes[2*i+1] = byte(u >> 8)
	}
	return disk.Write(addr.Add(entryOffNameData).Int64(), nameBytes)
}

// LoadDirectoryEntry reads an entry at addr. The caller (DirectoryNode)
// is responsible for assigning entrySizeBytes from the surrounding
// physical layout, since it is not itself stored on disk.
func LoadDirectoryEntry(disk *DiskAccess, addr Address) (*DirectoryEntry, error) {
	flags, err := disk.ReadByte(addr.Add(entryOffFlags).Int64())
	if err != nil {
		return nil, fmt.Errorf("load directory entry flags: %w", err)
	}
	targetRaw, err := disk.ReadUint64(addr.Add(entryOffTarget).Int64())
	if err != nil {
		return nil, fmt.Errorf("load directory entry target: %w", err)
	}
	nextRaw, err := disk.ReadUint64(addr.Add(entryOffNext).Int64())
	if err != nil {
		return nil, fmt.Errorf("load directory entry next: %w", err)
	}
	nameLen, err := disk.ReadByte(addr.Add(entryOffNameLen).Int64())
	if err != nil {
		return nil, fmt.Errorf("load directory entry name length: %w", err)
	}
	nameBytes := make([]byte, int(nameLen)*2)
	if _, err := disk.ReadBytes(addr.Add(entryOffNameData).Int64(), nameBytes); err != nil {
		return nil, fmt.Errorf("load directory entry name: %w", err)
	}
	units := make([]uint16, nameLen)
	for i := range units {
		units[i] = uint16(nameBytes[2*i]) | uint16(nameBytes[2*i+1])<<8
	}

	return &DirectoryEntry{
		Flags:             flags,
		TargetNodeAddress: Address(targetRaw),
		NextEntryAddress:  Address(nextRaw),
		Name:              string(utf16.Decode(units)),
		EntrySelfAddress:  addr,
	}, nil
}

// Resurrect reuses a deleted entry's on-disk slot for a new name. It
// compares the new name's required entry size against the frozen
// entrySizeBytes rather than comparing name lengths: any name whose
// entry fits the slot is accepted, even one longer than the original.
func (e *DirectoryEntry) Resurrect(name string, isDir bool, target Address) error {
	if !e.IsDeleted() {
		return fmt.Errorf("%w: cannot resurrect a live directory entry", ErrCorruption)
	}
	needed := requiredEntrySize(nameUnits(name))
	if needed > e.entrySizeBytes {
		return fmt.Errorf("%w: name %q needs %d bytes, slot only holds %d", ErrInvalidPath, name, needed, e.entrySizeBytes)
	}
	e.Name = name
	e.Flags &^= entryFlagDeleted
	e.Flags &^= entryFlagIsDirectory
	if isDir {
		e.Flags |= entryFlagIsDirectory
	}
	e.TargetNodeAddress = target
	return nil
}

// validName reports whether name is an acceptable child name: 1-255
// UTF-16 units, containing neither the path separator nor control
// characters, and not "." or "..".
func validName(name string) error {
	units := nameUnits(name)
	if units < 1 || units > 255 {
		return fmt.Errorf("%w: name length %d out of range [1,255]", ErrInvalidPath, units)
	}
	if strings.ContainsRune(name, PathSeparator) {
		return fmt.Errorf("%w: name %q contains path separator", ErrInvalidPath, name)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: name %q is reserved", ErrInvalidPath, name)
	}
	for _, r := range name {
		if r < 0x20 {
			return fmt.Errorf("%w: name %q contains a control character", ErrInvalidPath, name)
		}
	}
	return nil
}
