package ext2

import (
	"errors"
	"fmt"
	"time"
)

// FileInfo summarises a resolved path without opening it.
type FileInfo struct {
	IsDirectory      bool
	Size             uint64
	Created          time.Time
	LastModification time.Time
}

// VFSFacade is the single-volume entry point for path-based operations:
// it turns a string path into hand-over-hand locked node lookups and
// mutations against one MasterRecord.
type VFSFacade struct {
	master *MasterRecord
}

// NewFacade wraps master for path-based access.
func NewFacade(master *MasterRecord) *VFSFacade {
	return &VFSFacade{master: master}
}

// Master returns the volume this facade operates against.
func (f *VFSFacade) Master() *MasterRecord { return f.master }

// resolveDir walks segments from the root, hand-over-hand: each
// intermediate directory is locked only long enough to look up the next
// segment and acquire the next lock, via a non-blocking TryLockRead that
// aborts the whole walk rather than stalling behind a writer. The final
// directory in segments is returned still locked, as a read or write
// lock per finalWrite; the caller releases it.
func (f *VFSFacade) resolveDir(segments []string, finalWrite bool) (*DirectoryNode, *heldLock, error) {
	root, err := f.master.GetDirectoryNode(f.master.RootAddress())
	if err != nil {
		return nil, nil, err
	}

	if len(segments) == 0 {
		lock, err := lockFinal(root, finalWrite)
		if err != nil {
			return nil, nil, err
		}
		return root, lock, nil
	}

	curLock, ok := root.tryLockRead()
	if !ok {
		return nil, nil, fmt.Errorf("%w: root directory busy", ErrLockTimeout)
	}
	cur := root

	for i, seg := range segments {
		last := i == len(segments)-1

		entry := cur.FindChildEntry(seg)
		if entry == nil {
			curLock.Release()
			return nil, nil, fmt.Errorf("%w: %q", ErrNotFound, seg)
		}
		if !entry.IsDirectory() {
			curLock.Release()
			return nil, nil, fmt.Errorf("%w: %q is not a directory", ErrWrongKind, seg)
		}

		child, err := f.master.GetDirectoryNode(entry.TargetNodeAddress)
		if err != nil {
			curLock.Release()
			return nil, nil, err
		}

		if last {
			childLock, err := lockFinal(child, finalWrite)
			curLock.Release()
			if err != nil {
				return nil, nil, err
			}
			return child, childLock, nil
		}

		childLock, ok := child.tryLockRead()
		curLock.Release()
		if !ok {
			return nil, nil, fmt.Errorf("%w: directory %q busy", ErrLockTimeout, seg)
		}
		cur, curLock = child, childLock
	}

	return nil, nil, ErrNotFound
}

func lockFinal(d *DirectoryNode, write bool) (*heldLock, error) {
	if write {
		return d.lockWrite()
	}
	return d.lockRead()
}

// resolveEntry resolves path down to the directory entry naming its
// final component, with the containing directory read-locked; the
// caller releases the returned lock.
func (f *VFSFacade) resolveEntry(path string) (*DirectoryEntry, *heldLock, error) {
	pn := NewPathName(path)
	if pn.IsRoot() {
		return nil, nil, fmt.Errorf("%w: root has no directory entry", ErrInvalidPath)
	}
	parent, lock, err := f.resolveDir(pn.ParentSegments(), false)
	if err != nil {
		return nil, nil, err
	}
	entry := parent.FindChildEntry(pn.Name())
	if entry == nil {
		lock.Release()
		return nil, nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	return entry, lock, nil
}

// CreateDirectory creates an empty directory at path; its parent must
// already exist.
func (f *VFSFacade) CreateDirectory(path string) error {
	pn := NewPathName(path)
	if pn.IsRoot() {
		return fmt.Errorf("%w: cannot create the root directory", ErrAlreadyExists)
	}
	parent, lock, err := f.resolveDir(pn.ParentSegments(), true)
	if err != nil {
		return err
	}
	defer lock.Release()

	child, err := f.master.CreateDirectoryNode(parent.Address())
	if err != nil {
		return err
	}
	if err := parent.AddChildEntry(pn.Name(), true, child.Address()); err != nil {
		_ = f.master.FreeNodeAndAllAllocatedBlocks(child.Address(), true)
		return err
	}
	return nil
}

// CreateFile creates an empty file at path and returns it open for
// writing; the parent directory must already exist.
func (f *VFSFacade) CreateFile(path string) (*File, error) {
	pn := NewPathName(path)
	if pn.IsRoot() {
		return nil, fmt.Errorf("%w: cannot create a file at the root path", ErrInvalidPath)
	}
	parent, lock, err := f.resolveDir(pn.ParentSegments(), true)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	child, err := f.master.CreateFileNode()
	if err != nil {
		return nil, err
	}
	if err := parent.AddChildEntry(pn.Name(), false, child.Address()); err != nil {
		_ = f.master.FreeNodeAndAllAllocatedBlocks(child.Address(), false)
		return nil, err
	}

	fileLock, err := child.lockWrite()
	if err != nil {
		return nil, err
	}
	return newFile(child, fileLock, true), nil
}

// OpenFile opens an existing file at path for reading, or for reading
// and writing if write is true.
func (f *VFSFacade) OpenFile(path string, write bool) (*File, error) {
	entry, lock, err := f.resolveEntry(path)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	if entry.IsDirectory() {
		return nil, fmt.Errorf("%w: %q is a directory", ErrWrongKind, path)
	}
	fileNode, err := f.master.GetFileNode(entry.TargetNodeAddress)
	if err != nil {
		return nil, err
	}

	var fileLock *heldLock
	if write {
		fileLock, err = fileNode.lockWrite()
	} else {
		fileLock, err = fileNode.lockRead()
	}
	if err != nil {
		return nil, err
	}
	return newFile(fileNode, fileLock, write), nil
}

// DeleteFile removes the file at path.
func (f *VFSFacade) DeleteFile(path string) error {
	pn := NewPathName(path)
	if pn.IsRoot() {
		return fmt.Errorf("%w: not a file", ErrWrongKind)
	}
	parent, lock, err := f.resolveDir(pn.ParentSegments(), true)
	if err != nil {
		return err
	}
	defer lock.Release()

	entry, err := parent.FindAndRemoveChildEntry(pn.Name(), false)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	return f.master.FreeNodeAndAllAllocatedBlocks(entry.TargetNodeAddress, false)
}

// DeleteDirectory removes the directory at path. If recursive is false,
// the directory must already be empty. If recursive is true, every
// descendant is torn down post-order first: each directory's children
// are freed before the directory itself. Each subdirectory is
// write-locked only while its children are listed; file nodes are freed
// without taking their lock.
func (f *VFSFacade) DeleteDirectory(path string, recursive bool) error {
	pn := NewPathName(path)
	if pn.IsRoot() {
		return fmt.Errorf("%w: cannot remove the root directory", ErrInvalidPath)
	}
	parent, lock, err := f.resolveDir(pn.ParentSegments(), true)
	if err != nil {
		return err
	}
	defer lock.Release()

	entry := parent.FindChildEntry(pn.Name())
	if entry == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	if !entry.IsDirectory() {
		return fmt.Errorf("%w: %q is a file", ErrWrongKind, path)
	}
	target, err := f.master.GetDirectoryNode(entry.TargetNodeAddress)
	if err != nil {
		return err
	}
	if !recursive && len(target.AllChildEntries()) > 0 {
		return fmt.Errorf("%w: %q is not empty", ErrAlreadyExists, path)
	}

	if recursive {
		if err := f.freeDescendants(target.LiveChildEntries()); err != nil {
			return err
		}
	}

	if _, err := parent.FindAndRemoveChildEntry(pn.Name(), true); err != nil {
		return err
	}
	return f.master.FreeNodeAndAllAllocatedBlocks(entry.TargetNodeAddress, true)
}

// freeDescendants frees every entry in children, recursing post-order
// into subdirectories first. Each subdirectory is write-locked only
// long enough to snapshot its own live children before the lock is
// released and the snapshot is freed.
func (f *VFSFacade) freeDescendants(children []*DirectoryEntry) error {
	for _, child := range children {
		if !child.IsDirectory() {
			if err := f.master.FreeNodeAndAllAllocatedBlocks(child.TargetNodeAddress, false); err != nil {
				return err
			}
			continue
		}

		dir, err := f.master.GetDirectoryNode(child.TargetNodeAddress)
		if err != nil {
			return err
		}
		lock, err := dir.lockWrite()
		if err != nil {
			return err
		}
		grandchildren := dir.LiveChildEntries()
		lock.Release()

		if err := f.freeDescendants(grandchildren); err != nil {
			return err
		}
		if err := f.master.FreeNodeAndAllAllocatedBlocks(child.TargetNodeAddress, true); err != nil {
			return err
		}
	}
	return nil
}

// MoveFile moves or renames the file at srcPath to dstPath, both within
// this volume; no data is copied since both entries reference the same
// node.
func (f *VFSFacade) MoveFile(srcPath, dstPath string) error {
	return f.move(srcPath, dstPath, false)
}

// MoveDirectory moves or renames the directory at srcPath to dstPath.
func (f *VFSFacade) MoveDirectory(srcPath, dstPath string) error {
	return f.move(srcPath, dstPath, true)
}

func (f *VFSFacade) move(srcPath, dstPath string, isDir bool) error {
	srcPN := NewPathName(srcPath)
	dstPN := NewPathName(dstPath)
	if srcPN.IsRoot() || dstPN.IsRoot() {
		return fmt.Errorf("%w: cannot move the root directory", ErrInvalidPath)
	}

	// Parent directories are write-locked deepest path first, so the walk
	// to the shallower parent never passes a directory already held here.
	var dstParent *DirectoryNode
	if len(dstPN.ParentSegments()) > len(srcPN.ParentSegments()) {
		parent, dstLock, err := f.resolveDir(dstPN.ParentSegments(), true)
		if err != nil {
			return err
		}
		defer dstLock.Release()
		dstParent = parent
	}

	srcParent, srcLock, err := f.resolveDir(srcPN.ParentSegments(), true)
	if err != nil {
		return err
	}
	defer srcLock.Release()

	entry := srcParent.FindChildEntry(srcPN.Name())
	if entry == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, srcPath)
	}
	if entry.IsDirectory() != isDir {
		return fmt.Errorf("%w: %q", ErrWrongKind, srcPath)
	}
	target := entry.TargetNodeAddress

	sameParent := len(srcPN.ParentSegments()) == len(dstPN.ParentSegments())
	if sameParent {
		for i := range srcPN.ParentSegments() {
			if srcPN.ParentSegments()[i] != dstPN.ParentSegments()[i] {
				sameParent = false
				break
			}
		}
	}

	if sameParent {
		if err := srcParent.AddChildEntry(dstPN.Name(), isDir, target); err != nil {
			return err
		}
		_, err := srcParent.FindAndRemoveChildEntry(srcPN.Name(), isDir)
		return err
	}

	if dstParent == nil {
		parent, dstLock, err := f.resolveDir(dstPN.ParentSegments(), true)
		if err != nil {
			return err
		}
		defer dstLock.Release()
		dstParent = parent
	}

	if err := dstParent.AddChildEntry(dstPN.Name(), isDir, target); err != nil {
		return err
	}
	_, err = srcParent.FindAndRemoveChildEntry(srcPN.Name(), isDir)
	return err
}

// Exists reports whether path exists and whether it names a directory.
func (f *VFSFacade) Exists(path string) (bool, bool, error) {
	pn := NewPathName(path)
	if pn.IsRoot() {
		return true, true, nil
	}
	entry, lock, err := f.resolveEntry(path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, false, nil
		}
		return false, false, err
	}
	defer lock.Release()
	return true, entry.IsDirectory(), nil
}

// FileMatch is one result of FindFile: an absolute path, or an error if
// the walk could not resolve the starting path at all.
type FileMatch struct {
	Path string
	Err  error
}

// FindFile walks path, matching live entries against pattern and
// sending one FileMatch per hit on the returned channel, closing it
// once the walk is done. Each directory's matches and, if recursive,
// its child-directory names are snapshotted under that directory's
// read lock; the lock is released before any value is sent or any
// recursion happens, so the channel is safe to consume after every
// lock involved in producing it has already been dropped. Only a
// failure to resolve the starting path itself is reported as a
// FileMatch.Err; an unreadable subtree encountered during recursion
// (e.g. concurrently deleted) is skipped and the walk continues.
func (f *VFSFacade) FindFile(path string, pattern *SearchPattern, recursive bool) <-chan FileMatch {
	out := make(chan FileMatch)
	go func() {
		defer close(out)
		f.findFileWalk(path, pattern, recursive, true, out)
	}()
	return out
}

func (f *VFSFacade) findFileWalk(path string, pattern *SearchPattern, recursive, reportErrors bool, out chan<- FileMatch) {
	pn := NewPathName(path)
	dir, lock, err := f.resolveDir(pn.Segments(), false)
	if err != nil {
		if reportErrors {
			out <- FileMatch{Err: fmt.Errorf("find file: %q: %w", path, err)}
		}
		return
	}

	matches := dir.FindMatchingEntries(pattern)
	var childDirs []string
	if recursive {
		childDirs = dir.GetAllChildDirectories()
	}
	lock.Release()

	for _, name := range matches {
		out <- FileMatch{Path: Combine(path, name)}
	}
	if !recursive {
		return
	}
	for _, name := range childDirs {
		f.findFileWalk(Combine(path, name), pattern, true, false, out)
	}
}

// GetFileInfo returns metadata for the node at path.
func (f *VFSFacade) GetFileInfo(path string) (FileInfo, error) {
	pn := NewPathName(path)
	if pn.IsRoot() {
		root, err := f.master.GetDirectoryNode(f.master.RootAddress())
		if err != nil {
			return FileInfo{}, err
		}
		return FileInfo{IsDirectory: true, Created: root.CreationTime(), LastModification: root.LastModificationTime()}, nil
	}

	entry, lock, err := f.resolveEntry(path)
	if err != nil {
		return FileInfo{}, err
	}
	defer lock.Release()

	if entry.IsDirectory() {
		d, err := f.master.GetDirectoryNode(entry.TargetNodeAddress)
		if err != nil {
			return FileInfo{}, err
		}
		return FileInfo{IsDirectory: true, Created: d.CreationTime(), LastModification: d.LastModificationTime()}, nil
	}
	fn, err := f.master.GetFileNode(entry.TargetNodeAddress)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Size: fn.FileSize(), Created: fn.CreationTime(), LastModification: fn.LastModificationTime()}, nil
}

// ListDirectory returns the live child names of the directory at path.
func (f *VFSFacade) ListDirectory(path string) ([]string, error) {
	pn := NewPathName(path)
	dir, lock, err := f.resolveDir(pn.Segments(), false)
	if err != nil {
		return nil, err
	}
	defer lock.Release()
	return dir.AllChildEntries(), nil
}

// FindMatchingFiles returns the live child names of the directory at
// path matching pattern.
func (f *VFSFacade) FindMatchingFiles(path string, pattern *SearchPattern) ([]string, error) {
	pn := NewPathName(path)
	dir, lock, err := f.resolveDir(pn.Segments(), false)
	if err != nil {
		return nil, err
	}
	defer lock.Release()
	return dir.FindMatchingEntries(pattern), nil
}
