package ext2

import "fmt"

// VirtualFileOperations streams file content between two VFSFacades —
// possibly on different volumes — a CopyBufferSize chunk at a time.
// Neither copy nor move is transactional by default: a failure partway
// through a directory copy leaves whatever was already copied in place.
// Setting StrictCopies runs Preflight (destination does not already
// exist anywhere in the tree, destination volume has room for every
// file) before touching either side, trading a little time up front for
// fewer partial copies.
type VirtualFileOperations struct {
	StrictCopies bool
}

// NewVirtualFileOperations builds a VirtualFileOperations with default,
// non-transactional behaviour.
func NewVirtualFileOperations() *VirtualFileOperations {
	return &VirtualFileOperations{}
}

// Preflight walks srcPath on src (a single file, or a directory and
// everything beneath it) without mutating either volume, checking that
// nothing already exists at the corresponding destination path and that
// dst has enough free blocks to hold every file in the tree. It is run
// automatically by CopyFile/CopyDirectory/MoveFile/MoveDirectory when
// StrictCopies is set, before any destination entry is created.
func (v *VirtualFileOperations) Preflight(src *VFSFacade, srcPath string, dst *VFSFacade, dstPath string) error {
	needed, err := v.preflightWalk(src, srcPath, dst, dstPath)
	if err != nil {
		return err
	}
	if dst.Master().FreeBlockCount() < needed {
		return fmt.Errorf("preflight copy: %w: destination volume lacks room for %q", ErrDiskFull, srcPath)
	}
	return nil
}

// preflightWalk recurses srcPath, returning the total blocks every file
// in the tree would occupy, or an error on the first destination
// collision found.
func (v *VirtualFileOperations) preflightWalk(src *VFSFacade, srcPath string, dst *VFSFacade, dstPath string) (int64, error) {
	if exists, _, err := dst.Exists(dstPath); err != nil {
		return 0, err
	} else if exists {
		return 0, fmt.Errorf("preflight copy: %w: %q", ErrAlreadyExists, dstPath)
	}

	_, isDir, err := src.Exists(srcPath)
	if err != nil {
		return 0, fmt.Errorf("preflight copy: source %q: %w", srcPath, err)
	}
	if !isDir {
		info, err := src.GetFileInfo(srcPath)
		if err != nil {
			return 0, fmt.Errorf("preflight copy: source %q: %w", srcPath, err)
		}
		return int64((info.Size + uint64(BlockSizeBytes) - 1) / uint64(BlockSizeBytes)), nil
	}

	names, err := src.ListDirectory(srcPath)
	if err != nil {
		return 0, fmt.Errorf("preflight copy: list %q: %w", srcPath, err)
	}
	var total int64
	for _, name := range names {
		childNeeded, err := v.preflightWalk(src, srcPath+string(PathSeparator)+name, dst, dstPath+string(PathSeparator)+name)
		if err != nil {
			return 0, err
		}
		total += childNeeded
	}
	return total, nil
}

// CopyFile streams the file at srcPath on src to dstPath on dst.
func (v *VirtualFileOperations) CopyFile(src *VFSFacade, srcPath string, dst *VFSFacade, dstPath string) error {
	if v.StrictCopies {
		if err := v.Preflight(src, srcPath, dst, dstPath); err != nil {
			return err
		}
	}
	return copyFileRaw(src, srcPath, dst, dstPath)
}

func copyFileRaw(src *VFSFacade, srcPath string, dst *VFSFacade, dstPath string) error {
	in, err := src.OpenFile(srcPath, false)
	if err != nil {
		return fmt.Errorf("copy file: open source %q: %w", srcPath, err)
	}
	defer in.Close()

	out, err := dst.CreateFile(dstPath)
	if err != nil {
		return fmt.Errorf("copy file: create destination %q: %w", dstPath, err)
	}
	defer out.Close()

	return streamCopy(in, out)
}

func streamCopy(in *File, out *File) error {
	buf := make([]byte, CopyBufferSize)
	for {
		n, err := in.ReadData(buf)
		if n > 0 {
			if werr := out.WriteData(buf[:n]); werr != nil {
				return fmt.Errorf("copy file: write: %w", werr)
			}
		}
		if err != nil {
			return fmt.Errorf("copy file: read: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
}

// CopyDirectory recursively copies the directory tree at srcPath on src
// to dstPath on dst, creating dstPath itself.
func (v *VirtualFileOperations) CopyDirectory(src *VFSFacade, srcPath string, dst *VFSFacade, dstPath string) error {
	if v.StrictCopies {
		if err := v.Preflight(src, srcPath, dst, dstPath); err != nil {
			return err
		}
	}
	return v.copyDirectoryTree(src, srcPath, dst, dstPath)
}

func (v *VirtualFileOperations) copyDirectoryTree(src *VFSFacade, srcPath string, dst *VFSFacade, dstPath string) error {
	if err := dst.CreateDirectory(dstPath); err != nil {
		return fmt.Errorf("copy directory: create %q: %w", dstPath, err)
	}

	names, err := src.ListDirectory(srcPath)
	if err != nil {
		return fmt.Errorf("copy directory: list %q: %w", srcPath, err)
	}

	for _, name := range names {
		childSrc := srcPath + string(PathSeparator) + name
		childDst := dstPath + string(PathSeparator) + name

		_, isDir, err := src.Exists(childSrc)
		if err != nil {
			return err
		}
		if isDir {
			if err := v.copyDirectoryTree(src, childSrc, dst, childDst); err != nil {
				return err
			}
			continue
		}
		if err := copyFileRaw(src, childSrc, dst, childDst); err != nil {
			return err
		}
	}
	return nil
}

// MoveFile copies the file at srcPath on src to dstPath on dst, then
// deletes the source. Used for cross-volume moves, where the underlying
// node cannot simply be re-pointed at a different directory entry.
func (v *VirtualFileOperations) MoveFile(src *VFSFacade, srcPath string, dst *VFSFacade, dstPath string) error {
	if err := v.CopyFile(src, srcPath, dst, dstPath); err != nil {
		return err
	}
	return src.DeleteFile(srcPath)
}

// MoveDirectory copies the directory tree at srcPath on src to dstPath
// on dst, then deletes the source tree.
func (v *VirtualFileOperations) MoveDirectory(src *VFSFacade, srcPath string, dst *VFSFacade, dstPath string) error {
	if v.StrictCopies {
		if err := v.Preflight(src, srcPath, dst, dstPath); err != nil {
			return err
		}
	}
	if err := v.copyDirectoryTree(src, srcPath, dst, dstPath); err != nil {
		return err
	}
	return src.DeleteDirectory(srcPath, true)
}
