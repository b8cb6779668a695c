// Package ext2 implements an embeddable, single-file virtual file system
// engine shaped after the classic EXT2 on-disk layout: a master record,
// a contiguous array of block groups with their own allocation bitmaps,
// a node table, direct/indirect/double-indirect block addressing, and
// directory entries laid out as a singly-linked list inside a
// directory's data blocks.
//
// The engine is backed by anything implementing github.com/ascvorcov/vfs/backend.Storage:
// a plain host file, or recursively, a file living inside another
// mounted volume.
package ext2
