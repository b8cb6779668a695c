package ext2

import (
	"testing"

	"github.com/ascvorcov/vfs/util"
)

// TestMasterRecordHeaderLayoutStable pins the 32-byte master record
// header's on-disk byte layout: persisting it twice in a row, with no
// intervening allocation, must produce byte-identical bytes. A mismatch
// here means some field moved or a write touched bytes outside its
// assigned offset.
func TestMasterRecordHeaderLayoutStable(t *testing.T) {
	storage := newMemStorage(testVolumeSize)
	master, err := CreateNewVolume(storage, testVolumeSize, "layout")
	if err != nil {
		t.Fatalf("CreateNewVolume: %v", err)
	}
	defer master.Dispose()

	mem, ok := storage.(*memStorage)
	if !ok {
		t.Fatalf("expected *memStorage, got %T", storage)
	}

	before := make([]byte, mrHeaderSize)
	copy(before, mem.data[:mrHeaderSize])

	if err := master.persistHeader(); err != nil {
		t.Fatalf("persistHeader: %v", err)
	}

	after := make([]byte, mrHeaderSize)
	copy(after, mem.data[:mrHeaderSize])

	if different, dump := util.DumpByteSlicesWithDiffs(before, after, 16, true, true, false); different {
		t.Fatalf("master record header changed across an idle persistHeader call:\n%s", dump)
	}
}
