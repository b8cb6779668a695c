package ext2

import "testing"

const testVolumeSize = 2 * 1024 * 1024

func mustCreateVolume(t *testing.T, sizeBytes int64, name string) *MasterRecord {
	t.Helper()
	storage := newMemStorage(sizeBytes)
	master, err := CreateNewVolume(storage, sizeBytes, name)
	if err != nil {
		t.Fatalf("CreateNewVolume: %v", err)
	}
	return master
}

func TestCreateNewVolumeFormatsRootDirectory(t *testing.T) {
	master := mustCreateVolume(t, testVolumeSize, "test")

	root, err := master.GetDirectoryNode(master.RootAddress())
	if err != nil {
		t.Fatalf("GetDirectoryNode(root): %v", err)
	}
	names := root.AllChildEntries()
	if len(names) != 0 {
		t.Fatalf("fresh root directory should have no children, got %v", names)
	}
}

func TestLayoutGroupsDeterministic(t *testing.T) {
	sizeBlocks := testVolumeSize / BlockSizeBytes
	meta1, groups1, err := layoutGroups(sizeBlocks)
	if err != nil {
		t.Fatalf("layoutGroups: %v", err)
	}
	meta2, groups2, err := layoutGroups(sizeBlocks)
	if err != nil {
		t.Fatalf("layoutGroups (second call): %v", err)
	}
	if meta1 != meta2 {
		t.Fatalf("metadataBlocks not deterministic: %d vs %d", meta1, meta2)
	}
	if len(groups1) != len(groups2) {
		t.Fatalf("group count not deterministic: %d vs %d", len(groups1), len(groups2))
	}
	for i := range groups1 {
		if groups1[i] != groups2[i] {
			t.Fatalf("group %d size not deterministic: %d vs %d", i, groups1[i], groups2[i])
		}
	}
}

func TestLoadVolumeReproducesLayout(t *testing.T) {
	storage := newMemStorage(testVolumeSize)
	created, err := CreateNewVolume(storage, testVolumeSize, "roundtrip")
	if err != nil {
		t.Fatalf("CreateNewVolume: %v", err)
	}
	if err := created.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}

	loaded, err := LoadVolume(storage, "roundtrip")
	if err != nil {
		t.Fatalf("LoadVolume: %v", err)
	}
	if loaded.RootAddress() != created.RootAddress() {
		t.Fatalf("root address mismatch after reload: %d vs %d", loaded.RootAddress(), created.RootAddress())
	}
	if len(loaded.groups) != len(created.groups) {
		t.Fatalf("group count mismatch after reload: %d vs %d", len(loaded.groups), len(created.groups))
	}
}

func TestAllocateAndFreeBlocksRoundTrip(t *testing.T) {
	master := mustCreateVolume(t, testVolumeSize, "alloc")

	before := master.FreeBlockCount()
	addrs, err := master.AllocateBlocks(4)
	if err != nil {
		t.Fatalf("AllocateBlocks: %v", err)
	}
	if len(addrs) != 4 {
		t.Fatalf("expected 4 addresses, got %d", len(addrs))
	}
	if got := master.FreeBlockCount(); got != before-4 {
		t.Fatalf("free block count after allocation = %d, want %d", got, before-4)
	}

	if err := master.FreeBlocks(addrs); err != nil {
		t.Fatalf("FreeBlocks: %v", err)
	}
	if got := master.FreeBlockCount(); got != before {
		t.Fatalf("free block count after free = %d, want %d", got, before)
	}
}

func TestAllocateBlocksFailsWhenVolumeFull(t *testing.T) {
	master := mustCreateVolume(t, testVolumeSize, "full")

	total := master.FreeBlockCount()
	if _, err := master.AllocateBlocks(total + 1); err == nil {
		t.Fatalf("expected error allocating more blocks than free")
	}
	if got := master.FreeBlockCount(); got != total {
		t.Fatalf("failed allocation leaked blocks: free count = %d, want %d", got, total)
	}
}
