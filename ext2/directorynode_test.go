package ext2

import "testing"

func TestDirectoryNodeAddFindRemove(t *testing.T) {
	master := mustCreateVolume(t, testVolumeSize, "dirnode")
	root, err := master.GetDirectoryNode(master.RootAddress())
	if err != nil {
		t.Fatalf("GetDirectoryNode: %v", err)
	}

	fileNode, err := master.CreateFileNode()
	if err != nil {
		t.Fatalf("CreateFileNode: %v", err)
	}
	if err := root.AddChildEntry("a.txt", false, fileNode.Address()); err != nil {
		t.Fatalf("AddChildEntry: %v", err)
	}

	e := root.FindChildEntry("a.txt")
	if e == nil {
		t.Fatalf("FindChildEntry did not find freshly added entry")
	}

	if _, err := root.FindAndRemoveChildEntry("a.txt", false); err != nil {
		t.Fatalf("FindAndRemoveChildEntry: %v", err)
	}
	if root.FindChildEntry("a.txt") != nil {
		t.Fatalf("entry still findable after removal")
	}
}

func TestDirectoryNodeResurrectsDeletedSlot(t *testing.T) {
	master := mustCreateVolume(t, testVolumeSize, "resurrect")
	root, err := master.GetDirectoryNode(master.RootAddress())
	if err != nil {
		t.Fatalf("GetDirectoryNode: %v", err)
	}

	longNode, err := master.CreateFileNode()
	if err != nil {
		t.Fatalf("CreateFileNode: %v", err)
	}
	if err := root.AddChildEntry("a-very-long-file-name.txt", false, longNode.Address()); err != nil {
		t.Fatalf("AddChildEntry(long): %v", err)
	}
	if _, err := root.FindAndRemoveChildEntry("a-very-long-file-name.txt", false); err != nil {
		t.Fatalf("FindAndRemoveChildEntry: %v", err)
	}

	shortNode, err := master.CreateFileNode()
	if err != nil {
		t.Fatalf("CreateFileNode: %v", err)
	}
	if err := root.AddChildEntry("short.txt", false, shortNode.Address()); err != nil {
		t.Fatalf("AddChildEntry(short): %v", err)
	}
	if e := root.FindChildEntry("short.txt"); e == nil {
		t.Fatalf("short.txt not found after resurrection insert")
	}
}

func TestDirectoryNodeSaveCompactsAndReloads(t *testing.T) {
	master := mustCreateVolume(t, testVolumeSize, "compact")
	root, err := master.GetDirectoryNode(master.RootAddress())
	if err != nil {
		t.Fatalf("GetDirectoryNode: %v", err)
	}

	names := []string{"one.txt", "two.txt", "three.txt", "four.txt"}
	for _, name := range names {
		fn, err := master.CreateFileNode()
		if err != nil {
			t.Fatalf("CreateFileNode: %v", err)
		}
		if err := root.AddChildEntry(name, false, fn.Address()); err != nil {
			t.Fatalf("AddChildEntry(%s): %v", name, err)
		}
	}
	if _, err := root.FindAndRemoveChildEntry("two.txt", false); err != nil {
		t.Fatalf("FindAndRemoveChildEntry: %v", err)
	}
	if err := root.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := loadDirectoryNode(master, master.RootAddress())
	if err != nil {
		t.Fatalf("loadDirectoryNode: %v", err)
	}
	live := reloaded.AllChildEntries()
	if len(live) != 3 {
		t.Fatalf("AllChildEntries after reload = %v, want 3 entries", live)
	}
	for _, name := range []string{"one.txt", "three.txt", "four.txt"} {
		if reloaded.FindChildEntry(name) == nil {
			t.Fatalf("missing entry %q after compaction+reload", name)
		}
	}
	if reloaded.FindChildEntry("two.txt") != nil {
		t.Fatalf("deleted entry %q resurfaced after compaction+reload", "two.txt")
	}
}
