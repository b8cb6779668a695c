package ext2

import "testing"

func TestMountNestedInsideFile(t *testing.T) {
	outer := mustCreateVolume(t, testVolumeSize, "outer")
	outerFacade := NewFacade(outer)

	innerSizeBytes := int64(512 * 1024)
	container, err := outerFacade.CreateFile(`\nested.img`)
	if err != nil {
		t.Fatalf("CreateFile(nested.img): %v", err)
	}

	inner, err := MountNested(container, innerSizeBytes, Params{VolumeName: "inner"})
	if err != nil {
		t.Fatalf("MountNested: %v", err)
	}

	innerFacade := NewFacade(inner)
	if err := innerFacade.CreateDirectory(`\data`); err != nil {
		t.Fatalf("CreateDirectory on nested volume: %v", err)
	}
	exists, isDir, err := innerFacade.Exists(`\data`)
	if err != nil {
		t.Fatalf("Exists on nested volume: %v", err)
	}
	if !exists || !isDir {
		t.Fatalf("Exists(\\data) on nested volume = (%v, %v), want (true, true)", exists, isDir)
	}
}
