package ext2

import "testing"

func TestCopyFileAcrossVolumes(t *testing.T) {
	src := newTestFacade(t)
	dst := newTestFacade(t)

	file, err := src.CreateFile(`\a.txt`)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	payload := make([]byte, CopyBufferSize*2+17)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := file.WriteData(payload); err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	_ = file.Close()

	ops := NewVirtualFileOperations()
	if err := ops.CopyFile(src, `\a.txt`, dst, `\b.txt`); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}

	opened, err := dst.OpenFile(`\b.txt`, false)
	if err != nil {
		t.Fatalf("OpenFile destination: %v", err)
	}
	defer opened.Close()
	buf := make([]byte, len(payload))
	n, err := opened.ReadData(buf)
	if err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("copied %d bytes, want %d", n, len(payload))
	}
	for i := range payload {
		if buf[i] != payload[i] {
			t.Fatalf("byte %d mismatch: got %d, want %d", i, buf[i], payload[i])
		}
	}
}

func TestCopyDirectoryRecursive(t *testing.T) {
	src := newTestFacade(t)
	dst := newTestFacade(t)

	if err := src.CreateDirectory(`\tree`); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if err := src.CreateDirectory(`\tree\sub`); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if f, err := src.CreateFile(`\tree\root.txt`); err != nil {
		t.Fatalf("CreateFile: %v", err)
	} else {
		_ = f.Close()
	}
	if f, err := src.CreateFile(`\tree\sub\leaf.txt`); err != nil {
		t.Fatalf("CreateFile: %v", err)
	} else {
		_ = f.Close()
	}

	ops := NewVirtualFileOperations()
	if err := ops.CopyDirectory(src, `\tree`, dst, `\copied`); err != nil {
		t.Fatalf("CopyDirectory: %v", err)
	}

	for _, path := range []string{`\copied`, `\copied\sub`, `\copied\root.txt`, `\copied\sub\leaf.txt`} {
		exists, _, err := dst.Exists(path)
		if err != nil {
			t.Fatalf("Exists(%s): %v", path, err)
		}
		if !exists {
			t.Fatalf("expected %s to exist after CopyDirectory", path)
		}
	}
}

func TestStrictCopyPreflightRejectsExistingDestination(t *testing.T) {
	src := newTestFacade(t)
	dst := newTestFacade(t)

	if f, err := src.CreateFile(`\a.txt`); err != nil {
		t.Fatalf("CreateFile: %v", err)
	} else {
		_ = f.Close()
	}
	if f, err := dst.CreateFile(`\b.txt`); err != nil {
		t.Fatalf("CreateFile: %v", err)
	} else {
		_ = f.Close()
	}

	ops := NewVirtualFileOperations()
	ops.StrictCopies = true
	if err := ops.CopyFile(src, `\a.txt`, dst, `\b.txt`); err == nil {
		t.Fatalf("expected preflight error when destination already exists")
	}
}

func TestStrictCopyDirectoryPreflightLeavesNothingOnFailure(t *testing.T) {
	src := newTestFacade(t)
	dst := newTestFacade(t)

	if err := src.CreateDirectory(`\tree`); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if f, err := src.CreateFile(`\tree\a.txt`); err != nil {
		t.Fatalf("CreateFile: %v", err)
	} else {
		_ = f.Close()
	}
	// Build and tear down \copied\a.txt, then leave a plain file at the
	// destination path \copied itself, so the preflight walk fails on its
	// first check before CopyDirectory creates anything.
	if err := dst.CreateDirectory(`\copied`); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if f, err := dst.CreateFile(`\copied\a.txt`); err != nil {
		t.Fatalf("CreateFile: %v", err)
	} else {
		_ = f.Close()
	}
	if err := dst.DeleteFile(`\copied\a.txt`); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := dst.DeleteDirectory(`\copied`, false); err != nil {
		t.Fatalf("DeleteDirectory: %v", err)
	}
	if f, err := dst.CreateFile(`\copied`); err != nil {
		t.Fatalf("CreateFile: %v", err)
	} else {
		_ = f.Close()
	}

	ops := NewVirtualFileOperations()
	ops.StrictCopies = true
	if err := ops.CopyDirectory(src, `\tree`, dst, `\copied`); err == nil {
		t.Fatalf("expected preflight error: destination %q already exists as a file", `\copied`)
	}
	if exists, isDir, err := dst.Exists(`\copied`); err != nil || !exists || isDir {
		t.Fatalf("destination %q changed by failed copy: exists=%v isDir=%v err=%v", `\copied`, exists, isDir, err)
	}
}

func TestMoveFileDeletesSource(t *testing.T) {
	src := newTestFacade(t)
	dst := newTestFacade(t)

	if f, err := src.CreateFile(`\a.txt`); err != nil {
		t.Fatalf("CreateFile: %v", err)
	} else {
		_ = f.Close()
	}

	ops := NewVirtualFileOperations()
	if err := ops.MoveFile(src, `\a.txt`, dst, `\a.txt`); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if exists, _, _ := src.Exists(`\a.txt`); exists {
		t.Fatalf("source still exists after MoveFile")
	}
	if exists, _, _ := dst.Exists(`\a.txt`); !exists {
		t.Fatalf("destination missing after MoveFile")
	}
}
