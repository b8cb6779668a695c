package ext2

import "testing"

func newTestFacade(t *testing.T) *VFSFacade {
	t.Helper()
	return NewFacade(mustCreateVolume(t, testVolumeSize, "facade"))
}

func TestCreateAndFindDirectory(t *testing.T) {
	f := newTestFacade(t)

	if err := f.CreateDirectory(`\docs`); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	exists, isDir, err := f.Exists(`\docs`)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists || !isDir {
		t.Fatalf("Exists(\\docs) = (%v, %v), want (true, true)", exists, isDir)
	}
}

func TestCreateWriteReadFile(t *testing.T) {
	f := newTestFacade(t)

	file, err := f.CreateFile(`\hello.txt`)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	payload := []byte("hello, virtual world")
	if err := file.WriteData(payload); err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	opened, err := f.OpenFile(`\hello.txt`, false)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer opened.Close()

	buf := make([]byte, len(payload))
	n, err := opened.ReadData(buf)
	if err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if n != len(payload) || string(buf) != string(payload) {
		t.Fatalf("read back %q, want %q", buf[:n], payload)
	}
}

func TestDeleteDirectoryRequiresEmpty(t *testing.T) {
	f := newTestFacade(t)

	if err := f.CreateDirectory(`\a`); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if _, err := f.CreateFile(`\a\b.txt`); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := f.DeleteDirectory(`\a`, false); err == nil {
		t.Fatalf("expected error deleting non-empty directory")
	}
	if err := f.DeleteFile(`\a\b.txt`); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := f.DeleteDirectory(`\a`, false); err != nil {
		t.Fatalf("DeleteDirectory on now-empty dir: %v", err)
	}
}

func TestDeleteDirectoryRecursiveTearsDownDescendants(t *testing.T) {
	f := newTestFacade(t)

	if err := f.CreateDirectory(`\a`); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if err := f.CreateDirectory(`\a\b`); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if _, err := f.CreateFile(`\a\top.txt`); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if _, err := f.CreateFile(`\a\b\leaf.txt`); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	if err := f.DeleteDirectory(`\a`, false); err == nil {
		t.Fatalf("expected error deleting non-empty directory without recursive")
	}
	if err := f.DeleteDirectory(`\a`, true); err != nil {
		t.Fatalf("DeleteDirectory(recursive): %v", err)
	}

	if exists, _, _ := f.Exists(`\a`); exists {
		t.Fatalf("\\a still exists after recursive delete")
	}
	if exists, _, _ := f.Exists(`\a\b\leaf.txt`); exists {
		t.Fatalf("\\a\\b\\leaf.txt still exists after recursive delete")
	}
}

func TestMoveFileWithinVolume(t *testing.T) {
	f := newTestFacade(t)

	if err := f.CreateDirectory(`\dst`); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	file, err := f.CreateFile(`\src.txt`)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	_ = file.Close()

	if err := f.MoveFile(`\src.txt`, `\dst\src.txt`); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}

	if exists, _, _ := f.Exists(`\src.txt`); exists {
		t.Fatalf("source still present after move")
	}
	exists, isDir, err := f.Exists(`\dst\src.txt`)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists || isDir {
		t.Fatalf("Exists(\\dst\\src.txt) = (%v, %v), want (true, false)", exists, isDir)
	}
}

func TestListDirectoryExcludesDotEntries(t *testing.T) {
	f := newTestFacade(t)

	if err := f.CreateDirectory(`\x`); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if _, err := f.CreateFile(`\x\one.txt`); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := f.CreateDirectory(`\x\sub`); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}

	names, err := f.ListDirectory(`\x`)
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("ListDirectory returned %v, want 2 entries", names)
	}
	for _, n := range names {
		if n == "." || n == ".." {
			t.Fatalf("ListDirectory leaked dot entry: %v", names)
		}
	}
}

func TestFindMatchingFilesPattern(t *testing.T) {
	f := newTestFacade(t)

	for _, name := range []string{`\report1.txt`, `\report2.txt`, `\notes.md`} {
		if _, err := f.CreateFile(name); err != nil {
			t.Fatalf("CreateFile(%s): %v", name, err)
		}
	}

	pattern, err := CompileSearchPattern("report*.txt")
	if err != nil {
		t.Fatalf("CompileSearchPattern: %v", err)
	}
	matches, err := f.FindMatchingFiles(`\`, pattern)
	if err != nil {
		t.Fatalf("FindMatchingFiles: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("FindMatchingFiles = %v, want 2 matches", matches)
	}
}

func TestFindFileRecursiveYieldsAbsolutePaths(t *testing.T) {
	f := newTestFacade(t)

	if err := f.CreateDirectory(`\reports`); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if err := f.CreateDirectory(`\reports\q1`); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	for _, name := range []string{`\reports\a.txt`, `\reports\q1\b.txt`, `\notes.md`} {
		if _, err := f.CreateFile(name); err != nil {
			t.Fatalf("CreateFile(%s): %v", name, err)
		}
	}

	pattern, err := CompileSearchPattern("*.txt")
	if err != nil {
		t.Fatalf("CompileSearchPattern: %v", err)
	}

	got := map[string]bool{}
	for m := range f.FindFile(`\`, pattern, true) {
		if m.Err != nil {
			t.Fatalf("FindFile: %v", m.Err)
		}
		got[m.Path] = true
	}

	want := []string{`\reports\a.txt`, `\reports\q1\b.txt`}
	for _, path := range want {
		if !got[path] {
			t.Fatalf("FindFile recursive result %v missing %q", got, path)
		}
	}
	if got[`\notes.md`] {
		t.Fatalf("FindFile matched %q against pattern *.txt", `\notes.md`)
	}
	if len(got) != len(want) {
		t.Fatalf("FindFile recursive result %v, want exactly %v", got, want)
	}
}

func TestFindFileNonRecursiveStaysInStartingDirectory(t *testing.T) {
	f := newTestFacade(t)

	if err := f.CreateDirectory(`\reports`); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if _, err := f.CreateFile(`\reports\a.txt`); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	pattern, err := CompileSearchPattern("*")
	if err != nil {
		t.Fatalf("CompileSearchPattern: %v", err)
	}

	var got []string
	for m := range f.FindFile(`\`, pattern, false) {
		if m.Err != nil {
			t.Fatalf("FindFile: %v", m.Err)
		}
		got = append(got, m.Path)
	}
	if len(got) != 1 || got[0] != `\reports` {
		t.Fatalf("FindFile(recursive=false) = %v, want [\\reports]", got)
	}
}
