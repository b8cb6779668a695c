package file

import (
	"path/filepath"
	"testing"
)

func TestCreateFromPathThenOpenFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume.img")

	created, err := CreateFromPath(path, 64*1024)
	if err != nil {
		t.Fatalf("CreateFromPath: %v", err)
	}
	w, err := created.Writable()
	if err != nil {
		t.Fatalf("Writable: %v", err)
	}
	if _, err := w.WriteAt([]byte("hello"), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := created.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	opened, err := OpenFromPath(path, true)
	if err != nil {
		t.Fatalf("OpenFromPath: %v", err)
	}
	defer opened.Close()

	buf := make([]byte, 5)
	if _, err := opened.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("ReadAt = %q, want %q", buf, "hello")
	}

	if _, err := opened.Writable(); err == nil {
		t.Fatalf("Writable should fail on a read-only mount")
	}
}

func TestCreateFromPathRejectsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume.img")
	if _, err := CreateFromPath(path, 4096); err != nil {
		t.Fatalf("CreateFromPath: %v", err)
	}
	if _, err := CreateFromPath(path, 4096); err == nil {
		t.Fatalf("expected error creating over an existing file")
	}
}

func TestOpenFromPathRejectsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.img")
	if _, err := OpenFromPath(path, true); err == nil {
		t.Fatalf("expected error opening a nonexistent file")
	}
}
