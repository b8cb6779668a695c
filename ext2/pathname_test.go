package ext2

import (
	"reflect"
	"testing"
)

func TestPathNameSegments(t *testing.T) {
	p := NewPathName(`\docs\2026\report.txt`)
	want := []string{"docs", "2026", "report.txt"}
	if got := p.Segments(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Segments() = %v, want %v", got, want)
	}
	if got := p.Name(); got != "report.txt" {
		t.Fatalf("Name() = %q, want %q", got, "report.txt")
	}
	if got := p.ParentSegments(); !reflect.DeepEqual(got, []string{"docs", "2026"}) {
		t.Fatalf("ParentSegments() = %v", got)
	}
}

func TestPathNameRoot(t *testing.T) {
	p := NewPathName(`\`)
	if !p.IsRoot() {
		t.Fatalf("expected root path to report IsRoot() true")
	}
	if got := p.Name(); got != "" {
		t.Fatalf("Name() on root = %q, want empty", got)
	}
}

func TestPathNameCollapsesRepeatedSeparators(t *testing.T) {
	p := NewPathName(`\a\\b\`)
	want := []string{"a", "b"}
	if got := p.Segments(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Segments() = %v, want %v", got, want)
	}
}
