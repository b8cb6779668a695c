package ext2

import "testing"

func TestSearchPatternWildcards(t *testing.T) {
	cases := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*.txt", "report.txt", true},
		{"*.txt", "report.md", false},
		{"report?.txt", "report1.txt", true},
		{"report?.txt", "report12.txt", false},
		{"REPORT*", "report-final.txt", true},
		{"notes.md", "notes.md", true},
		{"notes.md", "notes2.md", false},
	}
	for _, c := range cases {
		pat, err := CompileSearchPattern(c.pattern)
		if err != nil {
			t.Fatalf("CompileSearchPattern(%q): %v", c.pattern, err)
		}
		if got := pat.Match(c.name); got != c.want {
			t.Errorf("pattern %q matching %q = %v, want %v", c.pattern, c.name, got, c.want)
		}
	}
}
