package ext2

import "strings"

// PathName splits a path on PathSeparator into its segments, dropping
// empty segments produced by leading/trailing/duplicated separators.
type PathName struct {
	segments []string
}

// NewPathName parses path into segments.
func NewPathName(path string) *PathName {
	raw := strings.Split(path, string(PathSeparator))
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return &PathName{segments: segments}
}

// Segments returns every path segment, root to leaf.
func (p *PathName) Segments() []string {
	return p.segments
}

// IsRoot reports whether the path has no segments at all.
func (p *PathName) IsRoot() bool {
	return len(p.segments) == 0
}

// Name returns the final segment, or "" for the root.
func (p *PathName) Name() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// ParentSegments returns every segment but the last.
func (p *PathName) ParentSegments() []string {
	if len(p.segments) == 0 {
		return nil
	}
	return p.segments[:len(p.segments)-1]
}

// FullPath reassembles the parsed segments into a canonical path string.
func (p *PathName) FullPath() string {
	return string(PathSeparator) + strings.Join(p.segments, string(PathSeparator))
}

// Combine joins parent and name into a canonical absolute path, the way
// FindFile builds each result it yields from the directory it is
// currently walking and the name of a matching entry within it.
func Combine(parent, name string) string {
	pn := NewPathName(parent)
	pn.segments = append(append([]string{}, pn.segments...), name)
	return pn.FullPath()
}
