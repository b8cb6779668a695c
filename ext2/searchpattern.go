package ext2

import (
	"regexp"
	"strings"
)

// SearchPattern compiles a glob-style pattern ('*' matches any run of
// characters, '?' matches exactly one) into a case-insensitive matcher
// over whole names.
type SearchPattern struct {
	re *regexp.Regexp
}

// CompileSearchPattern builds a SearchPattern from a glob expression.
func CompileSearchPattern(pattern string) (*SearchPattern, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	return &SearchPattern{re: re}, nil
}

// Match reports whether name satisfies the pattern.
func (p *SearchPattern) Match(name string) bool {
	return p.re.MatchString(name)
}
