package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher tests single path components against a list of glob patterns,
// case-insensitively so Thumbs.db and thumbs.db are the same file.
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{patterns: patterns}

	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
	}

	return m, nil
}

// Match reports whether name (a base name, not a path) matches any pattern.
func (m *Matcher) Match(name string) bool {
	if m == nil {
		return false
	}

	lower := strings.ToLower(name)
	for _, g := range m.globs {
		if g.Match(lower) {
			return true
		}
	}

	return false
}

// MatchPath reports whether any component of rel matches.
func (m *Matcher) MatchPath(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part != "" && m.Match(part) {
			return true
		}
	}

	return false
}

func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return m.patterns
}
