// Package excludelist answers whether a library must never be bundled. The
// pattern set is embedded at build time and matched pathname-style against
// library basenames (e.g. "libc.so.*"); it is sourced from the upstream
// AppImage pkg2appimage excludelist, which tracks the libraries that must
// come from the host (libc, the GL stack, NSS and friends).
package excludelist

import (
	_ "embed"
	"strings"

	"github.com/gobwas/glob"
)

//go:embed excludelist.txt
var embeddedList string

// Matcher compiles the pattern list once and answers basename membership
// queries against it. Compilation happens eagerly in New so a malformed
// pattern is surfaced immediately rather than on first use.
type Matcher struct {
	globs    []glob.Glob
	literals map[string]struct{}
}

// New parses the embedded pattern list. A pattern with no glob
// metacharacter goes into a plain string set, which is cheaper to check
// than running every query through the glob matchers.
func New() (*Matcher, error) {
	return NewFromPatterns(parsePatterns(embeddedList))
}

func parsePatterns(raw string) []string {
	var patterns []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// NewFromPatterns builds a Matcher from an explicit pattern list, mainly for
// tests that want a small, deterministic exclude set.
func NewFromPatterns(patterns []string) (*Matcher, error) {
	m := &Matcher{literals: make(map[string]struct{})}

	for _, pattern := range patterns {
		if !strings.ContainsAny(pattern, "*?[") {
			m.literals[pattern] = struct{}{}
			continue
		}

		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, &MatchError{Pattern: pattern, Err: err}
		}
		m.globs = append(m.globs, g)
	}

	return m, nil
}

// MatchError is returned when a pattern fails to compile. Fatal: a matcher
// with a missing pattern would silently bundle host-only libraries.
type MatchError struct {
	Pattern string
	Err     error
}

func (e *MatchError) Error() string {
	return "exclude pattern error for " + e.Pattern + ": " + e.Err.Error()
}

func (e *MatchError) Unwrap() error { return e.Err }

// IsExcluded reports whether basename matches any pattern in the list.
func (m *Matcher) IsExcluded(basename string) bool {
	if _, ok := m.literals[basename]; ok {
		return true
	}
	for _, g := range m.globs {
		if g.Match(basename) {
			return true
		}
	}
	return false
}
