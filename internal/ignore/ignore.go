// Package ignore decides whether a URL path is excluded from reporting.
//
// Matching is a pure prefix test against the configured ignore list.
// Ignored requests are still tracked in full; adapters tag them with
// ignore_transaction and the exporter drops them downstream. The engine
// therefore stays observable even for traffic nobody wants reported.
package ignore

import "strings"

// Matcher holds the configured ignored path prefixes.
type Matcher struct {
	prefixes []string
}

// NewMatcher builds a matcher from configured prefixes. Empty entries are
// dropped so a blank SCOUT_IGNORE never ignores everything.
func NewMatcher(prefixes []string) *Matcher {
	m := &Matcher{}
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			m.prefixes = append(m.prefixes, p)
		}
	}
	return m
}

// Matches reports whether path falls under any ignored prefix.
// Safe for arbitrary input, including the empty string.
func (m *Matcher) Matches(path string) bool {
	if m == nil {
		return false
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
