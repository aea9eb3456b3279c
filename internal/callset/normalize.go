package callset

import (
	"regexp"
	"strings"
	"sync"

	"github.com/dgraph-io/ristretto"
)

// Signature normalization maps value-different but shape-identical queries
// to one key: literals become ?, whitespace collapses, IN lists fold.
var (
	reString     = regexp.MustCompile(`'(?:[^']|'')*'|"(?:[^"]|"")*"`)
	reNumber     = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	reInList     = regexp.MustCompile(`(?i)\bIN\s*\(\s*\?(?:\s*,\s*\?)*\s*\)`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// Normalization is regex-heavy, and hot endpoints replay the same raw SQL
// thousands of times per minute. A process-wide admission-controlled cache
// keeps the per-query cost at a map lookup.
var (
	normCache     *ristretto.Cache
	normCacheOnce sync.Once
)

func cache() *ristretto.Cache {
	normCacheOnce.Do(func() {
		// Errors leave normCache nil; normalization still works, uncached.
		normCache, _ = ristretto.NewCache(&ristretto.Config{
			NumCounters: 1 << 16, // keys to track frequency of
			MaxCost:     1 << 22, // 4MB of raw SQL
			BufferItems: 64,
		})
	})
	return normCache
}

// Normalize reduces a raw operation to its call-set signature.
func Normalize(raw string) string {
	if c := cache(); c != nil {
		if v, ok := c.Get(raw); ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}

	sig := reString.ReplaceAllString(raw, "?")
	sig = reNumber.ReplaceAllString(sig, "?")
	sig = reInList.ReplaceAllString(sig, "IN (?)")
	sig = strings.TrimSpace(reWhitespace.ReplaceAllString(sig, " "))

	if c := cache(); c != nil {
		c.Set(raw, sig, int64(len(raw)+len(sig)))
	}
	return sig
}
