package cache

import (
	"sort"
	"strings"
)

// GenerateKey builds a deterministic cache key from a base and a parameter set.
// Parameters are sorted lexicographically by name and joined as k=v pairs with
// "&" after a "?", so two logically equal requests always produce the identical
// key regardless of call-site ordering. Empty params yields base unchanged.
func GenerateKey(base string, params map[string]string) string {
	if len(params) == 0 {
		return base
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(base)
	b.WriteByte('?')
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name])
	}
	return b.String()
}
