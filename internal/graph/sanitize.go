package graph

import "strings"

// Sanitize turns a natural key into a token safe for use as a node
// identifier: path separators, spaces and dots become "_", as does every
// other character outside [A-Za-z0-9_-]. The mapping is not reversible.
func Sanitize(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
