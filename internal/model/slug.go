package model

import "strings"

// NormalizeSlug lowercases s, turns hyphens and whitespace into underscores
// and drops everything outside [a-z0-9_].
func NormalizeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-', r == ' ', r == '\t':
			b.WriteByte('_')
		}
	}
	return b.String()
}
