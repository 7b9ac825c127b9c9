package inventory

import (
	"strings"
	"unicode"
)

// Normalize keeps letters (accented included), digits and spaces, lowercased.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case r == ' ':
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// Tokens splits a normalized query into tokens of at least minTokenLen runes.
func Tokens(normalized string) []string {
	fields := strings.Fields(normalized)
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= minTokenLen {
			out = append(out, f)
		}
	}
	return out
}
