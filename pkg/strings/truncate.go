// Package strings holds small text helpers for terminal output.
package strings

import (
	"strings"
)

// minTruncateLen leaves room for one character plus "...".
const minTruncateLen = 4

// SingleLine collapses every run of whitespace, newlines included, into a
// single space. Joined errors span several lines and would break table rows.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns s on a single line, cut to at most maxLen runes with a
// trailing "..." when it was longer. maxLen below 4 is treated as 4.
func Truncate(s string, maxLen int) string {
	if maxLen < minTruncateLen {
		maxLen = minTruncateLen
	}
	s = SingleLine(s)

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
