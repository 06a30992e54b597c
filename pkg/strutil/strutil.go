// Package strutil provides shared string helpers.
package strutil

import (
	"strings"
	"unicode/utf8"
)

// Prefix returns the first n runes of s. It never splits a multi-byte
// character. Safe for n <= 0 (returns empty string).
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Truncate cuts s to n runes and appends "..." when anything was removed.
// Trailing whitespace left by the cut is dropped before the suffix.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimRight(Prefix(s, n), " \t\r\n") + "..."
}
