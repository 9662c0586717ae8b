package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CleanText trims s, drops control characters other than newlines and tabs,
// and truncates the result to max runes. max <= 0 means no limit.
func CleanText(s string, max int) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(s))

	if max > 0 && utf8.RuneCountInString(s) > max {
		s = string([]rune(s)[:max])
	}
	return s
}

// CleanLine is CleanText for single-line fields: line breaks and tabs
// collapse to single spaces.
func CleanLine(s string, max int) string {
	return CleanText(strings.Join(strings.Fields(s), " "), max)
}
