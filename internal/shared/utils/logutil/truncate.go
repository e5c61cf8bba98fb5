// Package logutil formats untrusted device output for logs and error messages.
package logutil

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// TruncateForLog collapses s onto one line and cuts it to at most maxLen
// runes, appending "..." when anything was dropped. Multi-byte characters
// are never split.
func TruncateForLog(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if maxLen <= 0 {
		if s == "" {
			return ""
		}
		return ellipsis
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}

	cut := 0
	for i := range s {
		if maxLen == 0 {
			cut = i
			break
		}
		maxLen--
	}
	return s[:cut] + ellipsis
}
