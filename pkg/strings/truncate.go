package strings

import (
	"strings"
)

// MinTruncateLen is the smallest maxLen Truncate accepts. Smaller values
// would leave no room for content plus "...".
const MinTruncateLen = 4

// Truncate collapses whitespace runs into single spaces and shortens s to at
// most maxLen runes, ending in "..." when cut. It never splits a multi-byte
// character.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
