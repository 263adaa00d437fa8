package validators

import (
	"strings"
	"unicode/utf8"
)

// Clip trims surrounding whitespace and cuts s to at most maxRunes characters.
func Clip(s string, maxRunes int) string {
	s = strings.TrimSpace(s)
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	cut := 0
	for i := range s {
		if cut == maxRunes {
			return s[:i]
		}
		cut++
	}
	return s
}
