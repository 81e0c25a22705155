// Package naming turns video titles into file-name stems.
package naming

import (
	"strings"
	"unicode"
)

const maxStem = 120

// BaseName replaces whitespace runs with underscores and drops characters
// that are unsafe in file names. An empty result becomes "video".
func BaseName(title string) string {
	var b strings.Builder
	prevUnderscore := false
	for _, r := range strings.TrimSpace(title) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '.':
			b.WriteRune(r)
			prevUnderscore = false
		case unicode.IsSpace(r), r == '_':
			if !prevUnderscore {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
	}
	s := strings.Trim(b.String(), "_.-")
	if r := []rune(s); len(r) > maxStem {
		s = strings.TrimRight(string(r[:maxStem]), "_.-")
	}
	if s == "" {
		return "video"
	}
	return s
}
