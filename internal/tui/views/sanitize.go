package views

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal drops codepoints tview renders badly: emoji modifiers
// and joiners, variation selectors, and control characters other than
// newline and tab.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		if dropRune(r) {
			return -1
		}
		return r
	}, s)
}

func dropRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tone modifiers
		return true
	case r == 0x200D: // zero width joiner
		return true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF: // variation selectors
		return true
	case r == '\n' || r == '\t':
		return false
	default:
		return unicode.IsControl(r)
	}
}
