package exporters

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Emphasize wraps the first whole-word, case-sensitive occurrence of word in
// usage with <b></b>. Word boundaries follow the \b rule over Unicode letters
// and digits, so "outré" matches in "so outré." while "cat" does not match
// inside "concatenate".
func Emphasize(usage, word string) string {
	if word == "" {
		return usage
	}

	first, _ := utf8.DecodeRuneInString(word)
	last, _ := utf8.DecodeLastRuneInString(word)

	for offset := 0; offset <= len(usage)-len(word); {
		i := strings.Index(usage[offset:], word)
		if i < 0 {
			break
		}
		start := offset + i
		end := start + len(word)

		if isBoundary(usage, start, first, true) && isBoundary(usage, end, last, false) {
			return usage[:start] + "<b>" + word + "</b>" + usage[end:]
		}

		_, size := utf8.DecodeRuneInString(usage[start:])
		offset = start + size
	}

	return usage
}

// isBoundary reports whether a \b boundary sits at pos, where edge is the
// word rune on the inner side of the match.
func isBoundary(s string, pos int, edge rune, atStart bool) bool {
	var neighbour rune
	var ok bool
	if atStart {
		if pos > 0 {
			neighbour, _ = utf8.DecodeLastRuneInString(s[:pos])
			ok = true
		}
	} else if pos < len(s) {
		neighbour, _ = utf8.DecodeRuneInString(s[pos:])
		ok = true
	}

	neighbourIsWord := ok && isWordRune(neighbour)
	return isWordRune(edge) != neighbourIsWord
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}
