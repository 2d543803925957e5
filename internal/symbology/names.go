package symbology

import (
	"strings"
	"unicode"
)

// HumanReadableName turns a PascalCase identifier into a spaced sentence.
// A space goes before c when the previous rune is lowercase and c uppercase,
// when a digit is followed by a letter, or when a letter is followed by a
// digit. Already spaced input is returned unchanged.
func HumanReadableName(identifier string) string {
	var b strings.Builder
	b.Grow(len(identifier) + 4)

	var prev rune
	for i, c := range identifier {
		if i > 0 && needsSpace(prev, c) {
			b.WriteByte(' ')
		}
		b.WriteRune(c)
		prev = c
	}
	return b.String()
}

func needsSpace(prev, c rune) bool {
	switch {
	case unicode.IsLower(prev) && unicode.IsUpper(c):
		return true
	case unicode.IsDigit(prev) && unicode.IsLetter(c):
		return true
	case unicode.IsLetter(prev) && unicode.IsDigit(c):
		return true
	}
	return false
}
