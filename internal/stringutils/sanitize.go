package stringutils

import (
	"strings"
	"unicode"
)

// SanitizeUnicodeString drops NUL, C0/C1 control characters (except tab,
// newline and carriage return) and non-printable runes.
func SanitizeUnicodeString(s string) string {
	if !needsSanitize(s) {
		return s
	}

	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if r == unicode.ReplacementChar || isControl(r) {
			continue
		}
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

func needsSanitize(s string) bool {
	for _, r := range s {
		if r == unicode.ReplacementChar || isControl(r) {
			return true
		}
	}
	return false
}

func isControl(r rune) bool {
	if r < 32 {
		return r != '\t' && r != '\n' && r != '\r'
	}
	return r == 127 || (r >= 128 && r <= 159)
}

// CollapseWhitespace replaces every whitespace run with sep and trims the ends.
func CollapseWhitespace(s, sep string) string {
	return strings.Join(strings.Fields(s), sep)
}
