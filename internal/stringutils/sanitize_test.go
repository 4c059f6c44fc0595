package stringutils_test

import (
	"testing"

	"github.com/habiliai/nativeagent/internal/stringutils"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeUnicodeString(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "string with null byte",
			input:    "fact\u0000with null",
			expected: "factwith null",
		},
		{
			name:     "string with multiple control characters",
			input:    "my\u0001\u001f\u007f\u0085memory",
			expected: "mymemory",
		},
		{
			name:     "string with valid whitespace",
			input:    "line one\nline\ttwo\r",
			expected: "line one\nline\ttwo\r",
		},
		{
			name:     "invalid utf8",
			input:    "caf\xe9 au lait",
			expected: "caf au lait",
		},
		{
			name:     "unicode text is kept",
			input:    "고양이 이름은 픽셀",
			expected: "고양이 이름은 픽셀",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stringutils.SanitizeUnicodeString(tc.input))
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "Research_bot_2", stringutils.CollapseWhitespace("  Research \t bot\n 2 ", "_"))
	assert.Equal(t, "", stringutils.CollapseWhitespace("   ", "_"))
}
