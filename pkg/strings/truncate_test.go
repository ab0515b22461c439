package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{name: "short string unchanged", input: "hello", maxLen: 10, expected: "hello"},
		{name: "exact length unchanged", input: "hello", maxLen: 5, expected: "hello"},
		{name: "long string truncated", input: "hello world this is a long string", maxLen: 15, expected: "hello world ..."},
		{name: "html error page collapsed", input: "<html>\n  <body>\n\tBad Gateway\n  </body>\n</html>", maxLen: 100, expected: "<html> <body> Bad Gateway </body> </html>"},
		{name: "multi-byte runes kept whole", input: "서버를 찾을 수 없습니다", maxLen: 8, expected: "서버를 찾..."},
		{name: "tiny maxLen clamped", input: "abcdefgh", maxLen: 1, expected: "a..."},
		{name: "empty", input: "", maxLen: 10, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.input, tt.maxLen))
		})
	}
}
