// Package embedder implements the async batch text→vector client the
// Feedback Store and Backward Pipeline call to index and retrieve
// exemplars, grounded on the pack's OpenAI embedding provider.
package embedder

import (
	"context"
	"strings"
	"unicode"
)

// Client is the provider-agnostic embedding contract.
type Client interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string, concurrent bool) ([][]float32, error)
	Dimension() int
}

// Sanitize strips zero-width characters, drops control characters other
// than tab/newline/carriage-return, and then replaces each newline or
// carriage-return character with a space (so "\r\n" becomes two spaces)
// before text is sent to the embedding provider.
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isZeroWidth(r) {
			continue
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		if r == '\n' || r == '\r' {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isZeroWidth(r rune) bool {
	switch r {
	case '​', '‌', '‍', '\uFEFF':
		return true
	default:
		return false
	}
}
