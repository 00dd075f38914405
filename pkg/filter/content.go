package filter

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is a single word of content. Text holds the lowercased token;
// Start and End are byte offsets into the original content string.
type Token struct {
	Text  string
	Start int
	End   int
}

// Content is the preprocessed form of one content item. Preprocessing
// happens once per item and the result is shared read-only by every
// rule matcher. The original text is preserved untouched; lowercasing
// applies only to the token copies used for comparison, so offsets and
// matched substrings always refer to the original string.
type Content struct {
	// Original is the content exactly as submitted.
	Original string

	tokens []Token
}

// NewContent preprocesses a content item for matching. Whitespace and
// punctuation are normalized away by tokenization; they never shift the
// reported offsets.
func NewContent(original string) *Content {
	return &Content{
		Original: original,
		tokens:   tokenize(original),
	}
}

// Tokens returns the token sequence of the content.
func (c *Content) Tokens() []Token {
	return c.tokens
}

// tokenize splits content into word tokens. A token is a maximal run of
// letters and digits; everything else is a boundary. Token text is
// lowercased for case-insensitive comparison.
func tokenize(s string) []Token {
	var tokens []Token
	start := -1

	for i, r := range s {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, Token{
				Text:  strings.ToLower(s[start:i]),
				Start: start,
				End:   i,
			})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{
			Text:  strings.ToLower(s[start:]),
			Start: start,
			End:   len(s),
		})
	}

	return tokens
}

// isWordRune reports whether r belongs inside a word token.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// validateText checks a content item before analysis. Violations map to
// stable per-item error codes.
func validateText(text string) *ItemError {
	if strings.TrimSpace(text) == "" {
		return &ItemError{Code: ErrCodeEmptyContent, Message: "content is empty"}
	}
	if !utf8.ValidString(text) {
		return &ItemError{Code: ErrCodeInvalidEncoding, Message: "content is not valid UTF-8"}
	}
	return nil
}
