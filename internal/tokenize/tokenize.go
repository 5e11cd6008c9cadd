// Package tokenize measures text in model tokens so documents can be cut to a
// token budget. Tiktoken gives exact counts for OpenAI-family encodings; Chars
// approximates with a fixed characters-per-token ratio and needs no data files.
package tokenize

import (
	"unicode/utf8"
)

// Tokenizer counts the tokens a model would see for a piece of text.
// Implementations must be safe for concurrent use.
type Tokenizer interface {
	Count(text string) int
}

// DefaultCharsPerToken is conservative for French text (~3.5 chars/token, we use 3).
// English averages ~4 chars/token.
const DefaultCharsPerToken = 3

// Chars approximates token counts as ceil(runes / PerToken).
// Rounding up keeps the estimate on the safe side of a budget.
type Chars struct {
	PerToken int
}

// Compile-time interface compliance check.
var _ Tokenizer = Chars{}

// NewChars returns a Chars tokenizer. Non-positive ratios use DefaultCharsPerToken.
func NewChars(perToken int) Chars {
	if perToken <= 0 {
		perToken = DefaultCharsPerToken
	}
	return Chars{PerToken: perToken}
}

// Count returns the approximate token count of text.
func (c Chars) Count(text string) int {
	per := c.PerToken
	if per <= 0 {
		per = DefaultCharsPerToken
	}
	n := utf8.RuneCountInString(text)
	return (n + per - 1) / per
}
