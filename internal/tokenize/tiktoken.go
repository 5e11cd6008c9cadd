package tokenize

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when the model has no known tiktoken encoding.
// cl100k_base is used by GPT-4, GPT-3.5-turbo and most OpenAI-compatible models.
const DefaultEncoding = "cl100k_base"

// Tiktoken counts tokens with a BPE encoding from tiktoken-go.
type Tiktoken struct {
	encoding string
	tke      *tiktoken.Tiktoken
}

// Compile-time interface compliance check.
var _ Tokenizer = (*Tiktoken)(nil)

// NewTiktoken creates a tokenizer for the given model or encoding name.
// A known encoding name is used directly; otherwise the name is resolved as a
// model, and unknown models fall back to DefaultEncoding.
// Loading an encoding may need network access on first use (tiktoken-go caches
// the BPE ranks under TIKTOKEN_CACHE_DIR).
func NewTiktoken(modelOrEncoding string) (*Tiktoken, error) {
	if modelOrEncoding == "" {
		modelOrEncoding = DefaultEncoding
	}

	if tke, err := tiktoken.GetEncoding(modelOrEncoding); err == nil {
		return &Tiktoken{encoding: modelOrEncoding, tke: tke}, nil
	}
	if tke, err := tiktoken.EncodingForModel(modelOrEncoding); err == nil {
		return &Tiktoken{encoding: modelOrEncoding, tke: tke}, nil
	}

	tke, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %q: %w", DefaultEncoding, err)
	}
	return &Tiktoken{encoding: DefaultEncoding, tke: tke}, nil
}

// Encoding returns the encoding or model name the tokenizer was resolved from.
func (t *Tiktoken) Encoding() string {
	return t.encoding
}

// Count returns the exact number of tokens in text.
func (t *Tiktoken) Count(text string) int {
	return len(t.Encode(text))
}

// Encode returns the token IDs of text. Special-token markup is encoded as plain text.
func (t *Tiktoken) Encode(text string) []int {
	return t.tke.Encode(text, nil, nil)
}

// Decode reconstructs text from token IDs.
func (t *Tiktoken) Decode(tokens []int) string {
	return t.tke.Decode(tokens)
}
