package tokenizer

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer provides token counting using tiktoken encodings.
// Encodings are cached via sync.Once to avoid repeated initialization.
type Tokenizer struct {
	cl100kOnce sync.Once
	cl100kEnc  *tiktoken.Tiktoken
	cl100kErr  error

	o200kOnce sync.Once
	o200kEnc  *tiktoken.Tiktoken
	o200kErr  error
}

// modelEncodings maps model names to their tiktoken encoding.
var modelEncodings = map[string]string{
	// cl100k_base
	"gpt-4":       "cl100k_base",
	"gpt-4-turbo": "cl100k_base",

	// o200k_base
	"gpt-4o":                 "o200k_base",
	"gpt-4o-2024-08-06":      "o200k_base",
	"gpt-4o-mini":            "o200k_base",
	"gpt-4o-mini-2024-07-18": "o200k_base",
	"gpt-4.1":                "o200k_base",
	"gpt-4.1-mini":           "o200k_base",
}

// New creates a new Tokenizer instance.
func New() *Tokenizer {
	return &Tokenizer{}
}

// GetEncoding returns the encoding name for the given model.
// Unknown models default to o200k_base.
func (t *Tokenizer) GetEncoding(model string) string {
	if enc, ok := modelEncodings[model]; ok {
		return enc
	}

	// Try prefix matching for versioned model names.
	lower := strings.ToLower(model)
	for m, enc := range modelEncodings {
		if strings.HasPrefix(lower, m) {
			return enc
		}
	}

	return "o200k_base"
}

// getEncoder returns the cached tiktoken encoder for the given model.
func (t *Tokenizer) getEncoder(model string) (*tiktoken.Tiktoken, error) {
	encName := t.GetEncoding(model)

	switch encName {
	case "cl100k_base":
		t.cl100kOnce.Do(func() {
			t.cl100kEnc, t.cl100kErr = tiktoken.GetEncoding("cl100k_base")
		})
		return t.cl100kEnc, t.cl100kErr
	default:
		t.o200kOnce.Do(func() {
			t.o200kEnc, t.o200kErr = tiktoken.GetEncoding("o200k_base")
		})
		return t.o200kEnc, t.o200kErr
	}
}

// CountTokens counts the number of tokens in the given text for the specified model.
func (t *Tokenizer) CountTokens(model, text string) int {
	enc, err := t.getEncoder(model)
	if err != nil {
		return 0
	}
	tokens := enc.Encode(text, nil, nil)
	return len(tokens)
}

// Clamp truncates text to at most maxTokens tokens for the given model.
// Text already within the budget is returned unchanged. When the
// encoder cannot be initialized it falls back to a rough 4-bytes-per-token
// cut so oversized content still gets bounded.
func (t *Tokenizer) Clamp(model, text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}

	enc, err := t.getEncoder(model)
	if err != nil {
		limit := maxTokens * 4
		if len(text) > limit {
			return text[:limit]
		}
		return text
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}
