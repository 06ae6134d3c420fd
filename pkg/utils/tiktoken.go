package utils

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts tokens with the GPT-4 encoding, which is close enough for
// budgeting prompts sent to every supported provider.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a counter backed by the cl100k encoding.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in text. Without a codec it estimates 4 chars per token.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// TailToTokenLimit keeps the last lines of text that fit in limit tokens. It reports
// how many leading lines were dropped. A single oversized final line is cut from the front.
func (tc *TokenCounter) TailToTokenLimit(text string, limit int) (string, int) {
	if limit <= 0 || tc.CountTokens(text) <= limit {
		return text, 0
	}

	lines := strings.Split(text, "\n")
	used := 0
	start := len(lines)
	for start > 0 {
		// +1 for the newline joining this line to the next.
		cost := tc.CountTokens(lines[start-1]) + 1
		if used+cost > limit {
			break
		}
		used += cost
		start--
	}

	if start == len(lines) {
		last := lines[len(lines)-1]
		keep := limit * 4
		if keep < len(last) {
			last = last[len(last)-keep:]
		}
		return last, len(lines) - 1
	}
	return strings.Join(lines[start:], "\n"), start
}
