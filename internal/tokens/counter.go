// Package tokens estimates the token cost of a message set.
//
// DESIGN: Uses tiktoken's cl100k_base encoding as a fixed reference
// tokenizer. The result is an estimate, not the provider's exact count:
// it exists to bound request size, so a stable approximation across
// providers beats chasing per-model tokenizers.
package tokens

import (
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/ikollipara/concordia-ai/internal/llm"
)

const (
	// tokensPerMessage is the average framing overhead per message
	// (role, separators) in the chat wire format.
	tokensPerMessage = 3

	// priming is the fixed cost of the model's reply preamble.
	priming = 3
)

// Counter estimates token costs for message slices. Safe for concurrent use;
// Count is pure.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter creates a Counter backed by the cl100k_base encoding.
func NewCounter() (*Counter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("tokens: get encoding: %w", err)
	}
	return &Counter{enc: enc}, nil
}

// Count returns the estimated token cost of messages: per-message framing
// overhead plus tokenized content length, summed, plus the priming constant.
func (c *Counter) Count(messages []llm.Message) int {
	total := priming
	for _, m := range messages {
		total += tokensPerMessage + len(c.enc.Encode(m.Content, nil, nil))
	}
	return total
}
