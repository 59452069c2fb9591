// Package history bounds a conversation to a token budget.
//
// DESIGN: Drops the oldest turns first until the full candidate set
// [system persona] ++ history ++ [new prompt] fits strictly under the
// budget. The result is always a contiguous suffix of the input, in the
// original order, and the input slice is never mutated.
//
// Recounting after every drop is O(n²) in history length. That is a
// deliberate choice: histories are themselves bounded by the budget, so
// n stays small and the simple loop is easier to reason about than an
// incremental count.
package history

import (
	"github.com/ikollipara/concordia-ai/internal/llm"
	"github.com/ikollipara/concordia-ai/internal/tokens"
)

// Truncate returns the largest suffix of history such that the estimated
// cost of [system(persona)] ++ suffix ++ [user(prompt)] is strictly below
// budget. A cost exactly at the budget counts as overflow.
//
// When even [persona, prompt] alone exceeds the budget, an empty suffix is
// returned and the request is allowed to proceed; the provider rejects
// oversized requests itself and that surfaces as a transport failure.
func Truncate(counter *tokens.Counter, persona string, history []llm.Message, prompt string, budget int) []llm.Message {
	system := llm.System(persona)
	user := llm.User(prompt)

	trimmed := make([]llm.Message, len(history))
	copy(trimmed, history)

	for {
		candidate := make([]llm.Message, 0, len(trimmed)+2)
		candidate = append(candidate, system)
		candidate = append(candidate, trimmed...)
		candidate = append(candidate, user)

		if counter.Count(candidate) < budget {
			return trimmed
		}
		if len(trimmed) == 0 {
			return trimmed
		}
		trimmed = trimmed[1:]
	}
}
