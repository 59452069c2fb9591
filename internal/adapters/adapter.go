// Package adapters implements the generation backends of the gateway.
//
// DESIGN: One Adapter is active per process, selected by configuration
// through Resolve. Adapters share a single contract: assemble a bounded
// message set and stream the reply back as a pull-based sequence of text
// chunks.
//
// FLOW:
//  1. Caller resolves the active adapter once at startup
//  2. Generate(ctx, persona, history, prompt) opens one generation
//  3. Remote backends truncate history against the token ceiling first
//  4. The returned stream yields chunks as the caller demands them
//  5. Close releases the connection on every exit path, including
//     early abandonment
//
// To add a provider: implement Adapter and register a factory with Register.
package adapters

import (
	"context"

	"github.com/ikollipara/concordia-ai/internal/llm"
)

// Adapter is the generation contract shared by all backends.
// Implementations are safe for concurrent use; each Generate call owns its
// own connection and shares no mutable state with other calls.
type Adapter interface {
	// Name returns the adapter identifier (e.g. "stub", "openai").
	Name() string

	// Generate streams a reply to prompt, given the bot persona and the
	// prior turns of the conversation (oldest first). The history slice is
	// never mutated. Configuration failures (missing credential) are
	// returned here, before any network I/O; transport failures surface
	// from the stream's Recv.
	Generate(ctx context.Context, persona string, history []llm.Message, prompt string) (llm.Stream, error)
}
