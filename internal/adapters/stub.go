package adapters

import (
	"context"
	"io"
	"time"

	"github.com/ikollipara/concordia-ai/internal/llm"
)

// StubAdapter is a deterministic backend for development and integration
// testing. It ignores every input and yields a fixed two-fragment reply with
// artificial inter-fragment delays that model real provider latency. No
// network, no credentials, always succeeds.
type StubAdapter struct {
	script []stubFragment
}

type stubFragment struct {
	delay time.Duration
	text  string
}

// NewStubAdapter creates the stub backend with its fixed script:
// "Hello " after 1s, then "World!" after a further 2s.
func NewStubAdapter() *StubAdapter {
	return &StubAdapter{
		script: []stubFragment{
			{delay: 1 * time.Second, text: "Hello "},
			{delay: 2 * time.Second, text: "World!"},
		},
	}
}

// Name returns the adapter identifier.
func (a *StubAdapter) Name() string { return "stub" }

// Generate returns a stream over the fixed script. Inputs are ignored.
func (a *StubAdapter) Generate(ctx context.Context, persona string, history []llm.Message, prompt string) (llm.Stream, error) {
	return &stubStream{ctx: ctx, script: a.script}, nil
}

// stubStream replays the script one fragment per Recv, sleeping the
// fragment's delay first. The delay honors context cancellation.
type stubStream struct {
	ctx    context.Context
	script []stubFragment
	next   int
	closed bool
}

func (s *stubStream) Recv() (string, error) {
	if s.closed || s.next >= len(s.script) {
		return "", io.EOF
	}

	f := s.script[s.next]
	s.next++

	if f.delay > 0 {
		t := time.NewTimer(f.delay)
		defer t.Stop()
		select {
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		case <-t.C:
		}
	}
	return f.text, nil
}

func (s *stubStream) Close() error {
	s.closed = true
	return nil
}

var _ Adapter = (*StubAdapter)(nil)
