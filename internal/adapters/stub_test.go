package adapters

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikollipara/concordia-ai/internal/llm"
)

// fastStub is the stub script without its artificial delays, for tests that
// exercise stream mechanics rather than timing.
func fastStub() *StubAdapter {
	return &StubAdapter{script: []stubFragment{
		{text: "Hello "},
		{text: "World!"},
	}}
}

func TestStub_FixedScript(t *testing.T) {
	adapter := NewStubAdapter()

	require.Len(t, adapter.script, 2)
	assert.Equal(t, stubFragment{delay: 1 * time.Second, text: "Hello "}, adapter.script[0])
	assert.Equal(t, stubFragment{delay: 2 * time.Second, text: "World!"}, adapter.script[1])
}

func TestStub_IgnoresInputs(t *testing.T) {
	adapter := fastStub()

	inputs := []struct {
		persona string
		history []llm.Message
		prompt  string
	}{
		{"", nil, ""},
		{"x", []llm.Message{}, "hi"},
		{"a long persona", []llm.Message{llm.User("q"), llm.Assistant("a")}, "another prompt"},
	}

	for _, in := range inputs {
		stream, err := adapter.Generate(context.Background(), in.persona, in.history, in.prompt)
		require.NoError(t, err)

		got, err := llm.Collect(stream)
		require.NoError(t, err)
		assert.Equal(t, "Hello World!", got)
	}
}

func TestStub_ChunksInOrder(t *testing.T) {
	adapter := fastStub()

	stream, err := adapter.Generate(context.Background(), "x", nil, "hi")
	require.NoError(t, err)
	defer stream.Close()

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "Hello ", first)

	second, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "World!", second)

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)

	// The sequence is not restartable.
	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStub_CloseStopsStream(t *testing.T) {
	adapter := fastStub()

	stream, err := adapter.Generate(context.Background(), "x", nil, "hi")
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "Hello ", first)

	require.NoError(t, stream.Close())

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStub_DelayHonorsCancellation(t *testing.T) {
	adapter := NewStubAdapter()

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := adapter.Generate(ctx, "x", nil, "hi")
	require.NoError(t, err)
	defer stream.Close()

	cancel()

	start := time.Now()
	_, err = stream.Recv()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
