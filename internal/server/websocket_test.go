package server

import (
	"context"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikollipara/concordia-ai/internal/llm"
)

func dialChat(t *testing.T, srvURL string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+srvURL[len("http"):]+"/api/bots/cs101/chat", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	return conn
}

// readUntilDone collects chunk frames until a done or error frame arrives.
func readUntilDone(t *testing.T, conn *websocket.Conn) (chunks []string, last chatEvent) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		var ev chatEvent
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		if ev.Type != "chunk" {
			return chunks, ev
		}
		chunks = append(chunks, ev.Body)
	}
}

func TestChatSocket_StreamsAndPersists(t *testing.T) {
	adapter := &scriptedAdapter{chunks: []string{"Hello ", "World!"}}
	srv, store := testServer(t, adapter)

	conn := dialChat(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, wsjson.Write(ctx, conn, chatMessage{User: "alice", Persona: "be brief", Body: "say hello"}))

	chunks, last := readUntilDone(t, conn)
	assert.Equal(t, []string{"Hello ", "World!"}, chunks)
	assert.Equal(t, "done", last.Type)
	assert.Equal(t, "be brief", adapter.gotPersona)

	entries, err := store.History(ctx, "cs101", "alice")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Hello World!", entries[0].Response)
}

func TestChatSocket_SecondTurnCarriesFirst(t *testing.T) {
	adapter := &scriptedAdapter{chunks: []string{"answer"}}
	srv, _ := testServer(t, adapter)

	conn := dialChat(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, wsjson.Write(ctx, conn, chatMessage{User: "alice", Body: "first"}))
	_, last := readUntilDone(t, conn)
	require.Equal(t, "done", last.Type)

	require.NoError(t, wsjson.Write(ctx, conn, chatMessage{User: "alice", Body: "second"}))
	_, last = readUntilDone(t, conn)
	require.Equal(t, "done", last.Type)

	require.Len(t, adapter.gotHistory, 2)
	assert.Equal(t, llm.User("first"), adapter.gotHistory[0])
	assert.Equal(t, llm.Assistant("answer"), adapter.gotHistory[1])
	assert.Equal(t, "second", adapter.gotPrompt)
}

func TestChatSocket_RejectsIncompleteMessage(t *testing.T) {
	srv, _ := testServer(t, &scriptedAdapter{})

	conn := dialChat(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, wsjson.Write(ctx, conn, chatMessage{User: "alice"}))

	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var ev chatEvent
	require.NoError(t, wsjson.Read(readCtx, conn, &ev))
	assert.Equal(t, "error", ev.Type)
}
