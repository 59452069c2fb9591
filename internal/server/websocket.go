package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ikollipara/concordia-ai/internal/llm"
	"github.com/ikollipara/concordia-ai/internal/transcript"
)

// chatMessage is the client's turn over the websocket.
type chatMessage struct {
	User    string `json:"user"`
	Persona string `json:"persona"`
	Body    string `json:"body"`
}

// chatEvent is one server-to-client frame.
type chatEvent struct {
	Type string `json:"type"` // "chunk", "done", "error"
	Body string `json:"body,omitempty"`
}

// handleChatSocket runs a chat conversation over a websocket: each incoming
// message is recorded as a prompt, generated against the stored history, and
// answered with a sequence of chunk frames followed by a done frame.
//
// The connection closing cancels r.Context(), which tears down any in-flight
// generation stream; the backend connection never outlives the socket.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("bot")

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("bot", botID).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected shutdown")

	ctx := r.Context()

	for {
		var msg chatMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		if msg.User == "" || msg.Body == "" {
			_ = wsjson.Write(ctx, conn, chatEvent{Type: "error", Body: "user and body are required"})
			continue
		}

		entry := transcript.Entry{
			ID:        uuid.NewString(),
			BotID:     botID,
			UserID:    msg.User,
			Prompt:    msg.Body,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.SavePrompt(ctx, entry); err != nil {
			log.Error().Err(err).Str("bot", botID).Msg("failed to save prompt")
			_ = wsjson.Write(ctx, conn, chatEvent{Type: "error", Body: "failed to save prompt"})
			continue
		}

		entries, err := s.store.History(ctx, botID, msg.User)
		if err != nil {
			log.Error().Err(err).Str("bot", botID).Msg("failed to load history")
			_ = wsjson.Write(ctx, conn, chatEvent{Type: "error", Body: "failed to load history"})
			continue
		}
		_, history, _ := splitHistory(entries, entry.ID)

		stream, err := s.adapter.Generate(ctx, msg.Persona, history, msg.Body)
		if err != nil {
			log.Error().Err(err).Str("bot", botID).Msg("generation failed to start")
			_ = wsjson.Write(ctx, conn, chatEvent{Type: "error", Body: "generation failed"})
			continue
		}

		assembled := s.relayStream(ctx, conn, stream, botID)
		if assembled != "" {
			// The socket going away cancels ctx; the partial still gets saved.
			saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := s.store.SaveResponse(saveCtx, entry.ID, assembled); err != nil {
				log.Error().Err(err).Str("prompt_id", entry.ID).Msg("failed to persist response")
			}
			cancel()
		}
	}
}

// relayStream forwards chunks to the socket and returns the assembled text.
// The stream is closed on every exit path.
func (s *Server) relayStream(ctx context.Context, conn *websocket.Conn, stream llm.Stream, botID string) string {
	defer stream.Close()

	var assembled []byte
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			_ = wsjson.Write(ctx, conn, chatEvent{Type: "done"})
			return string(assembled)
		}
		if err != nil {
			log.Warn().Err(err).Str("bot", botID).Msg("generation stream terminated")
			_ = wsjson.Write(ctx, conn, chatEvent{Type: "error", Body: "generation interrupted"})
			return string(assembled)
		}

		assembled = append(assembled, chunk...)
		if err := wsjson.Write(ctx, conn, chatEvent{Type: "chunk", Body: chunk}); err != nil {
			return string(assembled)
		}
	}
}
