// Package server exposes the conversation gateway over HTTP.
//
// DESIGN: A thin caller of the gateway core, shaped after the original
// course-chatbot API: fetch chat history, record a prompt, then stream the
// generated response as a plain-text body, flushed chunk by chunk as the
// backend yields. The assembled response is persisted only after the stream
// has fully drained.
//
// Authentication and bot ownership live in front of this server; it trusts
// its inputs the same way the core does.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/ikollipara/concordia-ai/internal/adapters"
	"github.com/ikollipara/concordia-ai/internal/config"
	"github.com/ikollipara/concordia-ai/internal/llm"
	"github.com/ikollipara/concordia-ai/internal/monitoring"
	"github.com/ikollipara/concordia-ai/internal/transcript"
)

// maxRequestBody caps incoming JSON bodies (1MB).
const maxRequestBody = 1 << 20

// Server serves the chat API.
type Server struct {
	cfg     *config.Config
	adapter adapters.Adapter
	store   transcript.Store
	httpSrv *http.Server
}

// New creates the server around an already-resolved adapter and store.
func New(cfg *config.Config, adapter adapters.Adapter, store transcript.Store) *Server {
	s := &Server{
		cfg:     cfg,
		adapter: adapter,
		store:   store,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/bots/{bot}/history", s.handleHistory)
	mux.HandleFunc("POST /api/bots/{bot}/prompts", s.handleCreatePrompt)
	mux.HandleFunc("POST /api/bots/{bot}/prompts/{prompt}/response", s.handleGenerateResponse)
	mux.HandleFunc("GET /api/bots/{bot}/chat", s.handleChatSocket)

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.withRequestID(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	log.Info().
		Str("addr", s.httpSrv.Addr).
		Str("adapter", s.adapter.Name()).
		Msg("chat server listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the transcript store.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// withRequestID tags every request with a UUID and logs its outcome.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ctx := monitoring.WithRequestIDContext(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))

		log.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

// handleHistory returns the prompt/response history for a bot/user pair,
// oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("bot")
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}

	entries, err := s.store.History(r.Context(), botID, userID)
	if err != nil {
		logRequest(r).Error().Err(err).Str("bot", botID).Msg("failed to load history")
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if entries == nil {
		entries = []transcript.Entry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

// handleCreatePrompt records a new prompt with an empty response.
func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("bot")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	userID := gjson.GetBytes(body, "user").String()
	promptBody := gjson.GetBytes(body, "body").String()
	if userID == "" || promptBody == "" {
		writeError(w, http.StatusBadRequest, "user and body are required")
		return
	}

	e := transcript.Entry{
		ID:        uuid.NewString(),
		BotID:     botID,
		UserID:    userID,
		Prompt:    promptBody,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SavePrompt(r.Context(), e); err != nil {
		logRequest(r).Error().Err(err).Str("bot", botID).Msg("failed to save prompt")
		writeError(w, http.StatusInternalServerError, "failed to save prompt")
		return
	}

	writeJSON(w, http.StatusCreated, e)
}

// handleGenerateResponse streams the generated reply for a stored prompt as
// a plain-text body, then persists the assembled text.
func (s *Server) handleGenerateResponse(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("bot")
	promptID := r.PathValue("prompt")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	userID := gjson.GetBytes(body, "user").String()
	persona := gjson.GetBytes(body, "persona").String()
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	entries, err := s.store.History(r.Context(), botID, userID)
	if err != nil {
		logRequest(r).Error().Err(err).Str("bot", botID).Msg("failed to load history")
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	prompt, history, ok := splitHistory(entries, promptID)
	if !ok {
		writeError(w, http.StatusNotFound, "prompt not found")
		return
	}

	stream, err := s.adapter.Generate(r.Context(), persona, history, prompt.Prompt)
	if err != nil {
		var cfgErr *llm.ConfigError
		status := http.StatusBadGateway
		if errors.As(err, &cfgErr) {
			status = http.StatusInternalServerError
		}
		logRequest(r).Error().Err(err).Str("bot", botID).Msg("generation failed to start")
		writeError(w, status, "generation failed")
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	assembled := streamTo(w, flusher, stream, botID)

	// Partial output is not retracted; persist whatever reached the client.
	// The request context is already canceled when the client disconnected
	// mid-stream, so the write gets a detached context.
	if assembled != "" {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
		defer cancel()
		if err := s.store.SaveResponse(saveCtx, promptID, assembled); err != nil {
			logRequest(r).Error().Err(err).Str("prompt_id", promptID).Msg("failed to persist response")
		}
	}
}

// streamTo copies chunks to the client as they arrive, flushing each one,
// and returns the assembled text.
func streamTo(w io.Writer, flusher http.Flusher, stream llm.Stream, botID string) string {
	var assembled []byte
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return string(assembled)
		}
		if err != nil {
			log.Warn().Err(err).Str("bot", botID).Msg("generation stream terminated")
			return string(assembled)
		}

		assembled = append(assembled, chunk...)
		if _, err := io.WriteString(w, chunk); err != nil {
			// Client went away; the deferred Close releases the backend.
			log.Debug().Err(err).Str("bot", botID).Msg("client disconnected mid-stream")
			return string(assembled)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// splitHistory finds the target prompt and returns the completed turns that
// precede it as gateway messages, oldest first.
func splitHistory(entries []transcript.Entry, promptID string) (transcript.Entry, []llm.Message, bool) {
	var (
		prompt  transcript.Entry
		found   bool
		history []llm.Message
	)
	for _, e := range entries {
		if e.ID == promptID {
			prompt = e
			found = true
			continue
		}
		// Turns after the target prompt are not context for it.
		if found || e.Response == "" {
			continue
		}
		history = append(history, llm.User(e.Prompt), llm.Assistant(e.Response))
	}
	return prompt, history, found
}

// logRequest returns a logger carrying the request's ID for correlation with
// the middleware's access log line.
func logRequest(r *http.Request) *zerolog.Logger {
	logger := log.With().Str("request_id", monitoring.RequestIDFromContext(r.Context())).Logger()
	return &logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
