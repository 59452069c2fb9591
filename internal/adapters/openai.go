package adapters

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/ikollipara/concordia-ai/internal/history"
	"github.com/ikollipara/concordia-ai/internal/llm"
	"github.com/ikollipara/concordia-ai/internal/tokens"
)

const (
	// maxErrorBodyLen limits error body in error messages to avoid log bloat.
	maxErrorBodyLen = 500

	// maxLineSize caps a single SSE line; a delta should never come close.
	maxLineSize = 1024 * 1024
)

// OpenAIOptions parameterizes a remote chat-completions backend.
type OpenAIOptions struct {
	APIKey    string        // bearer credential; read lazily, checked at Generate
	Model     string        // model identifier to request
	BaseURL   string        // endpoint base, e.g. https://api.openai.com/v1
	MaxTokens int           // token ceiling for the request's message set
	Timeout   time.Duration // total request timeout, covering the whole stream

	// Temperature, when non-nil, is injected into the request. Omitted by
	// default: o-series models reject the field.
	Temperature *float64

	// HTTPClient overrides the default client (testing, signing transports).
	// Timeouts come from the request context, not the client.
	HTTPClient *http.Client

	// Counter estimates token costs for history truncation.
	Counter *tokens.Counter
}

// OpenAIAdapter streams replies from an OpenAI-compatible chat-completions
// endpoint. One outbound connection per Generate call; no caching, no retry.
type OpenAIAdapter struct {
	name        string
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	timeout     time.Duration
	temperature *float64
	client      *http.Client
	counter     *tokens.Counter

	// requireKey is false for backends whose transport carries the
	// credential itself (SigV4 signing for Bedrock).
	requireKey bool
}

// NewOpenAIAdapter creates the remote backend. The API key is deliberately
// not validated here; Generate checks it before touching the network.
func NewOpenAIAdapter(opts OpenAIOptions) *OpenAIAdapter {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{} // timeout via context, not client
	}
	return &OpenAIAdapter{
		name:        "openai",
		apiKey:      opts.APIKey,
		model:       opts.Model,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		maxTokens:   opts.MaxTokens,
		timeout:     opts.Timeout,
		temperature: opts.Temperature,
		client:      client,
		counter:     opts.Counter,
		requireKey:  true,
	}
}

// Name returns the adapter identifier.
func (a *OpenAIAdapter) Name() string { return a.name }

// chatRequest is the streaming chat-completions request body.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
}

// Generate opens one streaming chat-completions request with
// [system persona] ++ truncated history ++ [user prompt].
func (a *OpenAIAdapter) Generate(ctx context.Context, persona string, hist []llm.Message, prompt string) (llm.Stream, error) {
	if a.requireKey && a.apiKey == "" {
		return nil, &llm.ConfigError{Field: "llm.api_key", Reason: "missing API key"}
	}

	trimmed := history.Truncate(a.counter, persona, hist, prompt, a.maxTokens)
	if dropped := len(hist) - len(trimmed); dropped > 0 {
		log.Debug().
			Str("adapter", a.name).
			Int("dropped", dropped).
			Int("kept", len(trimmed)).
			Msg("history truncated to fit token ceiling")
	}

	messages := make([]llm.Message, 0, len(trimmed)+2)
	messages = append(messages, llm.System(persona))
	messages = append(messages, trimmed...)
	messages = append(messages, llm.User(prompt))

	body, err := json.Marshal(chatRequest{Model: a.model, Messages: messages, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}
	if a.temperature != nil {
		body, err = sjson.SetBytes(body, "temperature", *a.temperature)
		if err != nil {
			return nil, fmt.Errorf("failed to set temperature: %w", err)
		}
	}

	// The timeout spans the entire stream, not just the dial. Cancel is
	// owned by the stream and fires on Close, error, or exhaustion.
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		cancel()
		return nil, &llm.TransportError{Provider: a.name, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		resp.Body.Close()
		cancel()
		return nil, &llm.TransportError{
			Provider: a.name,
			Err:      fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody))),
		}
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &sseStream{
		provider: a.name,
		body:     resp.Body,
		sc:       sc,
		cancel:   cancel,
	}, nil
}

// sseStream lazily parses a server-sent-events chat-completions stream.
//
// DESIGN: Demand-driven; bytes are read from the connection only when the
// consumer calls Recv. Chunks are yielded strictly in receipt order. Units
// with an empty or absent delta are skipped, never yielded.
type sseStream struct {
	provider string
	body     io.ReadCloser
	sc       *bufio.Scanner
	cancel   context.CancelFunc
	once     sync.Once
	done     bool
}

func (s *sseStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for s.sc.Scan() {
		data, ok := strings.CutPrefix(s.sc.Text(), "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			s.finish()
			return "", io.EOF
		}

		delta := gjson.Get(data, "choices.0.delta.content").String()
		if delta == "" {
			continue
		}
		return delta, nil
	}

	err := s.sc.Err()
	s.finish()
	if err != nil {
		return "", &llm.TransportError{Provider: s.provider, Err: err}
	}
	return "", io.EOF
}

// finish releases the connection once the sequence is over.
func (s *sseStream) finish() {
	s.done = true
	s.once.Do(func() {
		s.cancel()
		s.body.Close()
	})
}

// Close releases the connection. Safe to call at any point, any number of
// times; an abandoned stream's connection closes here, not at GC time.
func (s *sseStream) Close() error {
	s.finish()
	return nil
}

var _ Adapter = (*OpenAIAdapter)(nil)
