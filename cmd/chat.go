package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/ikollipara/concordia-ai/internal/adapters"
	"github.com/ikollipara/concordia-ai/internal/llm"
)

// runChat is a terminal REPL against the configured backend. History lives
// in memory for the session; each reply streams to stdout chunk by chunk.
func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	persona := fs.String("persona", "You are a helpful course assistant.", "system persona for the bot")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath, *debug)

	adapter, err := adapters.Resolve(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve generation backend")
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Printf("Chatting with %s (%s). Ctrl-D to quit.\n", adapter.Name(), cfg.LLM.Model)
	}

	var history []llm.Message
	sc := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print("> ")
		}
		if !sc.Scan() {
			break
		}
		prompt := sc.Text()
		if prompt == "" {
			continue
		}

		reply, err := streamReply(context.Background(), adapter, *persona, history, prompt)
		if err != nil {
			log.Error().Err(err).Msg("generation failed")
			continue
		}

		history = append(history, llm.User(prompt), llm.Assistant(reply))
	}

	if err := sc.Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to read input")
	}
}

// streamReply prints chunks as they arrive and returns the assembled reply.
func streamReply(ctx context.Context, adapter adapters.Adapter, persona string, history []llm.Message, prompt string) (string, error) {
	stream, err := adapter.Generate(ctx, persona, history, prompt)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var assembled []byte
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			fmt.Println()
			return string(assembled), nil
		}
		if err != nil {
			fmt.Println()
			return string(assembled), err
		}
		assembled = append(assembled, chunk...)
		fmt.Print(chunk)
	}
}
