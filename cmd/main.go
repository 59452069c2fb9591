// Package main is the entry point for the Concordia AI conversation gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/ikollipara/concordia-ai/internal/adapters"
	"github.com/ikollipara/concordia-ai/internal/config"
	"github.com/ikollipara/concordia-ai/internal/monitoring"
	"github.com/ikollipara/concordia-ai/internal/server"
	"github.com/ikollipara/concordia-ai/internal/transcript"
)

// loadEnvFiles loads .env from standard locations.
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	configEnv := filepath.Join(homeDir, ".config", "concordia-ai", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Local .env can override.
	_ = godotenv.Load()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve", "start":
			runServe(os.Args[2:])
			return
		case "chat":
			runChat(os.Args[2:])
			return
		case "help", "-h", "--help":
			printHelp()
			return
		}
	}

	printHelp()
	os.Exit(2)
}

// loadConfig resolves and loads the gateway configuration.
func loadConfig(path string, debug bool) *config.Config {
	loadEnvFiles()

	if path == "" {
		path = "configs/gateway.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Monitoring.LogLevel
	if debug {
		level = "debug"
	}
	monitoring.Global(monitoring.LoggerConfig{
		Level:  level,
		Format: cfg.Monitoring.LogFormat,
		Output: cfg.Monitoring.LogOutput,
	})

	return cfg
}

// openStore builds the transcript store selected by configuration.
func openStore(cfg *config.Config) transcript.Store {
	switch cfg.Store.Type {
	case "sqlite":
		st, err := transcript.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("failed to open transcript store")
		}
		return st
	default:
		return transcript.NewMemoryStore(cfg.Store.TTL)
	}
}

// runServe starts the chat API server.
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg := loadConfig(*configPath, *debug)

	adapter, err := adapters.Resolve(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve generation backend")
	}

	log.Info().
		Str("provider", adapter.Name()).
		Str("model", cfg.LLM.Model).
		Int("max_tokens", cfg.LLM.MaxTokens).
		Msg("configuration loaded")

	srv := server.New(cfg, adapter, openStore(cfg))

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}

	log.Info().Msg("conversation gateway stopped")
}

// printHelp prints usage information.
func printHelp() {
	fmt.Println("Concordia AI - course chatbot conversation gateway")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  concordia-ai [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve        Start the chat API server")
	fmt.Println("  chat         Chat with the configured backend from the terminal")
	fmt.Println("  help         Show this help message")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -config FILE     Gateway config (default: configs/gateway.yaml)")
	fmt.Println("  -debug           Enable debug logging")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  concordia-ai serve -config configs/gateway.yaml")
	fmt.Println("  concordia-ai chat -persona \"You are a course assistant.\"")
}
