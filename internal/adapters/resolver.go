// Resolver maps the configured provider selection to an adapter.
//
// DESIGN: A closed switch over the built-in providers, plus a registry for
// externally registered factories. An unrecognized selection is a hard
// configuration error, never a silent fallback: guessing a backend would
// hide a typo until the first user hits it.
package adapters

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ikollipara/concordia-ai/internal/config"
	"github.com/ikollipara/concordia-ai/internal/llm"
	"github.com/ikollipara/concordia-ai/internal/tokens"
)

// Factory builds an adapter from the loaded configuration.
type Factory func(cfg *config.Config) (Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a provider factory under the given name. Built-in names
// cannot be overridden; the switch in Resolve wins.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = factory
}

// Resolve returns the adapter selected by cfg.LLM.Provider.
//
// Credential checks stay lazy: a resolved "openai" adapter with no API key
// fails on its first Generate call, not here.
func Resolve(cfg *config.Config) (Adapter, error) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "stub":
		return NewStubAdapter(), nil

	case "openai":
		counter, err := tokens.NewCounter()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize token counter: %w", err)
		}
		return NewOpenAIAdapter(OpenAIOptions{
			APIKey:    cfg.LLM.APIKey,
			Model:     cfg.LLM.Model,
			BaseURL:   cfg.LLM.BaseURL,
			MaxTokens: cfg.LLM.MaxTokens,
			Timeout:   cfg.LLM.Timeout,
			Counter:   counter,
		}), nil

	case "bedrock":
		counter, err := tokens.NewCounter()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize token counter: %w", err)
		}
		return NewBedrockAdapter(BedrockOptions{
			Region:    cfg.LLM.AWSRegion,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
			Timeout:   cfg.LLM.Timeout,
			Counter:   counter,
		}), nil
	}

	registryMu.RLock()
	factory, ok := registry[strings.ToLower(cfg.LLM.Provider)]
	registryMu.RUnlock()
	if ok {
		return factory(cfg)
	}

	return nil, &llm.ConfigError{
		Field:  "llm.provider",
		Reason: fmt.Sprintf("unrecognized provider %q", cfg.LLM.Provider),
	}
}
