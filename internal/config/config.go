// Package config loads and validates the gateway configuration.
//
// DESIGN: Configuration comes from a YAML file with ${VAR:-default} env
// expansion, is validated eagerly at load time, and is read-only afterwards.
// "Missing setting" conditions are construction-time failures, not deferred
// lookup errors. The only applied defaults are the documented ones for the
// generation backend (model, token ceiling, timeout, endpoint); the
// credential stays explicit.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Documented defaults for the generation backend.
const (
	DefaultModel     = "gpt-4.1-mini"
	DefaultMaxTokens = 8000
	DefaultTimeout   = 4 * time.Minute
	DefaultBaseURL   = "https://api.openai.com/v1"
)

// Config is the root configuration for the conversation gateway.
type Config struct {
	Server     ServerConfig     `yaml:"server"`     // HTTP server settings
	LLM        LLMConfig        `yaml:"llm"`        // Generation backend
	Store      StoreConfig      `yaml:"store"`      // Transcript persistence
	Monitoring MonitoringConfig `yaml:"monitoring"` // Logging settings
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // Port to listen on
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Max time to read a request
	WriteTimeout time.Duration `yaml:"write_timeout"` // Max time to write a response
}

// LLMConfig selects and parameterizes the generation backend.
// Exactly one backend is active per process.
type LLMConfig struct {
	Provider  string        `yaml:"provider"`   // "stub", "openai", or "bedrock"
	Model     string        `yaml:"model"`      // Remote model identifier
	APIKey    string        `yaml:"api_key"`    // Credential, usually ${OPENAI_KEY}
	BaseURL   string        `yaml:"base_url"`   // Chat-completions endpoint base
	MaxTokens int           `yaml:"max_tokens"` // Token ceiling for one request
	Timeout   time.Duration `yaml:"timeout"`    // Total per-request timeout
	AWSRegion string        `yaml:"aws_region"` // Bedrock only
}

// StoreConfig contains transcript store settings.
type StoreConfig struct {
	Type string        `yaml:"type"` // "sqlite" or "memory"
	Path string        `yaml:"path"` // SQLite database file
	TTL  time.Duration `yaml:"ttl"`  // Memory store entry lifetime
}

// MonitoringConfig contains logging settings.
type MonitoringConfig struct {
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // json, console
	LogOutput string `yaml:"log_output"` // stdout, stderr, or file path
}

// expandEnvWithDefaults expands environment variables with support for
// default values. Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes, expands
// environment variables, applies the documented defaults, and validates.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills the documented backend defaults and serviceable
// server/store fallbacks for fields left unset.
func (c *Config) applyDefaults() {
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = DefaultMaxTokens
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = DefaultTimeout
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = DefaultBaseURL
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// Must outlast the generation timeout: responses stream for up to
		// the full llm.timeout before the body completes.
		c.Server.WriteTimeout = c.LLM.Timeout + time.Minute
	}
	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}
	if c.Store.TTL == 0 {
		c.Store.TTL = 24 * time.Hour
	}
	if c.Monitoring.LogLevel == "" {
		c.Monitoring.LogLevel = "info"
	}
	if c.Monitoring.LogFormat == "" {
		c.Monitoring.LogFormat = "console"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("invalid llm.max_tokens: %d (must be positive)", c.LLM.MaxTokens)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("invalid llm.timeout: %s", c.LLM.Timeout)
	}

	switch c.Store.Type {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required when store.type is sqlite")
		}
	default:
		return fmt.Errorf("invalid store.type: %q (must be sqlite or memory)", c.Store.Type)
	}

	return nil
}
