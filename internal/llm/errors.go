package llm

import "fmt"

// ConfigError reports missing or unusable gateway configuration: an absent
// credential or an unrecognized provider selection. It is raised eagerly,
// before any network attempt, and is never retried.
type ConfigError struct {
	Field  string // configuration field, e.g. "llm.api_key"
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// TransportError reports a failure of an in-flight generation stream:
// network failure, timeout, a non-success status from the provider, or a
// malformed stream. Partial output already yielded is not retracted; the
// caller decides whether to keep it.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport error: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
