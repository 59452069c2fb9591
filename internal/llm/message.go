// Package llm defines the shared conversation types for the gateway.
//
// DESIGN: These types are used by adapters/, tokens/, history/ and server/.
// Defined here ONCE to avoid duplication and circular imports.
//
// A Message is immutable once constructed; packages that reshape a
// conversation (truncation, persistence) copy slices rather than mutate
// the caller's history.
package llm

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn. Order within a slice is
// chronological, oldest first.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System builds a system-role message carrying the bot persona.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user-role message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant-role message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
