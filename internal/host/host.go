// Package host defines the narrow interfaces this plugin consumes from
// the chat-bot host it runs inside: message delivery, provider lookup,
// and the conversation and persona registries. The scheduler core only
// ever talks to these interfaces, never to a transport directly.
package host

import "github.com/chris/nudge/internal/llm"

// Sender delivers a text message to a session.
type Sender interface {
	SendText(umo, text string) error
}

// Conversation is the host's persisted conversation object. History and
// Messages are optional and may carry any of the shapes the history
// normalizer accepts (JSON-encoded string, item slice, single map).
type Conversation struct {
	History   any
	Messages  any
	PersonaID string
}

// ConversationManager resolves the current conversation for a session.
// A nil conversation (with nil error) means the host has none.
type ConversationManager interface {
	Current(umo string) (*Conversation, error)
}

// Persona is a named system-prompt bundle resolved by the host.
type Persona struct {
	ID           string
	SystemPrompt string
}

// PersonaManager looks up personas by id, plus the host's default
// persona for a session as a secondary fallback.
type PersonaManager interface {
	Persona(id string) (*Persona, error)
	Default(umo string) (*Persona, error)
}

// ProviderRegistry resolves language-model clients. Both methods return
// nil when nothing matches.
type ProviderRegistry interface {
	ByID(id string) llm.Client
	Using(umo string) llm.Client
}
