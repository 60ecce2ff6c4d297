package host

import "fmt"

// NullConversations is a ConversationManager for hosts that keep no
// conversation store. The reply assembler then falls back to the
// plugin's own bounded history.
type NullConversations struct{}

func (NullConversations) Current(string) (*Conversation, error) { return nil, nil }

// StaticPersonas is a PersonaManager backed by a fixed map of persona
// id to system prompt. It has no per-session default persona.
type StaticPersonas map[string]string

func (p StaticPersonas) Persona(id string) (*Persona, error) {
	prompt, ok := p[id]
	if !ok {
		return nil, fmt.Errorf("unknown persona %q", id)
	}
	return &Persona{ID: id, SystemPrompt: prompt}, nil
}

func (p StaticPersonas) Default(string) (*Persona, error) { return nil, nil }
