package llm

import "context"

type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

type Response struct {
	Content string
}

// Client is a chat-completion provider. Chat sends the prompt as the
// final user turn after the supplied context messages.
type Client interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message, prompt string) (*Response, error)
}
