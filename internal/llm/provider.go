package llm

import (
	"fmt"

	"github.com/chris/nudge/config"
)

// FromConfig builds the chat client selected by LLM_PROVIDER. Ollama is
// spoken to through its OpenAI-compatible endpoint, so it shares the
// OpenAI client with a different base URL and a placeholder key.
func FromConfig(cfg *config.Config) (Client, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		return NewAnthropicClient(cfg.AnthropicKey, cfg.AnthropicToken, cfg.LLMModel), nil
	case "openai":
		return NewOpenAIClient(cfg.OpenAIKey, cfg.LLMModel, ""), nil
	case "ollama":
		model := cfg.LLMModel
		if model == "" {
			model = "llama3.1"
		}
		return NewOpenAIClient("ollama", model, cfg.OllamaBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}
