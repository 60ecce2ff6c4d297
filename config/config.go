package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the static process configuration read from the environment.
// Runtime-tunable behavior lives in Settings instead.
type Config struct {
	LLMProvider      string // anthropic, openai, ollama
	AnthropicKey     string // API key (X-Api-Key header)
	AnthropicToken   string // OAuth token (Authorization: Bearer header)
	OpenAIKey        string
	LLMModel         string
	OllamaBaseURL    string
	DiscordToken     string
	DataDir          string
	MaxContextTokens int
}

func Load() *Config {
	_ = godotenv.Load() // ignore error if no .env

	return &Config{
		LLMProvider:      envOr("LLM_PROVIDER", "anthropic"),
		AnthropicKey:     os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicToken:   os.Getenv("ANTHROPIC_AUTH_TOKEN"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		LLMModel:         os.Getenv("LLM_MODEL"),
		OllamaBaseURL:    envOr("OLLAMA_BASE_URL", "http://localhost:11434/v1"),
		DiscordToken:     os.Getenv("DISCORD_BOT_TOKEN"),
		DataDir:          envOr("NUDGE_DATA_DIR", "./data"),
		MaxContextTokens: envInt("MAX_CONTEXT_TOKENS", 80000),
	}
}

// ConfigDir is where the installed service keeps its environment file.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nudge")
}

// ConfigFile is the env file the installed service loads at startup.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
