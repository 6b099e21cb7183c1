package llm

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects which LLM provider to use.
	// Values: "openai", "anthropic", "gemini", "openrouter", "mock"
	Provider string

	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Retry      RetryConfig
	Embedding  EmbeddingConfig

	// Temperature applied to generation requests. Default: 0.3.
	Temperature float64

	// MaxTokens caps a single generation. Default: 8192.
	MaxTokens int

	// Timeout is the maximum duration for a single streamed generation
	// (including retries). Default: 5m.
	Timeout time.Duration
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string // Default: "claude-sonnet"
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string // Default: "gpt-4o"
	BaseURL string // Optional. Override for proxies or compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string
	Model  string // Default: "gemini-flash"
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string
	Model   string // Default: "openai/gpt-4o"
	BaseURL string // Default: "https://openrouter.ai/api/v1"
}

// EmbeddingConfig selects the embedder used by the retrieval index.
type EmbeddingConfig struct {
	// Provider is "openai", "gemini" or "hash". Empty follows the chat
	// provider where it offers embeddings, else "hash".
	Provider string
	Model    string
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: "openai",
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o",
		},
		Gemini: GeminiConfig{
			Model: "gemini-flash",
		},
		OpenRouter: OpenRouterConfig{
			Model: "openai/gpt-4o",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Temperature: 0.3,
		MaxTokens:   8192,
		Timeout:     5 * time.Minute,
	}
}

// ConfigFromEnv builds a Config from MCQGEN_* environment variables,
// falling back to defaults for unset values.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("MCQGEN_LLM_PROVIDER", &cfg.Provider)

	setString("MCQGEN_ANTHROPIC_API_KEY", &cfg.Anthropic.APIKey)
	setString("MCQGEN_ANTHROPIC_MODEL", &cfg.Anthropic.Model)

	setString("MCQGEN_OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	setString("MCQGEN_OPENAI_MODEL", &cfg.OpenAI.Model)
	setString("MCQGEN_OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)

	setString("MCQGEN_GEMINI_API_KEY", &cfg.Gemini.APIKey)
	setString("MCQGEN_GEMINI_MODEL", &cfg.Gemini.Model)

	setString("MCQGEN_OPENROUTER_API_KEY", &cfg.OpenRouter.APIKey)
	setString("MCQGEN_OPENROUTER_MODEL", &cfg.OpenRouter.Model)

	setString("MCQGEN_EMBED_PROVIDER", &cfg.Embedding.Provider)
	setString("MCQGEN_EMBED_MODEL", &cfg.Embedding.Model)

	if v := os.Getenv("MCQGEN_LLM_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MCQGEN_LLM_TEMPERATURE: %w", err)
		}
		cfg.Temperature = t
	}
	if v := os.Getenv("MCQGEN_LLM_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MCQGEN_LLM_MAX_TOKENS: %w", err)
		}
		cfg.MaxTokens = n
	}
	if v := os.Getenv("MCQGEN_LLM_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MCQGEN_LLM_MAX_ATTEMPTS: %w", err)
		}
		cfg.Retry.MaxAttempts = n
	}
	if v := os.Getenv("MCQGEN_LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MCQGEN_LLM_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}

	return cfg, nil
}

// DiscoverConfig probes standard API key env vars in priority order
// (OpenAI → Gemini → Anthropic → OpenRouter) and returns a Config for the
// first provider whose key is found. Returns (Config{}, false) if none found.
func DiscoverConfig() (Config, bool) {
	cfg := DefaultConfig()

	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		cfg.Provider = "openai"
		cfg.OpenAI.APIKey = k
		cfg.OpenAI.BaseURL = os.Getenv("OPENAI_BASE_URL")
		return cfg, true
	}
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		cfg.Provider = "gemini"
		cfg.Gemini.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		cfg.Provider = "anthropic"
		cfg.Anthropic.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENROUTER_API_KEY"); k != "" {
		cfg.Provider = "openrouter"
		cfg.OpenRouter.APIKey = k
		return cfg, true
	}

	return Config{}, false
}

// ResolveConfig uses ConfigFromEnv when MCQGEN_LLM_PROVIDER is set and
// DiscoverConfig otherwise.
func ResolveConfig() (Config, error) {
	if os.Getenv("MCQGEN_LLM_PROVIDER") != "" {
		return ConfigFromEnv()
	}
	if cfg, ok := DiscoverConfig(); ok {
		return cfg, nil
	}
	return Config{}, fmt.Errorf("no LLM provider configured: set MCQGEN_LLM_PROVIDER or OPENAI_API_KEY")
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("MCQGEN_ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("MCQGEN_OPENAI_API_KEY is required for the openai provider")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("MCQGEN_GEMINI_API_KEY is required for the gemini provider")
		}
	case "openrouter":
		if c.OpenRouter.APIKey == "" {
			return fmt.Errorf("MCQGEN_OPENROUTER_API_KEY is required for the openrouter provider")
		}
	case "mock":
		// No API key needed.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %g", c.Temperature)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	return nil
}
