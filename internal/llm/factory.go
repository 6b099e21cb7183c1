package llm

import (
	"context"
	"fmt"

	"github.com/medprep/mcqgen/internal/logger"
	"github.com/medprep/mcqgen/internal/store"
)

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with retry and logging middleware.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, log *logger.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// Wrap with middleware: caller → retry → logging → base
	logged := WithLogging(base, cfg.Provider, eventRepo, log)
	retried := WithRetry(logged, cfg.Retry)

	return retried, nil
}

// NewProviderFromEnv resolves configuration from the environment and
// builds a wrapped Provider.
func NewProviderFromEnv(ctx context.Context, eventRepo store.EventRepo, log *logger.Logger) (Provider, Config, error) {
	cfg, err := ResolveConfig()
	if err != nil {
		return nil, Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, Config{}, err
	}
	p, err := NewProvider(ctx, cfg, eventRepo, log)
	if err != nil {
		return nil, Config{}, err
	}
	return p, cfg, nil
}

// NewEmbedder creates the Embedder selected by cfg.Embedding. An empty
// provider follows the chat provider when it can embed, and falls back to
// the local hashing embedder otherwise.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	provider := cfg.Embedding.Provider
	if provider == "" {
		switch cfg.Provider {
		case "openai", "gemini":
			provider = cfg.Provider
		default:
			provider = "hash"
		}
	}

	switch provider {
	case "openai":
		return NewOpenAIEmbedder(cfg.OpenAI, cfg.Embedding.Model)
	case "gemini":
		return NewGeminiEmbedder(ctx, cfg.Gemini, cfg.Embedding.Model)
	case "hash":
		return NewHashEmbedder(defaultHashDims), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", provider)
	}
}
