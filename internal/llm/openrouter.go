package llm

import (
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	openRouterAppTitle       = "mcqgen"
)

// NewOpenRouterProvider creates a provider targeting the OpenRouter API.
// OpenRouter speaks the OpenAI streaming protocol, so the result is an
// OpenAIProvider whose requests carry OpenRouter's attribution header.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = baseURL
	config.HTTPClient = &http.Client{Transport: titleTransport{base: http.DefaultTransport}}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
	}, nil
}

type titleTransport struct {
	base http.RoundTripper
}

func (t titleTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("X-Title", openRouterAppTitle)
	return t.base.RoundTrip(req)
}
