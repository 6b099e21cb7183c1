package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// geminiModels maps friendly names to Gemini model IDs.
var geminiModels = map[string]string{
	"gemini-flash": "gemini-2.0-flash",
	"gemini-pro":   "gemini-2.5-pro",
}

const defaultGeminiEmbeddingModel = "text-embedding-004"

// GeminiProvider implements Provider using the Google Gemini SDK.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	client, err := newGeminiClient(ctx, cfg, "")
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{
		client: client,
		model:  resolveModel(cfg.Model, geminiModels),
	}, nil
}

// newGeminiClient builds a Gemini API client. baseURL is only set by tests.
func newGeminiClient(ctx context.Context, cfg GeminiConfig, baseURL string) (*genai.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return client, nil
}

func (p *GeminiProvider) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Response, error) {
	config := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}

	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	var (
		content strings.Builder
		usage   Usage
		reason  = "end"
	)
	for result, err := range p.client.Models.GenerateContentStream(ctx, p.model, buildGeminiContents(req.Messages), config) {
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, mapGeminiError(err)
		}
		if result.UsageMetadata != nil {
			usage = Usage{
				InputTokens:  int(result.UsageMetadata.PromptTokenCount),
				OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
				TotalTokens:  int(result.UsageMetadata.TotalTokenCount),
			}
		}
		if r := mapGeminiStopReason(result); r != "" {
			reason = r
		}
		text := result.Text()
		if text == "" {
			continue
		}
		content.WriteString(text)
		if err := onChunk(text); err != nil {
			return nil, err
		}
	}

	return finish(content.String(), p.model, reason, usage)
}

func (p *GeminiProvider) ModelID() string {
	return p.model
}

func buildGeminiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, len(msgs))
	for i, m := range msgs {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		out[i] = &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		}
	}
	return out
}

// mapGeminiStopReason returns "" while the stream has not reported a
// finish reason yet.
func mapGeminiStopReason(result *genai.GenerateContentResponse) string {
	if len(result.Candidates) > 0 {
		switch result.Candidates[0].FinishReason {
		case "":
			return ""
		case "MAX_TOKENS":
			return "max_tokens"
		default:
			return "end"
		}
	}
	return ""
}

func mapGeminiError(err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr):
		apiErr = *apiErrPtr
	default:
		return &ErrProviderUnavailable{Err: err}
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return &ErrRateLimit{Err: err}
	case apiErr.Code >= 500:
		return &ErrProviderUnavailable{Err: err}
	case apiErr.Code >= 400:
		return fmt.Errorf("gemini request rejected: %w", err)
	}
	return &ErrProviderUnavailable{Err: err}
}

// GeminiEmbedder implements Embedder with the Gemini embedding models.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates an embedder sharing the chat provider's key.
func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig, model string) (*GeminiEmbedder, error) {
	return newGeminiEmbedder(ctx, cfg, model, "")
}

func newGeminiEmbedder(ctx context.Context, cfg GeminiConfig, model, baseURL string) (*GeminiEmbedder, error) {
	client, err := newGeminiClient(ctx, cfg, baseURL)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = defaultGeminiEmbeddingModel
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: t}}}
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, mapGeminiError(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

func (e *GeminiEmbedder) ModelID() string {
	return e.model
}
