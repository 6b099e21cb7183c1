package llm

// ModelCost holds per-million-token pricing for a model.
// Prices are in USD per 1 million tokens, sourced from models.dev.
type ModelCost struct {
	InputPerMTok  float64 // USD per 1M input tokens
	OutputPerMTok float64 // USD per 1M output tokens
}

// Cost calculates the total USD cost for the given token counts.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*c.InputPerMTok/1_000_000 +
		float64(outputTokens)*c.OutputPerMTok/1_000_000
}

// LookupCost returns the pricing for a model ID, or nil if unknown.
// OpenRouter-style "vendor/model" IDs are looked up without the vendor.
func LookupCost(modelID string) *ModelCost {
	if c, ok := modelCosts[modelID]; ok {
		return &c
	}
	for i := len(modelID) - 1; i >= 0; i-- {
		if modelID[i] == '/' {
			if c, ok := modelCosts[modelID[i+1:]]; ok {
				return &c
			}
			break
		}
	}
	return nil
}

// EstimateCost prices a usage record, returning ok=false for unknown models.
func EstimateCost(modelID string, u Usage) (float64, bool) {
	c := LookupCost(modelID)
	if c == nil {
		return 0, false
	}
	return c.Cost(u.InputTokens, u.OutputTokens), true
}

// modelCosts covers the chat and embedding models mcqgen is configured
// with. Embedding models only have an input price.
var modelCosts = map[string]ModelCost{
	// OpenAI chat
	"gpt-4o":            {2.5, 10},
	"gpt-4o-2024-08-06": {2.5, 10},
	"gpt-4o-2024-11-20": {2.5, 10},
	"gpt-4o-mini":       {0.15, 0.6},
	"gpt-4.1":           {2, 8},
	"gpt-4.1-mini":      {0.4, 1.6},
	"gpt-5":             {1.25, 10},
	"gpt-5-mini":        {0.25, 2},

	// OpenAI embeddings
	"text-embedding-ada-002": {0.1, 0},
	"text-embedding-3-small": {0.02, 0},
	"text-embedding-3-large": {0.13, 0},

	// Anthropic
	"claude-sonnet-4-20250514":   {3, 15},
	"claude-sonnet-4-5-20250929": {3, 15},
	"claude-haiku-4-5-20251001":  {1, 5},
	"claude-opus-4-1-20250805":   {15, 75},

	// Google (Gemini)
	"gemini-2.0-flash":   {0.1, 0.4},
	"gemini-2.5-flash":   {0.3, 2.5},
	"gemini-2.5-pro":     {1.25, 10},
	"text-embedding-004": {0, 0},
}
