package llm

import (
	"context"
)

// Provider is the core abstraction for LLM interaction. Text is produced
// incrementally: each fragment is passed to onChunk in order, and the
// assembled text is returned in the Response once the stream ends.
type Provider interface {
	// Stream sends a prompt to the LLM and delivers the reply as it is
	// generated. If onChunk returns an error the stream is abandoned and
	// that error is returned. Cancelling ctx stops the stream between
	// fragments.
	Stream(ctx context.Context, req Request, onChunk func(string) error) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Embedder turns text into vectors for similarity search.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// ModelID identifies the embedding model. Stored with the index so a
	// model change can be detected.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// System is the system prompt. Sets the LLM's role and constraints.
	System string

	// Messages is the conversation history. Generation turns carry a
	// single user message.
	Messages []Message

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0.
	Temperature float64
}

// UserRequest is a shorthand for a single-turn request.
func UserRequest(system, prompt string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Response holds the LLM's output once the stream has finished.
type Response struct {
	// Content is the full generated text, the concatenation of every
	// fragment passed to onChunk.
	Content string

	// Usage reports token consumption for this request. Zero when the
	// provider does not report usage for streamed calls.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason indicates why generation stopped.
	// Normalized to: "end", "max_tokens", "error"
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// finish builds the final Response for a completed stream and applies the
// shared end-of-stream checks.
func finish(content, model, stopReason string, usage Usage) (*Response, error) {
	resp := &Response{
		Content:    content,
		Usage:      usage,
		Model:      model,
		StopReason: stopReason,
	}
	if stopReason == "max_tokens" {
		return resp, &ErrMaxTokensExceeded{Content: content}
	}
	if content == "" {
		return nil, &ErrEmptyResponse{Model: model}
	}
	return resp, nil
}
