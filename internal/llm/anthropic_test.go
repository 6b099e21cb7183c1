package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
)

func newTestAnthropicProvider(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewAnthropicProvider(
		AnthropicConfig{APIKey: "test-key", Model: "claude-sonnet"},
		option.WithBaseURL(server.URL),
		option.WithMaxRetries(0),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func writeAnthropicSSE(w http.ResponseWriter, stopReason string, texts ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	send := func(name string, data map[string]any) {
		b, _ := json.Marshal(data)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, b)
	}
	send("message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id": "msg_test", "type": "message", "role": "assistant", "content": []any{},
			"model": "claude-sonnet-4-20250514", "stop_reason": nil, "stop_sequence": nil,
			"usage": map[string]any{"input_tokens": 50, "output_tokens": 1},
		},
	})
	send("content_block_start", map[string]any{
		"type": "content_block_start", "index": 0,
		"content_block": map[string]any{"type": "text", "text": ""},
	})
	for _, t := range texts {
		send("content_block_delta", map[string]any{
			"type": "content_block_delta", "index": 0,
			"delta": map[string]any{"type": "text_delta", "text": t},
		})
	}
	send("content_block_stop", map[string]any{"type": "content_block_stop", "index": 0})
	send("message_delta", map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": stopReason, "stop_sequence": nil},
		"usage": map[string]any{"output_tokens": 30},
	})
	send("message_stop", map[string]any{"type": "message_stop"})
}

func TestAnthropicProvider_StreamHappyPath(t *testing.T) {
	var body map[string]any
	p := newTestAnthropicProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeAnthropicSSE(w, "end_turn", "Q1. A 60-year-old ", "man presents with chest pain.")
	})

	var chunks []string
	resp, err := p.Stream(context.Background(), Request{
		System:      "You are an exam writer.",
		Messages:    []Message{{Role: RoleUser, Content: "Write one MCQ."}},
		Temperature: 0.3,
	}, func(s string) error {
		chunks = append(chunks, s)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body["stream"] != true {
		t.Fatalf("expected stream=true, got %v", body["stream"])
	}
	if body["max_tokens"] != float64(anthropicDefaultMaxTokens) {
		t.Fatalf("expected default max_tokens, got %v", body["max_tokens"])
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %q", chunks)
	}
	if resp.Content != "Q1. A 60-year-old man presents with chest pain." {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Usage.InputTokens != 50 || resp.Usage.OutputTokens != 30 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	if resp.StopReason != "end" {
		t.Fatalf("expected stop reason 'end', got %q", resp.StopReason)
	}
}

func TestAnthropicProvider_MaxTokens(t *testing.T) {
	p := newTestAnthropicProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeAnthropicSSE(w, "max_tokens", "Q1. cut")
	})

	resp, err := p.Stream(context.Background(), UserRequest("", "x"), func(string) error { return nil })
	var mt *ErrMaxTokensExceeded
	if !errors.As(err, &mt) {
		t.Fatalf("expected ErrMaxTokensExceeded, got %T (%v)", err, err)
	}
	if resp == nil || resp.Content != "Q1. cut" {
		t.Fatalf("expected partial response, got %+v", resp)
	}
}

func TestAnthropicProvider_RateLimit(t *testing.T) {
	p := newTestAnthropicProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "rate_limit_error", "message": "Rate limited"},
		})
	})

	_, err := p.Stream(context.Background(), UserRequest("", "x"), func(string) error { return nil })
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got: %T (%v)", err, err)
	}
}

func TestAnthropicProvider_ServerError(t *testing.T) {
	p := newTestAnthropicProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "api_error", "message": "Internal error"},
		})
	})

	_, err := p.Stream(context.Background(), UserRequest("", "x"), func(string) error { return nil })
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got: %T (%v)", err, err)
	}
}

func TestAnthropicModelMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"claude-sonnet", "claude-sonnet-4-20250514"},
		{"claude-haiku", "claude-haiku-4-5-20251001"},
		{"claude-opus-4-1", "claude-opus-4-1"},
	}
	for _, tt := range tests {
		if got := resolveModel(tt.input, anthropicModels); got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
