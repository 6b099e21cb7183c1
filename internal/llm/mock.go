package llm

import (
	"context"
	"strings"
	"sync"
)

// MockResponse is a canned streamed reply for the MockProvider.
type MockResponse struct {
	// Chunks are delivered to onChunk in order.
	Chunks []string
	Usage  Usage
	// Err is returned after Chunks have been delivered.
	Err error
	// Block makes the stream wait for ctx cancellation after the chunks.
	Block bool
	// StopReason defaults to "end".
	StopReason string
}

// MockProvider is a deterministic Provider for testing and offline runs.
// It replays canned responses in FIFO order and records all requests.
// When the queue is empty it answers with a short generated batch.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request
}

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// Stream replays the next canned response. Cancellation is checked
// before each chunk.
func (m *MockProvider) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	var resp MockResponse
	if len(m.responses) == 0 {
		resp = MockResponse{Chunks: fallbackChunks()}
	} else {
		resp = m.responses[0]
		m.responses = m.responses[1:]
	}
	m.mu.Unlock()

	var content strings.Builder
	for _, c := range resp.Chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content.WriteString(c)
		if err := onChunk(c); err != nil {
			return nil, err
		}
	}
	if resp.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	stop := resp.StopReason
	if stop == "" {
		stop = "end"
	}
	return finish(content.String(), "mock", stop, resp.Usage)
}

// ModelID returns "mock".
func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Stream calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func fallbackChunks() []string {
	return []string{
		"Q1. Which finding is most specific for the condition described?\n\n",
		"A. Fever\nB. Fatigue\nC. Pathognomonic sign\nD. Weight loss\n\n",
		"Correct Answer: C\nExplanation: Only the pathognomonic sign is specific.\n",
	}
}
