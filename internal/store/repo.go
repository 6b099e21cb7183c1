package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	After   int64     // sequence > After
	Before  int64     // sequence < Before
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	Session string    // exact session id match
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	SessionID    string
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// PurposeUsage aggregates token usage for one purpose label.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates token usage for one model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMEvent, error)

	// LLMUsageByPurpose aggregates successful and failed calls by purpose.
	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)

	// LLMUsageByModel aggregates calls by the model that served them.
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)
}

// Run statuses.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// GenerationRun records one topic generation, including each category of
// a blueprint exam.
type GenerationRun struct {
	ID              int
	RunID           string
	Sequence        int64
	Timestamp       time.Time
	SessionID       string
	Surface         string
	Topic           string
	Category        string
	Requested       int
	Blocks          int
	VignettesBefore int
	VignettesAfter  int
	Status          string
	ErrorMessage    string
	LatencyMs       int64
	OutputChars     int
}

// RunRepo stores generation runs.
type RunRepo interface {
	// Append records a run. RunID is generated when empty.
	Append(ctx context.Context, run GenerationRun) error

	// List returns runs newest first.
	List(ctx context.Context, opts QueryOpts) ([]GenerationRun, error)
}

// Chunk is one indexed slice of the reference corpus.
type Chunk struct {
	ID        int64
	Source    string
	Page      int
	Content   string
	Embedding []float32
}

// IndexMeta describes the stored retrieval index.
type IndexMeta struct {
	Model   string
	Chunks  int
	BuiltAt time.Time
}

// ChunkRepo stores the retrieval index.
type ChunkRepo interface {
	// Replace swaps the whole index for chunks in one transaction.
	Replace(ctx context.Context, model string, chunks []Chunk) error

	// All loads every chunk with its embedding.
	All(ctx context.Context) ([]Chunk, error)

	// Meta returns the index description; Model is "" when no index was built.
	Meta(ctx context.Context) (IndexMeta, error)
}
