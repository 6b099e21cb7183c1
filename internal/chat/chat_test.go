package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medprep/mcqgen/internal/blueprint"
	"github.com/medprep/mcqgen/internal/intent"
	"github.com/medprep/mcqgen/internal/llm"
	"github.com/medprep/mcqgen/internal/mcqgen"
	"github.com/medprep/mcqgen/internal/store"
)

// recorder is a Surface that keeps every message and counts updates.
type recorder struct {
	mu      sync.Mutex
	msgs    []string
	updates map[Handle]int
}

func newRecorder() *recorder {
	return &recorder{updates: map[Handle]int{}}
}

func (r *recorder) Send(_ context.Context, text string) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	return Handle(len(r.msgs) - 1), nil
}

func (r *recorder) Update(_ context.Context, h Handle, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[h] = text
	r.updates[h]++
	return nil
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func (r *recorder) updateCount(h Handle) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates[h]
}

type fakeRetriever struct {
	text    string
	err     error
	queries []string
}

func (f *fakeRetriever) Search(_ context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	return f.text, f.err
}

func openRuns(t *testing.T) store.RunRepo {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	s, err := store.Open(fmt.Sprintf("file:chat_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s.RunRepo()
}

func listRuns(t *testing.T, runs store.RunRepo) []store.GenerationRun {
	t.Helper()
	out, err := runs.List(context.Background(), store.QueryOpts{})
	require.NoError(t, err)
	return out
}

var diabetesChunks = []string{
	"Q1. Which drug is first line for type 2 diabetes?\n",
	"A. Metformin\nB. Insulin\nC. Glipizide\nD. Diet alone\n",
	"Correct Answer: A\nExplanation: Metformin is first line.\n",
}

func TestGenerateTopicStreamsAndRebalances(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{Chunks: diabetesChunks})
	ret := &fakeRetriever{text: "Metformin lowers hepatic glucose output."}
	runs := openRuns(t)
	orch := NewOrchestrator(provider, ret, runs, Config{FlushThreshold: 10}, nil)
	surf := newRecorder()

	require.NoError(t, orch.GenerateTopic(context.Background(), surf, "diabetes", 1))

	msgs := surf.messages()
	require.Len(t, msgs, 1)
	notice := Notice("diabetes", 1)
	assert.Equal(t, "⏳ Generating 1 MCQs for **diabetes**...\n", notice)
	assert.True(t, strings.HasPrefix(msgs[0], notice))
	assert.Contains(t, msgs[0], "Q1. A 55-year-old man presents with Which drug is first line")
	assert.Equal(t, 1, strings.Count(msgs[0], "Q1."))
	// three flushes plus the final rebalanced content
	assert.Equal(t, 4, surf.updateCount(0))

	assert.Equal(t, []string{"diabetes"}, ret.queries)
	require.Len(t, provider.Calls, 1)
	assert.Equal(t, mcqgen.SystemPrompt, provider.Calls[0].System)
	assert.Contains(t, provider.Calls[0].Messages[0].Content, "Metformin lowers hepatic glucose output.")
	assert.Contains(t, provider.Calls[0].Messages[0].Content, `Produce 1 **unique and professional** MCQs on "diabetes".`)

	got := listRuns(t, runs)
	require.Len(t, got, 1)
	assert.Equal(t, store.RunCompleted, got[0].Status)
	assert.Equal(t, "diabetes", got[0].Topic)
	assert.Equal(t, 1, got[0].Requested)
	assert.Equal(t, 1, got[0].Blocks)
	assert.Equal(t, 0, got[0].VignettesBefore)
	assert.Equal(t, 1, got[0].VignettesAfter)
}

func TestGenerateTopicNoFlushBelowThreshold(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{Chunks: diabetesChunks})
	orch := NewOrchestrator(provider, nil, nil, Config{}, nil)
	surf := newRecorder()

	require.NoError(t, orch.GenerateTopic(context.Background(), surf, "diabetes", 1))
	assert.Equal(t, 1, surf.updateCount(0))
}

func TestGenerateTopicRetrieverErrorDegrades(t *testing.T) {
	provider := llm.NewMockProvider()
	ret := &fakeRetriever{text: "should not be used", err: errors.New("index offline")}
	orch := NewOrchestrator(provider, ret, nil, Config{}, nil)

	require.NoError(t, orch.GenerateTopic(context.Background(), newRecorder(), "gout", 3))
	require.Len(t, provider.Calls, 1)
	assert.NotContains(t, provider.Calls[0].Messages[0].Content, "should not be used")
}

func TestGenerateTopicFailure(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{
		Chunks: []string{"Q1. Partial stem"},
		Err:    &llm.ErrProviderUnavailable{},
	})
	runs := openRuns(t)
	orch := NewOrchestrator(provider, nil, runs, Config{}, nil)
	surf := newRecorder()

	err := orch.GenerateTopic(context.Background(), surf, "sepsis", 2)
	var unavailable *llm.ErrProviderUnavailable
	require.ErrorAs(t, err, &unavailable)

	msgs := surf.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, Notice("sepsis", 2)+"Q1. Partial stem\n\n⚠️ Generation failed: LLM provider unavailable", msgs[0])

	got := listRuns(t, runs)
	require.Len(t, got, 1)
	assert.Equal(t, store.RunFailed, got[0].Status)
	assert.Equal(t, "LLM provider unavailable", got[0].ErrorMessage)
}

func TestGenerateTopicCancelLeavesPartialMessage(t *testing.T) {
	chunk := "Q1. Streaming stem about anemia\n"
	provider := llm.NewMockProvider(llm.MockResponse{Chunks: []string{chunk}, Block: true})
	runs := openRuns(t)
	orch := NewOrchestrator(provider, nil, runs, Config{FlushThreshold: 5}, nil)
	surf := newRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- orch.GenerateTopic(ctx, surf, "anemia", 4) }()

	require.Eventually(t, func() bool { return surf.updateCount(0) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	msgs := surf.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, Notice("anemia", 4)+chunk, msgs[0])
	assert.Equal(t, 1, surf.updateCount(0))

	got := listRuns(t, runs)
	require.Len(t, got, 1)
	assert.Equal(t, store.RunCancelled, got[0].Status)
}

func TestGenerateTopicTruncatedStillRebalances(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{Chunks: diabetesChunks, StopReason: "max_tokens"})
	runs := openRuns(t)
	orch := NewOrchestrator(provider, nil, runs, Config{}, nil)
	surf := newRecorder()

	require.NoError(t, orch.GenerateTopic(context.Background(), surf, "diabetes", 1))
	assert.Contains(t, surf.messages()[0], mcqgen.VignettePhrase)
	assert.Equal(t, store.RunCompleted, listRuns(t, runs)[0].Status)
}

var smallTable = blueprint.Table{{Name: "A", Weight: 10}, {Name: "B", Weight: 20}}

func TestGenerateBlueprint(t *testing.T) {
	provider := llm.NewMockProvider()
	runs := openRuns(t)
	orch := NewOrchestrator(provider, nil, runs, Config{Blueprint: smallTable}, nil)
	surf := newRecorder()

	require.NoError(t, orch.GenerateBlueprint(context.Background(), surf, 3))

	msgs := surf.messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, "📘 Generating full blueprint exam (3 MCQs)...", msgs[0])
	assert.Equal(t, "Planned allocation:\nA: 1\nB: 2", msgs[1])
	assert.True(t, strings.HasPrefix(msgs[2], Notice("A", 1)))
	assert.True(t, strings.HasPrefix(msgs[3], Notice("B", 2)))
	assert.Equal(t, "✅ Finished generating the full exam!", msgs[4])

	require.Len(t, provider.Calls, 2)
	assert.Contains(t, provider.Calls[0].Messages[0].Content, `MCQs on "A"`)
	assert.Contains(t, provider.Calls[1].Messages[0].Content, `MCQs on "B"`)

	got := listRuns(t, runs)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].Category)
	assert.Equal(t, "A", got[1].Category)
}

func TestGenerateBlueprintStopsOnFailure(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}})
	orch := NewOrchestrator(provider, nil, nil, Config{Blueprint: smallTable}, nil)
	surf := newRecorder()

	err := orch.GenerateBlueprint(context.Background(), surf, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category A")

	msgs := surf.messages()
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[2], "⚠️ Generation failed")
	assert.Equal(t, "Skipped remaining categories: B", msgs[3])
	assert.Equal(t, 1, provider.CallCount())
}

func TestSessionNonMCQReply(t *testing.T) {
	provider := llm.NewMockProvider()
	surf := newRecorder()
	s := NewSession(NewOrchestrator(provider, nil, nil, Config{}, nil), surf, SessionOptions{Surface: "test"})

	require.NoError(t, s.Submit(context.Background(), "hello there"))
	s.Wait()
	assert.Equal(t, []string{intent.UsageText}, surf.messages())
	assert.Equal(t, 0, provider.CallCount())
}

func TestSessionRangeReply(t *testing.T) {
	provider := llm.NewMockProvider()
	surf := newRecorder()
	s := NewSession(NewOrchestrator(provider, nil, nil, Config{}, nil), surf, SessionOptions{MaxQuestions: 50})

	require.NoError(t, s.Submit(context.Background(), "generate 120 mcqs on asthma"))
	msgs := surf.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "⚠️ I can generate between 1 and 50 MCQs per request (you asked for 120).", msgs[0])
	assert.Equal(t, 0, provider.CallCount())
}

func TestSessionTopicTurn(t *testing.T) {
	provider := llm.NewMockProvider()
	runs := openRuns(t)
	surf := newRecorder()
	s := NewSession(NewOrchestrator(provider, nil, runs, Config{}, nil), surf, SessionOptions{Surface: "console"})

	require.NoError(t, s.Submit(context.Background(), "Generate 2 MCQs on asthma"))
	s.Wait()
	assert.False(t, s.Busy())

	msgs := surf.messages()
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0], Notice("asthma", 2)))

	got := listRuns(t, runs)
	require.Len(t, got, 1)
	assert.Equal(t, s.ID, got[0].SessionID)
	assert.Equal(t, "console", got[0].Surface)
}

func TestSessionBlueprintTurn(t *testing.T) {
	provider := llm.NewMockProvider()
	table := blueprint.Table{{Name: "A", Weight: 50}, {Name: "B", Weight: 50}}
	surf := newRecorder()
	s := NewSession(NewOrchestrator(provider, nil, nil, Config{Blueprint: table}, nil), surf, SessionOptions{})

	require.NoError(t, s.Submit(context.Background(), "generate full exam"))
	s.Wait()

	msgs := surf.messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, "Planned allocation:\nA: 120\nB: 120", msgs[1])
	assert.Equal(t, 2, provider.CallCount())
}

func TestSessionNewSubmitCancelsInFlight(t *testing.T) {
	provider := llm.NewMockProvider(
		llm.MockResponse{Chunks: []string{"Q1. first\n"}, Block: true},
		llm.MockResponse{Chunks: diabetesChunks},
	)
	runs := openRuns(t)
	surf := newRecorder()
	s := NewSession(NewOrchestrator(provider, nil, runs, Config{}, nil), surf, SessionOptions{})

	require.NoError(t, s.Submit(context.Background(), "make 3 mcqs on gout"))
	require.Eventually(t, func() bool { return provider.CallCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Submit(context.Background(), "make 1 mcq on diabetes"))
	s.Wait()

	msgs := surf.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, Notice("gout", 3), msgs[0])
	assert.Contains(t, msgs[1], mcqgen.VignettePhrase)

	got := listRuns(t, runs)
	require.Len(t, got, 2)
	assert.Equal(t, store.RunCompleted, got[0].Status)
	assert.Equal(t, store.RunCancelled, got[1].Status)
}

func TestSessionCancel(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{Chunks: []string{"Q1. x\n"}, Block: true})
	surf := newRecorder()
	s := NewSession(NewOrchestrator(provider, nil, nil, Config{}, nil), surf, SessionOptions{})

	require.NoError(t, s.Submit(context.Background(), "create 4 questions about lupus"))
	require.Eventually(t, func() bool { return provider.CallCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Busy())

	s.Cancel()
	s.Wait()
	assert.False(t, s.Busy())
	assert.Equal(t, []string{Notice("lupus", 4)}, surf.messages())
}

func TestConsoleSurface(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleSurface(&buf)
	ctx := context.Background()

	h, err := c.Send(ctx, "first")
	require.NoError(t, err)
	_, err = c.Send(ctx, "second")
	require.NoError(t, err)
	require.NoError(t, c.Update(ctx, h, "first, edited"))
	assert.Error(t, c.Update(ctx, Handle(9), "nope"))
	assert.Equal(t, []string{"first, edited", "second"}, c.Messages())

	require.NoError(t, c.Flush())
	assert.Equal(t, "first, edited\n\nsecond\n", buf.String())
	assert.Empty(t, c.Messages())
	require.NoError(t, c.Flush())
}
