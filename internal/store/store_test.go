package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so journal_mode is checked in TestFileDatabaseUsesWAL.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
		{"busy_timeout", "5000"},
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestFileDatabaseUsesWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mcqgen.db")
	if err := EnsureDir(path); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}
}

func TestSequenceCounterMonotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		n, err := s.seq.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if n <= last {
			t.Fatalf("sequence not increasing: %d after %d", n, last)
		}
		last = n
	}
}

func TestLLMEventsAppendQueryGet(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	for i, purpose := range []string{"mcq", "blueprint", "mcq"} {
		err := repo.AppendLLMRequest(ctx, LLMRequestEventData{
			SessionID:    "web-1",
			Provider:     "openai",
			Model:        "gpt-4o",
			Purpose:      purpose,
			InputTokens:  100 * (i + 1),
			OutputTokens: 10 * (i + 1),
			LatencyMs:    int64(50 * (i + 1)),
			Success:      i != 1,
			ErrorMessage: map[bool]string{true: "boom"}[i == 1],
			RequestBody:  "[user]\nprompt",
			ResponseBody: "Q1. ...",
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	events, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Sequence <= events[1].Sequence {
		t.Fatal("expected newest first")
	}
	if events[0].InputTokens != 300 || events[0].Purpose != "mcq" {
		t.Fatalf("unexpected newest event %+v", events[0])
	}
	if events[1].Success || events[1].ErrorMessage != "boom" {
		t.Fatalf("expected failed event, got %+v", events[1])
	}
	if time.Since(events[0].Timestamp) > time.Minute {
		t.Fatalf("timestamp not recent: %s", events[0].Timestamp)
	}

	got, err := repo.GetLLMEvent(ctx, events[0].ID)
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.RequestBody != "[user]\nprompt" || got.SessionID != "web-1" {
		t.Fatalf("unexpected event %+v", got)
	}

	missing, err := repo.GetLLMEvent(ctx, 9999)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing event, got %v %v", missing, err)
	}

	after, err := repo.QueryLLMEvents(ctx, QueryOpts{After: events[1].Sequence})
	if err != nil || len(after) != 1 {
		t.Fatalf("after filter: %d events, err %v", len(after), err)
	}
	none, err := repo.QueryLLMEvents(ctx, QueryOpts{Session: "tg-9"})
	if err != nil || len(none) != 0 {
		t.Fatalf("session filter: %d events, err %v", len(none), err)
	}
}

func TestLLMUsageAggregates(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	add := func(purpose, model string, in, out int, ms int64) {
		t.Helper()
		if err := repo.AppendLLMRequest(ctx, LLMRequestEventData{
			Provider: "openai", Model: model, Purpose: purpose,
			InputTokens: in, OutputTokens: out, LatencyMs: ms, Success: true,
		}); err != nil {
			t.Fatal(err)
		}
	}
	add("mcq", "gpt-4o", 100, 50, 100)
	add("mcq", "gpt-4o", 200, 70, 300)
	add("blueprint", "gpt-4o-mini", 10, 5, 20)

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("by purpose: %v", err)
	}
	if len(byPurpose) != 2 || byPurpose[1].Purpose != "mcq" {
		t.Fatalf("unexpected purposes %+v", byPurpose)
	}
	mcq := byPurpose[1]
	if mcq.Calls != 2 || mcq.InputTokens != 300 || mcq.OutputTokens != 120 || mcq.AvgLatencyMs != 200 {
		t.Fatalf("unexpected mcq usage %+v", mcq)
	}

	byModel, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		t.Fatalf("by model: %v", err)
	}
	if len(byModel) != 2 || byModel[0].Model != "gpt-4o" || byModel[0].Calls != 2 {
		t.Fatalf("unexpected model usage %+v", byModel)
	}
}

func TestRunsAppendList(t *testing.T) {
	s := openTestStore(t)
	repo := s.RunRepo()
	ctx := context.Background()

	if err := repo.Append(ctx, GenerationRun{
		SessionID: "tui", Surface: "tui", Topic: "cardiology", Requested: 10,
		Blocks: 10, VignettesBefore: 3, VignettesAfter: 1, Status: RunCompleted, LatencyMs: 1200,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Append(ctx, GenerationRun{
		SessionID: "tui", Topic: "BLUEPRINT", Category: "Neurology", Requested: 9,
		Status: RunFailed, ErrorMessage: "provider down",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	runs, err := repo.List(ctx, QueryOpts{Session: "tui"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Category != "Neurology" || runs[0].Status != RunFailed {
		t.Fatalf("unexpected newest run %+v", runs[0])
	}
	if runs[1].RunID == "" || runs[1].RunID == runs[0].RunID {
		t.Fatalf("expected distinct generated run ids, got %q and %q", runs[1].RunID, runs[0].RunID)
	}
	if runs[1].VignettesBefore != 3 || runs[1].VignettesAfter != 1 {
		t.Fatalf("unexpected vignette stats %+v", runs[1])
	}
}

func TestChunksReplaceAndLoad(t *testing.T) {
	s := openTestStore(t)
	repo := s.ChunkRepo()
	ctx := context.Background()

	meta, err := repo.Meta(ctx)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Model != "" {
		t.Fatalf("expected empty meta, got %+v", meta)
	}

	first := []Chunk{
		{Source: "cardio.pdf", Page: 1, Content: "Heart failure", Embedding: []float32{0.5, -1.25, 3}},
		{Source: "cardio.pdf", Page: 2, Content: "Arrhythmia", Embedding: []float32{1, 0, 0}},
	}
	if err := repo.Replace(ctx, "hash-3", first); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := repo.Replace(ctx, "text-embedding-ada-002", first[:1]); err != nil {
		t.Fatalf("replace again: %v", err)
	}

	chunks, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected replace to drop old chunks, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Source != "cardio.pdf" || c.Page != 1 || c.Content != "Heart failure" {
		t.Fatalf("unexpected chunk %+v", c)
	}
	want := []float32{0.5, -1.25, 3}
	for i := range want {
		if c.Embedding[i] != want[i] {
			t.Fatalf("embedding = %v, want %v", c.Embedding, want)
		}
	}

	meta, err = repo.Meta(ctx)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Model != "text-embedding-ada-002" || meta.Chunks != 1 || meta.BuiltAt.IsZero() {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestDecodeVectorRejectsBadLength(t *testing.T) {
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated blob")
	}
}

func TestDefaultDBPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MCQGEN_DB", "")
	t.Setenv("XDG_DATA_HOME", dir)

	p, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("default path: %v", err)
	}
	if p != filepath.Join(dir, "mcqgen", "mcqgen.db") {
		t.Fatalf("unexpected path %q", p)
	}

	t.Setenv("MCQGEN_DB", filepath.Join(dir, "custom", "x.db"))
	p, err = DefaultDBPath()
	if err != nil || !strings.HasSuffix(p, filepath.Join("custom", "x.db")) {
		t.Fatalf("env override: %q %v", p, err)
	}
}
