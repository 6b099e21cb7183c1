package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/medprep/mcqgen/internal/blueprint"
	"github.com/medprep/mcqgen/internal/llm"
	"github.com/medprep/mcqgen/internal/logger"
	"github.com/medprep/mcqgen/internal/mcqgen"
	"github.com/medprep/mcqgen/internal/store"
)

// DefaultFlushThreshold is the number of unflushed characters that
// triggers a message update while streaming.
const DefaultFlushThreshold = 1500

const (
	purposeTopic     = "mcq"
	purposeBlueprint = "blueprint"
)

// Config tunes the orchestrator.
type Config struct {
	FlushThreshold int
	Blueprint      blueprint.Table
	MaxTokens      int
	Temperature    float64
}

// Orchestrator drives generation turns. It is safe for concurrent use by
// multiple sessions.
type Orchestrator struct {
	provider  llm.Provider
	retriever Retriever
	runs      store.RunRepo
	cfg       Config
	log       *logger.Logger
}

// NewOrchestrator creates an Orchestrator. retriever and runs may be nil.
func NewOrchestrator(provider llm.Provider, retriever Retriever, runs store.RunRepo, cfg Config, log *logger.Logger) *Orchestrator {
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = DefaultFlushThreshold
	}
	if len(cfg.Blueprint) == 0 {
		cfg.Blueprint = blueprint.Default()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{provider: provider, retriever: retriever, runs: runs, cfg: cfg, log: log}
}

// Notice is the first line of a topic's message.
func Notice(topic string, count int) string {
	return fmt.Sprintf("⏳ Generating %d MCQs for **%s**...\n", count, topic)
}

// GenerateTopic streams count questions on topic into a single message
// and replaces the streamed text with its rebalanced form once the model
// is done. The partially streamed message is left untouched when ctx is
// cancelled.
func (o *Orchestrator) GenerateTopic(ctx context.Context, s Surface, topic string, count int) error {
	return o.generate(llm.WithPurpose(ctx, purposeTopic), s, topic, count, "")
}

// GenerateBlueprint produces a full exam of total questions, one category
// at a time in blueprint order. A failed category stops the exam.
func (o *Orchestrator) GenerateBlueprint(ctx context.Context, s Surface, total int) error {
	if _, err := s.Send(ctx, fmt.Sprintf("📘 Generating full blueprint exam (%d MCQs)...", total)); err != nil {
		return fmt.Errorf("send blueprint header: %w", err)
	}
	alloc := blueprint.Allocate(o.cfg.Blueprint, total)
	if _, err := s.Send(ctx, alloc.Summary()); err != nil {
		return fmt.Errorf("send allocation: %w", err)
	}

	ctx = llm.WithPurpose(ctx, purposeBlueprint)
	for i, share := range alloc {
		if share.Count <= 0 {
			continue
		}
		if err := o.generate(ctx, s, share.Category, share.Count, share.Category); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if skipped := remaining(alloc[i+1:]); len(skipped) > 0 {
				msg := "Skipped remaining categories: " + strings.Join(skipped, ", ")
				if _, serr := s.Send(ctx, msg); serr != nil {
					o.log.Warn("send skipped categories failed", "error", serr)
				}
			}
			return fmt.Errorf("category %s: %w", share.Category, err)
		}
	}

	if _, err := s.Send(ctx, "✅ Finished generating the full exam!"); err != nil {
		return fmt.Errorf("send completion: %w", err)
	}
	return nil
}

func remaining(shares blueprint.Allocation) []string {
	var names []string
	for _, sh := range shares {
		if sh.Count > 0 {
			names = append(names, sh.Category)
		}
	}
	return names
}

func (o *Orchestrator) generate(ctx context.Context, s Surface, topic string, count int, category string) error {
	start := time.Now()
	run := store.GenerationRun{
		SessionID: llm.SessionFrom(ctx),
		Surface:   surfaceFrom(ctx),
		Topic:     topic,
		Category:  category,
		Requested: count,
	}
	log := o.log.With("topic", topic, "count", count)

	reference := o.reference(ctx, topic, log)
	req := llm.UserRequest(mcqgen.SystemPrompt, mcqgen.BuildPrompt(topic, count, reference))
	req.MaxTokens = o.cfg.MaxTokens
	req.Temperature = o.cfg.Temperature

	notice := Notice(topic, count)
	h, err := s.Send(ctx, notice)
	if err != nil {
		return fmt.Errorf("send notice: %w", err)
	}

	var (
		raw      strings.Builder
		content  = notice
		pending  strings.Builder
		unsynced int
	)
	_, err = o.provider.Stream(ctx, req, func(chunk string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw.WriteString(chunk)
		pending.WriteString(chunk)
		unsynced += utf8.RuneCountInString(chunk)
		if unsynced <= o.cfg.FlushThreshold {
			return nil
		}
		content += pending.String()
		pending.Reset()
		unsynced = 0
		return s.Update(ctx, h, content)
	})

	var truncated *llm.ErrMaxTokensExceeded
	switch {
	case ctx.Err() != nil:
		run.Status = store.RunCancelled
		run.OutputChars = raw.Len()
		o.record(ctx, run, start, log)
		log.Debug("generation cancelled")
		return ctx.Err()
	case errors.As(err, &truncated):
		log.Warn("model output truncated at max tokens")
	case err != nil:
		failed := content + pending.String() + "\n\n⚠️ Generation failed: " + err.Error()
		if uerr := s.Update(ctx, h, failed); uerr != nil {
			log.Warn("report generation failure", "error", uerr)
		}
		run.Status = store.RunFailed
		run.ErrorMessage = err.Error()
		run.OutputChars = raw.Len()
		o.record(ctx, run, start, log)
		return err
	}

	text := raw.String()
	final := mcqgen.EnforceVignetteRatio(text, count)
	if err := s.Update(ctx, h, notice+final); err != nil {
		return fmt.Errorf("deliver questions: %w", err)
	}

	run.Status = store.RunCompleted
	run.Blocks = len(mcqgen.SplitBlocks(final))
	run.VignettesBefore = mcqgen.CountVignettes(text)
	run.VignettesAfter = mcqgen.CountVignettes(final)
	run.OutputChars = len(final)
	o.record(ctx, run, start, log)
	log.Info("questions generated",
		"blocks", run.Blocks, "vignettes_before", run.VignettesBefore, "vignettes_after", run.VignettesAfter)
	return nil
}

func (o *Orchestrator) reference(ctx context.Context, topic string, log *logger.Logger) string {
	if o.retriever == nil {
		return ""
	}
	text, err := o.retriever.Search(ctx, topic)
	if err != nil {
		log.Warn("syllabus search failed, continuing without reference", "error", err)
		return ""
	}
	if strings.TrimSpace(text) == "" {
		log.Debug("no relevant syllabus content")
	}
	return text
}

func (o *Orchestrator) record(ctx context.Context, run store.GenerationRun, start time.Time, log *logger.Logger) {
	if o.runs == nil {
		return
	}
	run.LatencyMs = time.Since(start).Milliseconds()
	if err := o.runs.Append(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("record generation run", "error", err)
	}
}
