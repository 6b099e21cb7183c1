package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/medprep/mcqgen/internal/intent"
	"github.com/medprep/mcqgen/internal/llm"
	"github.com/medprep/mcqgen/internal/logger"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	// Surface names the delivery channel on recorded runs ("web",
	// "telegram", "tui", "console").
	Surface string
	// MaxQuestions bounds topic requests. Zero means intent.BlueprintCount.
	MaxQuestions int
	Log          *logger.Logger
}

// Session is one conversation. At most one turn runs at a time; a new
// generation request cancels the one in flight.
type Session struct {
	ID string

	orch    *Orchestrator
	surface Surface
	opts    SessionOptions
	log     *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession creates a Session delivering to surface.
func NewSession(orch *Orchestrator, surface Surface, opts SessionOptions) *Session {
	if opts.MaxQuestions <= 0 {
		opts.MaxQuestions = intent.BlueprintCount
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	id := uuid.NewString()
	return &Session{
		ID:      id,
		orch:    orch,
		surface: surface,
		opts:    opts,
		log:     log.With("session", id, "surface", opts.Surface),
	}
}

// RangeReply is the message shown for a count outside the allowed range.
func RangeReply(e *intent.RangeError) string {
	return fmt.Sprintf("⚠️ I can generate between 1 and %d MCQs per request (you asked for %d).", e.Max, e.Count)
}

// Submit handles one user message. Non-generation input gets the usage
// reply. A generation request starts a turn in the background and
// returns once it has started; the turn lives until it finishes, is
// cancelled, or ctx ends.
func (s *Session) Submit(ctx context.Context, text string) error {
	req, ok := intent.Parse(text)
	if !ok {
		_, err := s.surface.Send(ctx, intent.UsageText)
		return err
	}
	if err := req.Validate(s.opts.MaxQuestions); err != nil {
		var re *intent.RangeError
		if errors.As(err, &re) {
			_, err = s.surface.Send(ctx, RangeReply(re))
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	turnCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go func() {
		defer close(done)
		defer cancel()
		s.run(turnCtx, req)
	}()
	return nil
}

func (s *Session) run(ctx context.Context, req intent.Request) {
	ctx = WithSurface(llm.WithSession(ctx, s.ID), s.opts.Surface)
	s.log.Info("turn started", "topic", req.Topic, "count", req.Count, "blueprint", req.IsBlueprint)

	var err error
	if req.IsBlueprint {
		err = s.orch.GenerateBlueprint(ctx, s.surface, req.Count)
	} else {
		err = s.orch.GenerateTopic(ctx, s.surface, req.Topic, req.Count)
	}

	switch {
	case err == nil:
		s.log.Info("turn finished")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.log.Info("turn cancelled")
	default:
		s.log.Warn("turn failed", "error", err)
	}
}

// Cancel aborts the turn in flight, if any. Nothing more is delivered
// for it.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the current turn has ended.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Busy reports whether a turn is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Close cancels the running turn and waits for it.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}
