package chat

import (
	"context"
	"sync"

	tea "charm.land/bubbletea/v2"

	mcqchat "github.com/medprep/mcqgen/internal/chat"
)

// messageSentMsg adds a bot message to the transcript.
type messageSentMsg struct {
	Handle mcqchat.Handle
	Text   string
}

// messageUpdatedMsg replaces the text of an earlier bot message.
type messageUpdatedMsg struct {
	Handle mcqchat.Handle
	Text   string
}

// Surface delivers session output to the running tea program. Messages
// posted before Attach are dropped.
type Surface struct {
	mu   sync.Mutex
	post func(tea.Msg)
	next mcqchat.Handle
}

// NewSurface returns an unattached Surface.
func NewSurface() *Surface {
	return &Surface{}
}

// Attach sets the function used to post messages, normally
// (*tea.Program).Send.
func (s *Surface) Attach(post func(tea.Msg)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.post = post
}

func (s *Surface) Send(ctx context.Context, text string) (mcqchat.Handle, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	h := s.next
	s.next++
	post := s.post
	s.mu.Unlock()

	if post != nil {
		post(messageSentMsg{Handle: h, Text: text})
	}
	return h, nil
}

func (s *Surface) Update(ctx context.Context, h mcqchat.Handle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	post := s.post
	s.mu.Unlock()

	if post != nil {
		post(messageUpdatedMsg{Handle: h, Text: text})
	}
	return nil
}
